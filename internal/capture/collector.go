// Package capture binds a BPF filter on a local interface, decodes
// IP/TCP/UDP packets, drives a flow table, and emits scaled feature
// vectors for the DCA input queue.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"

	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

// Scaler is the subset of internal/scaler used by the collector.
type Scaler interface {
	Transform(flowtable.FeatureVector) flowtable.FeatureVector
}

// PacketSource abstracts a live capture handle so the collector's
// straight-line packet loop (spec §9 item "flatten the nested
// closure") can be driven by a real pcap handle or, in tests, by a
// canned packet feed.
type PacketSource interface {
	Packets() <-chan gopacket.Packet
	Close()
}

// pcapSource adapts a *pcap.Handle to PacketSource.
type pcapSource struct {
	handle *pcap.Handle
	pkts   <-chan gopacket.Packet
}

func (p *pcapSource) Packets() <-chan gopacket.Packet { return p.pkts }
func (p *pcapSource) Close()                          { p.handle.Close() }

// BPFFilter builds the "ip and (tcp or udp) and host <addr>" filter
// string described in spec §4.3.
func BPFFilter(localAddr string) string {
	return fmt.Sprintf("ip and (tcp or udp) and host %s", localAddr)
}

// OpenLive opens a live capture on iface with the local-host BPF
// filter bound, per spec §4.3 and §7 ("cannot bind BPF filter" is
// startup-fatal).
func OpenLive(iface, localAddr string) (PacketSource, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter(BPFFilter(localAddr)); err != nil {
		handle.Close()
		return nil, fmt.Errorf("capture: set bpf filter: %w", err)
	}
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	return &pcapSource{handle: handle, pkts: src.Packets()}, nil
}

// Collector owns a flow table exclusively and drives it from a packet
// source, pushing (antigen id, scaled feature vector) tuples onto out.
type Collector struct {
	scaler Scaler
	table  *flowtable.Table
	log    *zap.Logger
}

// New constructs a Collector around a fresh, empty flow table.
func New(scaler Scaler, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{scaler: scaler, table: flowtable.New(), log: log}
}

// Table exposes the collector's flow table for inspection (e.g. by the
// optional idle-eviction sweep) and tests.
func (c *Collector) Table() *flowtable.Table { return c.table }

// Run drains src until ctx is cancelled or src closes, pushing scaled
// feature vectors onto out. out is closed on return, forwarding the
// end-of-stream sentinel down the pipeline per spec §5.
func (c *Collector) Run(ctx context.Context, src PacketSource, out chan<- flowtable.Emission) {
	defer close(out)
	pkts := src.Packets()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-pkts:
			if !ok {
				return
			}
			c.processPacket(pkt, out, ctx)
		}
	}
}

// processPacket is the flattened, straight-line packet handler named
// by spec §9 item "callback-inside-callback" — no nested closures.
func (c *Collector) processPacket(pkt gopacket.Packet, out chan<- flowtable.Emission, ctx context.Context) {
	p, ok := acceptPacket(pkt)
	if !ok {
		return
	}
	emission, created := c.table.Observe(p.sip, p.sport, p.dip, p.dport, p.proto, p.wireLen, p.payloadLen, time.Now())
	if created {
		return
	}
	emission.Vector = c.scaler.Transform(emission.Vector)
	select {
	case out <- *emission:
	case <-ctx.Done():
	}
}
