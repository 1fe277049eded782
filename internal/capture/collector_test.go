package capture

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

// identityScaler passes feature vectors through unchanged, isolating
// collector tests from scaler behavior.
type identityScaler struct{}

func (identityScaler) Transform(v flowtable.FeatureVector) flowtable.FeatureVector { return v }

// fakeSource replays a fixed slice of packets and then closes.
type fakeSource struct {
	ch chan gopacket.Packet
}

func newFakeSource(pkts []gopacket.Packet) *fakeSource {
	ch := make(chan gopacket.Packet, len(pkts))
	for _, p := range pkts {
		ch <- p
	}
	close(ch)
	return &fakeSource{ch: ch}
}

func (f *fakeSource) Packets() <-chan gopacket.Packet { return f.ch }
func (f *fakeSource) Close()                          {}

func buildTCPPacket(t *testing.T, sip, dip string, sport, dport uint16, payloadLen int) gopacket.Packet {
	t.Helper()
	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(sip),
		DstIP:    net.ParseIP(dip),
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport)}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := gopacket.Payload(make([]byte, payloadLen))
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, payload))
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestCollector_DropsNonTCPUDP(t *testing.T) {
	// An ICMP packet: IP layer present, but neither TCP nor UDP.
	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP("10.0.0.1"),
		DstIP:    net.ParseIP("10.0.0.2"),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, ip, icmp))
	pkt := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)

	c := New(identityScaler{}, nil)
	out := make(chan flowtable.Emission, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Run(ctx, newFakeSource([]gopacket.Packet{pkt}), out)

	select {
	case e := <-out:
		t.Fatalf("expected no emission for a non-TCP/UDP packet, got %+v", e)
	default:
	}
	assert.Equal(t, 0, c.Table().Len())
}

func TestCollector_EmitsOnUpdateNotOnCreate(t *testing.T) {
	pkts := []gopacket.Packet{
		buildTCPPacket(t, "10.0.0.1", "8.8.8.8", 1000, 443, 40),
		buildTCPPacket(t, "10.0.0.1", "8.8.8.8", 1000, 443, 40),
	}
	c := New(identityScaler{}, nil)
	out := make(chan flowtable.Emission, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Run(ctx, newFakeSource(pkts), out)

	assert.Equal(t, 1, c.Table().Len())
	emissions := drain(out)
	require.Len(t, emissions, 1, "first packet creates the flow and is not scored; second packet updates it and is scored")
	assert.Equal(t, "10.0.0.1:1000-8.8.8.8:443", emissions[0].AntigenID)
}

func drain(ch chan flowtable.Emission) []flowtable.Emission {
	var out []flowtable.Emission
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}
