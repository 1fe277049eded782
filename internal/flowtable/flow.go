// Package flowtable aggregates packets into bidirectional network flows.
package flowtable

import "fmt"

// Proto identifies the transport protocol a Flow was opened with.
type Proto int

const (
	// ProtoTCP marks a flow opened by a TCP packet.
	ProtoTCP Proto = iota
	// ProtoUDP marks a flow opened by a UDP packet.
	ProtoUDP
)

func (p Proto) String() string {
	if p == ProtoUDP {
		return "UDP"
	}
	return "TCP"
}

// side identifies which direction of a Flow a packet belongs to.
type side int

const (
	sideSrc side = iota
	sideDst
)

// Flow is a bidirectional flow aggregate, keyed by its canonical Key.
// It is exclusively owned and mutated by the collector that created it.
type Flow struct {
	Key   string
	Proto Proto

	SIP, DIP     string
	SPort, DPort uint16

	Spkts, Dpkts           uint64
	Sbytes, Dbytes         uint64
	SpktsSize, DpktsSize    uint64
	Smean, Dmean           float64

	// createdAtUnixNano is used only by the optional eviction sweep (see
	// Table.EvictIdleBefore); core scoring never reads it.
	createdAtUnixNano int64
}

// Key formats a 4-tuple as the "sip:sport-dip:dport" flow identity used
// throughout the system (collector keying, antigen identity). The two
// sides are not sorted: a flow is stored under the Key of the packet
// that opened it, and packets in the other direction find it through
// reverseKey.
func Key(sip string, sport uint16, dip string, dport uint16) string {
	a := fmt.Sprintf("%s:%d", sip, sport)
	b := fmt.Sprintf("%s:%d", dip, dport)
	return a + "-" + b
}

// reverseKey returns the key with sides swapped, used to probe the table
// for an existing flow in the opposite direction.
func reverseKey(sip string, sport uint16, dip string, dport uint16) string {
	return Key(dip, dport, sip, sport)
}

// newFlow creates a Flow from a packet's 4-tuple, seeding it with the
// first packet's counters (invariant: Spkts >= 1 for any live flow).
func newFlow(sip string, sport uint16, dip string, dport uint16, proto Proto, wireLen, payloadLen int, nowUnixNano int64) *Flow {
	f := &Flow{
		Key:               Key(sip, sport, dip, dport),
		Proto:             proto,
		SIP:               sip,
		DIP:               dip,
		SPort:             sport,
		DPort:             dport,
		Spkts:             1,
		Sbytes:            uint64(payloadLen),
		SpktsSize:         uint64(wireLen),
		createdAtUnixNano: nowUnixNano,
	}
	f.Smean = float64(f.SpktsSize) / float64(f.Spkts)
	return f
}

// update mutates the Flow in place with one more packet's counters,
// recomputing the mean on-wire size for whichever side the packet
// belongs to. side is determined by comparing the packet's source IP to
// the Flow's stored SIP (the side the Flow was opened from).
func (f *Flow) update(pktSIP string, wireLen, payloadLen int) {
	s := sideDst
	if pktSIP == f.SIP {
		s = sideSrc
	}
	switch s {
	case sideSrc:
		f.Spkts++
		f.SpktsSize += uint64(wireLen)
		f.Smean = float64(f.SpktsSize) / float64(f.Spkts)
		f.Sbytes += uint64(payloadLen)
	case sideDst:
		f.Dpkts++
		f.DpktsSize += uint64(wireLen)
		if f.Dpkts > 0 {
			f.Dmean = float64(f.DpktsSize) / float64(f.Dpkts)
		}
		f.Dbytes += uint64(payloadLen)
	}
}

// FeatureVector is the 8-tuple passed through the scaler/signal
// extractor: the first six numerical components, then (is_tcp, is_udp).
type FeatureVector [8]float64

// FeatureVector produces the raw (unscaled) feature vector for the
// Flow's current state, per the invariants in spec §3.
func (f *Flow) FeatureVector() FeatureVector {
	isTCP, isUDP := 0.0, 1.0
	if f.Proto == ProtoTCP {
		isTCP, isUDP = 1.0, 0.0
	}
	return FeatureVector{
		float64(f.Spkts),
		float64(f.Dpkts),
		float64(f.Sbytes),
		float64(f.Dbytes),
		f.Smean,
		f.Dmean,
		isTCP,
		isUDP,
	}
}
