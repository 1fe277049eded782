package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

// parsed is the subset of a decoded packet the collector needs.
type parsed struct {
	sip, dip     string
	sport, dport uint16
	proto        flowtable.Proto
	wireLen      int
	payloadLen   int
}

// acceptPacket decodes pkt and reports whether it is an IP packet
// carrying TCP or UDP, consolidating the source's duplicated
// valid_packet/process_packet checks (spec §9 item 4) into one
// predicate used everywhere a packet is examined.
func acceptPacket(pkt gopacket.Packet) (parsed, bool) {
	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		return parsed{}, false
	}

	var sip, dip string
	switch nl := netLayer.(type) {
	case *layers.IPv4:
		sip, dip = nl.SrcIP.String(), nl.DstIP.String()
	case *layers.IPv6:
		sip, dip = nl.SrcIP.String(), nl.DstIP.String()
	default:
		return parsed{}, false
	}

	wireLen := len(pkt.Data())

	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		return parsed{
			sip: sip, dip: dip,
			sport: uint16(tcp.SrcPort), dport: uint16(tcp.DstPort),
			proto:      flowtable.ProtoTCP,
			wireLen:    wireLen,
			payloadLen: len(tcp.Payload),
		}, true
	}
	if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		return parsed{
			sip: sip, dip: dip,
			sport: uint16(udp.SrcPort), dport: uint16(udp.DstPort),
			proto:      flowtable.ProtoUDP,
			wireLen:    wireLen,
			payloadLen: len(udp.Payload),
		}, true
	}
	return parsed{}, false
}
