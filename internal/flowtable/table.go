package flowtable

import "time"

// Emission is the (antigen id, scaled feature vector) tuple the
// collector pushes onto the DCA input queue after every flow update.
type Emission struct {
	AntigenID string
	Vector    FeatureVector
}

// Table is an in-memory flow table, exclusively owned by the packet
// collector that mutates it. It is not safe for concurrent use from
// more than one goroutine — the collector stage is single-threaded
// internally, per spec §5.
type Table struct {
	flows map[string]*Flow
}

// New returns an empty flow table.
func New() *Table {
	return &Table{flows: make(map[string]*Flow)}
}

// Len reports the number of tracked flows.
func (t *Table) Len() int {
	return len(t.flows)
}

// lookup returns the flow matching either the forward or the reverse
// of the given 4-tuple, and whether such a flow was found. It never
// creates a flow.
func (t *Table) lookup(sip string, sport uint16, dip string, dport uint16) (flow *Flow, found bool) {
	fwd := Key(sip, sport, dip, dport)
	if f, ok := t.flows[fwd]; ok {
		return f, true
	}
	rev := reverseKey(sip, sport, dip, dport)
	if f, ok := t.flows[rev]; ok {
		return f, true
	}
	return nil, false
}

// Observe applies one packet's worth of metadata to the table.
//
// If no flow matches (forward or reverse), a new flow is created and
// inserted under its forward key; this case returns created=true and a
// nil Emission pointer, since spec §4.3/§9 open question 1 documents
// that the very first packet of a new flow is never scored — only the
// update path emits. Any subsequent packet that matches an existing
// flow (forward or reverse) mutates it and returns an Emission.
func (t *Table) Observe(sip string, sport uint16, dip string, dport uint16, proto Proto, wireLen, payloadLen int, now time.Time) (emission *Emission, created bool) {
	if f, ok := t.lookup(sip, sport, dip, dport); ok {
		f.update(sip, wireLen, payloadLen)
		return &Emission{AntigenID: f.Key, Vector: f.FeatureVector()}, false
	}
	f := newFlow(sip, sport, dip, dport, proto, wireLen, payloadLen, now.UnixNano())
	t.flows[f.Key] = f
	return nil, true
}

// Get returns the flow for a canonical key, for inspection/testing.
func (t *Table) Get(key string) (*Flow, bool) {
	f, ok := t.flows[key]
	return f, ok
}

// EvictIdleBefore removes every flow whose creation time is strictly
// before cutoff. This is the deployment-layer extension named in spec
// §9 item 6 ("the Flow Table never evicts") — core scoring never calls
// it; a supervisor may wire it to a periodic ticker for long-running
// endpoints.
func (t *Table) EvictIdleBefore(cutoff time.Time) int {
	n := 0
	cut := cutoff.UnixNano()
	for k, f := range t.flows {
		if f.createdAtUnixNano < cut {
			delete(t.flows, k)
			n++
		}
	}
	return n
}
