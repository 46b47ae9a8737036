package topology

import (
	"github.com/arloliu/regionlb"
)

// state tracks the last published record per address and turns record
// changes into topology events. It is not safe for concurrent use.
type state struct {
	records map[string]Record
}

func newState() *state {
	return &state{records: make(map[string]Record)}
}

// put records rec and returns the events that describe the change.
//
// A new endpoint yields an add followed by its reachability. A changed
// region re-adds the endpoint so routing tables pick up the new region.
func (s *state) put(rec Record) []regionlb.TopologyEvent {
	events := s.changes(rec)
	s.records[rec.Endpoint.Address] = rec

	return events
}

// changes returns the events put would emit for rec without recording it.
func (s *state) changes(rec Record) []regionlb.TopologyEvent {
	prev, known := s.records[rec.Endpoint.Address]

	var events []regionlb.TopologyEvent
	switch {
	case !known:
		events = append(events, regionlb.TopologyEvent{Type: regionlb.EventAdded, Endpoint: rec.Endpoint})
	case prev.Endpoint != rec.Endpoint:
		events = append(events,
			regionlb.TopologyEvent{Type: regionlb.EventRemoved, Endpoint: prev.Endpoint},
			regionlb.TopologyEvent{Type: regionlb.EventAdded, Endpoint: rec.Endpoint},
		)
	case prev.Up == rec.Up:
		return nil
	}

	events = append(events, reachability(rec))

	return events
}

// remove forgets the endpoint with the given address.
func (s *state) remove(address string) []regionlb.TopologyEvent {
	prev, known := s.records[address]
	if !known {
		return nil
	}
	delete(s.records, address)

	return []regionlb.TopologyEvent{{Type: regionlb.EventRemoved, Endpoint: prev.Endpoint}}
}

// lookup returns the record for an address.
func (s *state) lookup(address string) (Record, bool) {
	rec, ok := s.records[address]

	return rec, ok
}

// reconcile replaces the whole state with current and returns the events
// that turn the old state into it.
func (s *state) reconcile(current map[string]Record) []regionlb.TopologyEvent {
	var events []regionlb.TopologyEvent
	for addr := range s.records {
		if _, ok := current[addr]; !ok {
			events = append(events, s.remove(addr)...)
		}
	}
	for _, rec := range current {
		events = append(events, s.put(rec)...)
	}

	return events
}

func reachability(rec Record) regionlb.TopologyEvent {
	if rec.Up {
		return regionlb.TopologyEvent{Type: regionlb.EventUp, Endpoint: rec.Endpoint}
	}

	return regionlb.TopologyEvent{Type: regionlb.EventDown, Endpoint: rec.Endpoint}
}
