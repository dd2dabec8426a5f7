package awareness

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/coedit/internal/value"
)

type wireEntry struct {
	Peer  string          `json:"peer"`
	Clock uint64          `json:"clock"`
	State json.RawMessage `json:"state"`
}

type wireUpdate struct {
	States []wireEntry `json:"states"`
}

// EncodeUpdate renders the entries of the named peers (all peers when none
// are named) in the JSON wire form.
func (a *Awareness) EncodeUpdate(peers ...string) ([]byte, error) {
	return Encode(a.Snapshot(peers...))
}

// Encode renders an Update in its JSON wire form. States are written as
// canonical JSON; removals as null.
func Encode(u Update) ([]byte, error) {
	w := wireUpdate{States: make([]wireEntry, len(u.Entries))}
	for i, e := range u.Entries {
		w.States[i] = wireEntry{Peer: e.Peer, Clock: e.Clock, State: json.RawMessage("null")}
		if e.State == nil {
			continue
		}
		raw, err := value.MarshalCanonical(e.State)
		if err != nil {
			return nil, fmt.Errorf("encode state of %s: %w", e.Peer, err)
		}
		w.States[i].State = raw
	}
	return json.Marshal(w)
}

// DecodeUpdate parses the JSON wire form.
func DecodeUpdate(data []byte) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return Update{}, fmt.Errorf("decode awareness update: %w", err)
	}

	u := Update{Entries: make([]Entry, len(w.States))}
	for i, we := range w.States {
		if we.Peer == "" {
			return Update{}, fmt.Errorf("decode awareness update: entry %d has no peer id", i)
		}
		u.Entries[i] = Entry{Peer: we.Peer, Clock: we.Clock}
		if len(we.State) == 0 || string(we.State) == "null" {
			continue
		}
		v, err := value.FromJSON(we.State)
		if err != nil {
			return Update{}, fmt.Errorf("decode state of %s: %w", we.Peer, err)
		}
		obj, ok := v.(value.Object)
		if !ok {
			return Update{}, fmt.Errorf("decode state of %s: got %s, want object", we.Peer, value.KindOf(v))
		}
		u.Entries[i].State = obj
	}
	return u, nil
}
