package courier

import (
	"encoding/json"
	"fmt"
)

// Context holds the JSON values a message renders from. Once frozen onto a
// record it never changes, which is what keeps re-renders identical to the
// original send.
type Context map[string]any

// freezeContext snapshots a context through a JSON round trip. The round
// trip proves serializability right away and detaches the snapshot from any
// live values the type handed over.
func freezeContext(c Context) (Context, error) {
	if c == nil {
		c = Context{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("freeze context: %w", err)
	}
	out := Context{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("freeze context: %w", err)
	}
	return out, nil
}
