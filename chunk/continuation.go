// Package chunk implements the cooperative batch-processing primitive: a
// persisted worklist plus a small continuation payload round-tripped through
// the scheduler. Any operation over an unbounded set of items runs as a
// series of budgeted invocations, each processing a slice of the worklist and
// re-scheduling itself while work remains.
package chunk

import (
	"encoding/json"
)

// Continuation is the opaque state carried between invocations of one job.
// It must survive JSON round-trips verbatim, so values are restricted to
// JSON primitives, arrays, and objects; no in-memory references.
type Continuation map[string]any

func NewContinuation() Continuation {
	return Continuation{}
}

const phaseKey = "phase"

func (c Continuation) Phase() string {
	return c.GetString(phaseKey)
}

func (c Continuation) SetPhase(phase string) {
	c[phaseKey] = phase
}

func (c Continuation) GetString(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c Continuation) SetString(key, val string) {
	c[key] = val
}

// GetInt tolerates the float64 shape JSON decoding produces.
func (c Continuation) GetInt(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (c Continuation) SetInt(key string, val int) {
	c[key] = val
}

func (c Continuation) AddInt(key string, delta int) {
	c.SetInt(key, c.GetInt(key)+delta)
}

func (c Continuation) Marshal() ([]byte, error) {
	if c == nil {
		c = Continuation{}
	}
	return json.Marshal(c)
}

func UnmarshalContinuation(raw []byte) (Continuation, error) {
	if len(raw) == 0 {
		return Continuation{}, nil
	}
	var c Continuation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = Continuation{}
	}
	return c, nil
}
