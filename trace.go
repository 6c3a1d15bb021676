package records

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Origin names the projection step that wrote a field.
type Origin string

const (
	OriginField   Origin = "field"
	OriginOption  Origin = "option"
	OriginDefault Origin = "default"
	OriginDerived Origin = "derived"
)

// Trace explains how a single projected record was assembled.
type Trace struct {
	RecordID    string       `json:"record_id,omitempty"`
	RecordIndex int          `json:"record_index"`
	Fields      []Provenance `json:"fields"`
}

// Provenance records the final writer of one projected key. Shadowed lists
// the earlier writers it replaced, oldest first, formatted as origin:source
// (options also carry their pair index, e.g. "option[0]:COLOR").
type Provenance struct {
	Key       string   `json:"key"`
	Origin    Origin   `json:"origin"`
	Source    string   `json:"source"`
	PairIndex int      `json:"pair_index"`
	Value     any      `json:"value,omitempty"`
	Shadowed  []string `json:"shadowed,omitempty"`
}

// Field returns the provenance of key.
func (t Trace) Field(key string) (Provenance, bool) {
	for _, field := range t.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Trace projects record as element index of a batch and reports where every
// output key came from. Validation and evaluation errors are returned exactly
// as Project would return them.
func (p *Projector) Trace(record Record, index int) (Trace, error) {
	rules, err := p.compiledRules()
	if err != nil {
		return Trace{}, err
	}
	tb := &traceBuilder{fields: map[string]*Provenance{}}
	if _, _, err := p.projectRecord(index, record, rules, tb); err != nil {
		return Trace{}, err
	}
	return Trace{
		RecordID:    p.recordID(record),
		RecordIndex: index,
		Fields:      tb.sorted(),
	}, nil
}

type traceBuilder struct {
	fields map[string]*Provenance
}

func (tb *traceBuilder) set(key string, origin Origin, source string, pairIndex int, value any) {
	if tb == nil {
		return
	}
	current := &Provenance{
		Key:       key,
		Origin:    origin,
		Source:    source,
		PairIndex: pairIndex,
		Value:     value,
	}
	if previous, ok := tb.fields[key]; ok {
		current.Shadowed = append(previous.Shadowed, previous.describe())
	}
	tb.fields[key] = current
}

// refresh records the value of key after a later step rewrote it in place.
func (tb *traceBuilder) refresh(key string, value any) {
	if tb == nil {
		return
	}
	if field, ok := tb.fields[key]; ok {
		field.Value = value
	}
}

func (tb *traceBuilder) sorted() []Provenance {
	out := make([]Provenance, 0, len(tb.fields))
	for _, field := range tb.fields {
		out = append(out, *field)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (p Provenance) describe() string {
	if p.Origin == OriginOption {
		return fmt.Sprintf("%s[%d]:%s", p.Origin, p.PairIndex, p.Source)
	}
	return fmt.Sprintf("%s:%s", p.Origin, p.Source)
}
