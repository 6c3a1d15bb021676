package records

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-records/layering"
)

// Project promotes the option pairs of every record to top-level fields using
// a projector built from opts. See (*Projector).Project.
func Project(records []Record, opts ...ProjectorOption) ([]Record, error) {
	return NewProjector(opts...).Project(records)
}

// Project returns one projected record per input record, in input order. Each
// projected record holds a deep copy of every source field except the options
// field, then one field per option pair keyed by the normalized option name.
// Later pairs overwrite earlier ones and any source field with the same key.
//
// A malformed record or pair fails the whole call with a *ValidationError; no
// partial output is returned. Input records are never modified.
func (p *Projector) Project(records []Record) ([]Record, error) {
	return p.ProjectContext(context.Background(), records)
}

// ProjectContext behaves like Project and hands ctx to configured activity
// hooks.
func (p *Projector) ProjectContext(ctx context.Context, records []Record) ([]Record, error) {
	start := time.Now()
	out, pairs, err := p.projectAll(records)
	duration := time.Since(start)

	hookErr := p.emit(ctx, records, pairs, err)
	p.logger().LogProjection(ProjectionLogEvent{
		Records:      len(records),
		Pairs:        pairs,
		OptionsField: p.cfg.optionsField,
		Duration:     duration,
		Err:          err,
		HookErr:      hookErr,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Projector) projectAll(records []Record) ([]Record, int, error) {
	rules, err := p.compiledRules()
	if err != nil {
		return nil, 0, err
	}
	out := make([]Record, len(records))
	total := 0
	for i, record := range records {
		projected, pairs, err := p.projectRecord(i, record, rules, nil)
		if err != nil {
			return nil, total, err
		}
		total += pairs
		out[i] = projected
	}
	return out, total, nil
}

// projectRecord runs the copy, overwrite, defaults, required and derived steps
// for one record. tb is nil unless a trace was requested.
func (p *Projector) projectRecord(index int, record Record, rules []compiledField, tb *traceBuilder) (Record, int, error) {
	if record == nil {
		return nil, 0, recordError(index, "", ErrMalformedRecord, "record is nil")
	}
	id := p.recordID(record)

	pairs, err := readPairs(record[p.cfg.optionsField])
	if err != nil {
		if pe, ok := err.(*pairReadError); ok {
			return nil, 0, pairError(index, id, pe.index, pe.cause, pe.reason)
		}
		return nil, 0, recordError(index, id, err, fmt.Sprintf("field %q", p.cfg.optionsField))
	}

	acc := make(Record, len(record)+len(pairs))
	for key, value := range record {
		if key == p.cfg.optionsField {
			continue
		}
		acc[key] = layering.CloneAny(value)
		tb.set(key, OriginField, key, -1, acc[key])
	}

	for i, pair := range pairs {
		if pair.Name == "" {
			return nil, 0, pairError(index, id, i, ErrEmptyOptionName, "")
		}
		key := p.cfg.normalize(pair.Name)
		if key == "" {
			return nil, 0, pairError(index, id, i, ErrEmptyOptionName, fmt.Sprintf("name %q normalizes to an empty key", pair.Name))
		}
		if _, skip := p.cfg.excluded[key]; skip {
			continue
		}
		acc[key] = layering.CloneAny(pair.Value)
		tb.set(key, OriginOption, pair.Name, i, acc[key])
	}

	p.applyDefaults(acc, tb)

	for _, key := range p.cfg.required {
		if _, ok := acc[key]; !ok {
			err := recordError(index, id, ErrMissingRequiredField, "")
			err.Field = key
			return nil, 0, err
		}
	}

	for _, rule := range rules {
		value, err := rule.evaluate(p, index, id, acc)
		if err != nil {
			return nil, 0, err
		}
		acc[rule.field.Name] = value
		tb.set(rule.field.Name, OriginDerived, rule.field.Expr, -1, value)
	}

	return acc, len(pairs), nil
}

// applyDefaults fills the keys absent from acc. A key already present keeps
// its value, nil included. When both sides hold maps they merge with
// layering.MergeLayers, the projected map strongest.
func (p *Projector) applyDefaults(acc Record, tb *traceBuilder) {
	for key, value := range p.cfg.defaults {
		current, ok := acc[key]
		if !ok {
			acc[key] = layering.CloneAny(value)
			tb.set(key, OriginDefault, key, -1, acc[key])
			continue
		}
		strong, strongOK := asFields(current)
		weak, weakOK := asFields(value)
		if !strongOK || !weakOK || strong == nil {
			continue
		}
		merged := layering.MergeLayers(strong, weak)
		if _, isRecord := current.(Record); isRecord {
			acc[key] = Record(merged)
		} else {
			acc[key] = merged
		}
		tb.refresh(key, acc[key])
	}
}

func asFields(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case Record:
		return map[string]any(typed), true
	default:
		return nil, false
	}
}

func (p *Projector) recordID(record Record) string {
	value, ok := record[p.cfg.idField]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

type pairReadError struct {
	index  int
	cause  error
	reason string
}

func (e *pairReadError) Error() string {
	return fmt.Sprintf("pair %d: %v", e.index, e.cause)
}

// readPairs accepts the option list shapes produced by typed callers and by
// encoding/json. A missing or nil list is empty.
func readPairs(raw any) ([]OptionPair, error) {
	switch typed := raw.(type) {
	case nil:
		return nil, nil
	case []OptionPair:
		return typed, nil
	case []*OptionPair:
		out := make([]OptionPair, len(typed))
		for i, pair := range typed {
			if pair == nil {
				return nil, &pairReadError{index: i, cause: ErrMalformedPair, reason: "pair is nil"}
			}
			out[i] = *pair
		}
		return out, nil
	case []map[string]any:
		out := make([]OptionPair, len(typed))
		for i, entry := range typed {
			pair, err := pairFromMap(i, entry)
			if err != nil {
				return nil, err
			}
			out[i] = pair
		}
		return out, nil
	case []any:
		out := make([]OptionPair, len(typed))
		for i, entry := range typed {
			pair, err := pairFromAny(i, entry)
			if err != nil {
				return nil, err
			}
			out[i] = pair
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrMalformedOptions, raw)
	}
}

func pairFromAny(index int, entry any) (OptionPair, error) {
	switch typed := entry.(type) {
	case OptionPair:
		return typed, nil
	case *OptionPair:
		if typed == nil {
			return OptionPair{}, &pairReadError{index: index, cause: ErrMalformedPair, reason: "pair is nil"}
		}
		return *typed, nil
	case map[string]any:
		return pairFromMap(index, typed)
	case Record:
		return pairFromMap(index, typed)
	default:
		return OptionPair{}, &pairReadError{index: index, cause: ErrMalformedPair, reason: fmt.Sprintf("got %T", entry)}
	}
}

func pairFromMap(index int, entry map[string]any) (OptionPair, error) {
	if entry == nil {
		return OptionPair{}, &pairReadError{index: index, cause: ErrMalformedPair, reason: "pair is nil"}
	}
	rawName, ok := entry["name"]
	if !ok || rawName == nil {
		return OptionPair{}, &pairReadError{index: index, cause: ErrEmptyOptionName, reason: "name is missing"}
	}
	name, ok := rawName.(string)
	if !ok {
		return OptionPair{}, &pairReadError{index: index, cause: ErrMalformedPair, reason: fmt.Sprintf("name is %T", rawName)}
	}
	return OptionPair{Name: name, Value: entry["value"]}, nil
}
