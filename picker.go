package records

import (
	"fmt"
	"strings"
)

// PlaceholderOption is the option storefronts attach to products without real
// variants. It carries no information worth showing to a shopper.
const PlaceholderOption = "Title"

// Picker lists the selectable values of one option across projected records.
type Picker struct {
	Name   string   `json:"name"`
	ID     string   `json:"id"`
	Values []string `json:"values"`
}

// Visible reports whether the picker offers a real choice.
func (p Picker) Visible() bool {
	return len(p.Values) > 1
}

// Choices returns the distinct values of key across projected records in
// first-seen order. Records without the key, or with a nil value, are skipped.
func Choices(records []Record, key string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, record := range records {
		value, ok := record[key]
		if !ok || value == nil {
			continue
		}
		rendered := fmt.Sprint(value)
		if _, dup := seen[rendered]; dup {
			continue
		}
		seen[rendered] = struct{}{}
		out = append(out, rendered)
	}
	return out
}

// Pickers builds one Picker per option name, in the order given. Values are
// read from the lower-cased name, the key the default projector writes. Use
// (*Projector).Pickers when a key normalizer is configured.
func Pickers(records []Record, names ...string) []Picker {
	return buildPickers(records, strings.ToLower, names)
}

// Pickers builds one Picker per option name, reading values from the key p
// writes for that name.
func (p *Projector) Pickers(records []Record, names ...string) []Picker {
	return buildPickers(records, p.cfg.normalize, names)
}

func buildPickers(records []Record, normalize func(string) string, names []string) []Picker {
	out := make([]Picker, 0, len(names))
	for _, name := range names {
		id := normalize(name)
		out = append(out, Picker{
			Name:   name,
			ID:     id,
			Values: Choices(records, id),
		})
	}
	return out
}

// Match returns the first projected record whose values equal every entry of
// selection. Values are compared in their fmt.Sprint form, matching Choices.
// An empty selection matches the first record.
func Match(records []Record, selection map[string]any) (Record, bool) {
	for _, record := range records {
		if matches(record, selection) {
			return record, true
		}
	}
	return nil, false
}

func matches(record Record, selection map[string]any) bool {
	for key, want := range selection {
		got, ok := record[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// DisplayOptions returns the pairs worth showing next to a line item, in
// order. Names listed in exclude are dropped, compared case-insensitively;
// with no exclusions given, PlaceholderOption is dropped.
func DisplayOptions(pairs []OptionPair, exclude ...string) []OptionPair {
	if len(exclude) == 0 {
		exclude = []string{PlaceholderOption}
	}
	out := make([]OptionPair, 0, len(pairs))
	for _, pair := range pairs {
		if excludedName(pair.Name, exclude) {
			continue
		}
		out = append(out, pair)
	}
	return out
}

func excludedName(name string, exclude []string) bool {
	for _, candidate := range exclude {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}
