package layering

import (
	"reflect"
	"testing"
	"time"
)

type record map[string]any

func TestMergeLayersStrongestWins(t *testing.T) {
	strong := record{"color": "Red", "image": nil, "price": map[string]any{"amount": "10.00"}}
	weak := record{
		"color": "Placeholder",
		"image": "placeholder.png",
		"title": "Default Title",
		"price": map[string]any{"amount": "0.00", "currencyCode": "USD"},
	}

	got := MergeLayers(strong, weak)
	want := record{
		"color": "Red",
		"image": "placeholder.png",
		"title": "Default Title",
		"price": map[string]any{"amount": "10.00", "currencyCode": "USD"},
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("merged record mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestMergeLayersDoesNotAliasInputs(t *testing.T) {
	strong := record{"tags": []any{"a"}}
	weak := record{"price": map[string]any{"amount": "1.00"}}

	got := MergeLayers(strong, weak)
	got["tags"].([]any)[0] = "changed"
	got["price"].(map[string]any)["amount"] = "changed"

	if strong["tags"].([]any)[0] != "a" {
		t.Fatalf("expected strong layer untouched, got %#v", strong)
	}
	if weak["price"].(map[string]any)["amount"] != "1.00" {
		t.Fatalf("expected weak layer untouched, got %#v", weak)
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	var zero sample
	if got := MergeLayers[sample](); got != zero {
		t.Fatalf("expected MergeLayers() to return zero value, got %+v", got)
	}
}

func TestMergeLayersStructPointers(t *testing.T) {
	type settings struct {
		Enabled *bool
		Limit   int
		Labels  []string
	}
	on, off := true, false
	got := MergeLayers(settings{Limit: 3}, settings{Enabled: &off, Labels: []string{"x"}}, settings{Enabled: &on})

	if got.Enabled == nil || *got.Enabled {
		t.Fatalf("expected middle layer pointer to win, got %+v", got)
	}
	if got.Limit != 3 {
		t.Fatalf("expected strongest scalar to win, got %d", got.Limit)
	}
	if !reflect.DeepEqual(got.Labels, []string{"x"}) {
		t.Fatalf("expected nil slice to be filled, got %#v", got.Labels)
	}
	*got.Enabled = true
	if off {
		t.Fatalf("expected pointer to be copied, not shared")
	}
}

func TestCloneDeepCopiesNestedValues(t *testing.T) {
	original := record{
		"options": []any{map[string]any{"name": "Color", "value": "Red"}},
		"missing": nil,
	}
	clone := Clone(original)
	if !reflect.DeepEqual(original, clone) {
		t.Fatalf("clone mismatch:\nwant: %#v\n got: %#v", original, clone)
	}

	clone["options"].([]any)[0].(map[string]any)["value"] = "Blue"
	if original["options"].([]any)[0].(map[string]any)["value"] != "Red" {
		t.Fatalf("expected original nested map untouched")
	}
}

func TestCloneAny(t *testing.T) {
	if CloneAny(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	if got := CloneAny("Red"); got != "Red" {
		t.Fatalf("expected scalar copy, got %#v", got)
	}
	src := []any{1.5, "x"}
	got := CloneAny(src).([]any)
	got[0] = 2.0
	if src[0] != 1.5 {
		t.Fatalf("expected slice copy, got shared backing array")
	}
}

func TestCloneKeepsUnexportedStructState(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := Clone(record{"releasedAt": at})
	if !got["releasedAt"].(time.Time).Equal(at) {
		t.Fatalf("expected time value preserved, got %v", got["releasedAt"])
	}
}
