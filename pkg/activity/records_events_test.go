package activity

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildRecordsProjectedEvent(t *testing.T) {
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	meta := map[string]any{"source": "import"}
	event := BuildRecordsProjectedEvent(BatchInput{
		BatchID:      "batch-1",
		ActorID:      " actor ",
		Channel:      "catalog",
		Records:      3,
		Pairs:        7,
		OptionsField: "selectedOptions",
		Metadata:     meta,
		OccurredAt:   at,
	})

	if event.Verb != VerbRecordsProjected || event.ObjectType != ObjectTypeBatch || event.ObjectID != "batch-1" {
		t.Fatalf("unexpected event identity: %+v", event)
	}
	if event.ActorID != "actor" || event.Channel != "catalog" || !event.OccurredAt.Equal(at) {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if event.Metadata["record_count"] != 3 || event.Metadata["pair_count"] != 7 {
		t.Fatalf("expected counts in metadata, got %+v", event.Metadata)
	}
	if event.Metadata["options_field"] != "selectedOptions" || event.Metadata["source"] != "import" {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
	if _, ok := meta["record_count"]; ok {
		t.Fatalf("expected caller metadata untouched: %+v", meta)
	}
}

func TestBuildRecordsProjectedEventAssignsBatchID(t *testing.T) {
	event := BuildRecordsProjectedEvent(BatchInput{Records: 1})
	if _, err := uuid.Parse(event.ObjectID); err != nil {
		t.Fatalf("expected generated uuid batch id, got %q: %v", event.ObjectID, err)
	}
	other := BuildRecordsProjectedEvent(BatchInput{Records: 1})
	if other.ObjectID == event.ObjectID {
		t.Fatalf("expected distinct batch ids, got %q twice", event.ObjectID)
	}
}

func TestBuildRecordsRejectedEvent(t *testing.T) {
	event := BuildRecordsRejectedEvent(RejectionInput{
		BatchInput:  BatchInput{BatchID: "b", Records: 2},
		RecordID:    "v2",
		RecordIndex: 1,
		PairIndex:   0,
		Reason:      "records: option name is empty",
	})

	if event.Verb != VerbRecordsRejected || event.ObjectID != "b" {
		t.Fatalf("unexpected event identity: %+v", event)
	}
	want := map[string]any{
		"record_count": 2,
		"pair_count":   0,
		"record_id":    "v2",
		"record_index": 1,
		"pair_index":   0,
		"reason":       "records: option name is empty",
	}
	for key, value := range want {
		if event.Metadata[key] != value {
			t.Fatalf("metadata %q: expected %v, got %v", key, value, event.Metadata[key])
		}
	}
}
