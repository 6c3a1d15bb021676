package activity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// VerbRecordsProjected marks a successful projection call.
	VerbRecordsProjected = "records.projected"
	// VerbRecordsRejected marks a projection call that failed validation.
	VerbRecordsRejected = "records.rejected"
	// ObjectTypeBatch is the object type of projection events; the object id
	// is the batch id.
	ObjectTypeBatch = "records.batch"
)

// BatchInput describes one projection call.
type BatchInput struct {
	BatchID      string
	ActorID      string
	UserID       string
	TenantID     string
	Channel      string
	Records      int
	Pairs        int
	OptionsField string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// RejectionInput describes the record that made a projection call fail.
// PairIndex is -1 for record-level problems, RecordIndex -1 when unknown.
type RejectionInput struct {
	BatchInput
	RecordID    string
	RecordIndex int
	PairIndex   int
	Reason      string
}

// BuildRecordsProjectedEvent constructs the event for a successful call. A
// random batch id is assigned when input.BatchID is empty.
func BuildRecordsProjectedEvent(input BatchInput) Event {
	return buildBatchEvent(VerbRecordsProjected, input, nil)
}

// BuildRecordsRejectedEvent constructs the event for a failed call.
func BuildRecordsRejectedEvent(input RejectionInput) Event {
	extra := map[string]any{
		"record_index": input.RecordIndex,
		"pair_index":   input.PairIndex,
	}
	if id := strings.TrimSpace(input.RecordID); id != "" {
		extra["record_id"] = id
	}
	if input.Reason != "" {
		extra["reason"] = input.Reason
	}
	return buildBatchEvent(VerbRecordsRejected, input.BatchInput, extra)
}

func buildBatchEvent(verb string, input BatchInput, extra map[string]any) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["record_count"] = input.Records
	metadata["pair_count"] = input.Pairs
	if input.OptionsField != "" {
		metadata["options_field"] = input.OptionsField
	}
	for key, value := range extra {
		metadata[key] = value
	}

	batchID := strings.TrimSpace(input.BatchID)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeBatch,
		ObjectID:   batchID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
