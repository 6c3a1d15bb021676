// Package usersink forwards projection activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-records/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Actor, user and tenant ids that are not UUIDs are recorded as uuid.Nil and
// kept in the record data under their original key.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := normalized.Metadata
	ids := make(map[string]uuid.UUID, 3)
	for key, raw := range map[string]string{
		"actor_id":  normalized.ActorID,
		"user_id":   normalized.UserID,
		"tenant_id": normalized.TenantID,
	} {
		id, ok := parseUUID(raw)
		ids[key] = id
		if !ok && raw != "" {
			if data == nil {
				data = map[string]any{}
			}
			data[key] = raw
		}
	}

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    ids["actor_id"],
		UserID:     ids["user_id"],
		TenantID:   ids["tenant_id"],
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: normalized.OccurredAt,
	})
}

func parseUUID(input string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
