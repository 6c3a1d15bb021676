package records

import (
	"context"
	"errors"

	"github.com/goliatone/go-records/pkg/activity"
)

// WithActivityHooks notifies hooks after every projection call: a
// records.projected event on success, records.rejected on failure. Hooks are
// cloned and nil entries dropped. Hook failures are reported through the
// projection logger and never returned from Project.
func WithActivityHooks(hooks activity.Hooks) ProjectorOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *projectorConfig) {
		cfg.hooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on emitted events
// (activity.DefaultChannel otherwise).
func WithActivityChannel(channel string) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.channel = channel
	}
}

// WithActivityActor attributes emitted events to an actor and tenant.
func WithActivityActor(actorID, tenantID string) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (p *Projector) ActivityHooks() activity.Hooks {
	if p == nil {
		return nil
	}
	return cloneActivityHooks(p.cfg.hooks)
}

func (p *Projector) emit(ctx context.Context, records []Record, pairs int, err error) error {
	if !p.emitter.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	batch := activity.BatchInput{
		ActorID:      p.cfg.actorID,
		TenantID:     p.cfg.tenantID,
		Records:      len(records),
		Pairs:        pairs,
		OptionsField: p.cfg.optionsField,
	}
	if err == nil {
		return p.emitter.Emit(ctx, activity.BuildRecordsProjectedEvent(batch))
	}

	rejection := activity.RejectionInput{
		BatchInput:  batch,
		RecordIndex: -1,
		PairIndex:   -1,
		Reason:      err.Error(),
	}
	var verr *ValidationError
	var eerr *EvaluationError
	switch {
	case errors.As(err, &verr):
		rejection.RecordID = verr.RecordID
		rejection.RecordIndex = verr.RecordIndex
		rejection.PairIndex = verr.PairIndex
	case errors.As(err, &eerr):
		rejection.RecordID = eerr.RecordID
	}
	return p.emitter.Emit(ctx, activity.BuildRecordsRejectedEvent(rejection))
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make(activity.Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
