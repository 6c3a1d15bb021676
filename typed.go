package records

import (
	"context"
	"fmt"

	"github.com/goliatone/go-records/internal/hydrate"
)

// Validator is implemented by typed targets that check themselves after
// decoding.
type Validator interface {
	Validate() error
}

// DecodeOption configures ProjectInto.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	strict    bool
	useNumber bool
}

// DecodeStrict rejects projected keys that the target type has no field for,
// which catches option names that drifted from the struct tags.
func DecodeStrict() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.strict = true
	}
}

// DecodeUseNumber decodes numbers into json.Number for interface fields.
func DecodeUseNumber() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.useNumber = true
	}
}

// ProjectInto projects records with p and decodes each projected record into
// T through its JSON form. When *T implements Validator, Validate runs after
// decoding. Decode and validation failures are reported as a
// *ValidationError wrapping ErrDecodeRecord.
func ProjectInto[T any](p *Projector, records []Record, opts ...DecodeOption) ([]T, error) {
	return ProjectIntoContext[T](context.Background(), p, records, opts...)
}

// ProjectIntoContext behaves like ProjectInto and hands ctx to activity hooks.
func ProjectIntoContext[T any](ctx context.Context, p *Projector, records []Record, opts ...DecodeOption) ([]T, error) {
	if p == nil {
		p = NewProjector()
	}
	projected, err := p.ProjectContext(ctx, records)
	if err != nil {
		return nil, err
	}

	decoder := newTypedDecoder[T](opts)
	out := make([]T, len(projected))
	for i, record := range projected {
		id := p.recordID(record)
		value, err := decoder.Decode(hydrate.Context{RecordID: id, Index: i}, record)
		if err != nil {
			return nil, recordError(i, id, fmt.Errorf("%w: %w", ErrDecodeRecord, err), "")
		}
		out[i] = value
	}
	return out, nil
}

func newTypedDecoder[T any](opts []DecodeOption) *hydrate.Decoder[T] {
	var cfg decodeConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	decoderOpts := []hydrate.DecoderOption[T]{
		hydrate.WithPostHook[T](validateTarget[T]),
	}
	if cfg.strict {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}
	if cfg.useNumber {
		decoderOpts = append(decoderOpts, hydrate.WithUseNumber[T]())
	}
	return hydrate.NewDecoder[T](decoderOpts...)
}

func validateTarget[T any](_ hydrate.Context, target *T) error {
	if validator, ok := any(target).(Validator); ok {
		return validator.Validate()
	}
	return nil
}
