package records

import (
	"strings"
	"sync"

	"github.com/goliatone/go-records/pkg/activity"
)

const (
	// DefaultIDField is the key holding a record identifier.
	DefaultIDField = "id"
	// DefaultOptionsField is the key holding the embedded option pairs.
	DefaultOptionsField = "options"
	// ShopifyIDField and ShopifyOptionsField match the storefront variant
	// payloads (shopifyId / selectedOptions).
	ShopifyIDField      = "shopifyId"
	ShopifyOptionsField = "selectedOptions"
)

// Record is a flat, already decoded data record. Source records carry an
// embedded list of option pairs; projected records carry them as top-level
// fields.
type Record map[string]any

// OptionPair is one configurable attribute of a record (e.g. Color=Red).
type OptionPair struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Projector promotes option pairs to top-level fields. A Projector holds only
// immutable configuration and is safe for concurrent use.
type Projector struct {
	cfg     projectorConfig
	emitter *activity.Emitter

	rulesOnce sync.Once
	rules     []compiledField
	rulesErr  error
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*projectorConfig)

type projectorConfig struct {
	idField      string
	optionsField string
	normalize    func(string) string
	excludeNames []string
	excluded     map[string]struct{}
	defaults     Record
	required     []string
	derived      []DerivedField
	evaluator    Evaluator
	evaluatorSet bool
	programCache ProgramCache
	functions    *FunctionRegistry
	ruleArgs     map[string]any
	logger       ProjectionLogger
	hooks        activity.Hooks
	channel      string
	actorID      string
	tenantID     string
}

func defaultProjectorConfig() projectorConfig {
	return projectorConfig{
		idField:      DefaultIDField,
		optionsField: DefaultOptionsField,
		normalize:    strings.ToLower,
	}
}

func applyProjectorOptions(opts []ProjectorOption) projectorConfig {
	cfg := defaultProjectorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.excludeNames) > 0 {
		cfg.excluded = make(map[string]struct{}, len(cfg.excludeNames))
		for _, name := range cfg.excludeNames {
			cfg.excluded[cfg.normalize(name)] = struct{}{}
		}
	}
	return cfg
}

// NewProjector constructs a Projector. With no options it reads ids from "id"
// and option pairs from "options", lower-casing option names.
func NewProjector(opts ...ProjectorOption) *Projector {
	cfg := applyProjectorOptions(opts)
	emitter := activity.NewEmitter(cfg.hooks, activity.Config{
		Enabled: len(cfg.hooks) > 0,
		Channel: cfg.channel,
	})
	return &Projector{cfg: cfg, emitter: emitter}
}

// WithIDField sets the key used to identify records in errors and traces.
func WithIDField(field string) ProjectorOption {
	return func(cfg *projectorConfig) {
		if field != "" {
			cfg.idField = field
		}
	}
}

// WithOptionsField sets the key holding the embedded option pairs.
func WithOptionsField(field string) ProjectorOption {
	return func(cfg *projectorConfig) {
		if field != "" {
			cfg.optionsField = field
		}
	}
}

// WithShopifyFields reads storefront variants: ids from shopifyId and option
// pairs from selectedOptions.
func WithShopifyFields() ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.idField = ShopifyIDField
		cfg.optionsField = ShopifyOptionsField
	}
}

// WithKeyNormalizer replaces strings.ToLower as the option name to key
// mapping. A normalizer returning "" for a name is treated as an empty name.
func WithKeyNormalizer(normalize func(string) string) ProjectorOption {
	return func(cfg *projectorConfig) {
		if normalize != nil {
			cfg.normalize = normalize
		}
	}
}

// WithExcludedOptions drops the named options during projection. Names are
// compared after key normalization.
func WithExcludedOptions(names ...string) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.excludeNames = append(cfg.excludeNames, names...)
	}
}

// WithDefaults fills keys missing from projected records. Defaults are the
// weakest layer: a projected key always wins, even when its value is nil.
// When both the projected value and the default are maps they merge key by
// key.
func WithDefaults(defaults map[string]any) ProjectorOption {
	return func(cfg *projectorConfig) {
		if len(defaults) == 0 {
			cfg.defaults = nil
			return
		}
		cfg.defaults = Record(copyFields(defaults))
	}
}

// WithRequiredFields fails projection when a projected record lacks any of
// keys.
func WithRequiredFields(keys ...string) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.required = append(cfg.required, keys...)
	}
}

// WithProjectionLogger attaches a logger receiving one event per call.
func WithProjectionLogger(logger ProjectionLogger) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.logger = logger
	}
}

func (p *Projector) logger() ProjectionLogger {
	if p.cfg.logger != nil {
		return p.cfg.logger
	}
	return noopProjectionLogger{}
}

func copyFields(origin map[string]any) map[string]any {
	if origin == nil {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
