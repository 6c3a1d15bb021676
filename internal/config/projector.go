package config

import (
	"fmt"

	records "github.com/goliatone/go-records"
)

// ProjectorOptions validates the configuration and translates it into
// projector options. extra options are appended last and win.
func (c *Config) ProjectorOptions(extra ...records.ProjectorOption) ([]records.ProjectorOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts := []records.ProjectorOption{
		records.WithIDField(c.IDField),
		records.WithOptionsField(c.OptionsField),
	}
	if len(c.Exclude) > 0 {
		opts = append(opts, records.WithExcludedOptions(c.Exclude...))
	}
	if len(c.Defaults) > 0 {
		opts = append(opts, records.WithDefaults(c.Defaults))
	}
	if len(c.Required) > 0 {
		opts = append(opts, records.WithRequiredFields(c.Required...))
	}
	if len(c.Derived) > 0 {
		evaluator, err := c.evaluator()
		if err != nil {
			return nil, err
		}
		opts = append(opts, records.WithEvaluator(evaluator))
		for _, field := range c.Derived {
			opts = append(opts, records.WithDerivedField(field.Name, field.Expr))
		}
	}
	if c.Activity.Channel != "" {
		opts = append(opts, records.WithActivityChannel(c.Activity.Channel))
	}
	if c.Activity.ActorID != "" || c.Activity.TenantID != "" {
		opts = append(opts, records.WithActivityActor(c.Activity.ActorID, c.Activity.TenantID))
	}
	return append(opts, extra...), nil
}

func (c *Config) evaluator() (records.Evaluator, error) {
	engineOpts := []records.EngineOption{
		records.EngineProgramCache(records.NewMemoryProgramCache()),
	}
	if c.StorefrontFunctions {
		engineOpts = append(engineOpts, records.EngineFunctions(records.StorefrontFunctions()))
	}

	switch c.Engine {
	case EngineCEL:
		return records.NewCELEvaluator(engineOpts...), nil
	case EngineJS:
		if !records.JSEvaluatorAvailable() {
			return nil, fmt.Errorf("engine %q requires a binary built with the js_eval tag", EngineJS)
		}
		return records.NewJSEvaluator(engineOpts...), nil
	default:
		return records.NewExprEvaluator(engineOpts...), nil
	}
}
