package records

import (
	"errors"
	"fmt"
)

var ErrNoEvaluator = errors.New("records: evaluator not configured")

// RuleContext carries the inputs a derived-field expression can read.
// Expressions see every record field as a variable, plus record, args and
// metadata; those three names win over record fields of the same name.
type RuleContext struct {
	Record   Record
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Record == nil {
		ctx.Record = Record{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) environment() map[string]any {
	env := make(map[string]any, len(ctx.Record)+3)
	for key, value := range ctx.Record {
		env[key] = value
	}
	env["record"] = map[string]any(ctx.Record)
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// DerivedField computes Name from Expr after options, defaults and required
// fields have been applied. Derived fields run in declaration order, so later
// expressions can read earlier results.
type DerivedField struct {
	Name string
	Expr string
}

// WithDerivedField appends a computed field, e.g.
// WithDerivedField("total", "float(priceV2.amount) * quantity").
func WithDerivedField(name, expr string) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.derived = append(cfg.derived, DerivedField{Name: name, Expr: expr})
	}
}

// WithEvaluator selects the expression engine for derived fields. The expr
// engine is used when no evaluator is configured. Passing nil (for example
// NewJSEvaluator built without the js_eval tag) makes projection with derived
// fields fail with ErrNoEvaluator.
func WithEvaluator(e Evaluator) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.evaluator = e
		cfg.evaluatorSet = true
	}
}

// WithRuleArgs exposes args to derived-field expressions as `args`.
func WithRuleArgs(args map[string]any) ProjectorOption {
	return func(cfg *projectorConfig) {
		cfg.ruleArgs = copyFields(args)
	}
}

type compiledField struct {
	field  DerivedField
	engine string
	rule   CompiledRule
}

func (c compiledField) evaluate(p *Projector, index int, id string, record Record) (any, error) {
	ctx := RuleContext{
		Record: record,
		Args:   p.cfg.ruleArgs,
		Metadata: map[string]any{
			"record_index": index,
			"record_id":    id,
			"field":        c.field.Name,
		},
	}
	value, err := c.rule.Evaluate(ctx)
	if err != nil {
		return nil, wrapEvaluationError(c.engine, c.field.Expr, c.field.Name, id, err)
	}
	return value, nil
}

// compiledRules compiles derived fields once per projector.
func (p *Projector) compiledRules() ([]compiledField, error) {
	p.rulesOnce.Do(func() {
		if len(p.cfg.derived) == 0 {
			return
		}
		evaluator, err := p.resolveEvaluator()
		if err != nil {
			p.rulesErr = err
			return
		}
		engine := evaluatorEngineName(evaluator)
		rules := make([]compiledField, 0, len(p.cfg.derived))
		for _, field := range p.cfg.derived {
			if field.Name == "" {
				p.rulesErr = fmt.Errorf("records: derived field name must not be empty (expr %q)", field.Expr)
				return
			}
			if field.Expr == "" {
				p.rulesErr = wrapEvaluationError(engine, "", field.Name, "", fmt.Errorf("expression must not be empty"))
				return
			}
			rule, err := evaluator.Compile(field.Expr)
			if err != nil {
				p.rulesErr = wrapEvaluationError(engine, field.Expr, field.Name, "", err)
				return
			}
			rules = append(rules, compiledField{field: field, engine: engine, rule: rule})
		}
		p.rules = rules
	})
	return p.rules, p.rulesErr
}

func (p *Projector) resolveEvaluator() (Evaluator, error) {
	if p.cfg.evaluatorSet {
		if p.cfg.evaluator == nil {
			return nil, ErrNoEvaluator
		}
		return p.cfg.evaluator, nil
	}
	return NewExprEvaluator(
		EngineProgramCache(p.cfg.programCache),
		EngineFunctions(p.cfg.functions),
	), nil
}
