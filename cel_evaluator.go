package records

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// maxCELArity bounds the generated overloads; CEL has no variadic functions.
const maxCELArity = 3

var celIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var celReserved = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "in": {}, "as": {}, "break": {},
	"const": {}, "continue": {}, "else": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "let": {}, "loop": {}, "package": {},
	"namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
	"record": {}, "args": {}, "metadata": {}, "call": {},
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry

	mu       sync.Mutex
	programs map[string]celgo.Program
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Record fields whose
// names are not CEL identifiers stay reachable through record["name"].
// Registered functions are callable with up to three arguments, by name or
// through call(name, ...).
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	cfg := applyEngineOptions(opts)
	return &celEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
		programs: map[string]celgo.Program{},
	}
}

func (e *celEvaluator) engineName() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaultMaps()
	variables := celVariables(ctx.Record)
	program, err := e.loadOrCompile(expression, variables)
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(e.activation(ctx, variables))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, "", "", err)
	}
	return out.Value(), nil
}

// Compile checks the expression syntax immediately. Type checking waits for
// the first record because variables are declared from record keys.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	env, err := e.buildEnv(nil)
	if err != nil {
		return nil, wrapEvaluatorError("cel", err)
	}
	if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError("cel", expression, "", "", issues.Err())
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, variables []string) (celgo.Program, error) {
	key := programKey("cel", e.registry, expression) + "\x00" + strings.Join(variables, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	e.mu.Lock()
	program, ok := e.programs[key]
	e.mu.Unlock()
	if ok {
		return program, nil
	}

	env, err := e.buildEnv(variables)
	if err != nil {
		return nil, wrapEvaluatorError("cel", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError("cel", expression, "", "", issues.Err())
	}
	program, err = env.Program(ast)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, "", "", err)
	}

	e.mu.Lock()
	e.programs[key] = program
	e.mu.Unlock()
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(variables []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("record", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
	}
	for _, name := range variables {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		opts = append(opts, e.functionOptions()...)
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) functionOptions() []celgo.EnvOption {
	var callOverloads []celgo.FunctionOpt
	for arity := 0; arity <= maxCELArity; arity++ {
		args := []*celgo.Type{celgo.StringType}
		for i := 0; i < arity; i++ {
			args = append(args, celgo.DynType)
		}
		callOverloads = append(callOverloads, celgo.Overload(
			fmt.Sprintf("records_call_%d", arity),
			args,
			celgo.DynType,
			celgo.FunctionBinding(e.callBinding()),
		))
	}
	opts := []celgo.EnvOption{celgo.Function("call", callOverloads...)}

	for _, name := range e.registry.Names() {
		if !celIdentifier.MatchString(name) {
			continue
		}
		if _, reserved := celReserved[name]; reserved {
			continue
		}
		var overloads []celgo.FunctionOpt
		for arity := 0; arity <= maxCELArity; arity++ {
			args := make([]*celgo.Type, arity)
			for i := range args {
				args[i] = celgo.DynType
			}
			overloads = append(overloads, celgo.Overload(
				fmt.Sprintf("records_%s_%d", name, arity),
				args,
				celgo.DynType,
				celgo.FunctionBinding(e.namedBinding(name)),
			))
		}
		opts = append(opts, celgo.Function(name, overloads...))
	}
	return opts
}

func (e *celEvaluator) activation(ctx RuleContext, variables []string) map[string]any {
	activation := map[string]any{
		"record":   map[string]any(ctx.Record),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for _, name := range variables {
		activation[name] = ctx.Record[name]
	}
	return activation
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.expression)
}

// celVariables lists the record keys usable as CEL identifiers, sorted so the
// program cache key is stable.
func celVariables(record Record) []string {
	names := make([]string, 0, len(record))
	for key := range record {
		if !celIdentifier.MatchString(key) {
			continue
		}
		if _, reserved := celReserved[key]; reserved {
			continue
		}
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("records: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("records: call name must be string")
		}
		return e.invoke(name, values[1:])
	}
}

func (e *celEvaluator) namedBinding(name string) func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		return e.invoke(name, values)
	}
}

func (e *celEvaluator) invoke(name string, values []ref.Val) ref.Val {
	if e.registry == nil {
		return types.NewErr("records: function registry not configured")
	}
	args := make([]any, 0, len(values))
	for _, val := range values {
		args = append(args, val.Value())
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
