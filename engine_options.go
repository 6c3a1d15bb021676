package records

// EngineOption configures an expression engine (expr, CEL or JS).
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EngineProgramCache stores compiled programs in cache.
func EngineProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// EngineFunctions exposes the functions of registry to expressions. The
// registry is cloned, so later registrations do not leak into the engine.
func EngineFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyEngineOptions(opts []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// engineNamer is implemented by the built-in evaluators.
type engineNamer interface {
	engineName() string
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(engineNamer); ok {
		return named.engineName()
	}
	return "custom"
}

// programKey builds the cache key of expression for engine. Programs bind the
// registry functions at compile time, so the key carries the registry scope.
func programKey(engine string, registry *FunctionRegistry, expression string) string {
	if scope := registry.cacheScope(); scope != "" {
		return engine + "[" + scope + "]:" + expression
	}
	return engine + ":" + expression
}
