package records

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type derivedFixture struct {
	Description string         `json:"description"`
	Record      Record         `json:"record"`
	Args        map[string]any `json:"args"`
	Cases       []struct {
		Name   string            `json:"name"`
		Exprs  map[string]string `json:"exprs"`
		Expect any               `json:"expect"`
	} `json:"cases"`
}

func TestDerivedFieldsFixture(t *testing.T) {
	fx := loadFixture[derivedFixture](t, "derived_fields.json")

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			for _, tc := range fx.Cases {
				tc := tc
				t.Run(tc.Name, func(t *testing.T) {
					expr, ok := tc.Exprs[factory.name]
					if !ok {
						t.Skipf("no %s expression", factory.name)
					}
					out, err := Project([]Record{fx.Record},
						WithEvaluator(factory.new(nil, nil)),
						WithRuleArgs(fx.Args),
						WithDerivedField("result", expr),
					)
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					if !sameValue(tc.Expect, out[0]["result"]) {
						t.Fatalf("expected %v (%T), got %v (%T)", tc.Expect, tc.Expect, out[0]["result"], out[0]["result"])
					}
				})
			}
		})
	}
}

// sameValue compares numbers by value, since engines differ in the numeric
// types they return.
func sameValue(want, got any) bool {
	wantNum, wantErr := toFloat(want)
	gotNum, gotErr := toFloat(got)
	if wantErr == nil && gotErr == nil {
		if _, ok := want.(string); !ok {
			return wantNum == gotNum
		}
	}
	return fmt.Sprint(want) == fmt.Sprint(got)
}

func TestDerivedFieldsRunInOrder(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			out, err := Project([]Record{variant("v1", OptionPair{Name: "Color", Value: "Red"})},
				WithEvaluator(factory.new(nil, nil)),
				WithDerivedField("subtotal", "quantity * 10"),
				WithDerivedField("total", "subtotal + 5"),
				WithDerivedField("color", `"Dark " + color`),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !sameValue(25, out[0]["total"]) {
				t.Fatalf("expected total 25, got %v", out[0]["total"])
			}
			if out[0]["color"] != "Dark Red" {
				t.Fatalf("expected derived field to overwrite option, got %v", out[0]["color"])
			}
		})
	}
}

func TestDerivedFieldDefaultsToExpr(t *testing.T) {
	out, err := Project([]Record{variant("v1")}, WithDerivedField("total", "float(priceV2.amount) * quantity"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0]["total"] != 25.0 {
		t.Fatalf("expected 25, got %v (%T)", out[0]["total"], out[0]["total"])
	}
}

func TestDerivedFieldCompileErrors(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			_, err := Project([]Record{variant("v1")},
				WithEvaluator(factory.new(nil, nil)),
				WithDerivedField("broken", "1 +"),
			)
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected *EvaluationError, got %T: %v", err, err)
			}
			if evalErr.Engine != factory.name || evalErr.Field != "broken" || evalErr.Expr != "1 +" {
				t.Fatalf("unexpected error metadata: %+v", evalErr)
			}
		})
	}
}

func TestDerivedFieldRuntimeErrorsNameRecord(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("reject", func(args ...any) (any, error) {
		return nil, fmt.Errorf("rejected %v", args)
	}); err != nil {
		t.Fatalf("register reject: %v", err)
	}

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			out, err := Project([]Record{variant("v1"), variant("v2")},
				WithEvaluator(factory.new(nil, registry)),
				WithDerivedField("check", `id == "v2" ? reject(id) : true`),
			)
			if out != nil {
				t.Fatalf("expected no partial output, got %v", out)
			}
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected *EvaluationError, got %T: %v", err, err)
			}
			if evalErr.RecordID != "v2" || evalErr.Field != "check" {
				t.Fatalf("unexpected error metadata: %+v", evalErr)
			}
			if !strings.Contains(err.Error(), "rejected") {
				t.Fatalf("expected function error in message, got %v", err)
			}
		})
	}
}

func TestCustomFunctionsAcrossEvaluators(t *testing.T) {
	registry := StorefrontFunctions()
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			out, err := Project([]Record{variant("v1", OptionPair{Name: "Color", Value: "Deep Red"})},
				WithEvaluator(factory.new(nil, registry)),
				WithDerivedField("price", `fixed(priceV2.amount)`),
				WithDerivedField("handle", `slug(color)`),
				WithDerivedField("rounded", `call("fixed", "3.14159", 3)`),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out[0]["price"] != "12.50" || out[0]["handle"] != "deep-red" || out[0]["rounded"] != "3.142" {
				t.Fatalf("unexpected function results: %v", out[0])
			}
		})
	}
}

func TestWithCustomFunctionOnDefaultEngine(t *testing.T) {
	out, err := Project([]Record{variant("v1")},
		WithCustomFunction("twice", func(args ...any) (any, error) {
			n, err := toFloat(args[0])
			return n * 2, err
		}),
		WithDerivedField("doubled", "twice(quantity)"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0]["doubled"] != 4.0 {
		t.Fatalf("expected 4, got %v", out[0]["doubled"])
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	t.Run("expr compiles once per expression", func(t *testing.T) {
		cache := &fakeProgramCache{}
		for i := 0; i < 3; i++ {
			projector := NewProjector(WithProgramCache(cache), WithDerivedField("total", "quantity * 2"))
			if _, err := projector.Project([]Record{variant("v1"), variant("v2")}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if cache.misses != 1 || cache.hits != 2 {
			t.Fatalf("expected 1 miss and 2 hits, got %d misses %d hits", cache.misses, cache.hits)
		}
	})

	t.Run("cel compiles once per record shape", func(t *testing.T) {
		cache := &fakeProgramCache{}
		projector := NewProjector(
			WithEvaluator(NewCELEvaluator(EngineProgramCache(cache))),
			WithDerivedField("total", "quantity * 2"),
		)
		if _, err := projector.Project([]Record{variant("v1"), variant("v2"), variant("v3")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cache.misses != 1 || cache.hits != 2 {
			t.Fatalf("expected 1 miss and 2 hits, got %d misses %d hits", cache.misses, cache.hits)
		}
	})

	t.Run("memory cache", func(t *testing.T) {
		cache := NewMemoryProgramCache()
		projector := NewProjector(
			WithProgramCache(cache),
			WithDerivedField("a", "quantity * 2"),
			WithDerivedField("b", "quantity * 3"),
		)
		if _, err := projector.Project([]Record{variant("v1")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cache.Len() != 2 {
			t.Fatalf("expected 2 cached programs, got %d", cache.Len())
		}
	})
}

func TestSharedProgramCacheSeparatesRegistries(t *testing.T) {
	constant := func(value string) *FunctionRegistry {
		registry := NewFunctionRegistry()
		if err := registry.Register("label", func(...any) (any, error) { return value, nil }); err != nil {
			t.Fatalf("register: %v", err)
		}
		return registry
	}

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			cache := NewMemoryProgramCache()
			for _, want := range []string{"storefront", "checkout"} {
				out, err := Project([]Record{variant("v1")},
					WithEvaluator(factory.new(cache, constant(want))),
					WithDerivedField("label", "label()"),
				)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if out[0]["label"] != want {
					t.Fatalf("expected label %q, got %v", want, out[0]["label"])
				}
			}
		})
	}
}

func TestSharedProgramCacheReusesClonedRegistry(t *testing.T) {
	cache := &fakeProgramCache{}
	registry := StorefrontFunctions()
	for i := 0; i < 2; i++ {
		projector := NewProjector(
			WithProgramCache(cache),
			WithFunctionRegistry(registry),
			WithDerivedField("price", "fixed(priceV2.amount)"),
		)
		if _, err := projector.Project([]Record{variant("v1")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cache.misses != 1 || cache.hits != 1 {
		t.Fatalf("expected 1 miss and 1 hit, got %d misses %d hits", cache.misses, cache.hits)
	}

	_ = registry.Register("extra", func(...any) (any, error) { return nil, nil })
	projector := NewProjector(
		WithProgramCache(cache),
		WithFunctionRegistry(registry),
		WithDerivedField("price", "fixed(priceV2.amount)"),
	)
	if _, err := projector.Project([]Record{variant("v1")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.misses != 2 {
		t.Fatalf("expected a changed registry to compile again, got %d misses", cache.misses)
	}
}

func TestNilEvaluator(t *testing.T) {
	projector := NewProjector(WithEvaluator(nil), WithDerivedField("total", "quantity * 2"))
	if _, err := projector.Project([]Record{variant("v1")}); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}

	if _, err := Project([]Record{variant("v1")}, WithEvaluator(nil)); err != nil {
		t.Fatalf("expected projection without derived fields to succeed, got %v", err)
	}
}

func TestDerivedFieldRequiresName(t *testing.T) {
	_, err := Project([]Record{variant("v1")}, WithDerivedField("", "quantity"))
	if err == nil || !strings.Contains(err.Error(), "derived field name must not be empty") {
		t.Fatalf("expected empty name error, got %v", err)
	}

	_, err = Project([]Record{variant("v1")}, WithDerivedField("total", ""))
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Field != "total" {
		t.Fatalf("expected EvaluationError for empty expression, got %v", err)
	}
}

type staticEvaluator struct{ value any }

func (e staticEvaluator) Evaluate(RuleContext, string) (any, error) { return e.value, nil }

func (e staticEvaluator) Compile(expr string) (CompiledRule, error) {
	return staticRule{value: e.value}, nil
}

type staticRule struct{ value any }

func (r staticRule) Evaluate(RuleContext) (any, error) { return r.value, nil }

func TestCustomEvaluator(t *testing.T) {
	out, err := Project([]Record{variant("v1")},
		WithEvaluator(staticEvaluator{value: "fixed"}),
		WithDerivedField("badge", "anything"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0]["badge"] != "fixed" {
		t.Fatalf("expected custom evaluator result, got %v", out[0]["badge"])
	}
	if name := evaluatorEngineName(staticEvaluator{}); name != "custom" {
		t.Fatalf("expected custom engine name, got %q", name)
	}
}

func TestEvaluateDirect(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			got, err := evaluator.Evaluate(RuleContext{Record: Record{"size": "M"}}, `size == "M"`)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != true {
				t.Fatalf("expected true, got %v", got)
			}
			if _, err := evaluator.Evaluate(RuleContext{}, ""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
		})
	}
}
