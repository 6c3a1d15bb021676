package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	records "github.com/goliatone/go-records"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RECORDS_ID_FIELD",
		"RECORDS_OPTIONS_FIELD",
		"RECORDS_ENGINE",
		"RECORDS_EXCLUDE",
		"RECORDS_ACTIVITY_CHANNEL",
		"RECORDS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, records.DefaultIDField, cfg.IDField)
	assert.Equal(t, records.DefaultOptionsField, cfg.OptionsField)
	assert.Equal(t, EngineExpr, cfg.Engine)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadParsesYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "records.yaml")
	yamlDoc := `
id_field: shopifyId
options_field: selectedOptions
exclude: [Title]
defaults:
  available: true
  priceV2:
    currencyCode: EUR
required: [color]
derived:
  - name: total
    expr: float(priceV2.amount) * quantity
  - name: label
    expr: color + " x" + string(quantity)
engine: expr
storefront_functions: true
activity:
  channel: catalog
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shopifyId", cfg.IDField)
	assert.Equal(t, "selectedOptions", cfg.OptionsField)
	assert.Equal(t, []string{"Title"}, cfg.Exclude)
	assert.Equal(t, true, cfg.Defaults["available"])
	assert.Equal(t, map[string]any{"currencyCode": "EUR"}, cfg.Defaults["priceV2"])
	require.Len(t, cfg.Derived, 2)
	assert.Equal(t, DerivedField{Name: "total", Expr: "float(priceV2.amount) * quantity"}, cfg.Derived[0])
	assert.Equal(t, "label", cfg.Derived[1].Name)
	assert.True(t, cfg.StorefrontFunctions)
	assert.Equal(t, "catalog", cfg.Activity.Channel)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("derived: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestConfigSaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "records.yaml")

	cfg := DefaultConfig()
	cfg.Engine = EngineCEL
	cfg.Required = []string{"size"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EngineCEL, loaded.Engine)
	assert.Equal(t, []string{"size"}, loaded.Required)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECORDS_ID_FIELD", "sku")
	t.Setenv("RECORDS_OPTIONS_FIELD", "attrs")
	t.Setenv("RECORDS_ENGINE", "CEL")
	t.Setenv("RECORDS_EXCLUDE", " Title , ,Gift ")
	t.Setenv("RECORDS_ACTIVITY_CHANNEL", "imports")
	t.Setenv("RECORDS_LOG_LEVEL", "WARN")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "sku", cfg.IDField)
	assert.Equal(t, "attrs", cfg.OptionsField)
	assert.Equal(t, EngineCEL, cfg.Engine)
	assert.Equal(t, []string{"Title", "Gift"}, cfg.Exclude)
	assert.Equal(t, "imports", cfg.Activity.Channel)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "lua" }, wantErr: "invalid engine"},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "invalid log level"},
		{
			name:    "derived without expr",
			mutate:  func(c *Config) { c.Derived = []DerivedField{{Name: "total"}} },
			wantErr: "derived[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProjectorOptionsDrivesProjection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IDField = records.ShopifyIDField
	cfg.OptionsField = records.ShopifyOptionsField
	cfg.Exclude = []string{"Title"}
	cfg.Defaults = map[string]any{"available": true}
	cfg.Required = []string{"color"}
	cfg.StorefrontFunctions = true
	cfg.Derived = []DerivedField{
		{Name: "total", Expr: "fixed(float(priceV2.amount) * quantity)"},
	}

	opts, err := cfg.ProjectorOptions()
	require.NoError(t, err)

	out, err := records.Project([]records.Record{{
		"shopifyId": "v1",
		"quantity":  2,
		"priceV2":   map[string]any{"amount": "12.50"},
		"selectedOptions": []any{
			map[string]any{"name": "Title", "value": "Default"},
			map[string]any{"name": "Color", "value": "Red"},
		},
	}}, opts...)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "Red", out[0]["color"])
	assert.Equal(t, true, out[0]["available"])
	assert.Equal(t, "25.00", out[0]["total"])
	assert.NotContains(t, out[0], "title")
	assert.NotContains(t, out[0], "selectedOptions")
}

func TestProjectorOptionsCELEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = EngineCEL
	cfg.Derived = []DerivedField{{Name: "label", Expr: `color + "/" + size`}}

	opts, err := cfg.ProjectorOptions()
	require.NoError(t, err)

	out, err := records.Project([]records.Record{{
		"id":      "v1",
		"options": []records.OptionPair{{Name: "Color", Value: "Red"}, {Name: "Size", Value: "M"}},
	}}, opts...)
	require.NoError(t, err)
	assert.Equal(t, "Red/M", out[0]["label"])
}

func TestProjectorOptionsRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "lua"
	_, err := cfg.ProjectorOptions()
	require.Error(t, err)
}
