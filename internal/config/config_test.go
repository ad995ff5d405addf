package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "qwen3:32b", cfg.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Endpoint)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.MaxTokensPerChunk)
	assert.Equal(t, 0, cfg.MaxOutputTokens)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.True(t, cfg.UseCache)
	assert.True(t, cfg.StripThink)
	assert.Equal(t, "_ko", cfg.OutputSuffix)
	assert.Equal(t, FormatBuiltin, cfg.FormatEngine)
	assert.NotEmpty(t, cfg.CacheDir)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "translator.yaml")

	content := `provider: compat
model: qwen3-32b
endpoint: http://localhost:8080/v1
temperature: 0.3
max_tokens_per_chunk: 800
concurrency: 4
use_cache: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderCompat, cfg.Provider)
	assert.Equal(t, "qwen3-32b", cfg.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Endpoint)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	assert.Equal(t, 800, cfg.MaxTokensPerChunk)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.False(t, cfg.UseCache)

	// 未出现在文件里的键落回默认值
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.StripThink)
	assert.Equal(t, "_ko", cfg.OutputSuffix)
	assert.NotEmpty(t, cfg.CacheDir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "no-such.yaml"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved", "translator.yaml")

	cfg := NewDefaultConfig()
	cfg.Provider = ProviderOpenAI
	cfg.Model = "gpt-4o-mini"
	cfg.APIKey = "sk-test"
	cfg.Concurrency = 2

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, loaded.Provider)
	assert.Equal(t, "gpt-4o-mini", loaded.Model)
	assert.Equal(t, "sk-test", loaded.APIKey)
	assert.Equal(t, 2, loaded.Concurrency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "default is valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "bedrock" },
			wantErr: "unknown provider",
		},
		{
			name: "ollama without endpoint",
			mutate: func(c *Config) {
				c.Provider = ProviderOllama
				c.Endpoint = ""
			},
			wantErr: "requires an endpoint",
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.Provider = ProviderOpenAI
				c.APIKey = ""
			},
			wantErr: "requires an api_key",
		},
		{
			name:    "unknown format engine",
			mutate:  func(c *Config) { c.FormatEngine = "prettier" },
			wantErr: "unknown format_engine",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Temperature = 3.5 },
			wantErr: "out of range",
		},
		{
			name:    "non positive chunk budget",
			mutate:  func(c *Config) { c.MaxTokensPerChunk = 0 },
			wantErr: "max_tokens_per_chunk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadGlossary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glossary.toml")

	content := `source_lang = "English"
target_lang = "Korean"

[translations]
"transformer" = "트랜스포머"
"attention" = "어텐션"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	g, err := LoadGlossary(path)
	require.NoError(t, err)
	assert.Equal(t, "English", g.SourceLang)
	assert.Equal(t, "Korean", g.TargetLang)
	assert.Equal(t, "트랜스포머", g.Translations["transformer"])
	assert.Len(t, g.Translations, 2)
}

func TestLoadGlossaryErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGlossary(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("missing languages", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[translations]\n\"a\" = \"b\"\n"), 0644))

		_, err := LoadGlossary(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing source_lang or target_lang")
	})
}
