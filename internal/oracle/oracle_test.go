package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimio/operon/internal/ui"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			in:   `{"decision": "approve"}`,
			want: `{"decision": "approve"}`,
			ok:   true,
		},
		{
			name: "object with prose around it",
			in:   "Here is my answer:\n{\"a\": 1}\nHope that helps!",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "fenced json",
			in:   "```json\n{\"a\": [1, 2]}\n```",
			want: `{"a": [1, 2]}`,
			ok:   true,
		},
		{
			name: "array payload",
			in:   "steps follow\n[{\"step\": 1}]",
			want: `[{"step": 1}]`,
			ok:   true,
		},
		{
			name: "braces inside strings",
			in:   `{"msg": "use {curly} braces"}`,
			want: `{"msg": "use {curly} braces"}`,
			ok:   true,
		},
		{
			name: "no json at all",
			in:   "I cannot answer that.",
			ok:   false,
		},
		{
			name: "unbalanced",
			in:   `{"a": 1`,
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := LoadConfig(t.TempDir())
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, 120, cfg.TimeoutS)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadConfigFileOverridesAndEnvKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".operon", "llm_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	doc := `{"model": "local-model", "base_url": "http://localhost:8080/v1", "timeout_s": 30}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := LoadConfig(dir)
	assert.Equal(t, "local-model", cfg.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
	assert.Equal(t, 30, cfg.TimeoutS)
	assert.Equal(t, 4096, cfg.MaxTokens, "unset fields keep defaults")
	assert.Equal(t, "sk-env", cfg.APIKey)
}

func TestClientWithoutKeyIsUnavailable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	c := NewClient(t.TempDir(), ui.NullSink{})
	_, err := c.Call(context.Background(), "hello", false)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestScriptedReplaysAndRecords(t *testing.T) {
	s := &Scripted{Responses: []string{"first", "second"}}

	out, err := s.Call(context.Background(), "p1", false)
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, _ = s.Call(context.Background(), "p2", false)
	assert.Equal(t, "second", out)

	// last response repeats once the script runs down to one entry
	out, _ = s.Call(context.Background(), "p3", false)
	assert.Equal(t, "second", out)

	assert.Equal(t, []string{"p1", "p2", "p3"}, s.Calls)
}
