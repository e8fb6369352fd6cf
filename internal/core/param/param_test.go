package param

import (
	"errors"
	"math"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/kash/internal/core/errs"
)

func TestResolve_Precedence(t *testing.T) {
	model := String("model", "gpt-4o", "LLM model")

	tests := []struct {
		name      string
		callSite  map[string]any
		workspace map[string]any
		global    map[string]any
		want      string
	}{
		{name: "declared default", want: "gpt-4o"},
		{name: "global", global: map[string]any{"model": "global-model"}, want: "global-model"},
		{name: "workspace over global", workspace: map[string]any{"model": "claude-3"}, global: map[string]any{"model": "global-model"}, want: "claude-3"},
		{name: "only workspace", workspace: map[string]any{"model": "claude-3"}, want: "claude-3"},
		{name: "call site wins", callSite: map[string]any{"model": "o3"}, workspace: map[string]any{"model": "claude-3"}, want: "o3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve([]Param{model}, tt.callSite, tt.workspace, tt.global)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String("model"))
		})
	}
}

func TestResolve_Coercion(t *testing.T) {
	params := []Param{
		Int("max_words", 100, "word limit"),
		Float("temperature", 0.5, "sampling temperature"),
		Bool("verbose", false, "log more"),
		String("style", "brief", "summary style", WithValues("brief", "detailed")),
	}

	got, err := Resolve(params, map[string]any{
		"max_words":   "250",
		"temperature": 1,
		"verbose":     "true",
		"style":       "detailed",
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 250, got.Int("max_words"))
	assert.InDelta(t, 1.0, got.Float("temperature"), 0.0001)
	assert.True(t, got.Bool("verbose"))
	assert.Equal(t, "detailed", got.String("style"))
}

func TestResolve_Errors(t *testing.T) {
	positive := WithValidator(func(v any) error {
		if v.(int) <= 0 {
			return errors.New("must be positive")
		}
		return nil
	})

	tests := []struct {
		name      string
		params    []Param
		callSite  map[string]any
		workspace map[string]any
		wantParam string
	}{
		{
			name:      "unknown call-site param",
			params:    []Param{String("model", "gpt-4o", "")},
			callSite:  map[string]any{"modle": "x"},
			wantParam: "modle",
		},
		{
			name:      "bad integer",
			params:    []Param{Int("max_words", 100, "")},
			callSite:  map[string]any{"max_words": "lots"},
			wantParam: "max_words",
		},
		{
			name:      "closed set",
			params:    []Param{String("style", "brief", "", WithValues("brief", "detailed"))},
			callSite:  map[string]any{"style": "verbose"},
			wantParam: "style",
		},
		{
			name:      "validator from workspace value",
			params:    []Param{Int("max_words", 100, "", positive)},
			workspace: map[string]any{"max_words": -5},
			wantParam: "max_words",
		},
		{
			name:      "NaN float",
			params:    []Param{Float("temperature", 0.5, "")},
			callSite:  map[string]any{"temperature": "NaN"},
			wantParam: "temperature",
		},
		{
			name:      "infinite float",
			params:    []Param{Float("temperature", 0.5, "")},
			callSite:  map[string]any{"temperature": "+Inf"},
			wantParam: "temperature",
		},
		{
			name:      "infinite integer",
			params:    []Param{Int("max_words", 100, "")},
			workspace: map[string]any{"max_words": math.Inf(1)},
			wantParam: "max_words",
		},
		{
			name:      "required missing",
			params:    []Param{String("query", "", "", Required())},
			wantParam: "query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.params, tt.callSite, tt.workspace, nil)
			var pe *errs.InvalidParameterError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantParam, pe.Param)
			assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
		})
	}
}

func TestResolve_OpenEndedAcceptsOtherValues(t *testing.T) {
	p := String("model", "gpt-4o", "", WithValues("gpt-4o", "claude-3"), OpenEnded())
	got, err := Resolve([]Param{p}, map[string]any{"model": "local-llama"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "local-llama", got.String("model"))
}

func TestResolve_OptionalWithoutDefaultIsAbsent(t *testing.T) {
	got, err := Resolve([]Param{String("language", "", "")}, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, got.Has("language"))
	assert.Nil(t, got.Map())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Param
		wantErr bool
	}{
		{name: "ok", p: String("model", "gpt-4o", "")},
		{name: "empty name", p: String("", "x", ""), wantErr: true},
		{name: "hyphen", p: Int("max-words", 1, ""), wantErr: true},
		{name: "default type mismatch", p: Param{Name: "n", Kind: KindInt, Default: "ten"}, wantErr: true},
		{name: "float default on int", p: Param{Name: "n", Kind: KindInt, Default: 1.5}, wantErr: true},
		{name: "default outside closed set", p: String("style", "long", "", WithValues("brief")), wantErr: true},
		{name: "unknown kind", p: Param{Name: "n", Kind: "date"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
		})
	}
}

func TestValidateAll_Duplicates(t *testing.T) {
	err := ValidateAll([]Param{String("model", "", ""), String("model", "x", "")})

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 1)
	assert.Equal(t, "params[1].name", fieldErrs[0].Field)
}

func TestWithDefault_Copies(t *testing.T) {
	p := String("style", "brief", "", WithValues("brief", "detailed"))
	q := p.WithDefault("detailed")
	q.ValidValues[0] = "changed"

	assert.Equal(t, "brief", p.Default)
	assert.Equal(t, "detailed", q.Default)
	assert.Equal(t, "brief", p.ValidValues[0])
}

func TestSchema(t *testing.T) {
	schema := Schema([]Param{
		String("model", "gpt-4o", "LLM model"),
		String("style", "brief", "", WithValues("brief", "detailed")),
		String("query", "", "search query", Required()),
	})

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)

	model := props["model"].(map[string]any)
	assert.Equal(t, "string", model["type"])
	assert.Equal(t, "gpt-4o", model["default"])
	assert.Equal(t, "LLM model", model["description"])

	style := props["style"].(map[string]any)
	assert.Equal(t, []any{"brief", "detailed"}, style["enum"])

	assert.Equal(t, []string{"query"}, schema["required"])
}
