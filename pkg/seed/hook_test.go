package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHook(t *testing.T) {
	calls, err := ParseHook(`{{ load_seed('tuva-public-resources/versioned_terminology/0.14.4','admit_source.csv',compression=true,headers=true) }}`)
	require.NoError(t, err)
	require.Len(t, calls, 1)

	c := calls[0]
	assert.Equal(t, "load_seed", c.Name)
	assert.Equal(t, []Arg{
		{Value: "tuva-public-resources/versioned_terminology/0.14.4", Quoted: true},
		{Value: "admit_source.csv", Quoted: true},
		{Value: "compression=true"},
		{Value: "headers=true"},
	}, c.Args)
}

func TestParseHook_Grammar(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		calls []Call
	}{
		{
			name:  "whitespace between tokens",
			text:  "load_seed ( 'b/p' ,\n  'x' )",
			calls: []Call{{Name: "load_seed", Args: []Arg{{"b/p", true}, {"x", true}}}},
		},
		{
			name:  "escaped quote",
			text:  `load_seed('b/p','o\'brien')`,
			calls: []Call{{Name: "load_seed", Args: []Arg{{"b/p", true}, {"o'brien", true}}}},
		},
		{
			name:  "nested call argument",
			text:  "load_seed('b/p', var('pattern', 'x'))",
			calls: []Call{{Name: "load_seed", Args: []Arg{{"b/p", true}, {"var('pattern', 'x')", false}}}},
		},
		{
			name:  "concatenated string is bare",
			text:  "load_seed('b/' ~ env, 'x')",
			calls: []Call{{Name: "load_seed", Args: []Arg{{"'b/' ~ env", false}, {"x", true}}}},
		},
		{
			name:  "identifiers inside strings are ignored",
			text:  `select 'load_seed(1)' as s; grant_select("t")`,
			calls: []Call{{Name: "grant_select", Args: []Arg{{`"t"`, false}}}},
		},
		{
			name:  "empty argument list",
			text:  "now()",
			calls: []Call{{Name: "now"}},
		},
		{
			name:  "qualified name",
			text:  "tuva.load_seed('b/p','x')",
			calls: []Call{{Name: "tuva.load_seed", Args: []Arg{{"b/p", true}, {"x", true}}}},
		},
		{
			name: "no calls",
			text: "{{ this }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, err := ParseHook(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.calls, calls)
		})
	}
}

func TestParseHook_Malformed(t *testing.T) {
	for _, text := range []string{
		"load_seed('b/p','x'",
		"load_seed('b/p,'x')",
		"load_seed('b/p',,'x')",
		"load_seed(",
	} {
		_, err := ParseHook(text)
		assert.Error(t, err, text)
	}
}

func TestParseHook_StopsAtStrayQuote(t *testing.T) {
	calls, err := ParseHook("{{ load_seed('b/p','x') }} -- don't call(this)")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "load_seed", calls[0].Name)

	calls, err = ParseHook("grant('r'); other('a)")
	var mce *MalformedCallError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, "other", mce.Name)
	require.Len(t, calls, 1)
	assert.Equal(t, "grant", calls[0].Name)
}

func TestExtractLoadSeed(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		path    string
		pattern string
		wantErr string
	}{
		{name: "two args", text: "{{ load_seed('mybucket/seeds','diagnosis') }}", path: "mybucket/seeds", pattern: "diagnosis"},
		{name: "extra args ignored", text: "load_seed('b/p','x.csv',compression=true)", path: "b/p", pattern: "x.csv"},
		{name: "qualified", text: "pkg.load_seed('b/p','x')", path: "b/p", pattern: "x"},
		{name: "other macro", text: "{{ grant('reader') }}", wantErr: "no load_seed call"},
		{name: "two calls", text: "load_seed('b/p','x'); load_seed('b/q','y')", wantErr: "2 load_seed calls"},
		{name: "one arg", text: "load_seed('b/p')", wantErr: "expected at least 2"},
		{name: "unquoted path", text: "load_seed(path,'x')", wantErr: "single-quoted"},
		{name: "unterminated", text: "load_seed('b/p','x'", wantErr: "unterminated"},
		{name: "stray apostrophe after call", text: "{{ load_seed('b/p','x') }} -- don't touch", path: "b/p", pattern: "x"},
		{name: "broken macro after call", text: "{{ load_seed('b/p','x') }}; {{ other('a) }}", path: "b/p", pattern: "x"},
		{name: "broken load_seed after valid call", text: "load_seed('b/p','x'); load_seed('b/q)", wantErr: "load_seed(...)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, pattern, err := ExtractLoadSeed(tt.text)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.pattern, pattern)
		})
	}
}
