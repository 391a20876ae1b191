package template

import (
	"testing"

	"github.com/core-tools/hsu-platform/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	renderer := NewRenderer(map[string]string{
		"main.home":        "/opt/myplatform",
		"fooservice.opts":  "-Dx=<y> & \"z\"",
		"plain":            "value",
		"deeply.nested.ok": "yes",
	})

	tests := []struct {
		name     string
		tmpl     string
		expected string
	}{
		{"dotted key", "{{main.home}}/fooservice", "/opt/myplatform/fooservice"},
		{"no escaping", "{{fooservice.opts}}", "-Dx=<y> & \"z\""},
		{"no placeholders", "/bin/true", "/bin/true"},
		{"several placeholders", "{{plain}}-{{deeply.nested.ok}}", "value-yes"},
		{"dots outside tags survive", "a.b.c {{plain}}", "a.b.c value"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered, err := renderer.Render(tt.tmpl)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rendered)
		})
	}
}

func TestRender_MissingKeyIsError(t *testing.T) {
	renderer := NewRenderer(map[string]string{"main.home": "/opt"})

	_, err := renderer.Render("{{main.missing}}/bin")

	require.Error(t, err)
	assert.True(t, errors.IsTemplateKeyNotFoundError(err))
}

func TestRenderValueMap_MultiHop(t *testing.T) {
	values := map[string]string{
		"main.home":       "/opt/apps/myplatform",
		"fooservice.home": "{{main.home}}/fooservice",
		"fooservice.bin":  "{{fooservice.home}}/bin",
		"fooservice.run":  "{{fooservice.bin}}/run.sh",
	}

	resolved, err := RenderValueMap(values, DefaultMaxPasses)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"main.home":       "/opt/apps/myplatform",
		"fooservice.home": "/opt/apps/myplatform/fooservice",
		"fooservice.bin":  "/opt/apps/myplatform/fooservice/bin",
		"fooservice.run":  "/opt/apps/myplatform/fooservice/bin/run.sh",
	}, resolved)

	// the input map is left alone
	assert.Equal(t, "{{main.home}}/fooservice", values["fooservice.home"])
}

func TestRenderValueMap_Cycles(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"self reference", map[string]string{"a.key": "{{a.key}}"}},
		{"self reference with text", map[string]string{"a.key": "x{{a.key}}"}},
		{"two key cycle", map[string]string{"a": "{{b}}", "b": "{{a}}"}},
		{"three key cycle", map[string]string{"a": "{{b}}/1", "b": "{{c}}/2", "c": "{{a}}/3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := RenderValueMap(tt.values, DefaultMaxPasses)
			require.Error(t, err)
			assert.True(t, errors.IsTemplateConvergenceError(err), "got %v", err)
			assert.Nil(t, resolved)
		})
	}
}

func TestRenderValueMap_ChainLongerThanPassBudget(t *testing.T) {
	values := map[string]string{
		"k0": "root",
		"k1": "{{k0}}",
		"k2": "{{k1}}",
		"k3": "{{k2}}",
		"k4": "{{k3}}",
	}

	_, err := RenderValueMap(values, 2)
	require.Error(t, err)
	assert.True(t, errors.IsTemplateConvergenceError(err))

	resolved, err := RenderValueMap(values, 10)
	require.NoError(t, err)
	assert.Equal(t, "root", resolved["k4"])
}

func TestRenderValueMap_MissingKey(t *testing.T) {
	_, err := RenderValueMap(map[string]string{"a": "{{nope}}"}, DefaultMaxPasses)

	require.Error(t, err)
	assert.True(t, errors.IsTemplateKeyNotFoundError(err))
}

func TestRenderCommand(t *testing.T) {
	renderer := NewRenderer(map[string]string{
		"foo.bin":   "/opt/foo/bin/foo",
		"foo.port":  "8080",
		"foo.extra": `-Xmx1g -Dname="two words"`,
		"foo.empty": "",
	})

	args, err := renderer.RenderCommand([]Element{
		Lit("{{foo.bin}}"),
		Lit("--port={{foo.port}}"),
		Split("{{foo.extra}}"),
		Split("{{foo.empty}}"),
		Lit("{{foo.empty}}"),
		Lit("run"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/foo/bin/foo", "--port=8080", "-Xmx1g", "-Dname=two words", "run"}, args)
}

func TestRenderCommand_Errors(t *testing.T) {
	renderer := NewRenderer(map[string]string{"bad": `"unterminated`})

	_, err := renderer.RenderCommand([]Element{Split("{{bad}}")})
	assert.True(t, errors.IsValidationError(err))

	_, err = renderer.RenderCommand([]Element{FromProperty("bad")})
	assert.True(t, errors.IsValidationError(err))

	_, err = renderer.RenderCommand([]Element{Lit("{{missing}}")})
	assert.True(t, errors.IsTemplateKeyNotFoundError(err))
}

func TestResolveInt(t *testing.T) {
	renderer := NewRenderer(map[string]string{
		"foo.stop_wait": "30",
		"foo.bad":       "soon",
	})

	n, err := renderer.ResolveInt(Seconds(5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = renderer.ResolveInt(FromProperty("foo.stop_wait"))
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	n, err = renderer.ResolveInt(Lit("{{foo.stop_wait}}"))
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	_, err = renderer.ResolveInt(FromProperty("foo.missing"))
	assert.True(t, errors.IsTemplateKeyNotFoundError(err))

	_, err = renderer.ResolveInt(FromProperty("foo.bad"))
	assert.True(t, errors.IsValidationError(err))

	_, err = renderer.ResolveInt(Split("1 2"))
	assert.True(t, errors.IsValidationError(err))
}

func TestLits(t *testing.T) {
	assert.Equal(t, []Element{Lit("a"), Lit("b")}, Lits("a", "b"))
	assert.Equal(t, "split", SplitAfterRender.String())
}
