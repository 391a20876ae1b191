package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
	"github.com/core-tools/hsu-platform/pkg/props"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = []Default{
	{Name: "main.home", Value: "/opt/myplatform", Doc: "Installation root."},
	{Name: "fooservice.home", Value: "{{main.home}}/fooservice"},
	{Name: "fooservice.bin", Value: "{{fooservice.home}}/bin"},
	{Name: "barservice.max_heap_size", Value: "1024", Doc: "Heap size in megabytes."},
	{Name: "barservice.foo.endpoint", Value: "http://dev.example.com"},
}

var testSuggestions = []Suggestion{
	{
		Name:  "barservice.max_heap_size",
		Value: "2048",
		Why:   "It looks like your OS can support giving BarService more memory.",
	},
	{
		Name:  "barservice.foo.endpoint",
		Value: "http://dev.example.com",
		Why:   "This suggestion not seen because it is already the active value.",
	},
}

func TestResolve(t *testing.T) {
	overrides := []Override{
		{Name: "barservice.foo.endpoint", Value: "http://dev.example.com"},
		{Name: "main.home", Value: "/opt/apps/myplatform"},
	}

	resolution, err := Resolve(testDefaults, testSuggestions, overrides, 0)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"main.home":                "/opt/apps/myplatform",
		"fooservice.home":          "/opt/apps/myplatform/fooservice",
		"fooservice.bin":           "/opt/apps/myplatform/fooservice/bin",
		"barservice.max_heap_size": "1024",
		"barservice.foo.endpoint":  "http://dev.example.com",
	}, resolution.Values)

	assert.Equal(t, map[string]Suggestion{
		"barservice.max_heap_size": testSuggestions[0],
	}, resolution.DifferingSuggestions)

	assert.Equal(t, map[string]Default{
		"main.home": testDefaults[0],
	}, resolution.DifferingDefaults)

	assert.Equal(t, []string{
		"main.home", "fooservice.home", "fooservice.bin", "barservice.max_heap_size", "barservice.foo.endpoint",
	}, resolution.Keys)
}

func TestResolve_OverrideEqualToSuggestionIsNotDiffering(t *testing.T) {
	overrides := []Override{{Name: "barservice.max_heap_size", Value: "2048"}}

	resolution, err := Resolve(testDefaults, testSuggestions, overrides, 0)
	require.NoError(t, err)

	assert.Empty(t, resolution.DifferingSuggestions)
	assert.Contains(t, resolution.DifferingDefaults, "barservice.max_heap_size")
}

func TestResolve_OverrideOnlyKeysAreActive(t *testing.T) {
	overrides := []Override{{Name: "extra.key", Value: "{{main.home}}/extra"}}

	resolution, err := Resolve(testDefaults, nil, overrides, 0)
	require.NoError(t, err)

	value, ok := resolution.Get("extra.key")
	assert.True(t, ok)
	assert.Equal(t, "/opt/myplatform/extra", value)
	assert.Equal(t, "extra.key", resolution.Keys[len(resolution.Keys)-1])
	assert.Empty(t, resolution.DifferingDefaults)
}

func TestResolve_TemplateErrors(t *testing.T) {
	_, err := Resolve([]Default{{Name: "a", Value: "{{missing}}"}}, nil, nil, 0)
	assert.True(t, errors.IsTemplateKeyNotFoundError(err))

	_, err = Resolve([]Default{{Name: "a", Value: "{{b}}"}, {Name: "b", Value: "{{a}}"}}, nil, nil, 0)
	assert.True(t, errors.IsTemplateConvergenceError(err))
}

func newTestConfig(t *testing.T, content string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.properties")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	store := props.NewStore(path, true, logging.NewNopLogger())
	return New(store, testDefaults, testSuggestions, logging.NewNopLogger())
}

func TestConfig_Overrides(t *testing.T) {
	config := newTestConfig(t, "foo.first = 1\n# Random comment = Not included.\nfoo.second = Two\nfoo.third = Three\n  !!\n")

	overrides, err := config.Overrides()
	require.NoError(t, err)

	assert.Equal(t, []Override{
		{Name: "foo.first", Value: "1"},
		{Name: "foo.second", Value: "Two"},
		{Name: "foo.third", Value: "Three\n!!"},
	}, overrides)
}

func TestConfig_ResolveIsCachedUntilMutation(t *testing.T) {
	config := newTestConfig(t, "main.home = /srv\n")

	first, err := config.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/srv/fooservice/bin", first.Values["fooservice.bin"])

	// edits made behind the Config's back are not seen
	require.NoError(t, os.WriteFile(config.StorePath(), []byte("main.home = /elsewhere\n"), 0o644))
	second, err := config.Resolve()
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, config.Set("barservice.max_heap_size", "2048"))
	third, err := config.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", third.Values["main.home"])
	assert.Equal(t, "2048", third.Values["barservice.max_heap_size"])
	assert.Empty(t, third.DifferingSuggestions)
}

func TestConfig_SetDeleteEnableDisable(t *testing.T) {
	config := newTestConfig(t, "")

	require.NoError(t, config.Enable("fooservice"))
	require.NoError(t, config.Set("main.home", "/data"))

	resolution, err := config.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "true", resolution.Values["fooservice.enabled"])
	assert.Equal(t, "/data", resolution.Values["main.home"])

	require.NoError(t, config.Disable("fooservice"))
	require.NoError(t, config.Delete("main.home"))

	resolution, err = config.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "false", resolution.Values["fooservice.enabled"])
	assert.Equal(t, "/opt/myplatform", resolution.Values["main.home"])

	data, err := os.ReadFile(config.StorePath())
	require.NoError(t, err)
	assert.Equal(t, "fooservice.enabled = false\n", string(data))

	assert.True(t, errors.IsValidationError(config.Set(" ", "x")))
}

func TestConfig_List(t *testing.T) {
	config := newTestConfig(t, "main.home = /srv\n")

	items, err := config.List("barservice")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "barservice.max_heap_size", items[0].Key)
	assert.Equal(t, "1024", items[0].Value)
	assert.Equal(t, "Heap size in megabytes.", items[0].Doc)
	require.NotNil(t, items[0].Suggestion)
	assert.Equal(t, "2048", items[0].Suggestion.Value)
	assert.Nil(t, items[0].Default)

	assert.Equal(t, "barservice.foo.endpoint", items[1].Key)
	assert.Nil(t, items[1].Suggestion)

	items, err = config.List("main.")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Default)
	assert.Equal(t, "/opt/myplatform", items[0].Default.Value)

	items, err = config.List("")
	require.NoError(t, err)
	assert.Len(t, items, len(testDefaults))
}

func TestConfig_Docs(t *testing.T) {
	config := newTestConfig(t, "")

	assert.Equal(t, []DocItem{
		{Key: "barservice.max_heap_size", Doc: "Heap size in megabytes."},
		{Key: "main.home", Doc: "Installation root."},
	}, config.Docs())
}

func TestParseBool(t *testing.T) {
	for _, value := range []string{"True", "true", "1", "on", "YES", " yes "} {
		assert.True(t, ParseBool(value), value)
	}
	for _, value := range []string{"False", "0", "", "off", "enabled"} {
		assert.False(t, ParseBool(value), value)
	}
}
