// Package config layers compiled-in defaults, persisted overrides and
// suggestions into one fully substituted value map.
package config

import (
	"sort"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
	"github.com/core-tools/hsu-platform/pkg/props"
	"github.com/core-tools/hsu-platform/pkg/template"
)

// EnabledSuffix names the per-service boolean that gates bulk start
const EnabledSuffix = ".enabled"

// Default is a compiled-in baseline value, possibly templated
type Default struct {
	Name  string
	Value string
	Doc   string
}

// Override is a value persisted by the user
type Override struct {
	Name  string
	Value string
}

// Suggestion is a recommended value and the reason for it
type Suggestion struct {
	Name  string
	Value string
	Why   string
}

// Resolution is one computed snapshot of the configuration
type Resolution struct {
	// Keys lists every active key: defaults in declaration order, then
	// override-only keys in file order
	Keys   []string
	Values map[string]string

	// DifferingSuggestions holds suggestions whose value is not the active one
	DifferingSuggestions map[string]Suggestion

	// DifferingDefaults holds defaults replaced by an override that changed
	// the value
	DifferingDefaults map[string]Default
}

// Get returns the active value of key
func (r *Resolution) Get(key string) (string, bool) {
	value, ok := r.Values[key]
	return value, ok
}

// Resolve applies overrides on top of defaults and renders the result to a
// fixed point.
func Resolve(defaults []Default, suggestions []Suggestion, overrides []Override, maxPasses int) (*Resolution, error) {
	pre := make(map[string]string, len(defaults)+len(overrides))
	var keys []string
	for _, d := range defaults {
		if _, seen := pre[d.Name]; !seen {
			keys = append(keys, d.Name)
		}
		pre[d.Name] = d.Value
	}
	overridden := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		if _, seen := pre[o.Name]; !seen {
			keys = append(keys, o.Name)
		}
		pre[o.Name] = o.Value
		overridden[o.Name] = true
	}

	active, err := template.RenderValueMap(pre, maxPasses)
	if err != nil {
		return nil, err
	}

	differingSuggestions := make(map[string]Suggestion)
	for _, s := range suggestions {
		if value, ok := active[s.Name]; !ok || value != s.Value {
			differingSuggestions[s.Name] = s
		}
	}

	differingDefaults := make(map[string]Default)
	for _, d := range defaults {
		if overridden[d.Name] && active[d.Name] != d.Value {
			differingDefaults[d.Name] = d
		}
	}

	return &Resolution{
		Keys:                 keys,
		Values:               active,
		DifferingSuggestions: differingSuggestions,
		DifferingDefaults:    differingDefaults,
	}, nil
}

// Config binds the compiled-in layers to a persisted override store
type Config struct {
	store       *props.Store
	defaults    []Default
	suggestions []Suggestion
	maxPasses   int
	logger      logging.Logger

	resolution *Resolution
}

func New(store *props.Store, defaults []Default, suggestions []Suggestion, logger logging.Logger) *Config {
	return &Config{
		store:       store,
		defaults:    defaults,
		suggestions: suggestions,
		maxPasses:   template.DefaultMaxPasses,
		logger:      logger,
	}
}

// SetMaxPasses bounds template rendering; values below one keep the default
func (c *Config) SetMaxPasses(maxPasses int) {
	if maxPasses > 0 {
		c.maxPasses = maxPasses
		c.resolution = nil
	}
}

func (c *Config) StorePath() string {
	return c.store.Path()
}

// Overrides reads the persisted overrides in file order
func (c *Config) Overrides() ([]Override, error) {
	entries, err := c.store.Items()
	if err != nil {
		return nil, err
	}
	overrides := make([]Override, len(entries))
	for i, entry := range entries {
		overrides[i] = Override{Name: entry.Key, Value: entry.Value}
	}
	return overrides, nil
}

// Resolve computes the configuration once; later calls return the same
// snapshot until a mutation through this Config.
func (c *Config) Resolve() (*Resolution, error) {
	if c.resolution != nil {
		return c.resolution, nil
	}

	overrides, err := c.Overrides()
	if err != nil {
		return nil, err
	}
	resolution, err := Resolve(c.defaults, c.suggestions, overrides, c.maxPasses)
	if err != nil {
		c.logger.Errorf("Failed to resolve configuration, overrides: %s, error: %v", c.store.Path(), err)
		return nil, err
	}
	c.logger.Debugf("Configuration resolved, keys: %d, differing suggestions: %d, differing defaults: %d",
		len(resolution.Keys), len(resolution.DifferingSuggestions), len(resolution.DifferingDefaults))

	c.resolution = resolution
	return resolution, nil
}

// Set persists an override
func (c *Config) Set(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.NewValidationError("property name cannot be empty", nil)
	}
	c.resolution = nil
	return c.store.Set(key, value)
}

// Delete removes a persisted override; the default, if any, becomes active
func (c *Config) Delete(key string) error {
	c.resolution = nil
	return c.store.Delete(key)
}

func (c *Config) Enable(service string) error {
	return c.Set(service+EnabledSuffix, "true")
}

func (c *Config) Disable(service string) error {
	return c.Set(service+EnabledSuffix, "false")
}

// ListItem describes one active key for listing
type ListItem struct {
	Key   string
	Value string

	// Default is the replaced default value when an override changed it
	Default    *Default
	Suggestion *Suggestion
	Doc        string
}

// List returns active keys whose name contains filter, in key order
func (c *Config) List(filter string) ([]ListItem, error) {
	resolution, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	docs := c.docs()

	var items []ListItem
	for _, key := range resolution.Keys {
		if filter != "" && !strings.Contains(key, filter) {
			continue
		}
		item := ListItem{
			Key:   key,
			Value: resolution.Values[key],
			Doc:   docs[key],
		}
		if d, ok := resolution.DifferingDefaults[key]; ok {
			item.Default = &d
		}
		if s, ok := resolution.DifferingSuggestions[key]; ok {
			item.Suggestion = &s
		}
		items = append(items, item)
	}
	return items, nil
}

// DocItem is the documentation of one key
type DocItem struct {
	Key string
	Doc string
}

// Docs returns every documented default sorted by key
func (c *Config) Docs() []DocItem {
	var items []DocItem
	for key, doc := range c.docs() {
		items = append(items, DocItem{Key: key, Doc: doc})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
	return items
}

func (c *Config) docs() map[string]string {
	docs := make(map[string]string)
	for _, d := range c.defaults {
		if d.Doc != "" {
			docs[d.Name] = d.Doc
		}
	}
	return docs
}

// ParseBool reads the boolean spellings accepted in properties
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}
