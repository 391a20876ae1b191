// Package template renders {{dotted.key}} placeholders against a flat value
// map.
//
// Mustache reads dots inside a tag as nested attribute access, so keys and
// templates are transcoded to a reserved marker before rendering and back
// afterwards. Rendering is strict: a placeholder naming an unknown key is an
// error, never a blank. Values are not HTML escaped.
package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/core-tools/hsu-platform/pkg/errors"
)

// DotMarker replaces '.' in keys and templates while mustache runs. It must
// not appear in real keys.
const DotMarker = "___"

// DefaultMaxPasses bounds fixed-point rendering of a value map
const DefaultMaxPasses = 10

func init() {
	mustache.AllowMissingVariables = false
}

func encode(s string) string {
	return strings.ReplaceAll(s, ".", DotMarker)
}

func decode(s string) string {
	return strings.ReplaceAll(s, DotMarker, ".")
}

// Renderer renders templates against one snapshot of a value map
type Renderer struct {
	values map[string]string
}

// NewRenderer copies values; later changes to the map are not seen
func NewRenderer(values map[string]string) *Renderer {
	encoded := make(map[string]string, len(values))
	for key, value := range values {
		encoded[encode(key)] = value
	}
	return &Renderer{values: encoded}
}

// Render substitutes every placeholder in tmpl
func (r *Renderer) Render(tmpl string) (string, error) {
	rendered, err := r.renderEncoded(encode(tmpl))
	if err != nil {
		return "", errors.NewTemplateKeyNotFoundError(fmt.Sprintf("template key not found for %q", tmpl), err).
			WithContext("template", tmpl)
	}
	return decode(rendered), nil
}

func (r *Renderer) renderEncoded(encodedTmpl string) (string, error) {
	if !strings.Contains(encodedTmpl, "{{") {
		return encodedTmpl, nil
	}
	return mustache.RenderRaw(encodedTmpl, true, r.values)
}

// RenderValueMap renders every value against the map itself until one full
// pass changes nothing, so chains like a = {{b}}/x, b = {{c}}/y resolve
// transitively. Cycles and chains longer than maxPasses fail.
func RenderValueMap(values map[string]string, maxPasses int) (map[string]string, error) {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	previous := make(map[string]string, len(values))
	for key, value := range values {
		previous[encode(key)] = encode(value)
	}

	keys := make([]string, 0, len(previous))
	for key := range previous {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for pass := 0; pass < maxPasses; pass++ {
		renderer := &Renderer{values: previous}
		current := make(map[string]string, len(previous))
		changed := false
		for _, key := range keys {
			rendered, err := renderer.renderEncoded(previous[key])
			if err != nil {
				return nil, errors.NewTemplateKeyNotFoundError(
					fmt.Sprintf("template key not found for %s = %q", decode(key), decode(previous[key])), err).
					WithContext("key", decode(key))
			}
			if rendered != previous[key] {
				changed = true
			}
			current[key] = rendered
		}
		if !changed {
			// a value that renders back to itself still holds a tag: a = {{a}}
			if cyclic := taggedKeys(current); len(cyclic) > 0 {
				return nil, errors.NewTemplateConvergenceError(
					fmt.Sprintf("self-referencing template values: %s", strings.Join(cyclic, ", ")), nil).
					WithContext("unresolved", cyclic)
			}
			result := make(map[string]string, len(current))
			for key, value := range current {
				result[decode(key)] = decode(value)
			}
			return result, nil
		}
		previous = current
	}

	return nil, errors.NewTemplateConvergenceError(
		fmt.Sprintf("could not substitute variable values after %d runs", maxPasses), nil).
		WithContext("unresolved", taggedKeys(previous))
}

func taggedKeys(values map[string]string) []string {
	var keys []string
	for key, value := range values {
		if !strings.Contains(value, "{{") {
			continue
		}
		tmpl, err := mustache.ParseStringRaw(value, true)
		if err != nil || len(tmpl.Tags()) > 0 {
			keys = append(keys, decode(key))
		}
	}
	sort.Strings(keys)
	return keys
}
