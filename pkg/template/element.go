package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/core-tools/hsu-platform/pkg/errors"
)

// Kind tags how an Element is resolved
type Kind int

const (
	// Literal renders to exactly one argument (or none when empty)
	Literal Kind = iota

	// SplitAfterRender renders, then shell-word-splits into zero or more
	// arguments; used for optional argument lists such as extra JVM options
	SplitAfterRender

	// SubstituteFromProperty names a key whose active value is used as-is;
	// used for numeric timeouts configured through properties
	SubstituteFromProperty
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case SplitAfterRender:
		return "split"
	case SubstituteFromProperty:
		return "property"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Element is one templated piece of a command line or a templated number
type Element struct {
	Kind Kind
	Text string
}

func Lit(text string) Element {
	return Element{Kind: Literal, Text: text}
}

func Split(text string) Element {
	return Element{Kind: SplitAfterRender, Text: text}
}

func FromProperty(key string) Element {
	return Element{Kind: SubstituteFromProperty, Text: key}
}

// Seconds is a literal whole number of seconds
func Seconds(n int) Element {
	return Lit(strconv.Itoa(n))
}

// Lits is a convenience for commands with no split elements
func Lits(texts ...string) []Element {
	elements := make([]Element, len(texts))
	for i, text := range texts {
		elements[i] = Lit(text)
	}
	return elements
}

// RenderCommand renders a command template into an argument list. Empty
// renders are dropped.
func (r *Renderer) RenderCommand(elements []Element) ([]string, error) {
	var args []string
	for _, element := range elements {
		switch element.Kind {
		case Literal:
			rendered, err := r.Render(element.Text)
			if err != nil {
				return nil, err
			}
			if rendered != "" {
				args = append(args, rendered)
			}
		case SplitAfterRender:
			rendered, err := r.Render(element.Text)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(rendered) == "" {
				continue
			}
			words, err := shellquote.Split(rendered)
			if err != nil {
				return nil, errors.NewValidationError(fmt.Sprintf("cannot split %q", rendered), err).
					WithContext("template", element.Text)
			}
			args = append(args, words...)
		default:
			return nil, errors.NewValidationError(
				fmt.Sprintf("%s element %q cannot appear in a command", element.Kind, element.Text), nil)
		}
	}
	return args, nil
}

// ResolveInt resolves a numeric element: a Literal is rendered and parsed, a
// SubstituteFromProperty is looked up by key in the value map.
func (r *Renderer) ResolveInt(element Element) (int, error) {
	var text string
	switch element.Kind {
	case Literal:
		rendered, err := r.Render(element.Text)
		if err != nil {
			return 0, err
		}
		text = rendered
	case SubstituteFromProperty:
		value, ok := r.values[encode(element.Text)]
		if !ok {
			return 0, errors.NewTemplateKeyNotFoundError(fmt.Sprintf("property %q not found", element.Text), nil).
				WithContext("key", element.Text)
		}
		text = value
	default:
		return 0, errors.NewValidationError(
			fmt.Sprintf("%s element %q cannot be used as a number", element.Kind, element.Text), nil)
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, errors.NewValidationError(fmt.Sprintf("%q is not a whole number", text), err).
			WithContext("element", element.Text)
	}
	return n, nil
}

// Lookup returns the raw value of key
func (r *Renderer) Lookup(key string) (string, bool) {
	value, ok := r.values[encode(key)]
	return value, ok
}
