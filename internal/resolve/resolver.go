// Package resolve locates the display text of a radio input in static HTML.
//
// Survey pages put option labels in many places: a sibling element with an
// answer class, the surrounding list item or table cell, or a <label for>.
// Each lookup is a Resolver; a Chain tries them in order.
package resolve

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolver finds the display text for an input element
type Resolver interface {
	// Name returns the strategy name used in configuration
	Name() string

	// Resolve returns the option text, or "" when the strategy does not apply
	Resolve(input *goquery.Selection) string
}

// AnswerListResolver reads the answer element inside the input's list item
type AnswerListResolver struct {
	AnswerClass string
}

// Name returns the strategy name
func (r *AnswerListResolver) Name() string { return "answer-list" }

// Resolve looks for li > .answer-class around the input
func (r *AnswerListResolver) Resolve(input *goquery.Selection) string {
	li := input.Closest("li")
	if li.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(li.Find("." + r.AnswerClass).First().Text())
}

// SiblingResolver reads the element following the input's parent, when it
// carries the answer class
type SiblingResolver struct {
	AnswerClass string
}

// Name returns the strategy name
func (r *SiblingResolver) Name() string { return "sibling" }

// Resolve checks the parent's next element sibling
func (r *SiblingResolver) Resolve(input *goquery.Selection) string {
	next := input.Parent().Next()
	if next.Length() == 0 || !next.HasClass(r.AnswerClass) {
		return ""
	}
	return strings.TrimSpace(next.Text())
}

// ContainerResolver reads all text of the nearest li, div or td
type ContainerResolver struct{}

// Name returns the strategy name
func (r *ContainerResolver) Name() string { return "container" }

// Resolve collapses whitespace in the container text
func (r *ContainerResolver) Resolve(input *goquery.Selection) string {
	container := input.Closest("li, div, td")
	if container.Length() == 0 {
		return ""
	}
	return collapseSpace(container.Text())
}

// LabelForResolver reads the <label for="id"> pointing at the input
type LabelForResolver struct{}

// Name returns the strategy name
func (r *LabelForResolver) Name() string { return "label-for" }

// Resolve finds the label by the input's id anywhere in the document
func (r *LabelForResolver) Resolve(input *goquery.Selection) string {
	id, ok := input.Attr("id")
	if !ok || id == "" {
		return ""
	}

	root := documentRoot(input)
	var text string
	root.Find("label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if forID, _ := label.Attr("for"); forID == id {
			text = strings.TrimSpace(label.Text())
			return false
		}
		return true
	})
	return text
}

// Chain tries resolvers in order and returns the first non-empty text
type Chain []Resolver

// Name lists the chained strategies
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.Name()
	}
	return strings.Join(names, ",")
}

// Resolve returns the first non-empty resolution
func (c Chain) Resolve(input *goquery.Selection) string {
	for _, r := range c {
		if text := r.Resolve(input); text != "" {
			return text
		}
	}
	return ""
}

// Registry maps strategy names to resolvers
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry creates a registry holding the built-in strategies
func NewRegistry(answerClass string) *Registry {
	if answerClass == "" {
		answerClass = "answerlist1"
	}

	registry := &Registry{resolvers: make(map[string]Resolver)}
	registry.Register(&AnswerListResolver{AnswerClass: answerClass})
	registry.Register(&SiblingResolver{AnswerClass: answerClass})
	registry.Register(&ContainerResolver{})
	registry.Register(&LabelForResolver{})
	return registry
}

// Register adds or replaces a resolver under its name
func (r *Registry) Register(resolver Resolver) {
	r.resolvers[resolver.Name()] = resolver
}

// Chain builds a chain from strategy names, in the given order
func (r *Registry) Chain(names []string) (Resolver, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no resolve strategies configured")
	}

	chain := make(Chain, 0, len(names))
	for _, name := range names {
		resolver, ok := r.resolvers[name]
		if !ok {
			return nil, fmt.Errorf("unknown resolve strategy: %s", name)
		}
		chain = append(chain, resolver)
	}
	return chain, nil
}

// documentRoot walks up to the topmost ancestor of a selection
func documentRoot(s *goquery.Selection) *goquery.Selection {
	if parents := s.Parents(); parents.Length() > 0 {
		return parents.Last()
	}
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
