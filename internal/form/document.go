// Package form adapts a static HTML survey page to the selector.
//
// It groups radio inputs by name in document order, resolves their text,
// and applies decisions by moving the checked attribute.
package form

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ppiankov/surveyfill/internal/resolve"
	"github.com/ppiankov/surveyfill/internal/selector"
	"golang.org/x/net/html"
)

// Option is a radio input inside a parsed document
type Option struct {
	sel   *goquery.Selection
	name  string
	text  string
	group []*Option
}

// Text returns the resolved display text
func (o *Option) Text() string { return o.text }

// Selected reports whether the input carries the checked attribute
func (o *Option) Selected() bool {
	_, ok := o.sel.Attr("checked")
	return ok
}

// Name returns the radio group name
func (o *Option) Name() string { return o.name }

// Value returns the input's value attribute
func (o *Option) Value() string {
	return o.sel.AttrOr("value", "")
}

func (o *Option) setChecked(checked bool) {
	if checked {
		o.sel.SetAttr("checked", "checked")
	} else {
		o.sel.RemoveAttr("checked")
	}
}

// Document is a parsed HTML page
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an HTML string
func ParseString(content string) (*Document, error) {
	return Parse(strings.NewReader(content))
}

// Title returns the trimmed <title> text
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Questions groups named radio inputs into questions.
// Groups appear in the order of their first input; inputs without a name are ignored.
func (d *Document) Questions(resolver resolve.Resolver) []selector.Question {
	index := make(map[string]int)
	var questions []selector.Question
	var groups [][]*Option

	d.doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("type", ""), "radio") {
			return
		}
		name := s.AttrOr("name", "")
		if name == "" {
			return
		}

		opt := &Option{sel: s, name: name}
		if resolver != nil {
			opt.text = resolver.Resolve(s)
		}

		i, ok := index[name]
		if !ok {
			i = len(questions)
			index[name] = i
			questions = append(questions, selector.Question{ID: name})
			groups = append(groups, nil)
		}
		questions[i].Options = append(questions[i].Options, opt)
		groups[i] = append(groups[i], opt)
	})

	for _, group := range groups {
		for _, opt := range group {
			opt.group = group
		}
	}

	return questions
}

// Apply checks each changed winner and unchecks the rest of its group.
// It returns the number of questions whose state was modified.
func (d *Document) Apply(decisions []selector.Decision) int {
	applied := 0
	for _, dec := range decisions {
		if dec.Skipped || !dec.Changed {
			continue
		}
		winner, ok := dec.Option.(*Option)
		if !ok {
			continue
		}
		for _, opt := range winner.group {
			opt.setChecked(opt == winner)
		}
		applied++
	}
	return applied
}

// HTML renders the document, including any applied changes
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	for _, n := range d.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}
