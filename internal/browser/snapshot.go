package browser

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/surveyfill/internal/selector"
)

// pageOption is a radio input as reported by the snapshot script
type pageOption struct {
	Label   string `json:"text"`
	Checked bool   `json:"checked"`
}

// Text returns the resolved option text
func (o *pageOption) Text() string { return o.Label }

// Selected reports the input's checked state at snapshot time
func (o *pageOption) Selected() bool { return o.Checked }

type pageGroup struct {
	Name    string        `json:"name"`
	Options []*pageOption `json:"options"`
}

// decodeSnapshot turns the snapshot script's result into questions
func decodeSnapshot(raw []byte) ([]selector.Question, error) {
	var groups []pageGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	questions := make([]selector.Question, 0, len(groups))
	for _, g := range groups {
		q := selector.Question{ID: g.Name}
		for _, opt := range g.Options {
			if opt != nil {
				q.Options = append(q.Options, opt)
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// choice tells the apply script which input of a group to check.
// Count guards against the group changing between snapshot and apply.
type choice struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Count int    `json:"count"`
}

// choicesFor selects the decisions that need applying
func choicesFor(decisions []selector.Decision) []choice {
	choices := make([]choice, 0, len(decisions))
	for _, d := range decisions {
		if d.Skipped || !d.Changed {
			continue
		}
		choices = append(choices, choice{
			Name:  d.QuestionID,
			Index: d.Winner,
			Count: len(d.Scores),
		})
	}
	return choices
}

// triggerState is the poll script's view of pending page triggers
type triggerState struct {
	Installed bool `json:"installed"`
	Manual    bool `json:"manual"`
	Mutation  bool `json:"mutation"`
}

func decodeJSON(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
