package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`[
		{"name": "q1", "options": [{"text": "Tidak Puas", "checked": true}, {"text": "Sangat Puas", "checked": false}]},
		{"name": "q2", "options": []},
		{"name": "q3", "options": [{"text": "", "checked": false}]}
	]`)

	questions, err := decodeSnapshot(raw)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	assert.Equal(t, "q1", questions[0].ID)
	require.Len(t, questions[0].Options, 2)
	assert.Equal(t, "Tidak Puas", questions[0].Options[0].Text())
	assert.True(t, questions[0].Options[0].Selected())
	assert.False(t, questions[0].Options[1].Selected())
	assert.Empty(t, questions[1].Options)

	decisions, summary := selector.New(nil, nil).DecideAll(questions)
	assert.Equal(t, 1, decisions[0].Winner)
	assert.Equal(t, model.Summary{Total: 2, Changed: 2, Skipped: 1}, summary)
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	_, err := decodeSnapshot([]byte(`{"not": "a list"}`))
	assert.Error(t, err)
}

func TestChoicesFor(t *testing.T) {
	questions := []selector.Question{
		{ID: "q1", Options: []selector.Option{&pageOption{Label: "No"}, &pageOption{Label: "Yes"}}},
		{ID: "q2", Options: []selector.Option{&pageOption{Label: "Yes", Checked: true}, &pageOption{Label: "No"}}},
		{ID: "q3"},
		{ID: "q4", Options: []selector.Option{&pageOption{Label: "No"}, &pageOption{Label: "Never"}, &pageOption{Label: "Tidak"}}},
	}
	decisions, _ := selector.New(nil, nil).DecideAll(questions)

	assert.Equal(t, []choice{
		{Name: "q1", Index: 1, Count: 2},
		{Name: "q4", Index: 0, Count: 3},
	}, choicesFor(decisions))
}

func TestConfigFromModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Browser.DebuggerURL = "ws://127.0.0.1:9222/devtools/browser/abc"

	bc := ConfigFromModel(cfg)
	assert.Equal(t, 1500*time.Millisecond, bc.InitialDelay)
	assert.Equal(t, 500*time.Millisecond, bc.Debounce)
	assert.Equal(t, 5*time.Second, bc.BannerDuration)
	assert.True(t, bc.ManualButton)
	assert.Equal(t, "answerlist1", bc.AnswerClass)
	assert.Equal(t, cfg.Browser.DebuggerURL, bc.DebuggerURL)

	bc.Strategies[0] = "changed"
	assert.Equal(t, "answer-list", cfg.Resolve.Strategies[0], "strategies are copied")
}

func TestEmbeddedScripts(t *testing.T) {
	scripts := map[string]string{
		"snapshot": snapshotJS,
		"apply":    applyJS,
		"banner":   bannerJS,
		"triggers": triggersJS,
		"poll":     pollJS,
	}
	for name, js := range scripts {
		trimmed := strings.TrimSpace(js)
		assert.NotEmpty(t, trimmed, name)
		assert.True(t, strings.HasPrefix(trimmed, "("), "%s must be a function expression", name)
	}

	for _, strategy := range model.DefaultConfig().Resolve.Strategies {
		assert.Contains(t, snapshotJS, "'"+strategy+"'")
	}
	for _, event := range []string{"change", "click", "input", "focus", "blur"} {
		assert.Contains(t, applyJS, "'"+event+"'")
	}
}

func TestSession_NoPage(t *testing.T) {
	s := NewSession(DefaultConfig(), nil, nil)

	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoPage)

	n, err := s.Apply(context.Background(), nil)
	assert.NoError(t, err, "nothing to apply needs no page")
	assert.Zero(t, n)

	assert.NoError(t, s.Close())
}
