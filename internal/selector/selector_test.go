package selector

import (
	"sync"
	"testing"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOption struct {
	text     string
	selected bool
}

func (o *fakeOption) Text() string   { return o.text }
func (o *fakeOption) Selected() bool { return o.selected }

func question(id string, texts ...string) Question {
	q := Question{ID: id}
	for _, t := range texts {
		q.Options = append(q.Options, &fakeOption{text: t})
	}
	return q
}

func winnerText(d Decision) string {
	if d.Option == nil {
		return ""
	}
	return d.Option.Text()
}

func TestDecide_Examples(t *testing.T) {
	tests := []struct {
		name     string
		options  []string
		winner   string
		score    int
		fallback bool
	}{
		{
			name:    "satisfaction scale",
			options: []string{"Very Satisfied", "Satisfied", "Dissatisfied", "Very Dissatisfied"},
			winner:  "Very Satisfied",
			score:   100 + 90 + 5,
		},
		{
			name:    "yes no",
			options: []string{"Yes", "No"},
			winner:  "Yes",
			score:   80,
		},
		{
			name:    "indonesian agreement",
			options: []string{"Tidak Setuju", "Setuju", "Sangat Setuju"},
			winner:  "Sangat Setuju",
			score:   100 + 90 + 5,
		},
		{
			name:    "no keywords ties on first",
			options: []string{"Maybe", "Unclear"},
			winner:  "Maybe",
			score:   0,
		},
		{
			name:     "all negative falls back to first",
			options:  []string{"No", "Never"},
			winner:   "No",
			score:    Disqualified,
			fallback: true,
		},
	}

	s := New(DefaultRules(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := s.Decide(question("q1", tt.options...))
			require.False(t, d.Skipped)
			assert.Equal(t, tt.winner, winnerText(d))
			assert.Equal(t, tt.score, d.Score.Value)
			assert.Equal(t, tt.fallback, d.Fallback)
			assert.True(t, d.Changed)
			assert.Len(t, d.Scores, len(tt.options))
		})
	}
}

func TestDecide_DisqualifiesNegativeVariants(t *testing.T) {
	s := New(DefaultRules(), nil)
	d := s.Decide(question("q", "Very Satisfied", "Satisfied", "Dissatisfied", "Very Dissatisfied"))

	assert.Equal(t, 90, d.Scores[1].Value)
	assert.True(t, d.Scores[2].IsDisqualified())
	assert.True(t, d.Scores[3].IsDisqualified())
	assert.False(t, d.Scores[3].Bonus, "vetoed options never receive the intensity bonus")
}

func TestDecide_EmptyQuestionIsSkipped(t *testing.T) {
	s := New(nil, nil)
	d := s.Decide(Question{ID: "empty"})

	assert.True(t, d.Skipped)
	assert.Equal(t, -1, d.Winner)
	assert.Nil(t, d.Option)
	assert.False(t, d.Changed)
}

func TestDecide_EmptyTextIsEligible(t *testing.T) {
	s := New(DefaultRules(), nil)

	d := s.Decide(question("q", "No", "", "Tidak"))
	assert.Equal(t, 1, d.Winner, "empty text scores 0 and beats disqualified options")
	assert.False(t, d.Fallback)

	d = s.Decide(question("q", "   "))
	assert.Equal(t, 0, d.Winner)
	assert.Equal(t, 0, d.Score.Value)
	assert.False(t, d.Fallback)
}

func TestDecide_TieKeepsFirst(t *testing.T) {
	s := New(DefaultRules(), nil)
	d := s.Decide(question("q", "Agree", "Setuju"))

	assert.Equal(t, 0, d.Winner)
	assert.Equal(t, 90, d.Scores[0].Value)
	assert.Equal(t, 90, d.Scores[1].Value)
}

func TestDecide_Idempotent(t *testing.T) {
	s := New(DefaultRules(), nil)
	q := question("q", "No", "Yes")

	first := s.Decide(q)
	require.True(t, first.Changed)
	require.Equal(t, 1, first.Winner)

	// Host applies the decision
	q.Options[1].(*fakeOption).selected = true

	second := s.Decide(q)
	assert.Equal(t, 1, second.Winner)
	assert.False(t, second.Changed)
}

func TestDecide_FallbackAlreadySelectedIsUnchanged(t *testing.T) {
	s := New(DefaultRules(), nil)
	q := question("q", "No", "Never")
	q.Options[0].(*fakeOption).selected = true

	d := s.Decide(q)
	assert.True(t, d.Fallback)
	assert.False(t, d.Changed)
}

func TestDecide_ExactlyOneWinner(t *testing.T) {
	s := New(DefaultRules(), nil)
	inputs := [][]string{
		{"a"},
		{"No"},
		{"", ""},
		{"Yes", "Yes", "Yes"},
		{"Sangat Tidak Setuju", "Tidak Setuju", "Netral", "Setuju", "Sangat Setuju"},
	}
	for _, opts := range inputs {
		d := s.Decide(question("q", opts...))
		require.False(t, d.Skipped)
		assert.GreaterOrEqual(t, d.Winner, 0)
		assert.Less(t, d.Winner, len(opts))
		assert.Equal(t, opts[d.Winner], d.Option.Text())
	}
}

func TestDecideAll_Summary(t *testing.T) {
	s := New(DefaultRules(), nil)

	selectedYes := question("q3", "No", "Yes")
	selectedYes.Options[1].(*fakeOption).selected = true

	decisions, summary := s.DecideAll([]Question{
		question("q1", "Yes", "No"),
		{ID: "q2"},
		selectedYes,
		question("q4", "No", "Never"),
	})

	require.Len(t, decisions, 4)
	assert.Equal(t, model.Summary{Total: 3, Changed: 2, Skipped: 1, Fallbacks: 1}, summary)
}

func TestDecideAll_NoQuestions(t *testing.T) {
	s := New(DefaultRules(), nil)
	decisions, summary := s.DecideAll(nil)

	assert.Empty(t, decisions)
	assert.Equal(t, model.Summary{}, summary)
}

func TestRuleset_Additive(t *testing.T) {
	rules := DefaultRules()

	very := rules.Score("very satisfied")
	plain := rules.Score("satisfied")

	assert.Greater(t, very.Value, plain.Value)
	assert.Equal(t, []string{"very satisfied", "satisfied"}, very.Matched)
	assert.True(t, very.Bonus)
}

func TestRuleset_VetoOverridesPositive(t *testing.T) {
	rules, err := NewRuleset(
		[]model.KeywordRule{{Pattern: "good", Weight: 5000}},
		[]string{"not"},
		nil, 0,
	)
	require.NoError(t, err)

	s := rules.Score("Not good at all")
	assert.Equal(t, Disqualified, s.Value)
	assert.Equal(t, []string{"good"}, s.Matched)
	assert.Equal(t, []string{"not"}, s.Vetoed)
}

func TestRuleset_NormalizesText(t *testing.T) {
	rules := DefaultRules()

	assert.Equal(t, 80, rules.Score("  YES \n").Value)
	assert.Equal(t, "sangat setuju", Normalize("\tSANGAT Setuju  "))
}

func TestRuleset_BonusRequiresPositiveScore(t *testing.T) {
	rules := DefaultRules()

	s := rules.Score("very")
	assert.Equal(t, 0, s.Value)
	assert.False(t, s.Bonus)
}

func TestRuleset_DuplicatePatternsSumWeights(t *testing.T) {
	rules, err := NewRuleset(
		[]model.KeywordRule{{Pattern: "ok", Weight: 10}, {Pattern: "OK", Weight: 5}},
		nil, nil, 0,
	)
	require.NoError(t, err)

	assert.Equal(t, 15, rules.Score("ok").Value)
}

func TestNewRuleset_Validation(t *testing.T) {
	tests := []struct {
		name      string
		positive  []model.KeywordRule
		negative  []string
		intensity []string
		bonus     int
	}{
		{name: "zero weight", positive: []model.KeywordRule{{Pattern: "yes", Weight: 0}}},
		{name: "negative weight", positive: []model.KeywordRule{{Pattern: "yes", Weight: -1}}},
		{name: "empty positive pattern", positive: []model.KeywordRule{{Pattern: "  ", Weight: 1}}},
		{name: "empty negative pattern", negative: []string{""}},
		{name: "empty intensity marker", intensity: []string{" "}},
		{name: "negative bonus", bonus: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleset(tt.positive, tt.negative, tt.intensity, tt.bonus)
			assert.Error(t, err)
		})
	}
}

func TestNewRuleset_NoRules(t *testing.T) {
	rules, err := NewRuleset(nil, nil, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, Score{}, rules.Score("anything"))
}

func TestRuleset_ConcurrentScoring(t *testing.T) {
	rules := DefaultRules()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := rules.Score("Very Satisfied").Value; got != 195 {
					t.Errorf("expected 195, got %d", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
