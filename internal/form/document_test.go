package form

import (
	"os"
	"testing"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/resolve"
	"github.com/ppiankov/surveyfill/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultResolver(t *testing.T) resolve.Resolver {
	t.Helper()
	r, err := resolve.NewRegistry("answerlist1").Chain(model.DefaultConfig().Resolve.Strategies)
	require.NoError(t, err)
	return r
}

func loadFixture(t *testing.T) *Document {
	t.Helper()
	f, err := os.Open("testdata/igracias.html")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	doc, err := Parse(f)
	require.NoError(t, err)
	return doc
}

func texts(q selector.Question) []string {
	out := make([]string, len(q.Options))
	for i, o := range q.Options {
		out[i] = o.Text()
	}
	return out
}

// checked maps each radio group to the value of its checked input
func checked(doc *Document) map[string]string {
	out := make(map[string]string)
	for _, q := range doc.Questions(nil) {
		for _, o := range q.Options {
			if o.Selected() {
				out[q.ID] = o.(*Option).Value()
			}
		}
	}
	return out
}

func TestDocument_Questions(t *testing.T) {
	doc := loadFixture(t)
	questions := doc.Questions(defaultResolver(t))

	require.Len(t, questions, 4)
	assert.Equal(t, "q1", questions[0].ID)
	assert.Equal(t, []string{"Sangat Tidak Puas", "Tidak Puas", "Puas", "Sangat Puas"}, texts(questions[0]))
	assert.Equal(t, []string{"Ya", "Tidak"}, texts(questions[1]))
	assert.Equal(t, []string{"No", "Never"}, texts(questions[2]))
	assert.Equal(t, []string{"Very Satisfied", "Satisfied"}, texts(questions[3]))
}

func TestDocument_Title(t *testing.T) {
	assert.Equal(t, "Kuesioner Layanan Akademik", loadFixture(t).Title())
}

func TestDocument_SelectedFlags(t *testing.T) {
	doc := loadFixture(t)
	assert.Equal(t, map[string]string{"q2": "n", "q4": "b"}, checked(doc))
}

func TestDocument_ApplyAndRender(t *testing.T) {
	doc := loadFixture(t)
	sel := selector.New(selector.DefaultRules(), nil)

	decisions, summary := sel.DecideAll(doc.Questions(defaultResolver(t)))
	assert.Equal(t, model.Summary{Total: 4, Changed: 4, Fallbacks: 1}, summary)

	applied := doc.Apply(decisions)
	assert.Equal(t, 4, applied)
	assert.Equal(t, map[string]string{"q1": "4", "q2": "y", "q3": "no", "q4": "a"}, checked(doc))

	out, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Kuesioner Layanan Akademik</title>")

	// A second run over the rendered page changes nothing
	again, err := ParseString(out)
	require.NoError(t, err)
	decisions, summary = sel.DecideAll(again.Questions(defaultResolver(t)))
	assert.Equal(t, 0, summary.Changed)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 0, again.Apply(decisions))
}

func TestDocument_ApplyIgnoresForeignOptions(t *testing.T) {
	doc := loadFixture(t)

	applied := doc.Apply([]selector.Decision{
		{QuestionID: "x", Winner: 0, Option: foreign{}, Changed: true},
		{QuestionID: "y", Winner: -1, Skipped: true},
	})
	assert.Equal(t, 0, applied)
}

func TestDocument_NoRadios(t *testing.T) {
	doc, err := ParseString(`<html><body><p>Nothing to answer</p></body></html>`)
	require.NoError(t, err)

	assert.Empty(t, doc.Questions(defaultResolver(t)))
}

type foreign struct{}

func (foreign) Text() string   { return "" }
func (foreign) Selected() bool { return false }
