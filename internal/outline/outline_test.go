package outline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

const repoURL = "https://github.com/acme/widgets/issues/"

// sampleOutline is a small outline with one plain node, one linked and
// annotated node, and one single-line node.
func sampleOutline() string {
	return strings.Join([]string{
		"# Plan",
		"",
		"```mermaid",
		"flowchart TD",
		`    P1A["- [ ] Ontology Loading  `,
		`        [[notebooks/ontology.ipynb]]"]`,
		`    P1B["- [ ] [Query Layer](` + repoURL + `2) (1/4 • 25%)  `,
		`        [[notebooks/query.ipynb]]"]`,
		`    P1C["- [x] Unknown Task"]`,
		"    P1A --> P1B",
		"```",
		"",
		"Notes after the diagram.",
		"",
	}, "\n")
}

func sampleIssues() []types.TrackerIssue {
	return []types.TrackerIssue{
		{Number: 1, Title: "Ontology Loading", State: types.StateClosed, URL: repoURL + "1"},
		{Number: 2, Title: "Query Layer", State: types.StateOpen, URL: repoURL + "2"},
	}
}

func TestParse(t *testing.T) {
	text := sampleOutline()
	doc := Parse(text)
	require.Len(t, doc.Nodes, 3)

	a, b, c := doc.Nodes[0].TaskNode, doc.Nodes[1].TaskNode, doc.Nodes[2].TaskNode

	assert.Equal(t, "P1A", a.NodeID)
	assert.Equal(t, "Ontology Loading", a.Title)
	assert.False(t, a.Checked)
	assert.False(t, a.Linked())
	assert.Equal(t, "notebooks/ontology.ipynb", a.NotebookPath)

	assert.Equal(t, "Query Layer", b.Title)
	assert.Equal(t, 2, b.LinkedTrackerNumber)
	assert.Equal(t, repoURL+"2", b.TrackerURL)
	require.NotNil(t, b.ProgressAnnotation)
	assert.Equal(t, types.Progress{Closed: 1, Total: 4, Percent: 25}, *b.ProgressAnnotation)

	assert.Equal(t, "Unknown Task", c.Title)
	assert.True(t, c.Checked)
	assert.Empty(t, c.NotebookPath)

	assert.Equal(t, text, doc.String(), "parsing alone must not change the text")
}

func TestParseToleratesJunk(t *testing.T) {
	text := "```mermaid\nP1[\"- [ ] \nnot a node\n  X[\"- [?] bad\"]\n```"
	doc := Parse(text)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "", doc.Nodes[0].Title)
	assert.Equal(t, text, doc.String())
}

func TestParseWithoutFenceScansWholeText(t *testing.T) {
	doc := Parse(`P9["- [ ] Loose node"]`)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "Loose node", doc.Nodes[0].Title)
}

func TestLinkerLinksAndInjectsDirectives(t *testing.T) {
	l := NewLinker(zaptest.NewLogger(t))
	res := l.Link(sampleOutline(), sampleIssues())

	require.True(t, res.Changed)
	assert.Equal(t, 1, res.Linked)
	assert.Equal(t, []string{"Unknown Task"}, res.Unresolved)
	assert.True(t, res.DirectivesChanged)

	want := strings.Join([]string{
		"# Plan",
		"",
		"```mermaid",
		"flowchart TD",
		`    P1A["- [x] [Ontology Loading](` + repoURL + `1)  `,
		`        [[notebooks/ontology.ipynb]]"]`,
		`    P1B["- [ ] [Query Layer](` + repoURL + `2) (1/4 • 25%)  `,
		`        [[notebooks/query.ipynb]]"]`,
		`    P1C["- [x] Unknown Task"]`,
		"    P1A --> P1B",
		"",
		`    click P1A "` + repoURL + `1" "Ontology Loading"`,
		`    click P1B "` + repoURL + `2" "Query Layer"`,
		"```",
		"",
		"Notes after the diagram.",
		"",
	}, "\n")
	assert.Equal(t, want, res.Text)

	again := l.Link(res.Text, sampleIssues())
	assert.False(t, again.Changed, "second pass must be a no-op")
	assert.Equal(t, res.Text, again.Text)
}

func TestLinkerNoMatchesLeavesTextUntouched(t *testing.T) {
	text := "```mermaid\n    P1[\"- [ ] Lonely  \n```\n"
	res := NewLinker(nil).Link(text, sampleIssues())
	assert.False(t, res.Changed)
	assert.Equal(t, text, res.Text)
}

func TestLinkerRefreshesMarksOfLinkedNodes(t *testing.T) {
	text := "```mermaid\n    P1[\"- [x] [Query Layer](" + repoURL + "2)  \n    click P1 \"" + repoURL + "2\" \"Query Layer\"\n```\n"
	res := NewLinker(nil).Link(text, sampleIssues())

	require.True(t, res.Changed)
	assert.Equal(t, 1, res.MarksChanged)
	assert.Equal(t, 0, res.Linked)
	assert.Contains(t, res.Text, `P1["- [ ] [Query Layer]`)
	assert.Equal(t, 1, strings.Count(res.Text, "click P1 "))
}

func TestLinkerReplacesStaleDirectives(t *testing.T) {
	text := strings.Join([]string{
		"```mermaid",
		`    click OLD "https://example.com" "gone"`,
		`    P2["- [ ] Query Layer"]`,
		"```",
	}, "\n")
	res := NewLinker(nil).Link(text, sampleIssues())
	want := strings.Join([]string{
		"```mermaid",
		`    P2["- [ ] [Query Layer](` + repoURL + `2)"]`,
		"",
		`    click P2 "` + repoURL + `2" "Query Layer"`,
		"```",
	}, "\n")
	assert.Equal(t, want, res.Text)
}

func TestDirectiveEscapesQuotes(t *testing.T) {
	got := Directive("P1", types.NodeLink{Title: `Say "hi"`, TrackerURL: "u"})
	assert.Equal(t, `    click P1 "u" "Say 'hi'"`, got)
}

func TestComputeProgress(t *testing.T) {
	children := map[int]types.TrackerIssue{}
	for n := 11; n <= 24; n++ {
		state := types.StateOpen
		if n <= 13 || n >= 21 {
			state = types.StateClosed
		}
		children[n] = types.TrackerIssue{Number: n, State: state}
	}
	body := func(nums ...int) string {
		var b strings.Builder
		b.WriteString("### Sub-issues\n")
		for _, n := range nums {
			fmt.Fprintf(&b, "- [ ] #%d\n", n)
		}
		return b.String()
	}

	tests := []struct {
		name string
		body string
		want types.Progress
	}{
		{name: "three of seven", body: body(11, 12, 13, 14, 15, 16, 17), want: types.Progress{Closed: 3, Total: 7, Percent: 43}},
		{name: "no children", body: "just text", want: types.Progress{}},
		{name: "one of three", body: body(11, 14, 15), want: types.Progress{Closed: 1, Total: 3, Percent: 33}},
		{name: "two of three", body: body(11, 12, 15), want: types.Progress{Closed: 2, Total: 3, Percent: 67}},
		{name: "half rounds to even down", body: body(11, 14, 15, 16, 17, 18, 19, 20), want: types.Progress{Closed: 1, Total: 8, Percent: 12}},
		{name: "half rounds to even up", body: body(11, 12, 13, 14, 15, 16, 17, 18), want: types.Progress{Closed: 3, Total: 8, Percent: 38}},
		{name: "five of eight", body: body(11, 12, 13, 21, 22, 14, 15, 16), want: types.Progress{Closed: 5, Total: 8, Percent: 62}},
		{name: "missing child counts as open", body: body(11, 99), want: types.Progress{Closed: 1, Total: 2, Percent: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(types.TrackerIssue{Body: tt.body}, MapLookup(children))
			assert.Equal(t, tt.want, got)
		})
	}
}

func progressIssues(parentBody string) map[int]types.TrackerIssue {
	m := map[int]types.TrackerIssue{
		1: {Number: 1, Title: "Ontology Loading", State: types.StateOpen, Body: ""},
		2: {Number: 2, Title: "Query Layer", State: types.StateOpen, Body: parentBody},
	}
	for n := 11; n <= 17; n++ {
		state := types.StateOpen
		if n <= 13 {
			state = types.StateClosed
		}
		m[n] = types.TrackerIssue{Number: n, State: state}
	}
	return m
}

const sevenChildren = "### Sub-issues\n- [x] #11\n- [x] #12\n- [x] #13\n- [ ] #14\n- [ ] #15\n- [ ] #16\n- [ ] #17\n"

func TestAnnotatorReplacesAnnotation(t *testing.T) {
	linked := NewLinker(nil).Link(sampleOutline(), sampleIssues()).Text
	issues := progressIssues(sevenChildren)

	res := NewAnnotator(false, zaptest.NewLogger(t)).Annotate(linked, MapLookup(issues))
	require.True(t, res.Changed)
	assert.Contains(t, res.Text, `    P1B["- [ ] [Query Layer](`+repoURL+`2) (3/7 • 43%)  `+"\n")
	assert.Contains(t, res.Text, `    P1A["- [x] [Ontology Loading](`+repoURL+`1)  `+"\n", "0/0 without show-zero adds nothing")
	assert.NotContains(t, res.Text, "(1/4 • 25%)")

	again := NewAnnotator(false, nil).Annotate(res.Text, MapLookup(issues))
	assert.False(t, again.Changed)
	assert.Equal(t, res.Text, again.Text)
}

func TestAnnotatorShowZero(t *testing.T) {
	linked := NewLinker(nil).Link(sampleOutline(), sampleIssues()).Text
	res := NewAnnotator(true, nil).Annotate(linked, MapLookup(progressIssues(sevenChildren)))
	assert.Contains(t, res.Text, `(`+repoURL+`1) (0/0 • 0%)  `+"\n")
}

func TestAnnotatorStripsStaleAnnotation(t *testing.T) {
	res := NewAnnotator(false, nil).Annotate(sampleOutline(), MapLookup(progressIssues("")))
	require.True(t, res.Changed)
	assert.Equal(t, 1, res.Stripped)
	assert.Contains(t, res.Text, `    P1B["- [ ] [Query Layer](`+repoURL+`2)  `+"\n")
}

func TestAnnotatorSkipsUnknownIssues(t *testing.T) {
	text := sampleOutline()
	res := NewAnnotator(true, nil).Annotate(text, MapLookup(nil))
	assert.False(t, res.Changed)
	assert.Equal(t, text, res.Text)
}
