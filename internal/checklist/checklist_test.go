package checklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

func titles(m map[int]string) TitleFunc {
	return func(n int) string {
		if t, ok := m[n]; ok {
			return t
		}
		return TitleUnavailable
	}
}

func TestScan(t *testing.T) {
	body := "Intro\n\n### Sub-issues\n- [ ] #11 — Story #10 – A\n- [x] #12 — Story #10 – B\n- [X] #13\n- [?] #14 — bad mark\n  - [ ] #15 — indented\nnot - [ ] #16\n"
	got := Scan(body)
	want := []types.ChecklistEntry{
		{ChildNumber: 11, Checked: false, TitleSnapshot: "Story #10 – A"},
		{ChildNumber: 12, Checked: true, TitleSnapshot: "Story #10 – B"},
		{ChildNumber: 13, Checked: true},
	}
	assert.Equal(t, want, got)
}

func TestMergeAppendsSection(t *testing.T) {
	body := "Story body text.\n\n"
	res := Merge(body, []int{11, 12}, titles(map[int]string{11: "Story #10 – A", 12: "Story #10 – B"}))

	require.True(t, res.Changed)
	assert.Equal(t, []int{11, 12}, res.Added)
	assert.Equal(t,
		"Story body text.\n\n### Sub-issues\n- [ ] #11 — Story #10 – A\n- [ ] #12 — Story #10 – B\n",
		res.Body)
}

func TestMergeEmptyBody(t *testing.T) {
	res := Merge("", []int{3}, titles(map[int]string{3: "T"}))
	assert.Equal(t, "### Sub-issues\n- [ ] #3 — T\n", res.Body)
}

func TestMergeNoOpIsByteIdentical(t *testing.T) {
	body := "x\r\n### Sub-issues\n- [x] #11 — done\n- [ ] #12 — open   "
	called := false
	res := Merge(body, []int{12, 11}, func(int) string { called = true; return "" })

	assert.False(t, res.Changed)
	assert.Empty(t, res.Added)
	assert.Equal(t, body, res.Body)
	assert.False(t, called, "title lookups only happen for added numbers")
}

func TestMergeInsertsAfterExistingEntries(t *testing.T) {
	body := "Intro\n### Sub-issues\n- [x] #11 — A\n- [ ] #12 — B\n\n## Notes\nkeep me\n"
	res := Merge(body, []int{11, 13, 13, 12, 14}, titles(map[int]string{13: "C"}))

	require.True(t, res.Changed)
	assert.Equal(t, []int{13, 14}, res.Added)
	assert.Equal(t,
		"Intro\n### Sub-issues\n- [x] #11 — A\n- [ ] #12 — B\n- [ ] #13 — C\n- [ ] #14 — (title unavailable)\n\n## Notes\nkeep me\n",
		res.Body)
}

func TestMergeSectionWithBlankLines(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "blank line after header",
			body: "Intro\n\n### Sub-issues\n\n- [ ] #11 — A\n- [x] #12 — B\n",
			want: "Intro\n\n### Sub-issues\n\n- [ ] #11 — A\n- [x] #12 — B\n- [ ] #13 — C\n",
		},
		{
			name: "blank lines between entries",
			body: "### Sub-issues\n- [ ] #11 — A\n\n- [x] #12 — B\n\nFooter text\n",
			want: "### Sub-issues\n- [ ] #11 — A\n\n- [x] #12 — B\n- [ ] #13 — C\n\nFooter text\n",
		},
		{
			name: "header without entries",
			body: "### Sub-issues\n\n## Notes\n",
			want: "### Sub-issues\n- [ ] #13 — C\n\n## Notes\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Merge(tt.body, []int{13}, titles(map[int]string{13: "C"}))
			require.True(t, res.Changed)
			assert.Equal(t, tt.want, res.Body)

			var order []int
			for _, e := range Scan(res.Body) {
				order = append(order, e.ChildNumber)
			}
			assert.Equal(t, 13, order[len(order)-1], "new entries follow existing ones")
		})
	}
}

func TestMergePreservesExistingLinesAndStates(t *testing.T) {
	body := "### SUB-ISSUES (auto)\n- [X] #5 — five\n"
	res := Merge(body, []int{6}, titles(map[int]string{6: "six"}))

	entries := Scan(res.Body)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ChecklistEntry{ChildNumber: 5, Checked: true, TitleSnapshot: "five"}, entries[0])
	assert.Equal(t, 6, entries[1].ChildNumber)
	assert.Contains(t, res.Body, "- [X] #5 — five\n")
}

func TestEnsureNotebookSection(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        string
		wantChanged bool
	}{
		{
			name:        "adds section",
			body:        "Story text\n",
			want:        "Story text\n\n### Notebook\n- [p1.ipynb](notebooks/p1.ipynb)\n",
			wantChanged: true,
		},
		{
			name:        "reuses section",
			body:        "Story\n\n### Notebook\n- [old.ipynb](notebooks/old.ipynb)\n\n### Sub-issues\n- [ ] #2 — x\n",
			want:        "Story\n\n### Notebook\n- [old.ipynb](notebooks/old.ipynb)\n- [p1.ipynb](notebooks/p1.ipynb)\n\n### Sub-issues\n- [ ] #2 — x\n",
			wantChanged: true,
		},
		{
			name:        "link already present",
			body:        "### Notebook\n- [p1.ipynb](notebooks/p1.ipynb)",
			want:        "### Notebook\n- [p1.ipynb](notebooks/p1.ipynb)",
			wantChanged: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := EnsureNotebookSection(tt.body, "### Notebook", "notebooks/p1.ipynb")
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripSectionAndEntries(t *testing.T) {
	body := "Desc\n\n### notebook\n- [a](b)\nstray\n### Sub-issues\n- [ ] #2 — x\nTail"
	stripped := StripEntries(StripSection(body, "### Notebook"))
	assert.Equal(t, "Desc\n\n### Sub-issues\nTail", stripped)
}
