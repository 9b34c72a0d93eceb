package titlekey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		parent   int
		raw      string
		template string
		want     string
	}{
		{
			name:   "default template",
			parent: 10, raw: "A",
			want: "Story #10 – A",
		},
		{
			name:   "trims raw title",
			parent: 10, raw: "  Build parser \n",
			want: "Story #10 – Build parser",
		},
		{
			name:   "already prefixed input is not double prefixed",
			parent: 10, raw: "Story #10 – A",
			want: "Story #10 – A",
		},
		{
			name:   "prefix of another parent is not recognized",
			parent: 10, raw: "Story #11 – A",
			want: "Story #10 – Story #11 – A",
		},
		{
			name:   "custom template",
			parent: 7, raw: "Write docs", template: "[{parent}] {title} (auto)",
			want: "[7] Write docs (auto)",
		},
		{
			name:   "custom template idempotent",
			parent: 7, raw: "[7] Write docs (auto)", template: "[{parent}] {title} (auto)",
			want: "[7] Write docs (auto)",
		},
		{
			name:   "template without title placeholder appends",
			parent: 3, raw: "X", template: "Task {parent}: ",
			want: "Task 3: X",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.parent, tt.raw, tt.template)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Derive(tt.parent, got, tt.template), "derive must be idempotent")
		})
	}
}

func TestParentOf(t *testing.T) {
	tests := []struct {
		body   string
		want   int
		wantOK bool
	}{
		{body: "Derived from parent Story #10: X\nPARENT-STORY: #10\n\ndesc\n", want: 10, wantOK: true},
		{body: "PARENT-STORY: #4", want: 4, wantOK: true},
		{body: "see PARENT-STORY: #4 inline", wantOK: false},
		{body: "", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParentOf(tt.body)
		assert.Equal(t, tt.wantOK, ok, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
}

func TestIsChildOf(t *testing.T) {
	byMarker := types.TrackerIssue{Title: "Renamed", Body: "PARENT-STORY: #10\n"}
	byTitle := types.TrackerIssue{Title: "Story #10 – A"}
	other := types.TrackerIssue{Title: "Story #100 – A", Body: "PARENT-STORY: #100\n"}

	assert.True(t, IsChildOf(byMarker, 10, ""))
	assert.True(t, IsChildOf(byTitle, 10, ""))
	assert.False(t, IsChildOf(other, 10, ""))
}

func TestMatcherGenerated(t *testing.T) {
	m := NewMatcher("")
	assert.True(t, m.Generated(types.TrackerIssue{Title: "Story #3 – Thing"}))
	assert.True(t, m.Generated(types.TrackerIssue{Title: "x", Body: "PARENT-STORY: #3"}))
	assert.False(t, m.Generated(types.TrackerIssue{Title: "Story: Thing"}))
	assert.False(t, m.Generated(types.TrackerIssue{Title: "Story #three – Thing"}))
}

func TestChildBody(t *testing.T) {
	assert.Equal(t,
		"Derived from parent Story #10: Story: X\nPARENT-STORY: #10\n\nDo A.\n",
		ChildBody(10, "Story: X", "  Do A.  "))
	assert.Equal(t,
		"Derived from parent Story #10: Story: X\nPARENT-STORY: #10\n\n(no description provided)\n",
		ChildBody(10, "Story: X", ""))
}
