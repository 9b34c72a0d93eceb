package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "open", want: StateOpen},
		{in: "OPEN", want: StateOpen},
		{in: " Closed ", want: StateClosed},
		{in: "merged", wantErr: ErrInvalidState},
		{in: "", wantErr: ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeState(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexByTitleFirstWins(t *testing.T) {
	issues := []TrackerIssue{
		{Number: 1, Title: "Same"},
		{Number: 2, Title: "Same"},
		{Number: 3, Title: "Other"},
	}
	idx := IndexByTitle(issues)
	assert.Equal(t, 1, idx["Same"].Number)
	assert.Equal(t, 3, idx["Other"].Number)
	assert.Len(t, idx, 2)
}

func TestIssueFilterMatches(t *testing.T) {
	open := TrackerIssue{State: StateOpen}
	closed := TrackerIssue{State: StateClosed}

	assert.True(t, IssueFilter{}.Matches(open))
	assert.True(t, IssueFilter{State: FilterAll}.Matches(closed))
	assert.True(t, IssueFilter{State: FilterClosed}.Matches(closed))
	assert.False(t, IssueFilter{State: FilterClosed}.Matches(open))
}

func TestProgressString(t *testing.T) {
	assert.Equal(t, "(3/7 • 43%)", Progress{Closed: 3, Total: 7, Percent: 43}.String())
	assert.Equal(t, "(0/0 • 0%)", Progress{}.String())
}

func TestChildDescriptorValidate(t *testing.T) {
	assert.NoError(t, ChildDescriptor{Title: "A"}.Validate())
	assert.ErrorIs(t, ChildDescriptor{Title: "   "}.Validate(), ErrInvalidTitle)
	assert.Equal(t, ChildDescriptor{Title: "A", Description: "d"},
		ChildDescriptor{Title: " A ", Description: " d\n"}.Normalize())
}
