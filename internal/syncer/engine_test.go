package syncer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/storysync/internal/decompose"
	"github.com/mesh-intelligence/storysync/internal/tracker"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// fixedDecomposer returns the same descriptors for every parent and counts
// calls.
type fixedDecomposer struct {
	descs []types.ChildDescriptor
	err   error
	calls int
}

func (f *fixedDecomposer) Decompose(ctx context.Context, title, body string) ([]types.ChildDescriptor, error) {
	f.calls++
	return f.descs, f.err
}

func abDescriptors() []types.ChildDescriptor {
	return []types.ChildDescriptor{
		{Title: "A", Description: "first task"},
		{Title: "B"},
	}
}

func storyTracker() *tracker.Memory {
	mem := tracker.NewMemory("project-1")
	for n := 1; n < 10; n++ {
		mem.Seed(types.TrackerIssue{Number: n, Title: "filler"})
	}
	mem.SeedInGroup(types.TrackerIssue{Number: 10, Title: "Story: X", Body: "As a user I want X."})
	return mem
}

func TestFanOutScenario(t *testing.T) {
	ctx := context.Background()
	mem := storyTracker()
	dec := &fixedDecomposer{descs: abDescriptors()}
	eng := NewEngine(mem, dec, Config{}, zaptest.NewLogger(t))

	report, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)
	require.Len(t, report.Parents, 1)
	pr := report.Parents[0]
	assert.Equal(t, []Phase{PhaseDecomposed, PhaseChildrenCreated, PhaseChecklistUpdated, PhaseDone}, pr.Trail)
	assert.Equal(t, 2, pr.Count(ItemCreated))
	assert.Equal(t, []int{11, 12}, pr.ChecklistAdded)
	assert.False(t, report.Failed())

	a, err := mem.GetIssue(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "Story #10 – A", a.Title)
	assert.Equal(t, "Derived from parent Story #10: Story: X\nPARENT-STORY: #10\n\nfirst task\n", a.Body)

	b, err := mem.GetIssue(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "Story #10 – B", b.Title)
	assert.Contains(t, b.Body, "PARENT-STORY: #10\n\n(no description provided)\n")
	assert.Equal(t, 1, strings.Count(b.Body, "PARENT-STORY:"))

	parent, err := mem.GetIssue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t,
		"As a user I want X.\n\n### Sub-issues\n- [ ] #11 — Story #10 – A\n- [ ] #12 — Story #10 – B\n",
		parent.Body)

	grouped, err := mem.ListIssues(ctx, types.IssueFilter{InGroup: true})
	require.NoError(t, err)
	assert.Len(t, grouped, 3)

	writes := mem.Writes()
	assert.Equal(t, 5, writes, "two creates, two group adds, one body update")

	again, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)
	assert.Equal(t, writes, mem.Writes(), "second run writes nothing")
	assert.Equal(t, 2, again.Parents[0].Count(ItemExists))
	assert.Empty(t, again.Parents[0].ChecklistAdded)
}

func TestDiscoveryExcludesGeneratedChildren(t *testing.T) {
	ctx := context.Background()
	mem := storyTracker()
	dec := &fixedDecomposer{descs: abDescriptors()}
	eng := NewEngine(mem, dec, Config{}, zaptest.NewLogger(t))

	_, err := eng.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dec.calls)

	report, err := eng.Run(ctx, nil)
	require.NoError(t, err)
	require.Len(t, report.Parents, 1, "children added to the group are not parents")
	assert.Equal(t, 10, report.Parents[0].Parent)
}

func TestSelectionAndMaxParents(t *testing.T) {
	ctx := context.Background()
	mem := tracker.NewMemory("")
	for _, n := range []int{1, 2, 3, 4} {
		mem.SeedInGroup(types.TrackerIssue{Number: n, Title: "Parent"})
	}

	tests := []struct {
		name string
		cfg  Config
		want []int
	}{
		{name: "all", cfg: Config{}, want: []int{1, 2, 3, 4}},
		{name: "start at", cfg: Config{Selected: types.SyncConfig{StartAt: 3}.Selected}, want: []int{3, 4}},
		{name: "only", cfg: Config{Selected: types.SyncConfig{OnlyIssues: []int{2, 4}}.Selected}, want: []int{2, 4}},
		{name: "max parents", cfg: Config{MaxParents: 2, Selected: types.SyncConfig{StartAt: 2}.Selected}, want: []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := NewEngine(mem, &fixedDecomposer{}, tt.cfg, zaptest.NewLogger(t))
			report, err := eng.Run(ctx, nil)
			require.NoError(t, err)
			var got []int
			for _, p := range report.Parents {
				got = append(got, p.Parent)
				assert.Equal(t, PhaseNoTasks, p.Trail[0])
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Zero(t, mem.Writes())
}

func TestSkipIfHasChildren(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		seed []types.TrackerIssue
	}{
		{
			name: "checklist entries",
			seed: []types.TrackerIssue{{Number: 10, Title: "P", Body: "### Sub-issues\n- [ ] #77 — old\n"}},
		},
		{
			name: "prefixed child",
			seed: []types.TrackerIssue{{Number: 10, Title: "P"}, {Number: 11, Title: "Story #10 – manual"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := tracker.NewMemory("")
			for _, is := range tt.seed {
				mem.Seed(is)
			}
			dec := &fixedDecomposer{descs: abDescriptors()}
			eng := NewEngine(mem, dec, Config{SkipIfHasChildren: true}, zaptest.NewLogger(t))

			report, err := eng.Run(ctx, []int{10})
			require.NoError(t, err)
			assert.Equal(t, []Phase{PhaseSkippedHasChildren, PhaseDone}, report.Parents[0].Trail)
			assert.Zero(t, dec.calls)
			assert.Zero(t, mem.Writes())
		})
	}
}

func TestPartialExistingChildren(t *testing.T) {
	ctx := context.Background()
	mem := storyTracker()
	mem.Seed(types.TrackerIssue{Number: 11, Title: "Story #10 – A", Body: "PARENT-STORY: #10\n"})

	eng := NewEngine(mem, &fixedDecomposer{descs: abDescriptors()}, Config{}, zaptest.NewLogger(t))
	report, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)

	pr := report.Parents[0]
	assert.Equal(t, ItemExists, pr.Items[0].Outcome)
	assert.Equal(t, 11, pr.Items[0].Number)
	assert.Equal(t, ItemCreated, pr.Items[1].Outcome)
	assert.Equal(t, 12, pr.Items[1].Number)
	assert.Equal(t, []int{11, 12}, pr.ChecklistAdded, "existing children missing from the checklist are recorded")
}

func TestDerivedTitleCollisionIsSkipped(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no marker", body: "Hand-written issue that happens to share the title."},
		{name: "other parent", body: "PARENT-STORY: #7\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := storyTracker()
			mem.Seed(types.TrackerIssue{Number: 11, Title: "Story #10 – A", Body: tt.body})
			core, logs := observer.New(zap.WarnLevel)

			eng := NewEngine(mem, &fixedDecomposer{descs: abDescriptors()}, Config{}, zap.New(core))
			report, err := eng.Run(ctx, []int{10})
			require.NoError(t, err)

			pr := report.Parents[0]
			require.Len(t, pr.Items, 2)
			assert.Equal(t, ItemSkipped, pr.Items[0].Outcome)
			assert.Equal(t, 11, pr.Items[0].Number)
			assert.Equal(t, ItemCreated, pr.Items[1].Outcome)
			assert.Equal(t, []int{12}, pr.ChecklistAdded)
			assert.False(t, report.Failed())

			parent, err := mem.GetIssue(ctx, 10)
			require.NoError(t, err)
			assert.NotContains(t, parent.Body, "#11")
			assert.Contains(t, parent.Body, "- [ ] #12 — Story #10 – B")
			assert.Equal(t, 1, logs.FilterMessageSnippet("not a child of this parent").Len())
		})
	}
}

func TestDescriptorTitleAlreadyPrefixed(t *testing.T) {
	ctx := context.Background()
	mem := storyTracker()
	dec := &fixedDecomposer{descs: []types.ChildDescriptor{{Title: "Story #10 – A"}, {Title: "A"}}}
	eng := NewEngine(mem, dec, Config{}, zaptest.NewLogger(t))

	report, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)
	pr := report.Parents[0]
	assert.Equal(t, 1, pr.Count(ItemCreated))
	assert.Equal(t, 1, pr.Count(ItemExists), "duplicate descriptor in one batch is not created twice")
}

// failingTracker fails creates for chosen titles and group operations.
type failingTracker struct {
	*tracker.Memory
	failTitle string
	failGroup bool
}

func (f *failingTracker) CreateIssue(ctx context.Context, title, body string) (types.CreatedIssue, error) {
	if title == f.failTitle {
		return types.CreatedIssue{}, errors.Join(types.ErrTransient, errors.New("boom"))
	}
	return f.Memory.CreateIssue(ctx, title, body)
}

func (f *failingTracker) AddToGroup(ctx context.Context, groupID, stableID string) error {
	if f.failGroup {
		return types.ErrTransient
	}
	return f.Memory.AddToGroup(ctx, groupID, stableID)
}

func TestPerItemFailuresDoNotStopTheBatch(t *testing.T) {
	ctx := context.Background()
	ft := &failingTracker{Memory: storyTracker(), failTitle: "Story #10 – A", failGroup: true}
	eng := NewEngine(ft, &fixedDecomposer{descs: abDescriptors()}, Config{}, zaptest.NewLogger(t))

	report, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)
	pr := report.Parents[0]
	assert.Equal(t, ItemFailed, pr.Items[0].Outcome)
	assert.Equal(t, ItemCreated, pr.Items[1].Outcome)
	assert.Equal(t, 1, pr.GroupFailures)
	assert.Equal(t, []int{11}, pr.ChecklistAdded, "checklist is updated even when grouping failed")
	assert.True(t, report.Failed())
	assert.Equal(t, PhaseDone, pr.Phase())
}

func TestDecomposerFailureFailsParentOnly(t *testing.T) {
	ctx := context.Background()
	mem := storyTracker()
	mem.SeedInGroup(types.TrackerIssue{Number: 20, Title: "Story: Y"})
	dec := &fixedDecomposer{err: types.ErrTransient}
	eng := NewEngine(mem, dec, Config{}, zaptest.NewLogger(t))

	report, err := eng.Run(ctx, nil)
	require.NoError(t, err)
	require.Len(t, report.Parents, 2)
	for _, p := range report.Parents {
		assert.Equal(t, PhaseFailed, p.Phase())
	}
	assert.Equal(t, 2, dec.calls)
}

func TestCacheIsUsedUnlessRegenerating(t *testing.T) {
	ctx := context.Background()
	cache := decompose.NewCache(t.TempDir())
	require.NoError(t, cache.Store(10, []types.ChildDescriptor{{Title: "Cached"}}))

	mem := storyTracker()
	dec := &fixedDecomposer{descs: abDescriptors()}
	eng := NewEngine(tracker.NewDryRun(mem, nil), dec, Config{Cache: cache, DryRun: true}, zaptest.NewLogger(t))
	report, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)
	assert.True(t, report.Parents[0].FromCache)
	assert.Equal(t, "Story #10 – Cached", report.Parents[0].Items[0].Title)
	assert.Zero(t, dec.calls)

	eng = NewEngine(tracker.NewDryRun(mem, nil), dec, Config{Cache: cache, Regenerate: true, DryRun: true}, zaptest.NewLogger(t))
	report, err = eng.Run(ctx, []int{10})
	require.NoError(t, err)
	assert.False(t, report.Parents[0].FromCache)
	assert.Equal(t, 1, dec.calls)

	got, ok := cache.Load(10)
	require.True(t, ok)
	assert.Equal(t, abDescriptors(), got, "fresh answer replaces the cache")
}

func TestDryRunMakesSameDecisionsWithoutWrites(t *testing.T) {
	ctx := context.Background()
	mem := storyTracker()
	dry := tracker.NewDryRun(mem, zaptest.NewLogger(t))
	eng := NewEngine(dry, &fixedDecomposer{descs: abDescriptors()}, Config{DryRun: true}, zaptest.NewLogger(t))

	report, err := eng.Run(ctx, []int{10})
	require.NoError(t, err)
	pr := report.Parents[0]
	assert.True(t, report.DryRun)
	assert.Equal(t, []int{-1, -2}, pr.ChecklistAdded)
	assert.Zero(t, mem.Writes())
	assert.Equal(t, 5, dry.Suppressed())

	preview, err := dry.GetIssue(ctx, 10)
	require.NoError(t, err)
	assert.Contains(t, preview.Body, "- [ ] #-1 — (DRY_RUN)")
}

func TestNotebookLinks(t *testing.T) {
	ctx := context.Background()
	mem := tracker.NewMemory("")
	mem.Seed(types.TrackerIssue{Number: 10, Title: "P", Body: "Body"})
	mem.Seed(types.TrackerIssue{Number: 20, Title: "Q", Body: "Body\n\n### Notebook\n- [20.ipynb](nb/20.ipynb)\n"})

	nodes := []types.TaskNode{
		{NodeID: "A", LinkedTrackerNumber: 10, NotebookPath: "nb/10.ipynb"},
		{NodeID: "B", LinkedTrackerNumber: 20, NotebookPath: "nb/20.ipynb"},
		{NodeID: "C", LinkedTrackerNumber: 30, NotebookPath: "nb/30.ipynb"},
		{NodeID: "D", NotebookPath: "nb/none.ipynb"},
	}
	results := NotebookLinks(ctx, mem, nodes, "", zaptest.NewLogger(t))
	require.Len(t, results, 3)
	assert.Equal(t, LinkAdded, results[0].Outcome)
	assert.Equal(t, LinkPresent, results[1].Outcome)
	assert.Equal(t, LinkFailed, results[2].Outcome)
	assert.Equal(t, 1, mem.Writes())

	p, err := mem.GetIssue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Body\n\n### Notebook\n- [10.ipynb](nb/10.ipynb)\n", p.Body)

	again := NotebookLinks(ctx, mem, nodes, "", nil)
	assert.Equal(t, LinkPresent, again[0].Outcome)
	assert.Equal(t, 1, mem.Writes())
}
