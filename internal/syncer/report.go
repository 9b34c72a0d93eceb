package syncer

// Phase is a parent's position in the fan-out state machine. Phases only
// move forward.
type Phase string

const (
	PhasePending            Phase = "pending"
	PhaseDecomposed         Phase = "decomposed"
	PhaseSkippedHasChildren Phase = "skipped-has-children"
	PhaseNoTasks            Phase = "no-tasks-produced"
	PhaseChildrenCreated    Phase = "children-created"
	PhaseChecklistUpdated   Phase = "checklist-updated"
	PhaseDone               Phase = "done"
	PhaseFailed             Phase = "failed"
)

// ItemOutcome is what happened to one descriptor.
type ItemOutcome string

const (
	ItemCreated ItemOutcome = "created"
	ItemExists  ItemOutcome = "exists"
	ItemFailed  ItemOutcome = "failed"

	// ItemSkipped marks a derived title already taken by an issue that is
	// not a child of this parent.
	ItemSkipped ItemOutcome = "skipped"
)

// ItemResult is the per-descriptor record.
type ItemResult struct {
	Title   string      `json:"title"`
	Number  int         `json:"number,omitempty"`
	Outcome ItemOutcome `json:"outcome"`
	Grouped bool        `json:"grouped,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ParentReport records one parent's pass.
type ParentReport struct {
	Parent      int          `json:"parent"`
	Title       string       `json:"title"`
	Trail       []Phase      `json:"trail"`
	FromCache   bool         `json:"from_cache,omitempty"`
	Descriptors int          `json:"descriptors"`
	Items       []ItemResult `json:"items,omitempty"`

	// ChecklistAdded lists the child numbers appended to the parent body.
	ChecklistAdded []int `json:"checklist_added,omitempty"`

	GroupFailures int    `json:"group_failures,omitempty"`
	Error         string `json:"error,omitempty"`

	writes int
}

// Phase returns the latest phase reached.
func (r *ParentReport) Phase() Phase {
	if len(r.Trail) == 0 {
		return PhasePending
	}
	return r.Trail[len(r.Trail)-1]
}

func (r *ParentReport) advance(p Phase) {
	r.Trail = append(r.Trail, p)
}

func (r *ParentReport) fail(err error) {
	r.Error = err.Error()
	r.advance(PhaseFailed)
}

// Count returns how many items ended with outcome o.
func (r *ParentReport) Count(o ItemOutcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Report aggregates a batch.
type Report struct {
	DryRun  bool           `json:"dry_run"`
	Parents []ParentReport `json:"parents"`
}

// Totals sums item outcomes across all parents.
func (r *Report) Totals() map[ItemOutcome]int {
	t := map[ItemOutcome]int{ItemCreated: 0, ItemExists: 0, ItemFailed: 0, ItemSkipped: 0}
	for i := range r.Parents {
		for _, it := range r.Parents[i].Items {
			t[it.Outcome]++
		}
	}
	return t
}

// Failed reports whether any parent failed or any item failed.
func (r *Report) Failed() bool {
	for i := range r.Parents {
		p := &r.Parents[i]
		if p.Phase() == PhaseFailed || p.Count(ItemFailed) > 0 {
			return true
		}
	}
	return false
}
