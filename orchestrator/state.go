package orchestrator

// State is a stage of the run.
type State int

const (
	StateInit State = iota
	StateDescribe
	StateDispatch
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDescribe:
		return "DESCRIBE"
	case StateDispatch:
		return "DISPATCH"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Outcome is what happened to one file during DISPATCH.
type Outcome int

const (
	OutcomeAnnotated Outcome = iota
	OutcomeRejected
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnnotated:
		return "annotated"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// RunSummary counts what a run did.
type RunSummary struct {
	Discovered     int
	Changed        int
	Described      int
	DescribeFailed int
	Annotated      int
	Rejected       int
	Skipped        int
	Failed         int
	Batches        int
	PullRequests   int
}

func (s *RunSummary) record(outcome Outcome) {
	switch outcome {
	case OutcomeAnnotated:
		s.Annotated++
	case OutcomeRejected:
		s.Rejected++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}
