package wizard

// Step is the wizard's finite state. Exactly one is active at a time; it is
// the sole authority for which surface is shown and which transitions are
// legal next.
type Step string

const (
	StepForm              Step = "form"
	StepResearching       Step = "researching"
	StepPrinciples        Step = "principles"
	StepChooseIdea        Step = "choose-idea"
	StepRecordVideo       Step = "record-video"
	StepGeneratingCaption Step = "generating-caption"
	StepPostDetails       Step = "post-details"
	StepPremium           Step = "premium"
	StepHistory           Step = "history"
	StepBusinesses        Step = "businesses"
	StepHashtagResearch   Step = "hashtag-research"
)

// auxiliary steps are reachable from anywhere by direct navigation and do
// not participate in the linear pipeline.
var auxiliary = map[Step]bool{
	StepPremium:         true,
	StepHistory:         true,
	StepBusinesses:      true,
	StepHashtagResearch: true,
}

// transitions is the legal pipeline edge set (forward edges plus the
// explicit back edges).
var transitions = map[Step][]Step{
	StepForm:              {StepResearching},
	StepResearching:       {StepPrinciples, StepForm},
	StepPrinciples:        {StepChooseIdea},
	StepChooseIdea:        {StepRecordVideo, StepPrinciples},
	StepRecordVideo:       {StepGeneratingCaption, StepChooseIdea},
	StepGeneratingCaption: {StepPostDetails},
	StepPostDetails:       {StepRecordVideo},
}

// CanTransition reports whether moving from one step to another is legal.
// Auxiliary steps are reachable from anywhere, and leaving one returns to
// any functional step.
func CanTransition(from, to Step) bool {
	if auxiliary[to] || auxiliary[from] {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsAuxiliary reports whether the step sits outside the linear pipeline.
func IsAuxiliary(s Step) bool {
	return auxiliary[s]
}
