package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Step
		want     bool
	}{
		{StepForm, StepResearching, true},
		{StepResearching, StepPrinciples, true},
		{StepResearching, StepForm, true},
		{StepPrinciples, StepChooseIdea, true},
		{StepChooseIdea, StepRecordVideo, true},
		{StepRecordVideo, StepGeneratingCaption, true},
		{StepGeneratingCaption, StepPostDetails, true},
		{StepChooseIdea, StepPrinciples, true},
		{StepRecordVideo, StepChooseIdea, true},
		{StepForm, StepPostDetails, false},
		{StepPrinciples, StepGeneratingCaption, false},
		{StepPostDetails, StepResearching, false},
		{StepPostDetails, StepRecordVideo, true},
		{StepPostDetails, StepForm, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestAuxiliaryReachableFromAnywhere(t *testing.T) {
	functional := []Step{StepForm, StepPrinciples, StepChooseIdea, StepRecordVideo, StepPostDetails}
	aux := []Step{StepPremium, StepHistory, StepBusinesses, StepHashtagResearch}
	for _, from := range functional {
		for _, to := range aux {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsAuxiliary(t *testing.T) {
	assert.True(t, IsAuxiliary(StepPremium))
	assert.True(t, IsAuxiliary(StepHashtagResearch))
	assert.False(t, IsAuxiliary(StepForm))
	assert.False(t, IsAuxiliary(StepPostDetails))
}
