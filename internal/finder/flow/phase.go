package flow

import (
	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/session"
)

// phase is the explicit conversation state. Only the variant that accepts an
// action can carry it forward; everything else is an illegal transition.
type phase interface {
	step() session.Step
}

type awaitingEmail struct{}

type awaitingAnswer struct{}

type showingResults struct{}

type fillingContextual struct {
	app catalog.App
}

type fillingEnrichment struct {
	app catalog.App
}

type finished struct{}

// submitting wraps the phase an outbound call started from. Any action
// arriving meanwhile is dropped.
type submitting struct {
	from phase
}

func (awaitingEmail) step() session.Step     { return session.StepEmail }
func (awaitingAnswer) step() session.Step    { return session.StepQuestion }
func (showingResults) step() session.Step    { return session.StepResults }
func (fillingContextual) step() session.Step { return session.StepContextualForm }
func (fillingEnrichment) step() session.Step { return session.StepEnrichmentForm }
func (finished) step() session.Step          { return session.StepDone }

func (s submitting) step() session.Step {
	switch s.from.(type) {
	case showingResults:
		return session.StepAppSelected
	default:
		return s.from.step()
	}
}
