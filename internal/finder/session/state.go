// Package session holds the state of one Smart Finder conversation.
package session

import (
	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/scoring"
)

// Step is the stage the conversation is at.
type Step string

const (
	StepEmail          Step = "email"
	StepQuestion       Step = "question"
	StepResults        Step = "results"
	StepAppSelected    Step = "app-selected"
	StepContextualForm Step = "contextual-form"
	StepEnrichmentForm Step = "enrichment-form"
	StepDone           Step = "done"
)

// State is the mutable data of a conversation.
type State struct {
	Email           string
	Answers         map[string]string
	Step            Step
	Recommendations []scoring.Recommendation
	SelectedApp     *catalog.App
	Contextual      map[string]string
}

// New returns a state at the email step.
func New() *State {
	return &State{
		Answers: make(map[string]string),
		Step:    StepEmail,
	}
}

// Reset starts a new conversation. Answers, recommendations, the selected
// app and contextual answers are always cleared; the email survives only
// when keepEmail is set.
func (s *State) Reset(keepEmail bool) {
	if !keepEmail {
		s.Email = ""
	}
	s.Answers = make(map[string]string)
	s.Step = StepEmail
	s.Recommendations = nil
	s.SelectedApp = nil
	s.Contextual = nil
}

// Sector returns the answer to the sector question.
func (s *State) Sector() string {
	return s.Answers[catalog.SectorQuestionID]
}

// Recommended reports whether appID is part of the current recommendations.
func (s *State) Recommended(appID string) (catalog.App, bool) {
	for _, r := range s.Recommendations {
		if r.App.ID == appID {
			return r.App, true
		}
	}
	return catalog.App{}, false
}
