package session

import (
	"testing"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/scoring"
)

func filled() *State {
	s := New()
	s.Email = "a@b.com"
	s.Answers[catalog.SectorQuestionID] = "restaurant"
	s.Step = StepEnrichmentForm
	s.Recommendations = []scoring.Recommendation{{App: catalog.App{ID: "tablebook"}, Score: 40}}
	s.SelectedApp = &catalog.App{ID: "tablebook"}
	s.Contextual = map[string]string{"restaurant_name": "Zinc"}
	return s
}

func TestResetKeepsEmailWhenAsked(t *testing.T) {
	s := filled()
	s.Reset(true)

	if s.Email != "a@b.com" {
		t.Fatalf("email = %q", s.Email)
	}
	if len(s.Answers) != 0 || s.Recommendations != nil || s.SelectedApp != nil || s.Contextual != nil {
		t.Fatalf("conversation data not cleared: %+v", s)
	}
	if s.Step != StepEmail {
		t.Fatalf("step = %q", s.Step)
	}
	if s.Sector() != "" {
		t.Fatal("sector should be cleared")
	}
}

func TestResetClearsEmail(t *testing.T) {
	s := filled()
	s.Reset(false)
	if s.Email != "" {
		t.Fatalf("email = %q", s.Email)
	}
	if len(s.Answers) != 0 || s.Recommendations != nil {
		t.Fatal("conversation data not cleared")
	}
}

func TestRecommended(t *testing.T) {
	s := filled()
	if _, ok := s.Recommended("tablebook"); !ok {
		t.Fatal("tablebook should be recommended")
	}
	if _, ok := s.Recommended("kiosk"); ok {
		t.Fatal("kiosk is not recommended")
	}
}
