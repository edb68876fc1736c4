// Package scoring ranks catalog apps against the visitor's answers.
package scoring

import (
	"sort"

	"smartfinder_backend/internal/finder/catalog"
)

// Score adjustments.
const (
	FeaturedBonus    = 15
	SocialProofBonus = 5
	LifetimeBonus    = 5

	// FallbackScore is assigned to every app of the fallback list.
	FallbackScore = 25

	// GeneralSector is the catch-all answer that earns half of each app's threshold.
	GeneralSector = "general"
)

// Recommendation is one ranked app.
type Recommendation struct {
	App   catalog.App `json:"app"`
	Score int         `json:"score"`
}

// AppScore computes the total score of app for sector.
func AppScore(app catalog.App, sector string) int {
	score := 0
	switch {
	case sector != "" && sector == app.Category:
		score = app.MinScore
	case sector == GeneralSector:
		score = app.MinScore / 2
	}
	if app.Featured {
		score += FeaturedBonus
	}
	if app.SocialProof != "" {
		score += SocialProofBonus
	}
	if app.HasLifetime {
		score += LifetimeBonus
	}
	return score
}

// Recommend returns the ranked, capped recommendation list. Apps qualify
// only when their total reaches their own min_score. Featured apps rank
// before the rest regardless of score. When fewer than min_recommendations
// qualify and the fallback is enabled, the fallback list replaces the result.
func Recommend(answers map[string]string, doc *catalog.Document) []Recommendation {
	sector := answers[catalog.SectorQuestionID]

	var candidates []Recommendation
	for _, app := range doc.Apps.All() {
		score := AppScore(app, sector)
		if score >= app.MinScore {
			candidates = append(candidates, Recommendation{App: app, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.App.Featured != b.App.Featured {
			return a.App.Featured
		}
		return a.Score > b.Score
	})

	if max := doc.Settings.MaxRecommendations; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	if len(candidates) < doc.Settings.MinRecommendations && doc.Fallback.Enabled {
		return fallback(doc)
	}
	return candidates
}

func fallback(doc *catalog.Document) []Recommendation {
	out := make([]Recommendation, 0, len(doc.Fallback.Apps))
	for _, id := range doc.Fallback.Apps {
		app, ok := doc.App(id)
		if !ok {
			continue
		}
		out = append(out, Recommendation{App: app, Score: FallbackScore})
	}
	return out
}
