// Package roi compares building apps in-house with subscribing to them.
package roi

import (
	"math"
	"strings"

	"smartfinder_backend/platform/apperr"
)

// Project complexities. Anything unrecognised is priced as complex.
const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// Launch timelines.
const (
	TimelineUrgent = "urgent"
	TimelineNormal = "normal"
)

// AppMonthlyPrice is the average monthly price of one app.
const AppMonthlyPrice = 197

// comparedMonths is how many months of subscriptions savings are measured against.
const comparedMonths = 3

// Input is one calculator request.
type Input struct {
	Apps       float64 `json:"apps" validate:"gt=0"`
	Complexity string  `json:"complexity" validate:"max=20"`
	Timeline   string  `json:"timeline" validate:"max=20"`
}

// Estimate is the calculator result. Amounts are euros.
type Estimate struct {
	CustomDevCost   float64 `json:"custom_dev_cost"`
	CustomDevMonths int     `json:"custom_dev_months"`
	AppsMonthlyCost float64 `json:"apps_monthly_cost"`
	Savings         float64 `json:"savings"`
	TimeToMarket    string  `json:"time_to_market"`
}

type rate struct {
	base, perApp     float64
	months, perAppMo float64
}

var rates = map[string]rate{
	ComplexitySimple:  {base: 8000, perApp: 3000, months: 2, perAppMo: 0.5},
	ComplexityMedium:  {base: 15000, perApp: 5000, months: 3, perAppMo: 1},
	ComplexityComplex: {base: 25000, perApp: 7000, months: 6, perAppMo: 1.5},
}

// Calculate prices a custom build of in.Apps features against the same
// number of subscribed apps.
func Calculate(in Input) (Estimate, error) {
	if in.Apps <= 0 || math.IsNaN(in.Apps) || math.IsInf(in.Apps, 0) {
		return Estimate{}, apperr.Validation("Veuillez entrer le nombre d'apps nécessaires")
	}

	r, ok := rates[strings.ToLower(strings.TrimSpace(in.Complexity))]
	if !ok {
		r = rates[ComplexityComplex]
	}

	custom := r.base + in.Apps*r.perApp
	apps := math.Round(in.Apps * AppMonthlyPrice)

	return Estimate{
		CustomDevCost:   custom,
		CustomDevMonths: int(math.Round(r.months + in.Apps*r.perAppMo)),
		AppsMonthlyCost: apps,
		Savings:         custom - apps*comparedMonths,
		TimeToMarket:    timeToMarket(in.Timeline),
	}, nil
}

func timeToMarket(timeline string) string {
	switch strings.ToLower(strings.TrimSpace(timeline)) {
	case TimelineUrgent:
		return "1-2 jours"
	case TimelineNormal:
		return "1 semaine"
	default:
		return "2-4 semaines"
	}
}
