package roi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Estimate
	}{
		{
			name: "simple urgent",
			in:   Input{Apps: 3, Complexity: "simple", Timeline: "urgent"},
			want: Estimate{CustomDevCost: 17000, CustomDevMonths: 4, AppsMonthlyCost: 591, Savings: 15227, TimeToMarket: "1-2 jours"},
		},
		{
			name: "medium normal",
			in:   Input{Apps: 2, Complexity: "medium", Timeline: "normal"},
			want: Estimate{CustomDevCost: 25000, CustomDevMonths: 5, AppsMonthlyCost: 394, Savings: 23818, TimeToMarket: "1 semaine"},
		},
		{
			name: "unknown complexity is complex",
			in:   Input{Apps: 1, Complexity: "huge", Timeline: "later"},
			want: Estimate{CustomDevCost: 32000, CustomDevMonths: 8, AppsMonthlyCost: 197, Savings: 31409, TimeToMarket: "2-4 semaines"},
		},
		{
			name: "fractional apps",
			in:   Input{Apps: 1.5, Complexity: "simple"},
			want: Estimate{CustomDevCost: 12500, CustomDevMonths: 3, AppsMonthlyCost: 296, Savings: 11612, TimeToMarket: "2-4 semaines"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculate(tc.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("Calculate(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestCalculateRejectsNoApps(t *testing.T) {
	for _, n := range []float64{0, -2} {
		if _, err := Calculate(Input{Apps: n}); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("apps=%v: expected validation error, got %v", n, err)
		}
	}
}

func TestCalculateEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewModule(validator.New()).RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Limited: v1})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/roi", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"apps":3,"complexity":"simple","timeline":"urgent"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var est Estimate
	if err := json.Unmarshal(rec.Body.Bytes(), &est); err != nil {
		t.Fatal(err)
	}
	if est.Savings != 15227 {
		t.Fatalf("unexpected estimate %+v", est)
	}

	if rec := post(`{"apps":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero apps, got %d", rec.Code)
	}
}
