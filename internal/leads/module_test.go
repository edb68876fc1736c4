package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smartfinder_backend/internal/events"
	"smartfinder_backend/internal/finder/gateway"
	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/internal/leads/repository"
	"smartfinder_backend/internal/leads/transport"
	"smartfinder_backend/platform/logger"
	"smartfinder_backend/platform/sanitize"
	"smartfinder_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

func newEngine(t *testing.T) (*gin.Engine, *repository.Memory, *events.InMemoryBus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemory(nil)
	bus := events.NewInMemoryBus(logger.Discard())
	m := newModule(repo, bus, validator.New(), "FR", logger.Discard())
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	m.RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Limited: v1})
	return engine, repo, bus
}

func post(t *testing.T, engine *gin.Engine, body string) (*httptest.ResponseRecorder, transport.IntakeResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var resp transport.IntakeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return rec, resp
}

func TestCaptureEndpoint(t *testing.T) {
	engine, repo, bus := newEngine(t)

	tests := []struct {
		name    string
		body    string
		status  int
		success bool
	}{
		{"new lead", `{"email":"marc@bistro.fr"}`, http.StatusCreated, true},
		{"merge", `{"email":"marc@bistro.fr","app_interest":"qr-menu"}`, http.StatusOK, true},
		{"invalid email", `{"email":"nope"}`, http.StatusBadRequest, false},
		{"missing email", `{"firstName":"Marc"}`, http.StatusBadRequest, false},
		{"malformed", `{`, http.StatusBadRequest, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := post(t, engine, tc.body)
			if rec.Code != tc.status || resp.Success != tc.success {
				t.Fatalf("got %d %+v, want %d success=%v", rec.Code, resp, tc.status, tc.success)
			}
			if resp.Message == "" {
				t.Fatal("expected a message")
			}
		})
	}

	bus.Wait()
	if _, err := repo.GetByEmail(context.Background(), "marc@bistro.fr"); err != nil {
		t.Fatalf("lead not stored: %v", err)
	}
}

func TestFinderGatewayTalksToIntake(t *testing.T) {
	engine, repo, bus := newEngine(t)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	qualified := make(chan events.LeadQualified, 1)
	bus.Subscribe(events.LeadQualified{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		qualified <- e.(events.LeadQualified)
		return nil
	}))

	client := gateway.NewClient(srv.URL+"/api/v1/leads", srv.Client())
	_, err := client.Submit(context.Background(), gateway.Lead{
		Email:            "marc@bistro.fr",
		FirstName:        "Marc",
		Phone:            "+33612345678",
		AppInterest:      "tablebook",
		Category:         "restaurant",
		RestaurantName:   "Chez Marc",
		RestaurantTables: "12",
		Modules:          `["Réservations"]`,
		Message:          `{"restaurant_name":"Chez Marc","tables":"12"}`,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	bus.Wait()
	select {
	case e := <-qualified:
		if e.AppInterest != "tablebook" || e.RestaurantName != "Chez Marc" {
			t.Fatalf("unexpected event: %+v", e)
		}
	default:
		t.Fatal("expected a qualified event")
	}

	lead, err := repo.GetByEmail(context.Background(), "marc@bistro.fr")
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if lead.RestaurantTables != "12" || lead.QualifiedAt == nil {
		t.Fatalf("unexpected lead: %+v", lead)
	}
}

func TestIntakeAcceptsLongestFinderFields(t *testing.T) {
	engine, repo, bus := newEngine(t)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	long := strings.Repeat("é", sanitize.MaxFieldLength)
	client := gateway.NewClient(srv.URL+"/api/v1/leads", srv.Client())
	resp, err := client.Submit(context.Background(), gateway.Lead{
		Email:            "zinc@bistro.fr",
		FirstName:        long,
		LastName:         long,
		Phone:            strings.Repeat("9", sanitize.MaxFieldLength),
		AppInterest:      "tablebook",
		Category:         "restaurant",
		RestaurantName:   long,
		RestaurantTables: long,
		ProductsCount:    long,
	})
	if err != nil || !resp.Success {
		t.Fatalf("submit: %+v %v", resp, err)
	}

	bus.Wait()
	lead, err := repo.GetByEmail(context.Background(), "zinc@bistro.fr")
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if lead.RestaurantTables != long || lead.ProductsCount != long {
		t.Fatal("contextual answers should be stored in full")
	}
}
