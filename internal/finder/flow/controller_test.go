package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/gateway"
	"smartfinder_backend/internal/finder/persist"
	"smartfinder_backend/internal/finder/session"
	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/kvstore"
	"smartfinder_backend/platform/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSubmitter struct {
	mu      sync.Mutex
	leads   []gateway.Lead
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, lead gateway.Lead) (gateway.Response, error) {
	f.mu.Lock()
	f.leads = append(f.leads, lead)
	err, block, started := f.err, f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return gateway.Response{}, apperr.Upstream("lead submission failed", err)
	}
	return gateway.Response{Success: true}, nil
}

func (f *fakeSubmitter) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSubmitter) calls() []gateway.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Lead(nil), f.leads...)
}

type fakeTimer struct {
	mu      sync.Mutex
	pending []*pendingFunc
}

type pendingFunc struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) AfterFunc(d time.Duration, f func()) func() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &pendingFunc{delay: d, fn: f}
	t.pending = append(t.pending, p)
	return func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		was := !p.stopped
		p.stopped = true
		return was
	}
}

// fireAll runs every scheduled function, including stopped ones, the way a
// timer that already fired would.
func (t *fakeTimer) fireAll() {
	t.mu.Lock()
	fns := t.pending
	t.pending = nil
	t.mu.Unlock()
	for _, p := range fns {
		p.fn()
	}
}

func testDoc() *catalog.Document {
	return &catalog.Document{
		Questions: []catalog.Question{{
			ID:   catalog.SectorQuestionID,
			Text: "Quel est ton secteur ?",
			Options: []catalog.Option{
				{Value: "restaurant", Label: "Restaurant"},
				{Value: "retail", Label: "Commerce"},
				{Value: "general", Label: "Autre"},
			},
		}},
		Apps: catalog.NewAppCatalog(
			catalog.App{
				ID: "tablebook", Name: "TableBook", Category: "restaurant", MinScore: 40,
				HasLifetime: true,
				Pricing:     catalog.Pricing{Monthly: 29, Lifetime: 290},
				Modules:     catalog.Modules{{Name: "booking", Value: "Réservations"}},
				FormQuestions: []catalog.FormQuestion{
					{ID: "restaurant_name", Type: catalog.FieldText, Label: "Nom", Required: true},
					{ID: "tables", Type: catalog.FieldSelect, Label: "Tables", Options: []string{"1-10", "10+"}},
				},
			},
			catalog.App{ID: "star", Name: "Star", Category: "restaurant", MinScore: 10, Featured: true},
			catalog.App{ID: "kiosk", Name: "Kiosk", Category: "retail", MinScore: 30},
		),
		Settings: catalog.Settings{TypingDelay: 500, ButtonDelay: 200, IntroMessage: "Salut !", MaxRecommendations: 3, MinRecommendations: 1},
		Fallback: catalog.Fallback{Enabled: true, Apps: []string{"kiosk"}},
		API:      catalog.API{Endpoint: "https://example.com/leads"},
	}
}

type harness struct {
	ctrl    *Controller
	sub     *fakeSubmitter
	timer   *fakeTimer
	clock   *fakeClock
	records *persist.Records
	store   kvstore.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)}
	store := kvstore.Namespace(kvstore.NewMemoryStore(clock.Now), "visitor")
	h := &harness{
		sub:   &fakeSubmitter{},
		timer: &fakeTimer{},
		clock: clock,
		store: store,
	}
	h.records = persist.New(store)
	h.ctrl = h.newController()
	return h
}

// newController shares the visitor's records, like a reopened widget.
func (h *harness) newController() *Controller {
	log := logger.Discard()
	return New(Deps{
		SessionID:   "s-1",
		Doc:         testDoc(),
		Records:     h.records,
		Leads:       gateway.New(h.sub, h.records, log),
		Log:         log,
		AfterFunc:   h.timer.AfterFunc,
		PhoneRegion: "FR",
	})
}

func blockTypes(r Reply) []string {
	out := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		out = append(out, b.Type)
	}
	return out
}

func hasBlock(r Reply, typ string) bool {
	for _, b := range r.Blocks {
		if b.Type == typ {
			return true
		}
	}
	return false
}

func lastForm(t *testing.T, r Reply) *Form {
	t.Helper()
	for i := len(r.Blocks) - 1; i >= 0; i-- {
		if r.Blocks[i].Form != nil {
			return r.Blocks[i].Form
		}
	}
	t.Fatalf("no form in %v", blockTypes(r))
	return nil
}

// mustReply fails the test on error: mustReply(t)(ctrl.Answer(ctx, v)).
func mustReply(t *testing.T) func(Reply, error) Reply {
	return func(r Reply, err error) Reply {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return r
	}
}

func (h *harness) toResults(t *testing.T) Reply {
	t.Helper()
	ctx := context.Background()
	h.ctrl.Open(ctx)
	mustReply(t)(h.ctrl.SubmitEmail(ctx, "a@b.com"))
	return mustReply(t)(h.ctrl.Answer(ctx, "restaurant"))
}

func TestConversationWithContextualForm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	open := h.ctrl.Open(ctx)
	if open.Step != session.StepEmail || !hasBlock(open, BlockEmailPrompt) {
		t.Fatalf("open = %+v", open)
	}

	r := mustReply(t)(h.ctrl.SubmitEmail(ctx, " a@b.com "))
	if r.Step != session.StepQuestion || !hasBlock(r, BlockOptions) || !hasBlock(r, BlockTyping) {
		t.Fatalf("after email: step=%s blocks=%v", r.Step, blockTypes(r))
	}

	r = mustReply(t)(h.ctrl.Answer(ctx, "restaurant"))
	if r.Step != session.StepResults {
		t.Fatalf("step = %s", r.Step)
	}
	var cards []*AppCard
	for _, b := range r.Blocks {
		if b.Card != nil {
			cards = append(cards, b.Card)
		}
	}
	if len(cards) != 2 || cards[0].ID != "star" || cards[1].ID != "tablebook" {
		t.Fatalf("cards = %+v", cards)
	}
	if cards[0].Score >= cards[1].Score {
		t.Fatal("featured app should rank above a higher raw score")
	}
	if cards[0].Badges[0] != featuredBadge {
		t.Fatalf("featured badge missing: %v", cards[0].Badges)
	}
	if cards[1].Price.BreakEvenMonths != 10 {
		t.Fatalf("break-even = %d", cards[1].Price.BreakEvenMonths)
	}

	r = mustReply(t)(h.ctrl.SelectApp(ctx, "tablebook"))
	if r.Step != session.StepContextualForm || lastForm(t, r).Kind != FormContextual {
		t.Fatalf("after select: step=%s blocks=%v", r.Step, blockTypes(r))
	}

	if _, err := h.ctrl.SubmitContextual(ctx, map[string]string{"tables": "10+"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("missing required field should fail validation, got %v", err)
	}
	if _, err := h.ctrl.SubmitContextual(ctx, map[string]string{"restaurant_name": "Zinc", "tables": "200"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown select option should fail validation, got %v", err)
	}

	r = mustReply(t)(h.ctrl.SubmitContextual(ctx, map[string]string{"restaurant_name": "<b>Zinc</b>", "tables": "10+"}))
	if r.Step != session.StepEnrichmentForm || lastForm(t, r).Kind != FormEnrichment {
		t.Fatalf("after contextual: step=%s blocks=%v", r.Step, blockTypes(r))
	}

	r = mustReply(t)(h.ctrl.SubmitEnrichment(ctx, Enrichment{FirstName: "Léa", Phone: "06 12 34 56 78"}))
	if r.Step != session.StepDone || !hasBlock(r, BlockClose) {
		t.Fatalf("after enrichment: step=%s blocks=%v", r.Step, blockTypes(r))
	}

	calls := h.sub.calls()
	if len(calls) != 3 {
		t.Fatalf("expected account, immediate and final leads, got %d", len(calls))
	}
	if calls[0] != (gateway.Lead{Email: "a@b.com"}) {
		t.Fatalf("account lead = %+v", calls[0])
	}
	if calls[1].AppInterest != "tablebook" || calls[1].FirstName != "" {
		t.Fatalf("immediate lead = %+v", calls[1])
	}
	final := calls[2]
	if final.RestaurantName != "Zinc" || final.RestaurantTables != "10+" || final.Phone != "+33612345678" || final.FirstName != "Léa" {
		t.Fatalf("final lead = %+v", final)
	}
	if done, _ := h.records.Completed(ctx, "a@b.com"); !done {
		t.Fatal("completion marker not set")
	}

	h.timer.fireAll()
	snap := h.ctrl.Snapshot()
	if snap.Step != session.StepEmail || snap.Email != "a@b.com" || len(snap.Answers) != 0 || len(snap.Recommendations) != 0 {
		t.Fatalf("after auto-close: %+v", snap)
	}
}

func TestSelectAppWithoutFormGoesToEnrichment(t *testing.T) {
	h := newHarness(t)
	h.toResults(t)

	r := mustReply(t)(h.ctrl.SelectApp(context.Background(), "star"))
	if r.Step != session.StepEnrichmentForm || lastForm(t, r).Kind != FormEnrichment {
		t.Fatalf("step=%s blocks=%v", r.Step, blockTypes(r))
	}
}

func TestSkipContextualDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toResults(t)
	mustReply(t)(h.ctrl.SelectApp(ctx, "tablebook"))

	r := mustReply(t)(h.ctrl.SkipContextual(ctx))
	if r.Step != session.StepEnrichmentForm {
		t.Fatalf("step = %s", r.Step)
	}
	if saved, _ := h.records.RecentContextual(ctx, []string{"restaurant_name", "tables"}); len(saved) != 0 {
		t.Fatalf("skip persisted %v", saved)
	}

	r = mustReply(t)(h.ctrl.SkipEnrichment(ctx))
	if r.Step != session.StepDone {
		t.Fatalf("step = %s", r.Step)
	}
	if done, _ := h.records.Completed(ctx, "a@b.com"); !done {
		t.Fatal("skip should mark the lead complete")
	}
}

func TestInvalidEmailMakesNoCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.Open(ctx)

	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := h.ctrl.SubmitEmail(ctx, email); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("SubmitEmail(%q) = %v", email, err)
		}
	}
	if n := len(h.sub.calls()); n != 0 {
		t.Fatalf("expected no network call, got %d", n)
	}
	if h.ctrl.Snapshot().Step != session.StepEmail {
		t.Fatal("should stay on the email step")
	}
}

func TestAccountFailureKeepsEmailStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.Open(ctx)
	h.sub.setErr(errors.New("connection refused"))

	r, err := h.ctrl.SubmitEmail(ctx, "a@b.com")
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if r.Step != session.StepEmail || len(r.Blocks) != 1 || !r.Blocks[0].Error {
		t.Fatalf("reply = %+v", r)
	}
	if h.ctrl.Snapshot().Submitting {
		t.Fatal("in-flight flag must be cleared after a failure")
	}

	h.sub.setErr(nil)
	r = mustReply(t)(h.ctrl.SubmitEmail(ctx, "a@b.com"))
	if r.Step != session.StepQuestion {
		t.Fatalf("retry step = %s", r.Step)
	}
}

func TestImmediateLeadFailureKeepsResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toResults(t)
	h.sub.setErr(errors.New("timeout"))

	if _, err := h.ctrl.SelectApp(ctx, "star"); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if snap := h.ctrl.Snapshot(); snap.Step != session.StepResults || snap.Submitting {
		t.Fatalf("snapshot = %+v", snap)
	}

	h.sub.setErr(nil)
	mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
}

func TestFinalLeadFailureAllowsRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toResults(t)
	mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
	h.sub.setErr(errors.New("502"))

	r, err := h.ctrl.SubmitEnrichment(ctx, Enrichment{FirstName: "Léa"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if r.Step != session.StepEnrichmentForm || lastForm(t, r).Fields[0].Value != "Léa" {
		t.Fatalf("reply = %+v", r)
	}
	if done, _ := h.records.Completed(ctx, "a@b.com"); done {
		t.Fatal("failed final lead must not mark completion")
	}

	h.sub.setErr(nil)
	r = mustReply(t)(h.ctrl.SubmitEnrichment(ctx, Enrichment{FirstName: "Léa"}))
	if r.Step != session.StepDone {
		t.Fatalf("retry step = %s", r.Step)
	}
}

func TestUnknownOptionAndAppAreRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.Open(ctx)
	mustReply(t)(h.ctrl.SubmitEmail(ctx, "a@b.com"))

	if _, err := h.ctrl.Answer(ctx, "spaceship"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Answer = %v", err)
	}
	mustReply(t)(h.ctrl.Answer(ctx, "restaurant"))
	if _, err := h.ctrl.SelectApp(ctx, "kiosk"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("SelectApp on a non-recommended app = %v", err)
	}
}

func TestIllegalTransitionsConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.Open(ctx)

	actions := map[string]func() error{
		"answer":            func() error { _, err := h.ctrl.Answer(ctx, "restaurant"); return err },
		"select":            func() error { _, err := h.ctrl.SelectApp(ctx, "star"); return err },
		"submit contextual": func() error { _, err := h.ctrl.SubmitContextual(ctx, nil); return err },
		"skip contextual":   func() error { _, err := h.ctrl.SkipContextual(ctx); return err },
		"submit enrichment": func() error { _, err := h.ctrl.SubmitEnrichment(ctx, Enrichment{}); return err },
		"skip enrichment":   func() error { _, err := h.ctrl.SkipEnrichment(ctx); return err },
	}
	for name, act := range actions {
		if err := act(); !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("%s at email step = %v", name, err)
		}
	}
}

func TestSecondActionWhileSubmittingIsDropped(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		setup    func(t *testing.T, h *harness)
		action   func(h *harness) error
		wantStep session.Step
	}{
		{
			name:     "email",
			setup:    func(_ *testing.T, h *harness) { h.ctrl.Open(ctx) },
			action:   func(h *harness) error { _, err := h.ctrl.SubmitEmail(ctx, "a@b.com"); return err },
			wantStep: session.StepQuestion,
		},
		{
			name:     "select app",
			setup:    func(t *testing.T, h *harness) { h.toResults(t) },
			action:   func(h *harness) error { _, err := h.ctrl.SelectApp(ctx, "star"); return err },
			wantStep: session.StepEnrichmentForm,
		},
		{
			name: "enrichment",
			setup: func(t *testing.T, h *harness) {
				h.toResults(t)
				mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
			},
			action: func(h *harness) error {
				_, err := h.ctrl.SubmitEnrichment(ctx, Enrichment{FirstName: "Léa", Phone: "0612345678"})
				return err
			},
			wantStep: session.StepDone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.setup(t, h)
			before := len(h.sub.calls())

			h.sub.block = make(chan struct{})
			h.sub.started = make(chan struct{}, 1)

			done := make(chan error, 1)
			go func() { done <- tc.action(h) }()
			<-h.sub.started

			if err := tc.action(h); !errors.Is(err, ErrSubmissionInFlight) {
				t.Fatalf("second action = %v", err)
			}
			if !h.ctrl.Snapshot().Submitting {
				t.Fatal("snapshot should report the submission")
			}

			close(h.sub.block)
			if err := <-done; err != nil {
				t.Fatalf("first action: %v", err)
			}
			if n := len(h.sub.calls()) - before; n != 1 {
				t.Fatalf("expected one call, got %d", n)
			}
			if step := h.ctrl.Snapshot().Step; step != tc.wantStep {
				t.Fatalf("step = %s, want %s", step, tc.wantStep)
			}
		})
	}
}

func TestReopenClearsStuckSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.Open(ctx)

	h.sub.block = make(chan struct{})
	h.sub.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.SubmitEmail(ctx, "a@b.com")
		done <- err
	}()
	<-h.sub.started

	r := h.ctrl.Open(ctx)
	if r.Step != session.StepEmail || h.ctrl.Snapshot().Submitting {
		t.Fatalf("reopen should clear the in-flight state: %+v", h.ctrl.Snapshot())
	}

	close(h.sub.block)
	if err := <-done; !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("stale result should be discarded, got %v", err)
	}
	if h.ctrl.Snapshot().Step != session.StepEmail {
		t.Fatal("stale result must not advance the reopened conversation")
	}
}

func TestReopenWithinThirtyMinutesPrefillsEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toResults(t)
	h.ctrl.Close(ctx)
	before := len(h.sub.calls())

	h.clock.Advance(20 * time.Minute)
	second := h.newController()
	r := second.Open(ctx)
	if r.Blocks[0].Type != BlockEmailPrompt || r.Blocks[0].Value != "a@b.com" {
		t.Fatalf("open = %+v", r)
	}
	if len(h.sub.calls()) != before {
		t.Fatal("prefill must not call the lead API")
	}

	h.clock.Advance(11 * time.Minute)
	third := h.newController()
	if r := third.Open(ctx); r.Blocks[0].Value != "" {
		t.Fatalf("stale email prefilled: %+v", r)
	}
}

func TestCloseResetLaw(t *testing.T) {
	cases := []struct {
		name      string
		elapsed   time.Duration
		wantEmail string
	}{
		{"recent email kept", 29 * time.Minute, "a@b.com"},
		{"stale email dropped", 31 * time.Minute, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.toResults(t)

			h.clock.Advance(tc.elapsed)
			r := h.ctrl.Close(ctx)
			if r.Step != session.StepEmail {
				t.Fatalf("step = %s", r.Step)
			}
			snap := h.ctrl.Snapshot()
			if snap.Email != tc.wantEmail {
				t.Fatalf("email = %q, want %q", snap.Email, tc.wantEmail)
			}
			if len(snap.Answers) != 0 || len(snap.Recommendations) != 0 || snap.SelectedApp != "" {
				t.Fatalf("conversation not cleared: %+v", snap)
			}
		})
	}
}

func TestCompletedLeadSkipsEnrichment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.records.MarkCompleted(ctx, "a@b.com"); err != nil {
		t.Fatal(err)
	}
	h.toResults(t)

	r := mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
	if r.Step != session.StepDone || hasBlock(r, BlockForm) {
		t.Fatalf("step=%s blocks=%v", r.Step, blockTypes(r))
	}
	if n := len(h.sub.calls()); n != 2 {
		t.Fatalf("expected account and immediate leads only, got %d", n)
	}
}

func TestRecentEnrichmentAutoSubmits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.records.SaveEnrichment(ctx, persist.Enrichment{FirstName: "Léa", Phone: "+33612345678"}); err != nil {
		t.Fatal(err)
	}
	h.toResults(t)

	r := mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
	if r.Step != session.StepDone {
		t.Fatalf("step=%s blocks=%v", r.Step, blockTypes(r))
	}
	calls := h.sub.calls()
	final := calls[len(calls)-1]
	if final.FirstName != "Léa" || final.Phone != "+33612345678" || final.AppInterest != "star" {
		t.Fatalf("final lead = %+v", final)
	}
}

func TestStaleCloseTimerIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toResults(t)
	mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
	mustReply(t)(h.ctrl.SkipEnrichment(ctx))

	h.ctrl.Open(ctx)
	mustReply(t)(h.ctrl.SubmitEmail(ctx, "a@b.com"))

	h.timer.fireAll()
	if step := h.ctrl.Snapshot().Step; step != session.StepQuestion {
		t.Fatalf("stale timer reset the conversation to %s", step)
	}
}

func TestCloseDelayIsRendered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toResults(t)
	mustReply(t)(h.ctrl.SelectApp(ctx, "star"))
	r := mustReply(t)(h.ctrl.SkipEnrichment(ctx))

	last := r.Blocks[len(r.Blocks)-1]
	if last.Type != BlockClose || last.DelayMS != 3000 {
		t.Fatalf("close block = %+v", last)
	}
	if h.timer.pending[0].delay != DefaultCloseDelay {
		t.Fatalf("timer delay = %s", h.timer.pending[0].delay)
	}
}
