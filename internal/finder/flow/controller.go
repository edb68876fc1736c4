// Package flow drives one Smart Finder conversation: email, the qualifying
// question, results, the optional contextual and enrichment forms, and the
// closing message. Every action returns the blocks the page must render.
package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/gateway"
	"smartfinder_backend/internal/finder/persist"
	"smartfinder_backend/internal/finder/scoring"
	"smartfinder_backend/internal/finder/session"
	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/logger"
	"smartfinder_backend/platform/phone"
	"smartfinder_backend/platform/sanitize"
	"smartfinder_backend/platform/validator"
)

// Pacing of the conversation, in milliseconds.
const (
	ThinkingDelayMS   = 1500
	EmailSentPauseMS  = 2000
	ResultsPauseMS    = 300
	DefaultCloseDelay = 3 * time.Second

	maxFieldLength = sanitize.MaxFieldLength
)

// ErrSubmissionInFlight is returned when an action arrives while a previous
// one is still waiting on the lead API. The action is dropped, not queued.
var ErrSubmissionInFlight = apperr.Conflict("a submission is already in progress")

var errSessionReset = apperr.Conflict("the conversation was closed while the request was running")

// Leads is the lead gateway as seen by the controller.
type Leads interface {
	CreateAccount(ctx context.Context, email string) error
	SubmitImmediate(ctx context.Context, email string, app catalog.App) (skipped bool, err error)
	SubmitFinal(ctx context.Context, lead gateway.Lead) error
}

// AfterFunc runs f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Deps are the collaborators of a controller.
type Deps struct {
	SessionID   string
	Doc         *catalog.Document
	Records     *persist.Records
	Leads       Leads
	Log         *logger.Logger
	AfterFunc   AfterFunc
	CloseDelay  time.Duration
	PhoneRegion string
}

// Enrichment is the visitor's input to the enrichment form.
type Enrichment struct {
	FirstName string
	LastName  string
	Phone     string
}

// Snapshot is a read-only view of the conversation.
type Snapshot struct {
	SessionID       string            `json:"session_id"`
	Step            session.Step      `json:"step"`
	Email           string            `json:"email,omitempty"`
	Answers         map[string]string `json:"answers"`
	Recommendations []string          `json:"recommendations"`
	SelectedApp     string            `json:"selected_app,omitempty"`
	Submitting      bool              `json:"submitting"`
}

// Controller owns one conversation. It is safe for concurrent use; the lock
// is released while the lead API is called.
type Controller struct {
	id         string
	doc        *catalog.Document
	records    *persist.Records
	leads      Leads
	log        *logger.Logger
	afterFunc  AfterFunc
	closeDelay time.Duration
	region     string
	val        *validator.Validator

	mu        sync.Mutex
	state     *session.State
	phase     phase
	gen       uint64
	stopTimer func() bool
}

// New creates a controller at the email step.
func New(deps Deps) *Controller {
	if deps.AfterFunc == nil {
		deps.AfterFunc = realAfterFunc
	}
	if deps.CloseDelay <= 0 {
		deps.CloseDelay = DefaultCloseDelay
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	return &Controller{
		id:         deps.SessionID,
		doc:        deps.Doc,
		records:    deps.Records,
		leads:      deps.Leads,
		log:        deps.Log,
		afterFunc:  deps.AfterFunc,
		closeDelay: deps.CloseDelay,
		region:     deps.PhoneRegion,
		val:        validator.New(),
		state:      session.New(),
		phase:      awaitingEmail{},
	}
}

// Open starts a fresh conversation. It clears a stuck submission and
// pre-fills the email saved less than 30 minutes ago.
func (c *Controller) Open(ctx context.Context) Reply {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidate()
	email := c.recentEmail(ctx)
	c.state.Reset(false)
	c.state.Email = email
	c.enter(awaitingEmail{})

	return c.reply(Block{Type: BlockEmailPrompt, Value: email})
}

// SubmitEmail records the email and creates the account. Only then does the
// conversation move on to the qualifying question.
func (c *Controller) SubmitEmail(ctx context.Context, email string) (Reply, error) {
	email = strings.TrimSpace(email)
	if email == "" || !c.val.IsEmail(email) {
		return Reply{}, apperr.Validation("a valid email is required").WithOp("flow.SubmitEmail")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from, err := c.begin("flow.SubmitEmail", awaitingEmail{})
	if err != nil {
		return Reply{}, err
	}

	c.state.Email = email
	if err := c.records.SaveEmail(ctx, email); err != nil {
		c.log.WithContext(ctx).Warn("saving email failed", "error", err)
	}

	if err := c.unlocked(func() error { return c.leads.CreateAccount(ctx, email) }); err != nil {
		return c.fail(from, "flow.SubmitEmail", err)
	}

	c.enter(awaitingAnswer{})
	q := c.doc.PrimaryQuestion()
	delay := c.doc.Settings.TypingDelay
	return c.reply(
		pause(delay),
		important(c.doc, c.doc.Settings.IntroMessage),
		pause(delay),
		message(q.Text),
		pause(c.doc.Settings.ButtonDelay),
		Block{Type: BlockOptions, Options: q.Options},
	), nil
}

// Answer records the selected option and shows the ranked apps.
func (c *Controller) Answer(ctx context.Context, value string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("flow.Answer", awaitingAnswer{}); err != nil {
		return Reply{}, err
	}

	q := c.doc.PrimaryQuestion()
	if _, ok := q.Option(value); !ok {
		return Reply{}, apperr.Validation("unknown option").WithOp("flow.Answer").WithDetails(value)
	}

	c.state.Answers[q.ID] = value
	c.state.Recommendations = scoring.Recommend(c.state.Answers, c.doc)
	c.enter(showingResults{})

	blocks := []Block{
		message(c.doc.Message(catalog.MsgScanning)),
		pause(ThinkingDelayMS),
		message(c.doc.Message(catalog.MsgResults)),
		pause(ResultsPauseMS),
	}
	for _, rec := range c.state.Recommendations {
		blocks = append(blocks, cardFor(rec))
	}
	return c.reply(blocks...), nil
}

// SelectApp sends the immediate lead for a recommended app and opens its
// contextual form, or goes straight to the enrichment step.
func (c *Controller) SelectApp(ctx context.Context, appID string) (Reply, error) {
	const op = "flow.SelectApp"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect(op, showingResults{}); err != nil {
		return Reply{}, err
	}
	app, ok := c.state.Recommended(appID)
	if !ok {
		return Reply{}, apperr.Validation("app is not among the recommendations").WithOp(op).WithDetails(appID)
	}

	from, _ := c.begin(op, showingResults{})
	email := c.state.Email
	if err := c.unlocked(func() error {
		_, err := c.leads.SubmitImmediate(ctx, email, app)
		return err
	}); err != nil {
		return c.fail(from, op, err)
	}

	c.state.SelectedApp = &app
	blocks := []Block{
		message(c.doc.Message(catalog.MsgEmailSent)),
		pause(EmailSentPauseMS),
		message(c.doc.Message(catalog.MsgFormIntro)),
	}

	if app.HasContextualForm() {
		saved, err := c.records.RecentContextual(ctx, formFieldIDs(app))
		if err != nil {
			c.log.WithContext(ctx).Warn("reading contextual answers failed", "error", err)
		}
		c.enter(fillingContextual{app: app})
		return c.reply(append(blocks, contextualForm(app, saved))...), nil
	}

	return c.enterEnrichment(ctx, app, blocks)
}

// SubmitContextual validates and stores the app-specific answers, then
// moves to the enrichment step.
func (c *Controller) SubmitContextual(ctx context.Context, values map[string]string) (Reply, error) {
	const op = "flow.SubmitContextual"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect(op, fillingContextual{}); err != nil {
		return Reply{}, err
	}
	app := c.phase.(fillingContextual).app

	clean := sanitize.Fields(values, maxFieldLength)
	answers := make(map[string]string, len(app.FormQuestions))
	invalid := make(map[string]string)
	for _, q := range app.FormQuestions {
		v := clean[q.ID]
		switch {
		case v == "" && q.Required:
			invalid[q.ID] = "required"
		case v != "" && !q.Accepts(v):
			invalid[q.ID] = "not an allowed option"
		case v != "":
			answers[q.ID] = v
		}
	}
	if len(invalid) > 0 {
		return Reply{}, apperr.Validation("invalid form").WithOp(op).WithDetails(invalid)
	}

	if err := c.records.SaveContextual(ctx, answers); err != nil {
		c.log.WithContext(ctx).Warn("saving contextual answers failed", "error", err)
	}
	c.state.Contextual = answers

	return c.enterEnrichment(ctx, app, nil)
}

// SkipContextual moves to the enrichment step without storing anything.
func (c *Controller) SkipContextual(ctx context.Context) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("flow.SkipContextual", fillingContextual{}); err != nil {
		return Reply{}, err
	}
	return c.enterEnrichment(ctx, c.phase.(fillingContextual).app, nil)
}

// SubmitEnrichment stores the contact fields and sends the final lead.
func (c *Controller) SubmitEnrichment(ctx context.Context, in Enrichment) (Reply, error) {
	const op = "flow.SubmitEnrichment"

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect(op, fillingEnrichment{}); err != nil {
		return Reply{}, err
	}
	app := c.phase.(fillingEnrichment).app

	e := persist.Enrichment{
		FirstName: sanitize.Text(in.FirstName, maxFieldLength),
		LastName:  sanitize.Text(in.LastName, maxFieldLength),
		Phone:     phone.NormalizeE164(sanitize.Text(in.Phone, maxFieldLength), c.region),
	}
	if err := c.records.SaveEnrichment(ctx, e); err != nil {
		c.log.WithContext(ctx).Warn("saving enrichment failed", "error", err)
	}

	c.enter(submitting{from: c.phase})
	return c.submitFinal(ctx, app, e, nil)
}

// SkipEnrichment marks the lead complete and ends the conversation.
func (c *Controller) SkipEnrichment(ctx context.Context) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("flow.SkipEnrichment", fillingEnrichment{}); err != nil {
		return Reply{}, err
	}
	if err := c.records.MarkCompleted(ctx, c.state.Email); err != nil {
		c.log.WithContext(ctx).Warn("saving completion failed", "error", err)
	}
	return c.finish(message(c.doc.Message(catalog.MsgSuccess))), nil
}

// Close ends the conversation. The email survives only if it was saved
// less than 30 minutes ago; answers and recommendations never do.
func (c *Controller) Close(ctx context.Context) Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(ctx)
	return c.reply()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	answers := make(map[string]string, len(c.state.Answers))
	for k, v := range c.state.Answers {
		answers[k] = v
	}
	recs := make([]string, 0, len(c.state.Recommendations))
	for _, r := range c.state.Recommendations {
		recs = append(recs, r.App.ID)
	}
	snap := Snapshot{
		SessionID:       c.id,
		Step:            c.phase.step(),
		Email:           c.state.Email,
		Answers:         answers,
		Recommendations: recs,
	}
	if c.state.SelectedApp != nil {
		snap.SelectedApp = c.state.SelectedApp.ID
	}
	_, snap.Submitting = c.phase.(submitting)
	return snap
}

func (c *Controller) closeLocked(ctx context.Context) {
	c.invalidate()
	email, keep := c.recentEmailOK(ctx)
	c.state.Reset(keep)
	if keep {
		c.state.Email = email
	}
	c.enter(awaitingEmail{})
}

// enterEnrichment decides how the enrichment step starts: auto-submit with
// recent contact data, finish directly when the lead is already complete,
// or show the form.
func (c *Controller) enterEnrichment(ctx context.Context, app catalog.App, blocks []Block) (Reply, error) {
	saved, err := c.records.RecentEnrichment(ctx)
	if err != nil {
		c.log.WithContext(ctx).Warn("reading enrichment failed", "error", err)
	}

	if saved.CanAutoSubmit() {
		if _, ok := c.phase.(submitting); !ok {
			c.enter(submitting{from: c.phase})
		}
		return c.submitFinal(ctx, app, saved, blocks)
	}

	done, err := c.records.Completed(ctx, c.state.Email)
	if err != nil {
		c.log.WithContext(ctx).Warn("reading completion failed", "error", err)
	}
	if done {
		return c.finish(append(blocks, message(c.doc.Message(catalog.MsgSuccess)))...), nil
	}

	c.enter(fillingEnrichment{app: app})
	return c.reply(append(blocks, enrichmentForm(c.doc, saved))...), nil
}

// submitFinal must be called in the submitting phase.
func (c *Controller) submitFinal(ctx context.Context, app catalog.App, e persist.Enrichment, blocks []Block) (Reply, error) {
	const op = "flow.SubmitFinal"

	contextual, err := c.records.RecentContextual(ctx, formFieldIDs(app))
	if err != nil {
		c.log.WithContext(ctx).Warn("reading contextual answers failed", "error", err)
		contextual = map[string]string{}
	}
	for k, v := range c.state.Contextual {
		contextual[k] = v
	}

	lead := gateway.FinalLead(c.state.Email, app, contextual, e)
	if err := c.unlocked(func() error { return c.leads.SubmitFinal(ctx, lead) }); err != nil {
		if errors.Is(err, errSessionReset) {
			return Reply{}, err
		}
		c.enter(fillingEnrichment{app: app})
		reply := c.reply(append(blocks,
			errorMessage(c.doc.Message(catalog.MsgNetworkError)),
			enrichmentForm(c.doc, e),
		)...)
		return reply, apperr.Upstream(c.doc.Message(catalog.MsgNetworkError), err).WithOp(op).WithDetails(reply)
	}

	return c.finish(append(blocks, message(c.doc.Message(catalog.MsgEnrichmentSuccess)))...), nil
}

// finish moves to done and schedules the automatic close.
func (c *Controller) finish(blocks ...Block) Reply {
	c.enter(finished{})
	gen := c.gen
	c.stopTimer = c.afterFunc(c.closeDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return
		}
		c.closeLocked(context.Background())
	})
	return c.reply(append(blocks, Block{Type: BlockClose, DelayMS: int(c.closeDelay / time.Millisecond)})...)
}

// expect checks that the current phase has the same variant as want.
func (c *Controller) expect(op string, want phase) error {
	if _, busy := c.phase.(submitting); busy {
		c.log.Info("action dropped while submitting", "session_id", c.id, "op", op)
		return ErrSubmissionInFlight
	}
	if c.phase.step() != want.step() {
		return apperr.Conflict("action not allowed at this step").WithOp(op).WithDetails(map[string]string{
			"step": string(c.phase.step()),
		})
	}
	return nil
}

// begin enters the submitting phase and returns the phase to restore on failure.
func (c *Controller) begin(op string, want phase) (phase, error) {
	if err := c.expect(op, want); err != nil {
		return nil, err
	}
	from := c.phase
	c.enter(submitting{from: from})
	return from, nil
}

// unlocked runs fn without holding the lock. If the conversation was
// closed or reopened meanwhile, the result is discarded.
func (c *Controller) unlocked(fn func() error) error {
	gen := c.gen
	c.mu.Unlock()
	err := fn()
	c.mu.Lock()
	if c.gen != gen {
		return errSessionReset
	}
	return err
}

func (c *Controller) fail(from phase, op string, err error) (Reply, error) {
	if errors.Is(err, errSessionReset) {
		return Reply{}, err
	}
	c.enter(from)
	msg := c.doc.Message(catalog.MsgNetworkError)
	reply := c.reply(errorMessage(msg))
	return reply, apperr.Upstream(msg, err).WithOp(op).WithDetails(reply)
}

// invalidate cancels the pending close timer and any in-flight result.
func (c *Controller) invalidate() {
	c.gen++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Controller) enter(p phase) {
	from := c.phase.step()
	c.phase = p
	c.state.Step = p.step()
	if from != c.state.Step {
		c.log.FlowTransition(c.id, string(from), string(c.state.Step))
	}
}

func (c *Controller) reply(blocks ...Block) Reply {
	if blocks == nil {
		blocks = []Block{}
	}
	return Reply{Step: c.phase.step(), Blocks: blocks}
}

func (c *Controller) recentEmail(ctx context.Context) string {
	email, _ := c.recentEmailOK(ctx)
	return email
}

// recentEmailOK returns the saved email when fresh and drops it otherwise.
func (c *Controller) recentEmailOK(ctx context.Context) (string, bool) {
	email, ok, err := c.records.RecentEmail(ctx)
	if err != nil {
		c.log.WithContext(ctx).Warn("reading saved email failed", "error", err)
		return "", false
	}
	if !ok {
		if err := c.records.ForgetEmail(ctx); err != nil {
			c.log.WithContext(ctx).Warn("forgetting email failed", "error", err)
		}
		return "", false
	}
	return email, true
}
