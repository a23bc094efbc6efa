package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"marketplace/internal/backend"
	"marketplace/internal/domain/profile"
	"marketplace/internal/i18n"
	"marketplace/internal/logger"
	"marketplace/internal/mail"
	"marketplace/internal/payments"
	"marketplace/internal/session"
)

// CtxKey is the gin context key holding the visitor's *Orchestrator.
const CtxKey = "registration"

type State string

const (
	Editing    State = "editing"
	Submitting State = "submitting"
	Success    State = "success"
	Failed     State = "failed"
)

// Step is one stage of the registration pipeline, in execution order.
type Step string

const (
	StepProfile        Step = "profile"
	StepPayoutAccount  Step = "payout_account"
	StepPersistAccount Step = "persist_account"
)

var (
	ErrInProgress = errors.New("registration already submitting")
	ErrCompleted  = errors.New("registration already completed")
	// ErrStale is returned by a submission whose orchestrator was reset while it ran.
	ErrStale = errors.New("registration reset during submit")
)

// StepError reports which pipeline step failed. Steps before it stay done.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

type Backend interface {
	SubmitProviderProfile(ctx context.Context, form backend.Form) (backend.Reply, error)
	UpdateStripeAccount(ctx context.Context, form backend.Form) (backend.Reply, error)
}

type OptionsSource interface {
	Profile(ctx context.Context, userID string) (profile.Profile, error)
	Countries(ctx context.Context) ([]profile.Country, error)
	Municipalities(ctx context.Context) ([]profile.Municipality, error)
}

// Deps are shared by every visitor's orchestrator.
type Deps struct {
	Backend       Backend
	Accounts      payments.Accounts
	Options       OptionsSource
	Mailer        mail.Mailer
	PayoutCountry string
	Log           *slog.Logger
}

type Result struct {
	Message   string `json:"message"`
	Redirect  string `json:"redirect,omitempty"`
	AccountID string `json:"account_id"`
}

type Status struct {
	State  State   `json:"state"`
	Next   Step    `json:"next_step,omitempty"`
	Error  string  `json:"error,omitempty"`
	Draft  Draft   `json:"draft"`
	Result *Result `json:"result,omitempty"`
}

type Options struct {
	Profile        *profile.Profile       `json:"profile,omitempty"`
	Countries      []profile.Country      `json:"countries"`
	Municipalities []profile.Municipality `json:"municipalities"`
}

// Orchestrator runs provider registration as a resumable pipeline:
// profile, then payout account, then persisting the account id against the profile.
type Orchestrator struct {
	sessions *session.Store
	deps     Deps

	mu          sync.Mutex
	state       State
	draft       Draft
	profileDone bool
	accountID   string
	err         error
	result      *Result
	// gen changes on every submission and reset; a run only writes while its gen is current.
	gen    uint64
	cancel context.CancelFunc
	// running stays set until a pipeline returns, even one cancelled by Reset.
	running bool
}

func New(sessions *session.Store, d Deps) *Orchestrator {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.PayoutCountry == "" {
		d.PayoutCountry = "US"
	}
	return &Orchestrator{sessions: sessions, deps: d, state: Editing}
}

// Edit applies fn to the draft. A failed submission returns to Editing with the draft intact.
// A completed registration is read-only until Reset.
func (o *Orchestrator) Edit(fn func(d *Draft)) (Draft, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case Submitting:
		return o.draft.clone(), ErrInProgress
	case Success:
		return o.draft.clone(), ErrCompleted
	}
	d := o.draft.clone()
	fn(&d)
	o.draft = d
	if o.state == Failed {
		o.state = Editing
	}
	return o.draft.clone(), nil
}

func (o *Orchestrator) Draft() Draft {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.draft.clone()
}

// Submit validates the draft and runs the pending pipeline steps.
// A retry after a failure starts at the failed step; the profile is never submitted twice.
func (o *Orchestrator) Submit(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Result{}, ErrInProgress
	}
	switch o.state {
	case Success:
		r := *o.result
		o.mu.Unlock()
		return r, nil
	}

	sess, err := o.sessions.Require()
	if err != nil {
		o.mu.Unlock()
		return Result{}, err
	}
	draft := o.draft.clone()
	if err := draft.Validate(); err != nil {
		o.mu.Unlock()
		return Result{}, err
	}
	if draft.Email == "" {
		draft.Email = sess.Email
	}

	o.state = Submitting
	o.err = nil
	o.gen++
	gen := o.gen
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	profileDone, accountID := o.profileDone, o.accountID
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	log := o.deps.Log.With(slog.String("user_id", sess.UserID))
	form := draft.Form(sess)

	if !profileDone {
		if _, err := o.deps.Backend.SubmitProviderProfile(runCtx, form); err != nil {
			return Result{}, o.fail(gen, log, StepProfile, err)
		}
		if !o.commit(gen, func() { o.profileDone = true }) {
			log.Warn("registration reset after profile submit")
			return Result{}, ErrStale
		}
		log.Info("provider profile submitted")
	}

	if accountID == "" {
		accountID, err = o.deps.Accounts.CreateAccount(runCtx, payments.AccountRequest{
			Email:   draft.Email,
			Country: o.deps.PayoutCountry,
		})
		if err != nil {
			return Result{}, o.fail(gen, log, StepPayoutAccount, err)
		}
		if !o.commit(gen, func() { o.accountID = accountID }) {
			o.compensate(runCtx, gen, log, accountID)
			return Result{}, ErrStale
		}
	}

	form.Fields.Set("account_id", accountID)
	reply, err := o.deps.Backend.UpdateStripeAccount(runCtx, form)
	if err != nil {
		o.compensate(runCtx, gen, log, accountID)
		return Result{}, o.fail(gen, log, StepPersistAccount, err)
	}

	res := Result{Message: reply.Message, Redirect: reply.Redirect, AccountID: accountID}
	if !o.commit(gen, func() {
		o.state = Success
		o.result = &res
		o.cancel = nil
	}) {
		log.Warn("registration reset before completion, result dropped", slog.String("account_id", accountID))
		return Result{}, ErrStale
	}
	log.Info("provider registered", slog.String("account_id", accountID))

	o.notify(log, draft)
	return res, nil
}

// Options loads the form's prefill and dropdowns. Each failing section is logged and left empty.
// A found profile fills blank name and email fields of the draft.
func (o *Orchestrator) Options(ctx context.Context) (Options, error) {
	sess, err := o.sessions.Require()
	if err != nil {
		return Options{}, err
	}
	out := Options{Countries: []profile.Country{}, Municipalities: []profile.Municipality{}}
	if o.deps.Options == nil {
		return out, nil
	}
	log := o.deps.Log.With(slog.String("user_id", sess.UserID))

	if p, err := o.deps.Options.Profile(ctx, sess.UserID); err != nil {
		log.Warn("supabase error", slog.String("table", "profiles"), slog.Any("err", err))
	} else {
		out.Profile = &p
		o.prefill(p)
	}
	if cs, err := o.deps.Options.Countries(ctx); err != nil {
		log.Warn("supabase error", slog.String("table", "country"), slog.Any("err", err))
	} else {
		out.Countries = cs
	}
	if ms, err := o.deps.Options.Municipalities(ctx); err != nil {
		log.Warn("supabase error", slog.String("table", "major_municipality"), slog.Any("err", err))
	} else {
		out.Municipalities = ms
	}
	return out, nil
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state, Draft: o.draft.clone(), Next: o.nextLocked()}
	if o.err != nil {
		st.Error = o.err.Error()
	}
	if o.result != nil {
		r := *o.result
		st.Result = &r
	}
	return st
}

// Reset forgets the draft and all progress. A submission still running is cancelled
// and none of its results are kept.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.gen++
	o.state = Editing
	o.draft = Draft{}
	o.profileDone = false
	o.accountID = ""
	o.err = nil
	o.result = nil
}

func (o *Orchestrator) nextLocked() Step {
	switch {
	case o.state == Success:
		return ""
	case !o.profileDone:
		return StepProfile
	case o.accountID == "":
		return StepPayoutAccount
	default:
		return StepPersistAccount
	}
}

func (o *Orchestrator) prefill(p profile.Profile) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Submitting {
		return
	}
	if o.draft.FirstName == "" {
		o.draft.FirstName = p.FirstName
	}
	if o.draft.LastName == "" {
		o.draft.LastName = p.LastName
	}
	if o.draft.Email == "" {
		o.draft.Email = p.Email
	}
	if o.draft.ProviderName == "" {
		o.draft.ProviderName = o.draft.DisplayName()
	}
}

// commit runs fn under the lock if gen is still current.
func (o *Orchestrator) commit(gen uint64, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) fail(gen uint64, log *slog.Logger, step Step, err error) error {
	se := &StepError{Step: step, Err: err}
	log.Warn("registration step failed", slog.String("step", string(step)), slog.Any("err", err))
	if !o.commit(gen, func() {
		o.state = Failed
		o.err = se
		o.cancel = nil
	}) {
		return ErrStale
	}
	return se
}

// compensate deletes a payout account that could not be attached to the profile.
// If the delete fails the id is kept so the next attempt reuses the account.
func (o *Orchestrator) compensate(ctx context.Context, gen uint64, log *slog.Logger, accountID string) {
	if err := o.deps.Accounts.DeleteAccount(context.WithoutCancel(ctx), accountID); err != nil {
		log.Error("payout account rollback failed", slog.String("account_id", accountID), slog.Any("err", err))
		return
	}
	o.commit(gen, func() { o.accountID = "" })
}

func (o *Orchestrator) notify(log *slog.Logger, d Draft) {
	if o.deps.Mailer == nil || d.Email == "" {
		return
	}
	t := i18n.Lookup(d.Lang)
	if err := o.deps.Mailer.Send(d.Email, t.T("buttons.register"), t.T("messages.registrationReceived")); err != nil {
		log.Warn("registration mail failed", slog.Any("err", err))
	}
}
