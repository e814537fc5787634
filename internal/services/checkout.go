// Package services – Checkout
//
// Checkout is the purchase state machine for one package selection:
//
//	selecting_package -> collecting_account -> awaiting_confirmation
//	                  -> confirming -> confirmed
//
// with aborted as the terminal state when no package was supplied. Account
// fields are editable until confirming begins. A confirmation validates the
// account, requires an identity, builds the Purchase and writes it to the
// remote store and then the local cache. Only when both writes succeed does
// the checkout become confirmed and schedule the redirect to the history view.
//
// The confirming state is the re-entrancy guard: it is entered under the
// checkout mutex, so at most one confirmation is in flight per checkout.
// Store writes run outside the lock.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/domain"
)

// State is a checkout state.
type State string

const (
	StateSelectingPackage     State = "selecting_package"
	StateCollectingAccount    State = "collecting_account"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateConfirming           State = "confirming"
	StateConfirmed            State = "confirmed"
	StateAborted              State = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateConfirmed || s == StateAborted }

// InputsLocked reports whether account fields can no longer change.
func (s State) InputsLocked() bool {
	switch s {
	case StateConfirming, StateConfirmed, StateAborted:
		return true
	default:
		return false
	}
}

// Redirect targets.
const (
	RouteStorefront = "/"
	RouteHistory    = "/purchases"
)

// DefaultRedirectDelay is how long the confirmation stays on screen before
// the history view opens.
const DefaultRedirectDelay = 3 * time.Second

// Message shown when persistence fails and the user may retry.
const persistFailedReason = "payment could not be recorded, please try again"

// RemoteStore is the durable purchase store. It is only written to here.
type RemoteStore interface {
	Append(ctx context.Context, p domain.Purchase) error
}

// LocalStore is the per-device purchase cache.
type LocalStore interface {
	Append(ctx context.Context, p domain.Purchase) error
}

// Scheduler runs fn once after d. The returned function cancels the run and
// reports whether it stopped it before it started.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func() bool)
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Redirect describes a navigation the checkout asks its caller to perform.
type Redirect struct {
	To        string    `json:"to"`
	At        time.Time `json:"at"`
	Fired     bool      `json:"fired"`
	Cancelled bool      `json:"cancelled"`
}

// CheckoutDeps are the collaborators of a Checkout. Zero fields get defaults
// except Remote and Local, which are required.
type CheckoutDeps struct {
	Remote        RemoteStore
	Local         LocalStore
	Scheduler     Scheduler
	RedirectDelay time.Duration
	// Navigate is called when a redirect fires.
	Navigate func(checkoutID, to string)
	Now      func() time.Time
	NewID    func() string
	Logger   zerolog.Logger
}

func (d CheckoutDeps) withDefaults() CheckoutDeps {
	if d.Scheduler == nil {
		d.Scheduler = TimerScheduler{}
	}
	if d.RedirectDelay < 0 {
		d.RedirectDelay = 0
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// Checkout is one purchase attempt for a selected package.
type Checkout struct {
	id   string
	deps CheckoutDeps

	mu             sync.Mutex
	state          State
	pkg            domain.Package
	riotID         string
	riotTag        string
	lastErr        string
	purchase       *domain.Purchase
	redirect       *Redirect
	cancelRedirect func() bool
}

// CheckoutView is a read-only copy of a checkout.
type CheckoutView struct {
	ID           string           `json:"id"`
	State        State            `json:"state"`
	Package      *domain.Package  `json:"package,omitempty"`
	RiotID       string           `json:"riotId"`
	RiotTag      string           `json:"riotTag"`
	InputsLocked bool             `json:"inputsLocked"`
	CanConfirm   bool             `json:"canConfirm"`
	Error        string           `json:"error,omitempty"`
	Purchase     *domain.Purchase `json:"purchase,omitempty"`
	Message      string           `json:"message,omitempty"`
	Redirect     *Redirect        `json:"redirect,omitempty"`
}

// NewCheckout starts a checkout for pkg. The returned checkout is never nil:
// without a valid package it is already aborted, carries an immediate
// redirect to the storefront root, and ErrPackageRequired is returned.
func NewCheckout(id string, pkg *domain.Package, deps CheckoutDeps) (*Checkout, error) {
	c := &Checkout{id: id, deps: deps.withDefaults(), state: StateSelectingPackage}
	if pkg == nil || !pkg.Valid() {
		c.state = StateAborted
		c.redirect = &Redirect{To: RouteStorefront, At: c.deps.Now().UTC(), Fired: true}
		if c.deps.Navigate != nil {
			c.deps.Navigate(id, RouteStorefront)
		}
		return c, ErrPackageRequired
	}
	c.pkg = *pkg
	c.state = StateCollectingAccount
	return c, nil
}

// ID returns the checkout id.
func (c *Checkout) ID() string { return c.id }

// State returns the current state.
func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetAccount records the edited account fields. Both are normalized as they
// are entered. No validation happens here.
func (c *Checkout) SetAccount(riotID, riotTag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAborted:
		return ErrCheckoutAborted
	case StateConfirming, StateConfirmed:
		return ErrInputsLocked
	}
	c.riotID = NormalizeRiotID(riotID)
	c.riotTag = NormalizeTag(riotTag)
	c.state = StateAwaitingConfirmation
	return nil
}

// Confirm handles the "payment confirmed" action for who.
//
// Outcomes:
//   - *ValidationError: account invalid, state stays awaiting_confirmation
//     and the reason is shown.
//   - ErrIdentityRequired: nothing changes.
//   - ErrConfirmationInFlight / ErrAlreadyConfirmed / ErrCheckoutAborted:
//     rejected without side effects.
//   - *PersistenceError: a store write failed; the checkout returns to
//     awaiting_confirmation and may be confirmed again with a fresh id.
//
// On success the purchase is in both stores, the checkout is confirmed and
// the redirect to the history view is scheduled.
func (c *Checkout) Confirm(ctx context.Context, who auth.Identity) (*domain.Purchase, error) {
	ctx, span := otel.Tracer("services/Checkout").Start(ctx, "Confirm",
		trace.WithAttributes(
			attribute.String("checkout.id", c.id),
			attribute.String("user.id", who.UID),
		),
	)
	defer span.End()

	p, err := c.begin(who)
	if err != nil {
		span.SetAttributes(attribute.String("checkout.rejected", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.String("purchase.id", p.ID))

	if err := c.persist(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		c.fail(err)
		return nil, err
	}

	c.finish(p)
	return &p, nil
}

// begin performs the guarded transition into confirming and builds the
// purchase to write.
func (c *Checkout) begin(who auth.Identity) (domain.Purchase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAborted:
		return domain.Purchase{}, ErrCheckoutAborted
	case StateConfirming:
		return domain.Purchase{}, ErrConfirmationInFlight
	case StateConfirmed:
		return domain.Purchase{}, ErrAlreadyConfirmed
	case StateCollectingAccount:
		c.state = StateAwaitingConfirmation
	}

	if err := validateNormalized(c.riotID, c.riotTag); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			c.lastErr = ve.Reason
			validationFailures.WithLabelValues(ve.Reason).Inc()
		}
		return domain.Purchase{}, err
	}
	if !who.Authenticated() {
		return domain.Purchase{}, ErrIdentityRequired
	}

	c.state = StateConfirming
	c.lastErr = ""
	return domain.Purchase{
		ID:      c.deps.NewID(),
		UserID:  who.UID,
		Points:  c.pkg.Points,
		Price:   c.pkg.Price,
		RiotID:  c.riotID,
		RiotTag: c.riotTag,
		Status:  domain.StatusCompleted,
		Date:    c.deps.Now().UTC().Truncate(time.Millisecond),
	}, nil
}

// persist writes p to the remote store and, only if that worked, to the
// local cache. A local failure after a remote success leaves the remote row
// in place.
func (c *Checkout) persist(ctx context.Context, p domain.Purchase) error {
	if err := c.deps.Remote.Append(ctx, p); err != nil {
		return &PersistenceError{Store: "remote", Err: err}
	}
	if err := c.deps.Local.Append(ctx, p); err != nil {
		return &PersistenceError{Store: "local", Err: err}
	}
	return nil
}

func (c *Checkout) fail(err error) {
	store := "unknown"
	var pe *PersistenceError
	if errors.As(err, &pe) {
		store = pe.Store
	}
	persistFailures.WithLabelValues(store).Inc()
	c.deps.Logger.Error().
		Err(err).
		Str("checkout_id", c.id).
		Str("store", store).
		Msg("purchase persistence failed")

	c.mu.Lock()
	c.state = StateAwaitingConfirmation
	c.lastErr = persistFailedReason
	c.mu.Unlock()
}

func (c *Checkout) finish(p domain.Purchase) {
	purchasesConfirmed.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateConfirmed
	c.purchase = &p
	delay := c.deps.RedirectDelay
	c.redirect = &Redirect{To: RouteHistory, At: c.deps.Now().UTC().Add(delay)}
	c.cancelRedirect = c.deps.Scheduler.Schedule(delay, c.fireRedirect)

	c.deps.Logger.Info().
		Str("checkout_id", c.id).
		Str("purchase_id", p.ID).
		Str("user_id", p.UserID).
		Int("points", p.Points).
		Msg("purchase confirmed")
}

func (c *Checkout) fireRedirect() {
	c.mu.Lock()
	r := c.redirect
	if r == nil || r.Cancelled || r.Fired {
		c.mu.Unlock()
		return
	}
	r.Fired = true
	to := r.To
	c.mu.Unlock()

	if c.deps.Navigate != nil {
		c.deps.Navigate(c.id, to)
	}
}

// CancelRedirect stops a pending redirect. It reports false when there is
// nothing left to cancel.
func (c *Checkout) CancelRedirect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.redirect
	if r == nil || r.Fired || r.Cancelled || c.cancelRedirect == nil {
		return false
	}
	// Cancelled is checked by fireRedirect, so a run that already started
	// becomes a no-op even if the timer could not be stopped.
	_ = c.cancelRedirect()
	r.Cancelled = true
	return true
}

// Snapshot returns a copy of the checkout for display.
func (c *Checkout) Snapshot() CheckoutView {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := CheckoutView{
		ID:           c.id,
		State:        c.state,
		RiotID:       c.riotID,
		RiotTag:      c.riotTag,
		InputsLocked: c.state.InputsLocked(),
		CanConfirm:   c.state == StateCollectingAccount || c.state == StateAwaitingConfirmation,
		Error:        c.lastErr,
	}
	if c.state != StateAborted {
		pkg := c.pkg
		v.Package = &pkg
	}
	if c.purchase != nil {
		p := *c.purchase
		v.Purchase = &p
		v.Message = ConfirmationMessage(p)
	}
	if c.redirect != nil {
		r := *c.redirect
		v.Redirect = &r
	}
	return v
}

// ConfirmationMessage is the text shown once a purchase is confirmed.
func ConfirmationMessage(p domain.Purchase) string {
	return "VP will be credited to " + p.Account()
}
