// Package checkout coordinates the checkout surface: the one-shot
// best-effort cart sync, guest mode, and guest contact details.
//
// The cart sync exists so the payment step can see the cart server-side
// before an order is placed. It is an optimization, never a correctness
// requirement: a failed sync is logged and checkout continues on the
// local cart.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/saareats/storefront/api"
	"github.com/saareats/storefront/cart"
	"github.com/saareats/storefront/core"
	"github.com/saareats/storefront/session"
)

// GuestSlotKey is the storage slot for persisted guest checkout details.
const GuestSlotKey = "saareats_guest_checkout_v1"

// SyncOutcome reports what Activate did about the cart sync.
type SyncOutcome int

const (
	// SyncSkipped means no sync was attempted: empty cart or already done.
	SyncSkipped SyncOutcome = iota
	// SyncPerformed means the snapshot reached the backend.
	SyncPerformed
	// SyncFailedLogged means the attempt failed and was swallowed. The
	// sync still counts as done; checkout proceeds on the local cart.
	SyncFailedLogged
)

// String implements fmt.Stringer for log fields.
func (o SyncOutcome) String() string {
	switch o {
	case SyncPerformed:
		return "performed"
	case SyncFailedLogged:
		return "failed_logged"
	default:
		return "skipped"
	}
}

// SyncAPI is the slice of the backend checkout consumes. api.Client
// implements it.
type SyncAPI interface {
	SyncUserCart(ctx context.Context, items []cart.SyncEntry) error
	SaveGuestCart(ctx context.Context, items []cart.SyncEntry) error
	CreatePaymentIntent(ctx context.Context, req api.PaymentIntentRequest) (string, error)
}

// GuestDetails is the contact form a guest fills in instead of logging in.
type GuestDetails struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Address1 string `json:"address1"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode"`
	Notes    string `json:"notes,omitempty"`
}

// Validate checks the fields required to fulfil a guest order.
func (d GuestDetails) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(d.Address1) == "" {
		missing = append(missing, "address1")
	}
	if strings.TrimSpace(d.Postcode) == "" {
		missing = append(missing, "postcode")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", core.ErrValidation, strings.Join(missing, ", "))
	}
	if at := strings.Index(d.Email, "@"); at <= 0 || at == len(d.Email)-1 {
		return fmt.Errorf("%w: email %q is not an address", core.ErrValidation, d.Email)
	}
	return nil
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Store   *cart.Store
	Session *session.Manager
	API     SyncAPI
	Storage core.Storage // slot for guest details
	Logger  core.Logger

	// GuestSlotKey overrides the guest details slot. Defaults to
	// GuestSlotKey.
	GuestSlotKey string
}

// Orchestrator drives one checkout flow. Create one per application; its
// syncDone latch spans the whole session, so navigating away from
// checkout and back does not re-send the cart.
type Orchestrator struct {
	store   *cart.Store
	session *session.Manager
	api     SyncAPI
	storage core.Storage
	logger  core.Logger
	slotKey string

	mu        sync.Mutex
	syncDone  bool
	guestMode bool
}

// NewOrchestrator creates a checkout orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Store == nil || opts.Session == nil || opts.API == nil {
		return nil, core.NewClientError("checkout.NewOrchestrator", "checkout", core.ErrMissingConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	storage := opts.Storage
	if storage == nil {
		storage = core.NewInMemoryStorage()
	}
	slot := opts.GuestSlotKey
	if slot == "" {
		slot = GuestSlotKey
	}
	return &Orchestrator{
		store:   opts.Store,
		session: opts.Session,
		api:     opts.API,
		storage: storage,
		logger:  logger,
		slotKey: slot,
	}, nil
}

// Activate is called when the checkout view opens. On the first
// activation with a non-empty cart it sends one best-effort cart
// snapshot to the backend: the user endpoint when authenticated, the
// guest endpoint otherwise. The latch is set before the call so neither
// success nor failure ever triggers a second attempt.
func (o *Orchestrator) Activate(ctx context.Context, guestMode bool) SyncOutcome {
	o.mu.Lock()
	o.guestMode = guestMode
	if o.syncDone {
		o.mu.Unlock()
		return SyncSkipped
	}
	o.syncDone = true
	o.mu.Unlock()

	payload := o.store.SyncPayload()
	if len(payload) == 0 {
		return SyncSkipped
	}

	var err error
	endpoint := "guest"
	if o.session.IsAuthenticated() {
		endpoint = "user"
		err = o.api.SyncUserCart(ctx, payload)
	} else {
		err = o.api.SaveGuestCart(ctx, payload)
	}
	if err != nil {
		o.logger.Warn("Cart sync failed, continuing on local cart", map[string]interface{}{
			"endpoint": endpoint,
			"items":    len(payload),
			"error":    err.Error(),
		})
		return SyncFailedLogged
	}

	o.logger.Debug("Cart synced", map[string]interface{}{
		"endpoint": endpoint,
		"items":    len(payload),
	})
	return SyncPerformed
}

// GuestMode reports whether checkout is in guest mode.
func (o *Orchestrator) GuestMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.guestMode
}

// SetGuestMode switches between the login and guest sub-views. Pure
// state; never re-triggers the cart sync.
func (o *Orchestrator) SetGuestMode(on bool) {
	o.mu.Lock()
	o.guestMode = on
	o.mu.Unlock()
}

// LoginWithinCheckout logs in without leaving checkout. The session
// manager runs the full reconciliation flow; on success guest mode is
// cleared so the order is placed against the account.
func (o *Orchestrator) LoginWithinCheckout(ctx context.Context, email, password string) (*api.Identity, error) {
	id, err := o.session.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	o.SetGuestMode(false)
	return id, nil
}

// SaveGuestDetails validates and persists the guest contact form so the
// payment step can read it back. Validation failures never touch storage
// or the network.
func (o *Orchestrator) SaveGuestDetails(ctx context.Context, d GuestDetails) error {
	if err := d.Validate(); err != nil {
		return core.NewClientError("checkout.SaveGuestDetails", "checkout", err)
	}
	encoded, err := json.Marshal(d)
	if err != nil {
		return core.NewClientError("checkout.SaveGuestDetails", "checkout", err)
	}
	if err := o.storage.Set(ctx, o.slotKey, string(encoded)); err != nil {
		return core.NewClientError("checkout.SaveGuestDetails", "checkout", err)
	}
	return nil
}

// LoadGuestDetails reads persisted guest details. Absent or unreadable
// content yields the zero value, matching how the cart treats its slot.
func (o *Orchestrator) LoadGuestDetails(ctx context.Context) GuestDetails {
	raw, err := o.storage.Get(ctx, o.slotKey)
	if err != nil || raw == "" {
		return GuestDetails{}
	}
	var d GuestDetails
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		o.logger.Warn("Discarding corrupt guest details", map[string]interface{}{
			"error": err.Error(),
		})
		return GuestDetails{}
	}
	return d
}

// ClearGuestDetails removes the persisted guest details, typically after
// the order is placed.
func (o *Orchestrator) ClearGuestDetails(ctx context.Context) error {
	return o.storage.Delete(ctx, o.slotKey)
}

// CreatePaymentIntent opens a payment for the given order and returns
// the processor's client secret.
func (o *Orchestrator) CreatePaymentIntent(ctx context.Context, orderID string) (string, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", core.NewClientError("checkout.CreatePaymentIntent", "checkout",
			fmt.Errorf("%w: order id required", core.ErrValidation))
	}
	secret, err := o.api.CreatePaymentIntent(ctx, api.PaymentIntentRequest{OrderID: orderID})
	if err != nil {
		return "", err
	}
	return secret, nil
}
