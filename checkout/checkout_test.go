package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saareats/storefront/api"
	"github.com/saareats/storefront/cart"
	"github.com/saareats/storefront/core"
	"github.com/saareats/storefront/session"
)

type fakeSyncAPI struct {
	mu         sync.Mutex
	userSyncs  [][]cart.SyncEntry
	guestSyncs [][]cart.SyncEntry
	syncErr    error

	intentSecret string
	intentErr    error
	intentOrder  string
}

func (f *fakeSyncAPI) SyncUserCart(ctx context.Context, items []cart.SyncEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userSyncs = append(f.userSyncs, items)
	return f.syncErr
}

func (f *fakeSyncAPI) SaveGuestCart(ctx context.Context, items []cart.SyncEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guestSyncs = append(f.guestSyncs, items)
	return f.syncErr
}

func (f *fakeSyncAPI) CreatePaymentIntent(ctx context.Context, req api.PaymentIntentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentOrder = req.OrderID
	return f.intentSecret, f.intentErr
}

// authAPIStub drives the session manager into a known state.
type authAPIStub struct {
	identity *api.Identity
}

func (a *authAPIStub) Me(ctx context.Context) (*api.Identity, error) {
	if a.identity == nil {
		return nil, &api.Error{Status: 401}
	}
	return a.identity, nil
}

func (a *authAPIStub) Login(ctx context.Context, email, password string) (*api.Identity, error) {
	return a.identity, nil
}

func (a *authAPIStub) Register(ctx context.Context, payload api.RegisterPayload) (*api.Identity, error) {
	return a.identity, nil
}

func (a *authAPIStub) Logout(ctx context.Context) error { return nil }

type fixture struct {
	orch    *Orchestrator
	store   *cart.Store
	sync    *fakeSyncAPI
	auth    *authAPIStub
	manager *session.Manager
}

func newFixture(t *testing.T, authed bool) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := cart.NewStore(ctx, cart.StoreOptions{Storage: core.NewInMemoryStorage()})
	require.NoError(t, err)

	auth := &authAPIStub{}
	if authed {
		auth.identity = &api.Identity{ID: "u1", Email: "a@b.c"}
	}
	manager, err := session.NewManager(session.ManagerOptions{API: auth, Store: store})
	require.NoError(t, err)
	require.NoError(t, manager.Start(ctx))

	syncAPI := &fakeSyncAPI{intentSecret: "pi_secret"}
	orch, err := NewOrchestrator(OrchestratorOptions{
		Store:   store,
		Session: manager,
		API:     syncAPI,
		Storage: core.NewInMemoryStorage(),
	})
	require.NoError(t, err)

	return &fixture{orch: orch, store: store, sync: syncAPI, auth: auth, manager: manager}
}

func addItem(t *testing.T, store *cart.Store, id string, qty int) {
	t.Helper()
	require.NoError(t, store.Add(context.Background(), cart.Item{ID: id, Name: id, UnitPrice: 5}))
	if qty > 1 {
		require.NoError(t, store.SetQuantity(context.Background(), id, qty))
	}
}

func TestActivate_SyncsUserCartWhenAuthenticated(t *testing.T) {
	fx := newFixture(t, true)
	addItem(t, fx.store, "m1", 2)

	outcome := fx.orch.Activate(context.Background(), false)
	assert.Equal(t, SyncPerformed, outcome)
	require.Len(t, fx.sync.userSyncs, 1)
	assert.Empty(t, fx.sync.guestSyncs)
	assert.Equal(t, []cart.SyncEntry{{ID: "m1", Quantity: 2}}, fx.sync.userSyncs[0])
}

func TestActivate_SyncsGuestCartWhenAnonymous(t *testing.T) {
	fx := newFixture(t, false)
	addItem(t, fx.store, "m1", 1)

	outcome := fx.orch.Activate(context.Background(), true)
	assert.Equal(t, SyncPerformed, outcome)
	require.Len(t, fx.sync.guestSyncs, 1)
	assert.Empty(t, fx.sync.userSyncs)
	assert.True(t, fx.orch.GuestMode())
}

func TestActivate_EmptyCartSkips(t *testing.T) {
	fx := newFixture(t, true)

	assert.Equal(t, SyncSkipped, fx.orch.Activate(context.Background(), false))
	assert.Empty(t, fx.sync.userSyncs)
}

func TestActivate_RunsAtMostOnce(t *testing.T) {
	fx := newFixture(t, true)
	addItem(t, fx.store, "m1", 1)
	ctx := context.Background()

	assert.Equal(t, SyncPerformed, fx.orch.Activate(ctx, false))
	assert.Equal(t, SyncSkipped, fx.orch.Activate(ctx, false))
	assert.Equal(t, SyncSkipped, fx.orch.Activate(ctx, true), "sub-view switch must not re-sync")
	assert.Len(t, fx.sync.userSyncs, 1)
}

func TestActivate_FailureIsSwallowedAndLatched(t *testing.T) {
	fx := newFixture(t, true)
	addItem(t, fx.store, "m1", 1)
	fx.sync.syncErr = errors.New("sync endpoint down")
	ctx := context.Background()

	assert.Equal(t, SyncFailedLogged, fx.orch.Activate(ctx, false))

	// No retry even after the backend recovers.
	fx.sync.syncErr = nil
	assert.Equal(t, SyncSkipped, fx.orch.Activate(ctx, false))
	assert.Len(t, fx.sync.userSyncs, 1)
}

func TestLoginWithinCheckout_ClearsGuestMode(t *testing.T) {
	fx := newFixture(t, false)
	fx.orch.SetGuestMode(true)

	fx.auth.identity = &api.Identity{ID: "u1", Email: "a@b.c"}
	id, err := fx.orch.LoginWithinCheckout(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
	assert.False(t, fx.orch.GuestMode())
	assert.True(t, fx.manager.IsAuthenticated())
}

func TestGuestDetails_Validation(t *testing.T) {
	valid := GuestDetails{
		Name: "Asha", Email: "a@b.c", Address1: "1 High St", Postcode: "SA1 1AA",
	}

	tests := []struct {
		name   string
		mutate func(*GuestDetails)
		ok     bool
	}{
		{"complete", func(d *GuestDetails) {}, true},
		{"missing name", func(d *GuestDetails) { d.Name = "" }, false},
		{"missing email", func(d *GuestDetails) { d.Email = "" }, false},
		{"missing address", func(d *GuestDetails) { d.Address1 = "  " }, false},
		{"missing postcode", func(d *GuestDetails) { d.Postcode = "" }, false},
		{"malformed email", func(d *GuestDetails) { d.Email = "not-an-address" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrValidation)
			}
		})
	}
}

func TestGuestDetails_RoundTrip(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	d := GuestDetails{
		Name: "Asha", Email: "a@b.c", Phone: "07700900000",
		Address1: "1 High St", City: "Swansea", Postcode: "SA1 1AA",
		Notes: "ring the bell",
	}
	require.NoError(t, fx.orch.SaveGuestDetails(ctx, d))
	assert.Equal(t, d, fx.orch.LoadGuestDetails(ctx))

	require.NoError(t, fx.orch.ClearGuestDetails(ctx))
	assert.Equal(t, GuestDetails{}, fx.orch.LoadGuestDetails(ctx))
}

func TestSaveGuestDetails_InvalidNeverPersists(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	err := fx.orch.SaveGuestDetails(ctx, GuestDetails{Name: "Asha"})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, GuestDetails{}, fx.orch.LoadGuestDetails(ctx))
}

func TestCreatePaymentIntent(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	secret, err := fx.orch.CreatePaymentIntent(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "pi_secret", secret)
	assert.Equal(t, "o1", fx.sync.intentOrder)

	_, err = fx.orch.CreatePaymentIntent(ctx, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	fx.sync.intentErr = &api.Error{Status: 404, Message: "order not found"}
	_, err = fx.orch.CreatePaymentIntent(ctx, "ghost")
	require.Error(t, err)
}
