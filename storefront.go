// Package storefront is the client core of the SaarEats food-ordering
// app: persistent cart, session lifecycle, cart reconciliation, live
// order tracking and checkout orchestration, wired together behind one
// App value.
//
// Users who need a single component can import the submodules directly:
//   - github.com/saareats/storefront/cart     - persistent cart store
//   - github.com/saareats/storefront/session  - auth lifecycle + notices
//   - github.com/saareats/storefront/orders   - order list + live tracker
//   - github.com/saareats/storefront/checkout - checkout orchestration
//   - github.com/saareats/storefront/api      - backend HTTP client
package storefront

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/saareats/storefront/api"
	"github.com/saareats/storefront/cart"
	"github.com/saareats/storefront/checkout"
	"github.com/saareats/storefront/core"
	"github.com/saareats/storefront/orders"
	"github.com/saareats/storefront/session"
	"github.com/saareats/storefront/stream"
	"github.com/saareats/storefront/telemetry"
)

// App is the assembled storefront client. Construct it with New, call
// Start once to resolve the initial session, and Close when done.
type App struct {
	Config *core.Config
	Logger core.Logger

	API      *api.Client
	Cart     *cart.Store
	Session  *session.Manager
	Orders   *orders.List
	Tracker  *orders.Tracker // nil when the stream provider is "none"
	Checkout *checkout.Orchestrator

	storage   core.Storage
	source    stream.Source
	telemetry core.Telemetry
	shutdown  func(context.Context) error
}

// New builds an App from configuration options layered over defaults and
// environment variables.
func New(ctx context.Context, opts ...core.Option) (*App, error) {
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	logger := core.NewStructuredLogger(cfg.Logging, cfg.Service, "app")

	var tel core.Telemetry = &core.NoOpTelemetry{}
	var shutdown func(context.Context) error
	if cfg.Telemetry.Enabled {
		name := cfg.Telemetry.ServiceName
		if name == "" {
			name = cfg.Service
		}
		provider, err := telemetry.NewOTelProvider(name, cfg.Telemetry.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		tel = provider
		shutdown = provider.Shutdown
	}

	storage, err := buildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(api.ClientOptions{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  core.NewStructuredLogger(cfg.Logging, cfg.Service, "api"),
	})
	if err != nil {
		return nil, err
	}

	store, err := cart.NewStore(ctx, cart.StoreOptions{
		Storage: storage,
		SlotKey: cfg.Storage.CartSlotKey,
		Logger:  core.NewStructuredLogger(cfg.Logging, cfg.Service, "cart"),
	})
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(session.ManagerOptions{
		API:            client,
		Store:          store,
		ServerCart:     client.Cart(),
		Logger:         core.NewStructuredLogger(cfg.Logging, cfg.Service, "session"),
		NoticeTTL:      cfg.Session.NoticeTTL,
		ExpiryCoalesce: cfg.Session.ExpiryCoalesce,
	})
	if err != nil {
		return nil, err
	}

	ordersLogger := core.NewStructuredLogger(cfg.Logging, cfg.Service, "orders")
	list := orders.NewList(client, ordersLogger)

	source, err := buildSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	var tracker *orders.Tracker
	if source != nil {
		tracker = orders.NewTracker(source, list, ordersLogger)
	}

	orch, err := checkout.NewOrchestrator(checkout.OrchestratorOptions{
		Store:        store,
		Session:      manager,
		API:          client,
		Storage:      storage,
		Logger:       core.NewStructuredLogger(cfg.Logging, cfg.Service, "checkout"),
		GuestSlotKey: cfg.Storage.GuestSlotKey,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Storefront assembled", map[string]interface{}{
		"storage": cfg.Storage.Provider,
		"stream":  cfg.Stream.Provider,
		"cart":    store.Len(),
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		API:       client,
		Cart:      store,
		Session:   manager,
		Orders:    list,
		Tracker:   tracker,
		Checkout:  orch,
		storage:   storage,
		source:    source,
		telemetry: tel,
		shutdown:  shutdown,
	}, nil
}

func buildStorage(cfg *core.Config, logger core.Logger) (core.Storage, error) {
	switch cfg.Storage.Provider {
	case "", "memory":
		return core.NewInMemoryStorage(), nil
	case "file":
		return core.NewFileStorage(cfg.Storage.Dir, logger)
	case "redis":
		return core.NewRedisStorage(core.RedisStorageOptions{
			RedisURL: cfg.Storage.RedisURL,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("%w: storage provider %q", core.ErrInvalidConfiguration, cfg.Storage.Provider)
	}
}

func buildSource(cfg *core.Config, logger core.Logger) (stream.Source, error) {
	switch cfg.Stream.Provider {
	case "", "none":
		return nil, nil
	case "websocket":
		wsURL := cfg.Stream.URL
		if wsURL == "" {
			derived, err := deriveWebSocketURL(cfg.API.BaseURL)
			if err != nil {
				return nil, err
			}
			wsURL = derived
		}
		return stream.NewWebSocketSource(stream.WebSocketOptions{
			URL:    wsURL,
			Logger: logger,
		})
	case "redis":
		return stream.NewRedisSource(stream.RedisSourceOptions{
			RedisURL: cfg.Stream.RedisURL,
			Channel:  cfg.Stream.Channel,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("%w: stream provider %q", core.ErrInvalidConfiguration, cfg.Stream.Provider)
	}
}

// deriveWebSocketURL maps the API base URL onto the backend's push
// endpoint, so most deployments only configure one URL.
func deriveWebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: cannot derive websocket URL from %q", core.ErrInvalidConfiguration, baseURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: cannot derive websocket URL from %q", core.ErrInvalidConfiguration, baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/orders"
	return u.String(), nil
}

// Start resolves the initial session state. An expired session resolves
// to anonymous; only transport-level failures are returned.
func (a *App) Start(ctx context.Context) error {
	return a.Session.Start(ctx)
}

// Telemetry returns the active telemetry provider (no-op when disabled).
func (a *App) Telemetry() core.Telemetry {
	return a.telemetry
}

// Close releases background resources: the order tracker, the push
// channel, and the telemetry pipeline. The cart stays persisted.
func (a *App) Close(ctx context.Context) error {
	if a.Tracker != nil {
		a.Tracker.Stop()
	}

	var firstErr error
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			firstErr = err
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Re-exported types so simple integrations only import this package.
type (
	Config  = core.Config
	Option  = core.Option
	Logger  = core.Logger
	Storage = core.Storage

	Item         = cart.Item
	SyncEntry    = cart.SyncEntry
	Identity     = api.Identity
	Order        = orders.Order
	OrderUpdate  = stream.OrderUpdate
	GuestDetails = checkout.GuestDetails
	SyncOutcome  = checkout.SyncOutcome
)

// Re-exported configuration options.
var (
	DefaultConfig       = core.DefaultConfig
	WithService         = core.WithService
	WithBaseURL         = core.WithBaseURL
	WithAPITimeout      = core.WithAPITimeout
	WithStorageProvider = core.WithStorageProvider
	WithStorageDir      = core.WithStorageDir
	WithRedisURL        = core.WithRedisURL
	WithStreamProvider  = core.WithStreamProvider
	WithStreamURL       = core.WithStreamURL
	WithTelemetry       = core.WithTelemetry
	WithLogLevel        = core.WithLogLevel
	WithLogFormat       = core.WithLogFormat
	WithConfigFile      = core.WithConfigFile
)

// Re-exported checkout sync outcomes.
const (
	SyncSkipped      = checkout.SyncSkipped
	SyncPerformed    = checkout.SyncPerformed
	SyncFailedLogged = checkout.SyncFailedLogged
)
