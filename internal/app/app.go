package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"dragon-mcp/internal/alerting"
	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/config"
	"dragon-mcp/internal/contract"
	"dragon-mcp/internal/crosschain"
	"dragon-mcp/internal/httpapi"
	"dragon-mcp/internal/lottery"
	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/storage"
	"dragon-mcp/internal/tools"
	"dragon-mcp/internal/vrf"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// dial overrides how RPC backends are opened.
	dial contract.DialFunc
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() (*contract.Client, error) {
	return contract.New(chain.NewRegistry(a.Config), contract.Options{
		PrivateKey:     a.Config.Signer.PrivateKey,
		GasLimit:       a.Config.Signer.GasLimit,
		CallTimeout:    a.Config.Oracle.RequestTimeout,
		ReceiptTimeout: a.Config.Signer.ReceiptTimeout,
		Dial:           a.dial,
	}, a.Logger)
}

func (a *App) newOracle(client *contract.Client) *oracle.Service {
	return oracle.NewService(client, oracle.Options{
		HealthChains:          a.Config.Oracle.HealthChains,
		DeviationThresholdPct: a.Config.Oracle.DeviationThresholdPct,
	}, a.Logger)
}

// newToolset wires every domain service behind the tools. The caller closes
// the returned client.
func (a *App) newToolset() (*tools.Toolset, *contract.Client, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, nil, err
	}
	reg := client.Registry()
	a.Logger.Info().Strs("chains", reg.IDs()).Str("primary", reg.Primary()).Msg("chain registry loaded")
	if a.Config.HasSigner() {
		a.Logger.Info().Str("sender", client.Sender().Hex()).Msg("signer configured")
	} else {
		a.Logger.Warn().Msg("no private key configured; state-changing tools are disabled")
	}
	ts := tools.New(tools.Services{
		Registry:   client.Registry(),
		Oracle:     a.newOracle(client),
		Lottery:    lottery.NewService(client, a.Config.Lottery.SimulationUser, a.Logger),
		CrossChain: crosschain.NewService(client, a.Logger),
		VRF:        vrf.NewService(client, a.Logger),
	}, a.Logger)
	return ts, client, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// newCounter prefers Redis when configured so replicas share quotas.
func (a *App) newCounter(ctx context.Context) (httpapi.Counter, func(), error) {
	if a.Config.Redis.URL == "" {
		return httpapi.NewMemoryCounter(), func() {}, nil
	}
	counter, err := httpapi.NewRedisCounter(a.Config.Redis.URL, a.Config.Redis.KeyPrefix)
	if err != nil {
		return nil, nil, err
	}
	if err := counter.Ping(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("redis unreachable at startup; counting continues to fail open")
	}
	return counter, func() { _ = counter.Close() }, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	return store, store.Close, nil
}

// ExportOptions hold parameters for exporting historical snapshots.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit   int
	Details bool
}

// ServeOptions configure the HTTP API command.
type ServeOptions struct {
	WithMonitor bool
}
