package certlink

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantumauth-io/certlink/cmd/certlink/config"
	"github.com/quantumauth-io/certlink/internal/certlink/backend"
	"github.com/quantumauth-io/certlink/internal/certlink/chains"
	"github.com/quantumauth-io/certlink/internal/certlink/contracts/certificate"
	"github.com/quantumauth-io/certlink/internal/certlink/delegated"
	clienthttp "github.com/quantumauth-io/certlink/internal/certlink/http"
	"github.com/quantumauth-io/certlink/internal/certlink/mint"
	"github.com/quantumauth-io/certlink/internal/certlink/network"
	"github.com/quantumauth-io/certlink/internal/certlink/provider"
	"github.com/quantumauth-io/certlink/internal/certlink/session"
	"github.com/quantumauth-io/certlink/internal/certlink/verifier"
)

const shutdownTimeout = 5 * time.Second

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// App holds the wired connector. Close releases the wallet bridge and the
// read-only chain client.
type App struct {
	Chain    chains.ChainDescriptor
	Session  *session.Session
	Minter   *mint.Coordinator
	Verifier *verifier.Verifier
	Router   *gin.Engine

	adapter  *provider.Adapter
	readOnly *chains.ReadOnlyService
}

// NewApp builds every component from cfg. Nothing here touches the chain;
// the read-only client is dialed on first use.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	chain := chains.Target().WithRPCURL(cfg.Chain.RPCURL)

	readOnly, err := chains.NewReadOnlyService(chain, nil)
	if err != nil {
		return nil, err
	}

	contract, err := certificate.New(cfg.ContractAddress())
	if err != nil {
		return nil, err
	}

	// ---- Wallet provider
	var p provider.Provider
	if cfg.Provider.URL != "" {
		rp, err := provider.Dial(ctx, cfg.Provider.URL, cfg.Provider.PollInterval)
		if err != nil {
			log.Warn("wallet provider unavailable, continuing read-only", "url", cfg.Provider.URL, "error", err)
		} else {
			p = rp
		}
	} else {
		log.Warn("no wallet provider configured, continuing read-only")
	}
	adapter := provider.NewAdapter(p)

	// ---- Backend mirror
	var (
		syncer   session.AccountSyncer
		recorder mint.ResultRecorder
	)
	if cfg.Backend.BaseURL != "" {
		bc, err := backend.NewClient(cfg.Backend)
		if err != nil {
			adapter.Close()
			return nil, err
		}
		syncer, recorder = bc, bc
	}

	// ---- Session
	policy, err := session.ParseChainChangePolicy(cfg.Session.ChainChangePolicy)
	if err != nil {
		adapter.Close()
		return nil, err
	}
	sess := session.New(adapter, network.NewGuard(chain), syncer, session.Options{
		ChainChangePolicy: policy,
		EventBuffer:       cfg.Session.EventBuffer,
	})

	// ---- Mint strategy
	strategy, err := newStrategy(cfg, contract, adapter, readOnly)
	if err != nil {
		adapter.Close()
		return nil, err
	}
	coordinator := mint.NewCoordinator(sess, strategy, recorder)
	ver := verifier.New(contract, sess, adapter, readOnly)

	handler := clienthttp.NewHandler(sess, coordinator, ver, contract.Address())

	return &App{
		Chain:    chain,
		Session:  sess,
		Minter:   coordinator,
		Verifier: ver,
		Router:   clienthttp.NewRouter(handler, cfg.Server.AllowedOrigins),
		adapter:  adapter,
		readOnly: readOnly,
	}, nil
}

func newStrategy(cfg *config.Config, contract *certificate.Contract, adapter *provider.Adapter,
	readOnly *chains.ReadOnlyService) (mint.Strategy, error) {
	switch cfg.Mint.Strategy {
	case config.StrategyDelegated:
		minter, err := delegated.NewHTTPMinter(cfg.Delegated.Config)
		if err != nil {
			return nil, err
		}
		license, err := cfg.License()
		if err != nil {
			return nil, err
		}
		return mint.NewDelegatedStrategy(minter, license), nil
	default:
		return mint.NewDirectStrategy(contract, adapter, mint.ReadOnlyReceipts(readOnly),
			cfg.Mint.GasLimit, cfg.Mint.ReceiptPollInterval), nil
	}
}

func (a *App) Close() {
	a.adapter.Close()
	a.readOnly.Close()
}

func Run(ctx context.Context, build BuildInfo) error {
	log.Info("certlink",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	// ---- Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	log.Info("connector ready",
		"chain_id", app.Chain.ChainID,
		"rpc", app.Chain.RPCURL,
		"strategy", app.Minter.StrategyName())

	// Pick up a wallet that already approved this app.
	if res, restored, err := app.Session.Restore(ctx); err != nil {
		log.Warn("could not restore wallet session", "error", err)
	} else if restored {
		log.Info("wallet session restored", "account", res.Account.Short())
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Session.Run(gctx)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		log.Info("HTTP server gracefully stopped")
		return nil
	})

	return g.Wait()
}
