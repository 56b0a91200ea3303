package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/google/uuid"
	"github.com/kaoiks/crypto-coin/app/services/node/handlers"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/keystore"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/wallet"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/worker"
	"github.com/kaoiks/crypto-coin/foundation/events"
	"github.com/kaoiks/crypto-coin/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			P2PHost    string `conf:"default:localhost:9001"`
			KnownPeers []string
			Difficulty uint `conf:"default:4"`
		}
		Miner struct {
			Keystore string
			Password string `conf:"mask"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "crypto-coin node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Mining Identity Support

	// A node only mines when a keystore is configured. Without one it runs
	// as a plain relay.
	var miner state.SigningAuthority
	if cfg.Miner.Keystore != "" {
		identities, err := keystore.Load(cfg.Miner.Keystore, cfg.Miner.Password)
		if err != nil {
			return fmt.Errorf("unable to load mining identity: %w", err)
		}

		w := wallet.New(identities[0])
		miner = w

		log.Infow("startup", "status", "mining enabled", "identity", identities[0].ID, "name", identities[0].Name)
	}

	// =========================================================================
	// Blockchain Support

	// The blockchain packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	st := state.New(state.Config{
		NodeID:     uuid.NewString(),
		ListenHost: cfg.Node.P2PHost,
		Advertise:  cfg.Node.P2PHost,
		Difficulty: cfg.Node.Difficulty,
		KnownPeers: cfg.Node.KnownPeers,
		Miner:      miner,
		EvHandler:  ev,
	})

	if err := st.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer st.Shutdown()

	// The worker package implements the mining loop. The worker registers
	// itself with the state. Relay nodes don't run one.
	if miner != nil {
		worker.Run(st, ev)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
