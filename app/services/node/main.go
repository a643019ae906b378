package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/moon/app/services/node/handlers"
	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/distributor"
	"github.com/ardanlabs/moon/foundation/blockchain/genesis"
	"github.com/ardanlabs/moon/foundation/blockchain/signature"
	"github.com/ardanlabs/moon/foundation/blockchain/state"
	"github.com/ardanlabs/moon/foundation/blockchain/storage/boltdb"
	"github.com/ardanlabs/moon/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/moon/foundation/blockchain/worker"
	"github.com/ardanlabs/moon/foundation/events"
	"github.com/ardanlabs/moon/foundation/logger"
	"github.com/ardanlabs/moon/foundation/nameservice"
	"github.com/ardanlabs/moon/foundation/status"
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

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
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
		State struct {
			MinerName       string        `conf:"default:miner1"`
			GenesisPath     string        `conf:"default:zblock/genesis.json"`
			Storage         string        `conf:"default:disk,help:disk or bolt"`
			DBPath          string        `conf:"default:zblock/moon.chain"`
			BoltPath        string        `conf:"default:zblock/moon.db"`
			StatusFolder    string        `conf:"default:zblock"`
			MempoolSize     int           `conf:"default:1000"`
			BlockInterval   time.Duration `conf:"default:60s"`
			DistributorHost string        `conf:"default:0.0.0.0:38333"`
			WriteTimeout    time.Duration `conf:"default:30s"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "moon proof of work ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
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

	fmt.Println(`  __  __  ___   ___  _  _ `)
	fmt.Println(` |  \/  |/ _ \ / _ \| \| |`)
	fmt.Println(` | |\/| | (_) | (_) | .' |`)
	fmt.Println(` |_|  |_|\___/ \___/|_|\_|`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// Need to load the private key file for the configured miner so the account
	// can get credited with the block rewards. The key is created on first run.
	path := filepath.Join(cfg.NameService.Folder, cfg.State.MinerName+".ecdsa")
	privateKey, created, err := signature.LoadOrCreateKey(path)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	if created {
		log.Infow("startup", "status", "created miner key", "path", path)
	}

	// The nameservice package provides name resolution for account addresses.
	// The names come from the file names in the zblock/accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	var storage database.Storage
	switch cfg.State.Storage {
	case "disk":
		var d *disk.Disk
		if d, err = disk.New(cfg.State.DBPath); err == nil {
			primary, backup := d.Paths()
			log.Infow("startup", "status", "disk storage", "primary", primary, "backup", backup)
			storage = d
		}
	case "bolt":
		storage, err = boltdb.New(cfg.State.BoltPath)
	default:
		err = fmt.Errorf("unknown storage %q", cfg.State.Storage)
	}
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	stat, err := status.New(cfg.State.StatusFolder)
	if err != nil {
		return fmt.Errorf("unable to construct status: %w", err)
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. The viewer events are sent to any websocket client
	// that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		const websocketPrefix = "viewer:"

		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, websocketPrefix) {
			evts.Send(s)
		}
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	state, err := state.New(state.Config{
		BeneficiaryID: database.PublicKeyToAccountID(privateKey.PublicKey),
		Genesis:       gen,
		Storage:       storage,
		MempoolSize:   cfg.State.MempoolSize,
		Status:        stat,
		EvHandler:     ev,
	})
	if err != nil {
		storage.Close()
		return err
	}
	defer state.Shutdown()

	// The worker package implements the mining workflow. The worker will
	// register itself with the state.
	worker.Run(state, cfg.State.BlockInterval, ev)

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listeners. Use a
	// buffered channel so the goroutines can exit if we don't collect the error.
	serverErrors := make(chan error, 2)

	// =========================================================================
	// Start Chain Distributor

	dist := distributor.New(distributor.Config{
		Host:         cfg.State.DistributorHost,
		Chain:        state,
		WriteTimeout: cfg.State.WriteTimeout,
		EvHandler:    ev,
	})

	go func() {
		log.Infow("startup", "status", "chain distributor started", "host", cfg.State.DistributorHost)
		if err := dist.ListenAndServe(); err != nil {
			serverErrors <- fmt.Errorf("distributor: %w", err)
		}
	}()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, state)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    state,
		NS:       ns,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		evts.Shutdown()
		dist.Shutdown()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Stop handing out the chain.
		log.Infow("shutdown", "status", "shutdown chain distributor")
		if err := dist.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "chain distributor", "ERROR", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
