// Command terminal runs the SahelPOS till backend: the local store,
// the background synchronization engine and the localhost status API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sahelpos/terminal/internal/config"
	"github.com/sahelpos/terminal/internal/db"
	"github.com/sahelpos/terminal/internal/httpapi"
	"github.com/sahelpos/terminal/internal/logging"
	syncpkg "github.com/sahelpos/terminal/internal/sync"
	"github.com/sahelpos/terminal/internal/sync/scheduler"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "terminal",
		Short: "SahelPOS till backend",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "terminal.yaml", "path to the configuration file")

	root.AddCommand(serveCmd(), syncCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg    *config.Config
	dbh    *db.DB
	store  *db.Store
	engine *syncpkg.Engine
}

func (a *app) close() {
	a.store.Close()
	a.dbh.Close()
}

// setup opens the store, runs migrations and wires the sync engine.
func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))

	dbh, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	if err := db.NewMigrator(dbh.DB).Up(); err != nil {
		dbh.Close()
		return nil, err
	}

	store := db.NewStore(dbh.DB)
	creds := &syncpkg.StoreProvider{Store: store, Key: cfg.CredentialKey}
	client := syncpkg.NewClient(cfg.ServerURL, creds, cfg.ProbeTimeout, cfg.RequestTimeout)
	engine := syncpkg.NewEngine(
		store,
		syncpkg.NewProber(client),
		syncpkg.NewExtractor(store),
		client,
		syncpkg.NewMerger(store),
	)

	return &app{cfg: cfg, dbh: dbh, store: store, engine: engine}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal backend with background synchronization",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(a.engine, &scheduler.Config{
				Interval: a.cfg.SyncInterval,
				Timeout:  2 * a.cfg.RequestTimeout,
			})
			if a.cfg.CloudConfigured() {
				sched.Start(ctx)
				defer sched.Stop()
			} else {
				logging.Warn("No server configured, running purely offline", nil)
			}

			mux := http.NewServeMux()
			httpapi.NewHandler(a.engine).RegisterRoutes(mux)

			server := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()

			logging.Info("Status API listening",
				map[string]interface{}{"addr": a.cfg.ListenAddr})
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.engine.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("mode=%s pushed=%d pulled=%d merged=%d rejected=%d checkpoint=%s\n",
				result.Mode, result.Pushed, result.Pulled, result.Merged, result.Rejected, result.Checkpoint)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the local synchronization state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			checkpoint, err := a.store.Checkpoint()
			if err != nil {
				return err
			}
			deviceID, err := a.store.GetParameter(db.ParamDeviceID, "(not provisioned)")
			if err != nil {
				return err
			}
			fmt.Printf("checkpoint=%s\ndevice_id=%s\nserver=%s\n",
				checkpoint, deviceID, a.cfg.ServerURL)
			return nil
		},
	}
}
