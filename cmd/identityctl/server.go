package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/identity-in-go/pkg/audit"
	"github.com/doodlesbykumbi/identity-in-go/pkg/config"
	"github.com/doodlesbykumbi/identity-in-go/pkg/db"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/endpoints"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if p, err := strconv.Atoi(defaultPort()); err == nil {
		return p
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the identity server",
	Long: `Run the identity server.

The server requires DATABASE_URL. The cookie and bearer identity policies
also require IDENTITY_DATA_KEY; the session policy requires redis_url.

By default, database migrations are run on startup. Use --no-migrate to skip.
Changes to the pool limits in the config file are applied without a restart.`,
	Run: func(cmd *cobra.Command, args []string) {
		if db.URL() == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		if err := runServer(cfg, host, port); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}

func runServer(cfg *config.Config, host, port string) error {
	idPolicy, closePolicy, err := newPolicy(cfg)
	if err != nil {
		return fmt.Errorf("unable to set up identity policy: %w", err)
	}
	defer closePolicy()

	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	p, err := pool.New(database, pool.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	var auditor audit.Sink = audit.Nop{}
	if audit.Enabled() {
		auditStore, err := audit.NewStore()
		if err != nil {
			return fmt.Errorf("unable to open audit database: %w", err)
		}
		defer func() { _ = auditStore.Close() }()
		auditor = audit.New(os.Stdout, auditStore)
	}

	s := server.NewServer(database, p, cfg, idPolicy, auditor, host, port)
	endpoints.RegisterAll(s)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		err := config.Watch(ctx, cfg.ConfigFilePath(),
			func(updated *config.Config) {
				p.Apply(pool.OptionsFromConfig(updated))
				slog.Info("applied pool configuration",
					"max_open", updated.PoolMaxOpen,
					"max_idle", updated.PoolMaxIdle,
					"checkout_timeout", updated.CheckoutTimeout())
			},
			func(err error) {
				slog.Warn("ignoring configuration change", "error", err)
			},
		)
		if err != nil {
			slog.Warn("configuration watch stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Running server at http://%s...\n", s.Addr())
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}
