package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpadapter "github.com/PabloGalante/farum-studio/internal/adapters/http"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

func NewServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  # Local development with the mock model
  $ farum serve --use-mock-llm

  # Persist sessions in SQLite
  $ FARUM_API_KEY=... farum serve --storage-backend sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String("port", "8080", "listen port")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) (err error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpadapter.NewServer(a.workspaces, a.users, a.creds),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log := observability.Logger()
	errCh := make(chan error, 1)
	go func() {
		log.Info("Farum API listening", "addr", srv.Addr, "storage", cfg.StorageBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
