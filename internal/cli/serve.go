package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sahajverma/storeping/internal/config"
	"github.com/sahajverma/storeping/internal/dispatch"
)

// NewServeCommand creates the serve command: webhook endpoints plus the
// debounce evaluator and scheduler loops.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func setupRouter(d *dispatch.Dispatcher) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	dispatch.RegisterWebhookRoutes(r, d)

	return r
}

func runServer(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDispatcher(ctx, cfg)
	if err != nil {
		return err
	}

	go d.Queue().Run(ctx, cfg.DebounceTick)
	go d.Reviews().Run(ctx, cfg.SweepInterval)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: setupRouter(d)}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
