// Package cli defines the storeping command tree. The sweep and qualify
// commands are the operational triggers: they call the same scheduler and
// ledger code paths the server uses, never a parallel implementation.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sahajverma/storeping/internal/config"
	"github.com/sahajverma/storeping/internal/dispatch"
	"github.com/sahajverma/storeping/internal/ledger"
	"github.com/sahajverma/storeping/internal/locks"
	"github.com/sahajverma/storeping/internal/notify"
	"github.com/sahajverma/storeping/internal/shop"
	"github.com/sahajverma/storeping/internal/storage"
)

// NewRootCommand creates the storeping root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storeping",
		Short:         "Relay commerce webhooks into messaging notifications",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewSweepCommand())
	cmd.AddCommand(NewQualifyCommand())

	return cmd
}

// buildDispatcher assembles the core from config, shared by every command.
func buildDispatcher(ctx context.Context, cfg config.Config) (*dispatch.Dispatcher, error) {
	backend, err := storage.NewBackend(ctx, storage.Options{
		Kind:        cfg.StateBackend,
		Dir:         cfg.StateDir,
		DynamoTable: cfg.DynamoTable,
	})
	if err != nil {
		return nil, err
	}

	routing, err := config.LoadRouting(cfg.RoutingFile)
	if err != nil {
		return nil, err
	}

	return dispatch.New(dispatch.Deps{
		Backend:       backend,
		Locks:         locks.NewTable(backend, cfg.LockLease),
		Ledger:        ledger.New(backend),
		Sender:        notify.NewClient(cfg.ProviderBaseURL, cfg.ProviderToken),
		Shop:          shop.NewHTTPClient(cfg.ShopBaseURL, cfg.ShopToken),
		Audit:         storage.NewAuditLog(cfg.AuditPath),
		Secret:        []byte(cfg.WebhookSecret),
		Routing:       routing,
		DebounceDelay: cfg.DebounceDelay,
		ReviewDelay:   cfg.ReviewDelay,
	}), nil
}
