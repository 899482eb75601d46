package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/sahajverma/storeping/internal/config"
)

// NewQualifyCommand creates the qualify command: manually mark an entity as
// qualifying, as if its triggering event had just arrived. Scheduling goes
// through the scheduler's normal earliest-wins merge, and the follow-up
// sweep fires through the normal lock and ledger discipline.
func NewQualifyCommand() *cobra.Command {
	var due string

	cmd := &cobra.Command{
		Use:   "qualify <entity-key>",
		Short: "Mark an entity as qualifying for its scheduled action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			dueAt := time.Now()
			if due != "" {
				dueAt, err = time.Parse(time.RFC3339, due)
				if err != nil {
					return fmt.Errorf("parse --due: %w", err)
				}
			}

			ctx := context.Background()
			d, err := buildDispatcher(ctx, cfg)
			if err != nil {
				return err
			}

			entityKey := args[0]
			if err := d.QualifyNow(ctx, entityKey, dueAt); err != nil {
				return err
			}
			log.Printf("[qualify] entity %s due at %s", entityKey, dueAt.Format(time.RFC3339))

			fired, err := d.Reviews().Sweep(ctx)
			if err != nil {
				return err
			}
			log.Printf("[qualify] sweep fired %d actions", fired)
			return nil
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "due time (RFC3339), defaults to now")
	return cmd
}
