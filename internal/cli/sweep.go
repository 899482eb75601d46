package cli

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/sahajverma/storeping/internal/config"
)

// NewSweepCommand creates the sweep command: one manual re-scan pass over
// the durable state, identical to the server's periodic sweep.
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one recovery pass over scheduled actions and quiet checkouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx := context.Background()
			d, err := buildDispatcher(ctx, cfg)
			if err != nil {
				return err
			}

			fired, err := d.Reviews().Sweep(ctx)
			if err != nil {
				return err
			}
			consumed, err := d.Queue().Evaluate(ctx)
			if err != nil {
				return err
			}

			log.Printf("[sweep] fired %d scheduled actions, evaluated %d quiet checkouts", fired, consumed)
			return nil
		},
	}
}
