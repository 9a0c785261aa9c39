package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/fleetstore/internal/sequence"
)

func buildSeqCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seq",
		Short: "Work with sequence counters",
	}
	cmd.AddCommand(buildSeqNextCommand())
	return cmd
}

func buildSeqNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next <scope> [parent ids...]",
		Short: "Allocate the next id of a scope from the configured store",
		Long: `Allocate one id directly against the configured store.

Global scopes: job, location, user, notification, localization,
robot_status, custom_log. Scoped: sector <location>, map <location> <sector>,
mjob <location> <sector>.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, a := range args[1:] {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid parent id %q: %w", a, err)
				}
				ids = append(ids, id)
			}
			scope, ok := sequence.ParseScope(args[0], ids...)
			if !ok {
				return fmt.Errorf("unknown scope %q with %d parent ids", args[0], len(ids))
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			counter, closeCounter, err := newCounter(cfg, store)
			if err != nil {
				_ = store.Close(ctx)
				return err
			}

			v, allocErr := sequence.NewAllocator(counter).Allocate(ctx, scope)
			if err := closeAll(ctx, store, closeCounter); err != nil && allocErr == nil {
				return err
			}
			if allocErr != nil {
				return allocErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
