// cmd/tools/payout-admin/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"settlement-engine/internal/common/config"
	"settlement-engine/internal/common/database"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/payout"
	"settlement-engine/internal/payout/ledger"
)

var (
	configPath string
	timeout    time.Duration
	actor      string
)

var rootCmd = &cobra.Command{
	Use:   "payout-admin",
	Short: "Operator tooling for payouts and entitlements",
	Long: `Inspect balances, move payout requests through their lifecycle and
resolve an account's entitlement against the configured database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "operator", "Actor recorded on payout audit events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime holds the connections a single command needs.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	pg      *database.PostgresClient
	ledger  *ledger.Ledger
	payouts *payout.Manager
}

func openRuntime(ctx context.Context) (*runtime, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	log := logger.NewFromOptions(logger.Options{Level: cfg.Logging.Level, Format: "console", OutputPath: "stderr"})

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	l := ledger.New(pg.DB)
	return &runtime{
		cfg:     cfg,
		log:     log,
		pg:      pg,
		ledger:  l,
		payouts: payout.NewManager(pg.DB, l, payout.SettingsFromConfig(cfg.Payout), log),
	}, nil
}

func (r *runtime) Close() {
	r.pg.Close()
}

// withRuntime opens the runtime under the command timeout and closes it afterwards.
func withRuntime(fn func(ctx context.Context, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, rt, args)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
