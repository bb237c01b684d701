package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"settlement-engine/internal/common/config"
	"settlement-engine/internal/entitlement"
	"settlement-engine/internal/entitlement/events"
	"settlement-engine/internal/entitlement/pricing"
	"settlement-engine/internal/entitlement/role"
	"settlement-engine/internal/entitlement/subscription"
	"settlement-engine/internal/models"
)

var metadataRole string

// The role cache is always in-process here; a one-shot command gains nothing from Redis.
var entitlementCmd = &cobra.Command{
	Use:   "entitlement <account-id>",
	Short: "Resolve the entitlement an account would get right now",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(ctx context.Context, rt *runtime, args []string) error {
		ent := rt.cfg.Entitlement
		prices := pricing.FromConfig(ent.Prices)
		resolver := role.NewResolver(
			role.NewMemoryCache(time.Duration(ent.RoleCacheTTL)*time.Second),
			role.NewPostgresLookup(rt.pg.DB),
			rt.log,
			role.WithLookupTimeout(config.GetDuration(ent.LookupTimeout)),
		)
		reader := subscription.NewReader(rt.pg.DB, prices, config.GetDuration(ent.SubscriptionTimeout), rt.log)

		session := entitlement.NewSession(resolver, reader, entitlement.NewCalculator(prices, time.Now), events.NewBus(), rt.log)
		defer session.Close()

		session.SetAuth(models.AuthState{AccountID: args[0], MetadataRole: metadataRole})
		result, err := session.Wait(ctx)
		if err != nil {
			return err
		}
		return printJSON(rootCmd, result)
	}),
}

func init() {
	entitlementCmd.Flags().StringVar(&metadataRole, "metadata-role", "", "Role hint from the auth provider's user metadata")
	rootCmd.AddCommand(entitlementCmd)
}
