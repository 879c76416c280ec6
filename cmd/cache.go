package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
	Long:  "Inspect and maintain the result cache. Only useful with a shared backend (redis or sqlite); the memory backend lives in the server process.",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initCounty(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()
		warnLocalCache(env)

		st, err := env.Service.Status(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete one cache key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initCounty(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()
		warnLocalCache(env)

		if err := env.Service.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initCounty(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()
		warnLocalCache(env)

		if err := env.Service.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheDeleteCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// warnLocalCache checks the backend actually opened, which may be a memory
// fallback for an unreachable redis.
func warnLocalCache(env *countyEnv) {
	if _, ok := env.Backend.(*cache.MemoryBackend); ok {
		zap.L().Warn("cache backend is memory; this command only sees its own empty process cache")
	}
}
