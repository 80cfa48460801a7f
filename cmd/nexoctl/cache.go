package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexo-app/nexo/internal/config"
	"github.com/nexo-app/nexo/pkg/analysiscache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and size",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCacheSweep,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCache loads the cache file named by the server configuration. Only
// the cache settings are needed, so a missing DATABASE_URL is tolerated by
// reading the file location from the environment directly.
func openCache() *analysiscache.Cache {
	path := os.Getenv("ANALYSIS_CACHE_FILE")
	if path == "" {
		if cfg, err := config.Load(); err == nil {
			path = cfg.CacheFile
		} else {
			path = "data/analysis-cache.json"
		}
	}
	return analysiscache.Open(path, nil)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	stats := openCache().Stats()
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	removed := openCache().SweepExpired()
	fmt.Printf("removed %d expired entries\n", removed)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	openCache().Clear()
	fmt.Println("cache cleared")
	return nil
}
