package cmd

import (
	"fmt"

	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/internal/app"
	"github.com/spf13/cobra"
)

// cacheCmd 缓存管理命令
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
}

// cacheClearCmd 清除健康报告缓存，指定 --key 时同时清除该对象的元数据缓存
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached health report and object metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		override, err := providerFlag(cmd)
		if err != nil {
			return err
		}

		return withContainer(cmd.Context(), func(c *app.Container) error {
			ctx := cmd.Context()
			p := c.Cache()

			keys := []string{cache.ProviderHealth.Build("report")}
			if key != "" {
				if override == "" {
					override = c.Uploads().GetConfig().DefaultProvider
				}
				keys = append(keys, cache.ObjectMeta.Build(string(override), key))
			}

			for _, k := range keys {
				if err := p.Delete(ctx, k); err != nil {
					return fmt.Errorf("failed to delete cache key %s: %w", k, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d key(s) from %s cache\n", len(keys), p.Name())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().String("key", "", "object key whose metadata should be evicted")
	cacheClearCmd.Flags().String("provider", "", "provider the object lives on, defaults to the default provider")
}
