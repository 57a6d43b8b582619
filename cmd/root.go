package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/anoixa/menu-storage/config"
	"github.com/anoixa/menu-storage/internal/app"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "menu-storage",
	Short:         "File storage service for the restaurant menu admin",
	Version:       config.VersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfig(configPath)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServer(cmd.Context())
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (eg: /etc/menu-storage/.env)")
}

// withContainer 初始化容器后执行 fn，结束时释放资源
func withContainer(ctx context.Context, fn func(*app.Container) error) error {
	container := app.NewContainer(config.Get())
	if err := container.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger().Warn("failed to close container", "error", err)
		}
	}()
	return fn(container)
}
