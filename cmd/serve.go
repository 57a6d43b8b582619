package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/menu-storage/api/core"
	"github.com/anoixa/menu-storage/internal/app"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// RunServer 启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出
func RunServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withContainer(ctx, func(c *app.Container) error {
		log := c.Logger()

		server, cleanup, err := core.StartServer(&core.RouterDependencies{
			Config:   c.Config(),
			Uploads:  c.Uploads(),
			Cache:    c.Cache(),
			Logger:   log,
			Registry: c.Registry(),
		})
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		defer cleanup()

		serveErr := make(chan error, 1)
		go func() {
			log.Info("server started", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info("server exited")
		return nil
	})
}
