package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/anoixa/menu-storage/internal/app"
	"github.com/anoixa/menu-storage/storage"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured storage providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider types and whether they can serve requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *app.Container) error {
			return printProviders(cmd.OutOrStdout(), c.Uploads().GetConfig(), c.Uploads().GetAvailableProviders())
		})
	},
}

var providersHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every available provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *app.Container) error {
			report := c.Uploads().GetProviderHealth(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			for _, h := range report {
				if !h.Available {
					return fmt.Errorf("provider %s is unhealthy: %s", h.Provider, h.Detail)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd, providersHealthCmd)
}

func printProviders(w io.Writer, cfg *storage.ServiceConfig, available []storage.ProviderType) error {
	usable := make(map[storage.ProviderType]bool, len(available))
	for _, t := range available {
		usable[t] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tCONFIGURED\tENABLED\tAVAILABLE\tROLE")
	for _, t := range storage.AllProviderTypes() {
		pc := cfg.Provider(t)
		role := "-"
		switch t {
		case cfg.DefaultProvider:
			role = "default"
		case cfg.FallbackProvider:
			role = "fallback"
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%t\t%s\n", t, pc != nil, pc != nil && pc.Enabled, usable[t], role)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
