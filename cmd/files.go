package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anoixa/menu-storage/internal/app"
	"github.com/anoixa/menu-storage/storage"
	"github.com/anoixa/menu-storage/utils/validator"
	"github.com/spf13/cobra"
)

var errOperationFailed = errors.New("one or more operations failed")

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload local files through the configured providers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		key, _ := cmd.Flags().GetString("key")
		if key != "" && len(args) > 1 {
			return errors.New("--key can only be used with a single file")
		}

		files := make([]*storage.UploadFile, len(args))
		for i, path := range args {
			f, err := readLocalFile(path)
			if err != nil {
				return err
			}
			f.Folder = folder
			f.Key = key
			files[i] = f
		}

		return withContainer(cmd.Context(), func(c *app.Container) error {
			results := c.Uploads().UploadMultiple(cmd.Context(), files)
			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if s := storage.Summarize(results); s.Failed > 0 {
				return fmt.Errorf("%w: %d of %d uploads failed", errOperationFailed, s.Failed, s.Total)
			}
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a stored object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override, err := providerFlag(cmd)
		if err != nil {
			return err
		}
		return withContainer(cmd.Context(), func(c *app.Container) error {
			result := c.Uploads().Delete(cmd.Context(), args[0], override)
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%w: %s", errOperationFailed, result.Error)
			}
			return nil
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <key>",
	Short: "Show metadata and URL of a stored object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override, err := providerFlag(cmd)
		if err != nil {
			return err
		}
		return withContainer(cmd.Context(), func(c *app.Container) error {
			meta, err := c.Uploads().GetMetadata(cmd.Context(), args[0], override)
			if err != nil {
				return err
			}
			if meta == nil {
				return fmt.Errorf("object '%s' not found", args[0])
			}
			url, err := c.Uploads().GetURL(args[0], override)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"key": args[0], "url": url, "metadata": meta})
		})
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd, deleteCmd, statCmd)

	uploadCmd.Flags().String("folder", "", "folder for generated keys (eg: restaurants/42/menu-items)")
	uploadCmd.Flags().String("key", "", "explicit object key, single file only")
	deleteCmd.Flags().String("provider", "", "provider to delete from, defaults to the default provider")
	statCmd.Flags().String("provider", "", "provider to query, defaults to the default provider")
}

func providerFlag(cmd *cobra.Command) (storage.ProviderType, error) {
	raw, _ := cmd.Flags().GetString("provider")
	if raw == "" {
		return "", nil
	}
	return storage.ParseProviderType(raw)
}

func readLocalFile(path string) (*storage.UploadFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return &storage.UploadFile{
		Data:         data,
		OriginalName: name,
		MimeType:     validator.DetectMimeType(data, name),
		Size:         int64(len(data)),
	}, nil
}
