package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anoixa/menu-storage/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintProviders(t *testing.T) {
	cfg := &storage.ServiceConfig{
		DefaultProvider:  storage.ProviderLocal,
		FallbackProvider: storage.ProviderS3,
		Providers: map[storage.ProviderType]*storage.ProviderConfig{
			storage.ProviderLocal: {Type: storage.ProviderLocal, Enabled: true},
			storage.ProviderS3:    {Type: storage.ProviderS3, Enabled: false},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printProviders(&buf, cfg, []storage.ProviderType{storage.ProviderLocal}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1+len(storage.AllProviderTypes()))
	assert.Equal(t, []string{"PROVIDER", "CONFIGURED", "ENABLED", "AVAILABLE", "ROLE"}, strings.Fields(lines[0]))

	rows := map[string][]string{}
	for _, l := range lines[1:] {
		f := strings.Fields(l)
		rows[f[0]] = f
	}
	assert.Equal(t, []string{"local", "true", "true", "true", "default"}, rows["local"])
	assert.Equal(t, []string{"aws-s3", "true", "false", "false", "fallback"}, rows["aws-s3"])
	assert.Equal(t, []string{"gcs", "false", "false", "false", "-"}, rows["gcs"])
}

func TestReadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.png")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	require.NoError(t, os.WriteFile(path, png, 0o644))

	f, err := readLocalFile(path)
	require.NoError(t, err)
	assert.Equal(t, "menu.png", f.OriginalName)
	assert.Equal(t, "image/png", f.MimeType)
	assert.EqualValues(t, len(png), f.Size)

	_, err = readLocalFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestUploadRejectsKeyWithMultipleFiles(t *testing.T) {
	require.NoError(t, uploadCmd.Flags().Set("key", "fixed.png"))
	defer uploadCmd.Flags().Set("key", "")

	err := uploadCmd.RunE(uploadCmd, []string{"a.png", "b.png"})
	assert.ErrorContains(t, err, "--key can only be used with a single file")
}
