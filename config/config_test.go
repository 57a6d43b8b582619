package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anoixa/menu-storage/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), ".env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 15*time.Second, cfg.ServerReadTimeout)
	assert.Equal(t, "local", cfg.StorageDefaultProvider)
	assert.Equal(t, 60*time.Second, cfg.UploadTimeout)
	assert.Equal(t, 4, cfg.UploadBatchWorkers)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/webp", "image/gif"}, cfg.UploadAllowedMimeTypes)

	sc, err := cfg.StorageServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderLocal, sc.DefaultProvider)
	assert.Empty(t, sc.FallbackProvider)
	assert.Equal(t, int64(10<<20), sc.Constraints.MaxFileSize)
	require.Len(t, sc.Providers, 1)

	local := sc.Provider(storage.ProviderLocal)
	require.NotNil(t, local)
	assert.True(t, local.Enabled)
	assert.NoError(t, local.Validate())
	assert.Equal(t, "/uploads", local.Settings.(*storage.LocalSettings).BaseURL)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `SERVER_PORT=9090
STORAGE_DEFAULT_PROVIDER=s3
STORAGE_FALLBACK_PROVIDER=local
STORAGE_S3_ENABLED=true
STORAGE_S3_ENDPOINT=minio:9000
STORAGE_S3_BUCKET=menu
STORAGE_S3_ACCESS_KEY_ID=ak
STORAGE_S3_SECRET_ACCESS_KEY=sk
STORAGE_S3_USE_SSL=false
STORAGE_S3_PRESIGN_EXPIRY=15m
UPLOAD_ALLOWED_MIME_TYPES="image/png, image/jpeg"
UPLOAD_ALLOWED_EXTENSIONS=PNG,jpg
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, cfg.UploadAllowedMimeTypes)

	sc, err := cfg.StorageServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderS3, sc.DefaultProvider)
	assert.Equal(t, storage.ProviderLocal, sc.FallbackProvider)
	assert.Equal(t, []string{".png", ".jpg"}, sc.Constraints.AllowedExtensions)

	s3 := sc.Provider(storage.ProviderS3)
	require.NotNil(t, s3)
	require.NoError(t, s3.Validate())
	settings := s3.Settings.(*storage.S3Settings)
	assert.Equal(t, "minio:9000", settings.Endpoint)
	assert.Equal(t, "menu", settings.Bucket)
	assert.False(t, settings.UseSSL)
	assert.Equal(t, 15*time.Minute, settings.PresignExpiry)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_APPWRITE_ENABLED", "true")
	t.Setenv("STORAGE_APPWRITE_ENDPOINT", "https://cloud.appwrite.io/v1")
	t.Setenv("STORAGE_APPWRITE_PROJECT_ID", "menu")
	t.Setenv("STORAGE_APPWRITE_API_KEY", "secret")
	t.Setenv("STORAGE_APPWRITE_BUCKET_ID", "images")
	t.Setenv("UPLOAD_MAX_SIZE_MB", "2")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	sc, err := cfg.StorageServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), sc.Constraints.MaxFileSize)
	assert.Equal(t, []storage.ProviderType{storage.ProviderLocal, storage.ProviderAppwrite}, cfg.ProviderTypes())

	aw := sc.Provider(storage.ProviderAppwrite)
	require.NotNil(t, aw)
	assert.True(t, aw.Enabled)
	require.NoError(t, aw.Validate())
	assert.Equal(t, "menu", aw.Settings.(*storage.AppwriteSettings).ProjectID)
}

func TestStorageServiceConfig_UnknownProvider(t *testing.T) {
	t.Setenv("STORAGE_DEFAULT_PROVIDER", "ftp")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	_, err = cfg.StorageServiceConfig()
	require.Error(t, err)
	assert.True(t, storage.IsConfiguration(err))
}

func TestStorageServiceConfig_UnknownSetting(t *testing.T) {
	t.Setenv("STORAGE_GCS_BUKET", "typo")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	_, err = cfg.StorageServiceConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcs")
}

func TestStorageServiceConfig_DisabledProviderKept(t *testing.T) {
	t.Setenv("STORAGE_CLOUDINARY_CLOUD_NAME", "menu")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	sc, err := cfg.StorageServiceConfig()
	require.NoError(t, err)
	c := sc.Provider(storage.ProviderCloudinary)
	require.NotNil(t, c)
	assert.False(t, c.Enabled)
	assert.Equal(t, "image", c.Settings.(*storage.CloudinarySettings).ResourceType)
}

func TestConfig_AddrAndBaseURL(t *testing.T) {
	cfg := &Config{ServerHost: "0.0.0.0", ServerPort: 8081}
	assert.Equal(t, "0.0.0.0:8081", cfg.Addr())
	assert.Equal(t, "http://localhost:8081", cfg.BaseURL())

	cfg.ServerDomain = "https://menu.example.com/"
	assert.Equal(t, "https://menu.example.com", cfg.BaseURL())

	assert.Equal(t, "127.0.0.1:8080", (&Config{ServerHost: "127.0.0.1"}).Addr())
}

func TestVersionString(t *testing.T) {
	defer func(v, c, b string) { Version, CommitHash, BuildTime = v, c, b }(Version, CommitHash, BuildTime)

	Version, CommitHash, BuildTime = "dev", "", ""
	assert.Equal(t, "dev", VersionString())
	assert.True(t, IsDevelopment())

	Version, CommitHash, BuildTime = "release", "abc123", "2026-01-02"
	assert.Equal(t, "release (abc123, built 2026-01-02)", VersionString())
	assert.True(t, IsProduction())
}
