package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Types(t *testing.T) {
	assert.Equal(t, AllProviderTypes(), DefaultRegistry().Types())
}

func TestRegistry_BuildLocal(t *testing.T) {
	dir := t.TempDir()
	p, err := DefaultRegistry().Build(context.Background(), &ProviderConfig{
		Type:     ProviderLocal,
		Enabled:  true,
		Settings: &LocalSettings{Directory: dir, BaseURL: "https://cdn.example.com/files"},
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, p.Type())
	assert.Equal(t, "https://cdn.example.com/files/a/b.png", p.GetURL("a/b.png"))
}

func TestRegistry_BuildRejectsInvalidConfig(t *testing.T) {
	_, err := DefaultRegistry().Build(context.Background(), &ProviderConfig{
		Type:     ProviderS3,
		Enabled:  true,
		Settings: &S3Settings{Endpoint: "s3.amazonaws.com"},
	})
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestRegistry_MissingConstructor(t *testing.T) {
	_, err := NewRegistry().Build(context.Background(), &ProviderConfig{
		Type:     ProviderLocal,
		Enabled:  true,
		Settings: &LocalSettings{Directory: t.TempDir()},
	})
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestRegistry_ConstructorErrorIsTransport(t *testing.T) {
	r := NewRegistry()
	r.Register(ProviderLocal, func(context.Context, *ProviderConfig) (Provider, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := r.Build(context.Background(), &ProviderConfig{
		Type:     ProviderLocal,
		Enabled:  true,
		Settings: &LocalSettings{Directory: t.TempDir()},
	})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestProviderURLs(t *testing.T) {
	ctx := context.Background()

	s3, err := NewS3Storage(ctx, S3Settings{
		Endpoint:        "s3.amazonaws.com",
		Region:          "us-east-1",
		Bucket:          "menus",
		AccessKeyID:     "AK",
		SecretAccessKey: "SK",
		UseSSL:          true,
		Prefix:          "prod",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://s3.amazonaws.com/menus/prod/a/b.png", s3.GetURL("a/b.png"))

	gcs, err := NewGCSStorage(ctx, GCSSettings{
		Bucket:        "menus",
		HMACAccessKey: "AK",
		HMACSecret:    "SK",
		CDNURL:        "https://cdn.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a/b.png", gcs.GetURL("a/b.png"))

	cld, err := NewCloudinaryStorage(CloudinarySettings{
		CloudName:    "demo",
		APIKey:       "k",
		APISecret:    "s",
		ResourceType: "image",
		Folder:       "menus",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/menus/a/b.png", cld.GetURL("a/b.png"))
	assert.Equal(t, "menus/a/b", cld.publicID("a/b.png"))

	cdn, err := NewCloudinaryStorage(CloudinarySettings{
		CloudName:    "demo",
		APIKey:       "k",
		APISecret:    "s",
		ResourceType: "image",
		Folder:       "menus",
		CDNURL:       "https://media.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/image/upload/menus/a/b.png", cdn.GetURL("a/b.png"))

	az, err := NewAzureStorage(AzureSettings{
		AccountName: "acct",
		AccountKey:  "a2V5",
		Container:   "menus",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/menus/a/b.png", az.GetURL("a/b.png"))

	aw, err := NewAppwriteStorage(AppwriteSettings{
		Endpoint:  "https://cloud.appwrite.io/v1",
		ProjectID: "proj",
		APIKey:    "k",
		BucketID:  "menus",
	}, nil)
	require.NoError(t, err)
	u := aw.GetURL("a/b.png")
	assert.True(t, strings.HasPrefix(u, "https://cloud.appwrite.io/v1/storage/buckets/menus/files/f"))
	assert.True(t, strings.HasSuffix(u, "/view?project=proj"))

	// 同一 key 的 URL 稳定
	assert.Equal(t, u, aw.GetURL("a/b.png"))
}
