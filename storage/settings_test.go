package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSettings(t *testing.T) {
	s, err := DecodeSettings(ProviderS3, map[string]any{
		"bucket":            "menus",
		"access_key_id":     "AK",
		"secret_access_key": "SK",
		"use_ssl":           "false",
		"presign_expiry":    "15m",
	})
	require.NoError(t, err)

	s3, ok := s.(*S3Settings)
	require.True(t, ok)
	assert.Equal(t, "s3.amazonaws.com", s3.Endpoint)
	assert.False(t, s3.UseSSL)
	assert.Equal(t, 15*time.Minute, s3.PresignExpiry)
	assert.NoError(t, s3.Validate())
}

func TestDecodeSettings_UnknownKey(t *testing.T) {
	_, err := DecodeSettings(ProviderLocal, map[string]any{
		"directory": "./uploads",
		"bukket":    "typo",
	})
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestDecodeSettings_Defaults(t *testing.T) {
	local, err := DecodeSettings(ProviderLocal, map[string]any{"directory": "./uploads"})
	require.NoError(t, err)
	assert.Equal(t, "/uploads", local.(*LocalSettings).BaseURL)

	cld, err := DecodeSettings(ProviderCloudinary, nil)
	require.NoError(t, err)
	assert.Equal(t, "image", cld.(*CloudinarySettings).ResourceType)

	aw, err := DecodeSettings(ProviderAppwrite, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, aw.(*AppwriteSettings).Timeout)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  string
	}{
		{"local ok", &LocalSettings{Directory: "/tmp"}, ""},
		{"local missing dir", &LocalSettings{}, "directory"},
		{"s3 missing", &S3Settings{Endpoint: "s3.amazonaws.com"}, "bucket"},
		{"s3 scheme", &S3Settings{Endpoint: "https://s3.amazonaws.com", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}, "without scheme"},
		{"s3 presign too long", &S3Settings{Endpoint: "e", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s", PresignExpiry: 8 * 24 * time.Hour}, "presign_expiry"},
		{"gcs missing secret", &GCSSettings{Bucket: "b", HMACAccessKey: "a"}, "hmac_secret"},
		{"cloudinary bad type", &CloudinarySettings{CloudName: "c", APIKey: "k", APISecret: "s", ResourceType: "pdf"}, "resource_type"},
		{"azure no credentials", &AzureSettings{Container: "menus"}, "connection_string"},
		{"azure conn string", &AzureSettings{Container: "menus", ConnectionString: "UseDevelopmentStorage=true"}, ""},
		{"appwrite bad endpoint", &AppwriteSettings{Endpoint: "cloud.appwrite.io", ProjectID: "p", APIKey: "k", BucketID: "b"}, "absolute URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeSettings(t *testing.T) {
	base := &S3Settings{
		Endpoint:        "s3.amazonaws.com",
		Region:          "eu-west-1",
		Bucket:          "menus",
		AccessKeyID:     "AK",
		SecretAccessKey: "SK",
		UseSSL:          true,
	}

	merged, err := MergeSettings(base, map[string]any{
		"Bucket":            "menus-v2",
		"secret_access_key": redactedValue,
	})
	require.NoError(t, err)

	s3 := merged.(*S3Settings)
	assert.Equal(t, "menus-v2", s3.Bucket)
	assert.Equal(t, "SK", s3.SecretAccessKey, "redacted value must keep the current secret")
	assert.Equal(t, "eu-west-1", s3.Region)
	assert.Equal(t, "menus", base.Bucket, "base must not be mutated")
}

func TestRedact(t *testing.T) {
	pc := &ProviderConfig{
		Type:     ProviderAzure,
		Enabled:  true,
		Settings: &AzureSettings{AccountName: "acct", AccountKey: "secret", Container: "menus"},
	}

	red := pc.Redacted()
	assert.Equal(t, redactedValue, red.Settings.(*AzureSettings).AccountKey)
	assert.Equal(t, "acct", red.Settings.(*AzureSettings).AccountName)
	assert.Equal(t, "secret", pc.Settings.(*AzureSettings).AccountKey)
}

func TestProviderConfigValidate(t *testing.T) {
	var nilCfg *ProviderConfig
	assert.False(t, nilCfg.Usable())

	disabled := &ProviderConfig{Type: ProviderLocal, Enabled: false, Settings: &LocalSettings{Directory: "/tmp"}}
	err := disabled.Validate()
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.Contains(t, err.Error(), "disabled")

	mismatch := &ProviderConfig{Type: ProviderS3, Enabled: true, Settings: &LocalSettings{Directory: "/tmp"}}
	assert.False(t, mismatch.Usable())

	ok := &ProviderConfig{Type: ProviderLocal, Enabled: true, Settings: &LocalSettings{Directory: "/tmp"}}
	assert.True(t, ok.Usable())
}

func TestParseProviderType(t *testing.T) {
	for in, want := range map[string]ProviderType{
		"local":      ProviderLocal,
		"S3":         ProviderS3,
		"aws-s3":     ProviderS3,
		"gcs":        ProviderGCS,
		"Cloudinary": ProviderCloudinary,
		"azure-blob": ProviderAzure,
		" appwrite ": ProviderAppwrite,
	} {
		got, err := ParseProviderType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseProviderType("webdav")
	assert.Error(t, err)
	assert.False(t, ProviderType("s3").Valid())
	assert.True(t, ProviderS3.Valid())
}
