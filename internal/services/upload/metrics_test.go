package upload

import (
	"context"
	"testing"

	"github.com/anoixa/menu-storage/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserver_RecordsFallbackAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusObserver("", reg)
	require.NoError(t, err)

	f := newFixture(t, func(_ *storage.ServiceConfig, opts *Options) {
		opts.Observer = obs
	})
	f.primary.set(func(p *spyProvider) { p.uploadErr = transportErr(storage.ProviderS3, "down") })

	res := f.svc.Upload(context.Background(), image("dish.jpg", 100))
	require.True(t, res.Success, res.Error)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.fallbacks.WithLabelValues("aws-s3", "local")))
	assert.Equal(t, 100.0, testutil.ToFloat64(obs.bytes.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.errors.WithLabelValues("upload", "aws-s3", string(storage.KindTransport))))

	f.primary.set(func(p *spyProvider) { p.healthErr = assert.AnError })
	f.svc.GetProviderHealth(context.Background())
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.up.WithLabelValues("aws-s3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.up.WithLabelValues("local")))
}

func TestNewPrometheusObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewPrometheusObserver("menu", reg)
	require.NoError(t, err)
	second, err := NewPrometheusObserver("menu", reg)
	require.NoError(t, err)

	first.RecordUploadBytes(storage.ProviderLocal, 10)
	second.RecordUploadBytes(storage.ProviderLocal, 5)

	assert.Equal(t, 15.0, testutil.ToFloat64(second.bytes.WithLabelValues("local")))
}
