package upload

import (
	"context"
	"time"

	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/storage"
	"golang.org/x/sync/errgroup"
)

// GetProviderHealth 并发探测所有可用提供者，按类型顺序返回
// 探测失败不返回 error，而是 Available=false 并附带原因
func (s *Service) GetProviderHealth(ctx context.Context) []storage.ProviderHealth {
	report, _ := cache.Remember(ctx, s.cache, healthCacheKey, s.opts.HealthCacheTTL,
		func(ctx context.Context) ([]storage.ProviderHealth, error) {
			return s.probeAll(ctx), nil
		})
	return report
}

func (s *Service) probeAll(ctx context.Context) []storage.ProviderHealth {
	snap := s.cfg.Load()
	types := availableProviders(snap)
	report := make([]storage.ProviderHealth, len(types))

	var g errgroup.Group
	for i, t := range types {
		g.Go(func() error {
			report[i] = s.probe(ctx, snap, t)
			s.observer.RecordHealth(t, report[i].Available)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (s *Service) probe(ctx context.Context, snap *storage.ServiceConfig, t storage.ProviderType) storage.ProviderHealth {
	h := storage.ProviderHealth{Provider: t}

	ctx, cancel := context.WithTimeout(ctx, s.opts.HealthTimeout)
	defer cancel()

	start := time.Now()
	err := func() error {
		p, err := s.provider(ctx, snap, t)
		if err != nil {
			return err
		}
		return p.Health(ctx)
	}()
	h.Latency = time.Since(start)
	h.CheckedAt = time.Now()

	if err != nil {
		h.Detail = err.Error()
		s.logger.Warn("storage provider unhealthy", "provider", t, "error", err)
		return h
	}
	h.Available = true
	return h
}
