package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/storage"
	"github.com/anoixa/menu-storage/utils"
	"github.com/anoixa/menu-storage/utils/generator"
	"github.com/anoixa/menu-storage/utils/logger"
	"github.com/anoixa/menu-storage/utils/validator"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultOperationTimeout = 60 * time.Second
	DefaultBatchWorkers     = 4
	DefaultHealthTimeout    = 5 * time.Second
)

// Options 服务依赖与调优参数，零值使用默认
type Options struct {
	Registry     *storage.Registry
	KeyGenerator *generator.KeyGenerator
	Logger       *slog.Logger
	Observer     Observer
	Cache        cache.Provider

	// OperationTimeout 单次提供者调用的超时
	OperationTimeout time.Duration
	// BatchWorkers 批量上传的并发数
	BatchWorkers int
	// MaxBatchFiles 单批最多文件数，0 不限制
	MaxBatchFiles int

	HealthTimeout    time.Duration
	HealthCacheTTL   time.Duration
	MetadataCacheTTL time.Duration
}

// instance 缓存的提供者实例，source 为构造时使用的配置
// 配置快照中的 *ProviderConfig 与 source 不同即视为过期
type instance struct {
	provider storage.Provider
	source   *storage.ProviderConfig
}

// Service 上传服务：选择提供者、校验、生成 key、失败时切换备用提供者
type Service struct {
	cfg     atomic.Pointer[storage.ServiceConfig]
	writeMu sync.Mutex

	instances sync.Map // storage.ProviderType -> *instance
	group     singleflight.Group

	registry *storage.Registry
	keys     *generator.KeyGenerator
	logger   *slog.Logger
	observer Observer
	cache    cache.Provider
	opts     Options
}

// NewService 创建上传服务；提供者在首次使用时才构造
func NewService(cfg *storage.ServiceConfig, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, storage.Configuration("", "init", fmt.Errorf("service config is nil"))
	}
	if !cfg.DefaultProvider.Valid() {
		return nil, storage.Configuration(cfg.DefaultProvider, "init", fmt.Errorf("unknown default provider '%s'", cfg.DefaultProvider))
	}
	if cfg.FallbackProvider != "" && !cfg.FallbackProvider.Valid() {
		return nil, storage.Configuration(cfg.FallbackProvider, "init", fmt.Errorf("unknown fallback provider '%s'", cfg.FallbackProvider))
	}

	if opts.Registry == nil {
		opts.Registry = storage.DefaultRegistry()
	}
	if opts.KeyGenerator == nil {
		opts.KeyGenerator = generator.NewKeyGenerator("")
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = DefaultBatchWorkers
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = DefaultHealthTimeout
	}

	s := &Service{
		registry: opts.Registry,
		keys:     opts.KeyGenerator,
		logger:   logger.Component(opts.Logger, "upload"),
		observer: opts.Observer,
		cache:    opts.Cache,
		opts:     opts,
	}

	snap := cfg.Clone()
	snap.Constraints.AllowedExtensions = storage.NormalizeExtensions(snap.Constraints.AllowedExtensions)
	s.cfg.Store(snap)
	return s, nil
}

// GetConfig 当前配置的副本
func (s *Service) GetConfig() *storage.ServiceConfig {
	return s.cfg.Load().DeepCopy()
}

// provider 返回指定类型的提供者实例，必要时构造
// 并发的首次调用只会构造一次（singleflight），配置变更后按新配置重建
// 构造本身以 OperationTimeout 为上限；每个调用方最多等待到自己的 ctx 结束
func (s *Service) provider(ctx context.Context, snap *storage.ServiceConfig, t storage.ProviderType) (storage.Provider, error) {
	pc := snap.Provider(t)
	if pc == nil {
		return nil, storage.Configuration(t, "resolve", fmt.Errorf("provider '%s' is not configured", t))
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	if v, ok := s.instances.Load(t); ok {
		if inst := v.(*instance); inst.source == pc {
			return inst.provider, nil
		}
	}

	ch := s.group.DoChan(fmt.Sprintf("%s/%p", t, pc), func() (interface{}, error) {
		if v, ok := s.instances.Load(t); ok {
			if inst := v.(*instance); inst.source == pc {
				return inst.provider, nil
			}
		}

		// 构造不随单个调用方取消，避免一个请求取消导致同批等待者全部失败
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.OperationTimeout)
		defer cancel()

		start := time.Now()
		p, err := s.registry.Build(buildCtx, pc)
		if err != nil {
			s.logger.Error("failed to build storage provider", "provider", t, "error", err)
			return nil, storage.Transport(t, "build", err)
		}
		s.logger.Info("storage provider ready", "provider", t, "elapsed", time.Since(start))

		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		// 构造期间配置可能已被替换，此时不缓存旧实例
		if s.cfg.Load().Provider(t) == pc {
			if old, loaded := s.instances.Swap(t, &instance{provider: p, source: pc}); loaded {
				closeProvider(s.logger, old.(*instance).provider)
			}
		}
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(storage.Provider), nil
	case <-ctx.Done():
		return nil, storage.Transport(t, "build", ctx.Err())
	}
}

// invalidate 在持有 writeMu 时调用，移除配置已变化的实例
func (s *Service) invalidate(next *storage.ServiceConfig) {
	s.instances.Range(func(k, v interface{}) bool {
		t := k.(storage.ProviderType)
		if inst := v.(*instance); next.Provider(t) != inst.source {
			s.instances.Delete(t)
			closeProvider(s.logger, inst.provider)
			s.logger.Info("storage provider invalidated", "provider", t)
		}
		return true
	})
}

func closeProvider(l *slog.Logger, p storage.Provider) {
	if c, ok := p.(io.Closer); ok {
		if err := c.Close(); err != nil {
			l.Warn("failed to close storage provider", "provider", p.Type(), "error", err)
		}
	}
}

// canFallback 仅传输错误、备用提供者与默认不同且可用、调用方未取消时才重试
func (s *Service) canFallback(ctx context.Context, snap *storage.ServiceConfig, primary storage.ProviderType, err error) bool {
	fb := snap.FallbackProvider
	if fb == "" || fb == primary {
		return false
	}
	if !storage.IsTransport(err) || utils.CallerGone(ctx) {
		return false
	}
	return snap.Provider(fb).Usable()
}

// Upload 上传单个文件，失败时以结果形式返回，不返回 error
func (s *Service) Upload(ctx context.Context, file *storage.UploadFile) *storage.UploadResult {
	return s.upload(ctx, s.cfg.Load(), file)
}

func (s *Service) upload(ctx context.Context, snap *storage.ServiceConfig, file *storage.UploadFile) *storage.UploadResult {
	primary := snap.DefaultProvider

	var name string
	if file != nil {
		name = file.OriginalName
	}
	if err := validator.Validate(file, snap.Constraints); err != nil {
		s.logger.Debug("upload rejected", "file", utils.SanitizeLogName(name), "code", storage.CodeOf(err), "error", err)
		s.observer.RecordOperation("validate", primary, 0, err)
		return storage.FailedUpload(primary, name, err)
	}

	key := s.keys.DeriveScopedKey(file.Folder, file.OriginalName, file.Key)

	res, err := s.uploadTo(ctx, snap, primary, key, file)
	if err == nil {
		return res
	}
	if !s.canFallback(ctx, snap, primary, err) {
		s.logger.Error("upload failed", "provider", primary, "key", key, "kind", storage.KindOf(err), "error", err)
		return storage.FailedUpload(primary, name, err)
	}

	fallback := snap.FallbackProvider
	s.logger.Warn("default provider failed, retrying on fallback",
		"provider", primary, "fallback", fallback, "key", key, "error", err)

	res, fbErr := s.uploadTo(ctx, snap, fallback, key, file)
	if fbErr != nil {
		s.logger.Error("fallback upload failed", "provider", fallback, "key", key, "error", fbErr, "primary_error", err)
		return storage.FailedUpload(primary, name, err)
	}
	res.FallbackUsed = true
	s.observer.RecordFallback(primary, fallback)
	return res
}

func (s *Service) uploadTo(ctx context.Context, snap *storage.ServiceConfig, t storage.ProviderType, key string, file *storage.UploadFile) (*storage.UploadResult, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	p, err := s.provider(opCtx, snap, t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.Upload(opCtx, key, file)
	err = storage.Transport(t, "upload", err)
	s.observer.RecordOperation("upload", t, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	res.Provider = t
	s.observer.RecordUploadBytes(t, file.Size)
	s.forgetMetadata(ctx, t, key)
	s.logger.Info("file uploaded", "provider", t, "key", key, "size", file.Size, "elapsed", time.Since(start))
	return res, nil
}

// UploadMultiple 批量上传，各文件互不影响，结果顺序与输入一致
func (s *Service) UploadMultiple(ctx context.Context, files []*storage.UploadFile) []*storage.UploadResult {
	snap := s.cfg.Load()
	results := make([]*storage.UploadResult, len(files))

	if limit := s.opts.MaxBatchFiles; limit > 0 && len(files) > limit {
		err := storage.NewError(storage.KindValidation, "", "validate",
			fmt.Errorf("batch of %d files exceeds limit %d", len(files), limit)).WithCode("TOO_MANY_FILES")
		for i, f := range files {
			var name string
			if f != nil {
				name = f.OriginalName
			}
			results[i] = storage.FailedUpload(snap.DefaultProvider, name, err)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.opts.BatchWorkers)
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.upload(ctx, snap, f)
			return nil
		})
	}
	_ = g.Wait()

	summary := storage.Summarize(results)
	s.logger.Info("batch upload finished", "total", summary.Total, "successful", summary.Successful, "failed", summary.Failed)
	return results
}

// target 删除与查询使用的提供者：显式指定优先，否则为默认提供者
func target(snap *storage.ServiceConfig, override storage.ProviderType) storage.ProviderType {
	if override != "" {
		return override
	}
	return snap.DefaultProvider
}

// Delete 删除对象；不存在视为成功，不走备用提供者
func (s *Service) Delete(ctx context.Context, key string, override storage.ProviderType) *storage.DeleteResult {
	snap := s.cfg.Load()
	t := target(snap, override)
	result := &storage.DeleteResult{Key: key, Provider: t}

	if key == "" {
		result.Error = "key is required"
		result.Kind = storage.KindValidation
		return result
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	p, err := s.provider(opCtx, snap, t)
	if err != nil {
		result.Error = err.Error()
		result.Kind = storage.KindOf(err)
		return result
	}

	start := time.Now()
	err = p.Delete(opCtx, key)
	if storage.KindOf(err) == storage.KindNotFound {
		err = nil
	}
	err = storage.Transport(t, "delete", err)
	s.observer.RecordOperation("delete", t, time.Since(start), err)
	if err != nil {
		s.logger.Error("delete failed", "provider", t, "key", key, "error", err)
		result.Error = err.Error()
		result.Kind = storage.KindOf(err)
		return result
	}

	s.forgetMetadata(ctx, t, key)
	s.logger.Info("file deleted", "provider", t, "key", key)
	result.Success = true
	return result
}

// GetURL 计算访问地址，不发起网络请求
func (s *Service) GetURL(key string, override storage.ProviderType) (string, error) {
	snap := s.cfg.Load()
	p, err := s.provider(context.Background(), snap, target(snap, override))
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

// lookup 只读查询：未显式指定提供者时，默认提供者传输失败后查询备用提供者
func (s *Service) lookup(ctx context.Context, op, key string, override storage.ProviderType, fn func(context.Context, storage.Provider) error) (storage.ProviderType, error) {
	snap := s.cfg.Load()
	t := target(snap, override)

	call := func(t storage.ProviderType) error {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OperationTimeout)
		defer cancel()

		p, err := s.provider(opCtx, snap, t)
		if err != nil {
			return err
		}

		start := time.Now()
		err = storage.Transport(t, op, fn(opCtx, p))
		s.observer.RecordOperation(op, t, time.Since(start), err)
		return err
	}

	err := call(t)
	if err == nil || override != "" || !s.canFallback(ctx, snap, t, err) {
		return t, err
	}
	s.logger.Warn("lookup failed on default provider, trying fallback", "op", op, "provider", t, "key", key, "error", err)
	if fbErr := call(snap.FallbackProvider); fbErr != nil {
		return t, err
	}
	return snap.FallbackProvider, nil
}

// Exists 检查对象是否存在
func (s *Service) Exists(ctx context.Context, key string, override storage.ProviderType) (bool, error) {
	var exists bool
	_, err := s.lookup(ctx, "exists", key, override, func(ctx context.Context, p storage.Provider) error {
		var err error
		exists, err = p.Exists(ctx, key)
		return err
	})
	return exists, err
}

// GetMetadata 读取对象元数据，不存在返回 nil；结果按 MetadataCacheTTL 缓存
// 由备用提供者返回的结果不写入目标提供者的缓存
func (s *Service) GetMetadata(ctx context.Context, key string, override storage.ProviderType) (map[string]string, error) {
	snap := s.cfg.Load()
	t := target(snap, override)

	return cache.RememberWhen(ctx, s.cache, cache.ObjectMeta.Build(string(t), key), s.opts.MetadataCacheTTL,
		func(ctx context.Context) (map[string]string, bool, error) {
			var meta map[string]string
			served, err := s.lookup(ctx, "metadata", key, override, func(ctx context.Context, p storage.Provider) error {
				var err error
				meta, err = p.GetMetadata(ctx, key)
				return err
			})
			return meta, served == t, err
		})
}

func (s *Service) forgetMetadata(ctx context.Context, t storage.ProviderType, key string) {
	if s.opts.MetadataCacheTTL <= 0 {
		return
	}
	if err := s.cache.Delete(ctx, cache.ObjectMeta.Build(string(t), key)); err != nil {
		s.logger.Warn("failed to evict metadata cache", "provider", t, "key", key, "error", err)
	}
}

// GetAvailableProviders 启用且配置校验通过的提供者，不做网络探测
func (s *Service) GetAvailableProviders() []storage.ProviderType {
	return availableProviders(s.cfg.Load())
}

func availableProviders(snap *storage.ServiceConfig) []storage.ProviderType {
	var out []storage.ProviderType
	for _, t := range storage.AllProviderTypes() {
		if snap.Provider(t).Usable() {
			out = append(out, t)
		}
	}
	return out
}

// SwitchProvider 切换默认提供者，目标不可用时拒绝且配置不变
func (s *Service) SwitchProvider(t storage.ProviderType) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.cfg.Load()
	if !t.Valid() {
		return storage.Configuration(t, "switch", fmt.Errorf("unknown provider type '%s'", t))
	}
	pc := cur.Provider(t)
	if pc == nil {
		return storage.Configuration(t, "switch", fmt.Errorf("provider '%s' is not configured", t))
	}
	if err := pc.Validate(); err != nil {
		return err
	}
	if cur.DefaultProvider == t {
		return nil
	}

	next := cur.Clone()
	next.DefaultProvider = t
	s.cfg.Store(next)
	s.logger.Info("default storage provider switched", "from", cur.DefaultProvider, "to", t)
	return nil
}

// Close 关闭所有已构造的提供者实例
func (s *Service) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.instances.Range(func(k, v interface{}) bool {
		s.instances.Delete(k)
		closeProvider(s.logger, v.(*instance).provider)
		return true
	})
	return nil
}
