package hints

import (
	"context"
	"sync"
	"time"

	"github.com/firstfix/starterkit/internal/app/storage"
	"github.com/firstfix/starterkit/internal/app/system"
	"github.com/firstfix/starterkit/pkg/logger"
)

var _ system.Service = (*Janitor)(nil)

// Janitor periodically sweeps expired hint bundles out of the cache so
// backends without native TTLs stay bounded.
type Janitor struct {
	cache    storage.HintStore
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewJanitor creates a lifecycle-managed hint cache sweeper.
func NewJanitor(cache storage.HintStore, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault("hints-janitor")
	}
	return &Janitor{
		cache:    cache,
		log:      log,
		interval: 5 * time.Minute,
	}
}

func (j *Janitor) Name() string { return "hints-janitor" }

func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				j.tick(runCtx)
			}
		}
	}()

	j.log.Info("hints janitor started")
	return nil
}

func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	cancel := j.cancel
	j.running = false
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	j.log.Info("hints janitor stopped")
	return nil
}

func (j *Janitor) tick(ctx context.Context) {
	if j.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	removed, err := j.cache.PurgeExpiredHints(ctx)
	if err != nil {
		j.log.WithError(err).Warn("hints janitor tick failed")
		return
	}
	if removed > 0 {
		j.log.WithField("removed", removed).Info("purged expired hint bundles")
	}
}
