package tagger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/wordtag/internal/models"
	"go.uber.org/zap"
)

// Gate guards a Tagger whose model loads in the background. It moves from
// not-ready to ready (or failed) exactly once; until then Tag fails fast
// with ErrTaggerNotReady instead of blocking.
type Gate struct {
	logger *zap.Logger

	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	tagger Tagger
	err    error
}

// NewGate creates a gate in the not-ready state
func NewGate(logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// NewReadyGate returns a gate that is already open on t
func NewReadyGate(t Tagger) *Gate {
	g := NewGate(nil)
	g.Load(context.Background(), func(context.Context) (Tagger, error) { return t, nil })
	return g
}

// Start loads the model in a new goroutine and returns immediately
func (g *Gate) Start(ctx context.Context, load LoadFunc) {
	go g.Load(ctx, load)
}

// Load runs load and records its outcome. Only the first call has any effect.
func (g *Gate) Load(ctx context.Context, load LoadFunc) {
	g.once.Do(func() {
		start := time.Now()
		g.logger.Info("tagger_loading")

		t, err := load(ctx)
		if err == nil && t == nil {
			err = fmt.Errorf("loader returned no tagger")
		}

		g.mu.Lock()
		if err != nil {
			g.err = err
		} else {
			g.tagger = t
		}
		g.mu.Unlock()
		close(g.done)

		if err != nil {
			g.logger.Error("tagger_load_failed",
				zap.Error(err),
				zap.Duration("elapsed", time.Since(start)),
			)
			return
		}
		g.logger.Info("tagger_ready", zap.Duration("elapsed", time.Since(start)))
	})
}

// Ready reports whether the tagger loaded successfully
func (g *Gate) Ready() bool {
	select {
	case <-g.done:
	default:
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tagger != nil
}

// Err returns nil while loading or after a successful load, and the load
// error wrapped in ErrTaggerUnavailable otherwise.
func (g *Gate) Err() error {
	select {
	case <-g.done:
	default:
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.err != nil {
		return fmt.Errorf("%w: %w", ErrTaggerUnavailable, g.err)
	}
	return nil
}

// WaitReady blocks until loading finished or ctx is done
func (g *Gate) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTaggerNotReady, ctx.Err())
	case <-g.done:
	}
	return g.Err()
}

// Tag delegates to the loaded tagger
func (g *Gate) Tag(ctx context.Context, text string) (models.TaggedSequence, error) {
	select {
	case <-g.done:
	default:
		return nil, ErrTaggerNotReady
	}

	g.mu.RLock()
	t, loadErr := g.tagger, g.err
	g.mu.RUnlock()

	if loadErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrTaggerUnavailable, loadErr)
	}
	return t.Tag(ctx, text)
}

var _ Tagger = (*Gate)(nil)
