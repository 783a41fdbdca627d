package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zllovesuki/rtdn/cache"
	"github.com/zllovesuki/rtdn/metrics"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	keyPrefix       = "notification:"
	stateProcessing = "PROCESSING"
	stateProcessed  = "PROCESSED"
)

// ProcessFunc is the work guarded for one message id
type ProcessFunc func(ctx context.Context) (response.Result, error)

type GuardOptions struct {
	Store         cache.Store
	Logger        *zap.Logger
	Metrics       *metrics.Collector
	ProcessingTTL time.Duration
	ProcessedTTL  time.Duration
}

// Guard suppresses duplicate deliveries of the same message id. It is advisory:
// when the cache is unreachable the work runs unguarded
type Guard struct {
	GuardOptions
}

func NewGuard(option GuardOptions) (*Guard, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.ProcessingTTL == 0 {
		option.ProcessingTTL = spec.ProcessingTTL
	}
	if option.ProcessedTTL == 0 {
		option.ProcessedTTL = spec.ProcessedTTL
	}
	return &Guard{
		GuardOptions: option,
	}, nil
}

func (g *Guard) cacheCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, spec.CacheTimeout)
}

func (g *Guard) state(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := g.cacheCtx(ctx)
	defer cancel()
	v, ok, err := g.Store.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	if strings.HasPrefix(v, stateProcessing) {
		return stateProcessing, true, nil
	}
	return v, true, nil
}

func (g *Guard) suppressed(logger *zap.Logger, state string) response.Result {
	g.Metrics.Duplicate(state)
	if state == stateProcessed {
		logger.Info("Notification already processed")
		return response.SUCCESS
	}
	logger.Info("Notification is being processed elsewhere")
	return response.FAIL
}

// Run executes fn at most once per message id until the processed marker expires.
// A PROCESSED marker short circuits to SUCCESS, an in-flight claim to FAIL
func (g *Guard) Run(ctx context.Context, messageID string, fn ProcessFunc) (result response.Result, err error) {
	logger := g.Logger.With(zap.String("MessageID", messageID))
	if len(messageID) == 0 {
		logger.Warn("Notification has no message id, processing unguarded")
		return fn(ctx)
	}
	key := keyPrefix + messageID

	state, ok, err := g.state(ctx, key)
	if err != nil {
		logger.Warn("Cache unavailable, processing unguarded",
			zap.Error(err),
		)
		return fn(ctx)
	}
	if ok {
		return g.suppressed(logger, state), nil
	}

	claim := stateProcessing + ":" + uuid.NewString()
	claimed, err := g.claim(ctx, key, claim)
	if err != nil {
		logger.Warn("Cache unavailable, processing unguarded",
			zap.Error(err),
		)
		return fn(ctx)
	}
	if !claimed {
		// lost the race to another delivery
		state, ok, err := g.state(ctx, key)
		if err != nil || !ok {
			state = stateProcessing
		}
		return g.suppressed(logger, state), nil
	}

	defer func() {
		if r := recover(); r != nil {
			g.release(logger, key, claim)
			panic(r)
		}
	}()

	result, err = fn(ctx)
	if err == nil && result == response.SUCCESS {
		g.complete(logger, key)
	} else {
		g.release(logger, key, claim)
	}
	return result, err
}

func (g *Guard) claim(ctx context.Context, key, claim string) (bool, error) {
	ctx, cancel := g.cacheCtx(ctx)
	defer cancel()
	return g.Store.SetNX(ctx, key, claim, g.ProcessingTTL)
}

// complete and release ignore cancellation of the caller
func (g *Guard) complete(logger *zap.Logger, key string) {
	ctx, cancel := g.cacheCtx(context.Background())
	defer cancel()
	if err := g.Store.Set(ctx, key, stateProcessed, g.ProcessedTTL); err != nil {
		logger.Error("Unable to mark notification as processed",
			zap.Error(err),
		)
	}
}

func (g *Guard) release(logger *zap.Logger, key, claim string) {
	ctx, cancel := g.cacheCtx(context.Background())
	defer cancel()
	if _, err := g.Store.DeleteIfEquals(ctx, key, claim); err != nil {
		logger.Error("Unable to clear processing marker",
			zap.Error(err),
		)
	}
}
