package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/events"
	"github.com/spec-kit/parcel-tracker/internal/observability"
	"github.com/spec-kit/parcel-tracker/internal/service"
)

// RegisterInvalidationHandlers wires every package mutation event to tracking
// cache invalidation and changefeed publication.
func RegisterInvalidationHandlers(dispatcher events.Dispatcher, feed *events.ChangeFeed, cache *redis.Client, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}

	handler := func(ctx context.Context, event events.Event) error {
		if cache != nil {
			if err := cache.Del(ctx, service.TrackingCacheKey(event.TrackingCode)).Err(); err != nil {
				logger.Warn("tracking cache invalidation failed",
					zap.String("tracking_code", event.TrackingCode), zap.Error(err))
			}
		}
		if feed != nil {
			feed.Publish(ctx, event.TrackingCode)
		}
		return nil
	}

	for _, eventType := range []events.EventType{
		events.EventPackageCreated,
		events.EventPackageUpdated,
		events.EventPackageStatusAdvanced,
		events.EventPackageDeleted,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
}

// RegisterMetricsHandlers counts status-advance events.
func RegisterMetricsHandlers(dispatcher events.Dispatcher, metrics *observability.Metrics) {
	if dispatcher == nil || metrics == nil {
		return
	}
	dispatcher.Subscribe(events.EventPackageStatusAdvanced, func(_ context.Context, _ events.Event) error {
		metrics.RecordStatusAdvance()
		return nil
	})
}
