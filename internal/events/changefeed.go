package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/domain"
)

// changeChannel carries cross-instance mutation notices.
const changeChannel = "packages.changes"

// Loader fetches current package state for snapshot delivery.
type Loader interface {
	Get(ctx context.Context, trackingCode string) (*domain.Package, error)
}

type changeMessage struct {
	TrackingCode string `json:"trackingCode"`
	Origin       string `json:"origin"`
}

// ChangeFeed fans out per-tracking-code change notifications to live
// subscribers. Local mutations are dispatched directly; remote mutations
// arrive over a Redis pub/sub channel.
type ChangeFeed struct {
	loader     Loader
	rdb        *redis.Client
	logger     *zap.Logger
	instanceID string

	mu     sync.Mutex
	nextID int64
	subs   map[string]map[int64]*Subscription
}

// NewChangeFeed constructs the feed. rdb may be nil in single-node setups and
// tests; the feed then delivers local dispatches only.
func NewChangeFeed(loader Loader, rdb *redis.Client, logger *zap.Logger) *ChangeFeed {
	return &ChangeFeed{
		loader:     loader,
		rdb:        rdb,
		logger:     logger,
		instanceID: uuid.NewString(),
		subs:       make(map[string]map[int64]*Subscription),
	}
}

// Subscription is the disposable handle returned by Subscribe.
type Subscription struct {
	feed *ChangeFeed
	code string
	id   int64
	ch   chan *domain.Package
	once sync.Once
}

// Unsubscribe stops further callbacks. Idempotent; a callback already in
// flight when Unsubscribe returns may still run.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
	})
}

// Subscribe registers fn for a tracking code. fn is invoked once asynchronously
// with the current state (nil when absent) and again after every mutation,
// in order, until the handle is released. Subscribers for the same code are
// independent of one another.
func (f *ChangeFeed) Subscribe(trackingCode string, fn func(*domain.Package)) *Subscription {
	code := domain.NormalizeTrackingCode(trackingCode)
	sub := &Subscription{feed: f, code: code, ch: make(chan *domain.Package, 16)}

	f.mu.Lock()
	f.nextID++
	sub.id = f.nextID
	if f.subs[code] == nil {
		f.subs[code] = make(map[int64]*Subscription)
	}
	f.subs[code][sub.id] = sub
	f.mu.Unlock()

	go func() {
		for pkg := range sub.ch {
			fn(pkg)
		}
	}()

	// Initial snapshot. Registered before the load, so a mutation racing the
	// snapshot can deliver a newer state first; receivers tolerate stale
	// notifications.
	go f.deliverSnapshot(sub)

	return sub
}

func (f *ChangeFeed) deliverSnapshot(sub *Subscription) {
	pkg, err := f.loader.Get(context.Background(), sub.code)
	if err != nil {
		f.logger.Warn("changefeed snapshot load failed",
			zap.String("tracking_code", sub.code), zap.Error(err))
		return
	}
	f.mu.Lock()
	if group, ok := f.subs[sub.code]; ok {
		if _, alive := group[sub.id]; alive {
			f.send(sub, pkg)
		}
	}
	f.mu.Unlock()
}

// Dispatch reloads the package and notifies every local subscriber of the
// code. Called for both local and remote mutations.
func (f *ChangeFeed) Dispatch(ctx context.Context, trackingCode string) {
	code := domain.NormalizeTrackingCode(trackingCode)

	f.mu.Lock()
	waiting := len(f.subs[code])
	f.mu.Unlock()
	if waiting == 0 {
		return
	}

	pkg, err := f.loader.Get(ctx, code)
	if err != nil {
		f.logger.Warn("changefeed reload failed",
			zap.String("tracking_code", code), zap.Error(err))
		return
	}

	f.mu.Lock()
	for _, sub := range f.subs[code] {
		f.send(sub, pkg)
	}
	f.mu.Unlock()
}

// Publish notifies subscribers on this instance and broadcasts the mutation to
// peers over Redis.
func (f *ChangeFeed) Publish(ctx context.Context, trackingCode string) {
	code := domain.NormalizeTrackingCode(trackingCode)
	f.Dispatch(ctx, code)

	if f.rdb == nil {
		return
	}
	msg, err := json.Marshal(changeMessage{TrackingCode: code, Origin: f.instanceID})
	if err != nil {
		return
	}
	if err := f.rdb.Publish(ctx, changeChannel, msg).Err(); err != nil {
		f.logger.Warn("changefeed publish failed",
			zap.String("tracking_code", code), zap.Error(err))
	}
}

// Run consumes remote mutation notices until ctx is canceled.
func (f *ChangeFeed) Run(ctx context.Context) {
	if f.rdb == nil {
		return
	}
	pubsub := f.rdb.Subscribe(ctx, changeChannel)
	defer pubsub.Close() //nolint:errcheck

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg changeMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				f.logger.Warn("changefeed bad message", zap.Error(err))
				continue
			}
			if msg.Origin == f.instanceID {
				// already dispatched locally by Publish
				continue
			}
			f.Dispatch(ctx, msg.TrackingCode)
		}
	}
}

func (f *ChangeFeed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.subs[sub.code]
	if !ok {
		return
	}
	if _, alive := group[sub.id]; !alive {
		return
	}
	delete(group, sub.id)
	if len(group) == 0 {
		delete(f.subs, sub.code)
	}
	close(sub.ch)
}

// send enqueues a snapshot, dropping the oldest pending one when the
// subscriber is slow; the latest state always wins. Caller holds f.mu.
func (f *ChangeFeed) send(sub *Subscription, pkg *domain.Package) {
	select {
	case sub.ch <- pkg:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- pkg:
		default:
		}
	}
}
