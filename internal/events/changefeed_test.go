package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/domain"
)

type fakeLoader struct {
	mu       sync.Mutex
	packages map[string]*domain.Package
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{packages: make(map[string]*domain.Package)}
}

func (l *fakeLoader) Get(ctx context.Context, trackingCode string) (*domain.Package, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pkg, ok := l.packages[domain.NormalizeTrackingCode(trackingCode)]
	if !ok {
		return nil, nil
	}
	clone := *pkg
	return &clone, nil
}

func (l *fakeLoader) put(pkg *domain.Package) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.packages[pkg.TrackingCode] = pkg
}

func testPackage(code string, status domain.Status) *domain.Package {
	return &domain.Package{
		TrackingCode:  domain.NormalizeTrackingCode(code),
		CurrentStatus: status,
		StatusHistory: []domain.StatusEvent{{Status: status, Location: "Paris, France", Timestamp: time.Now()}},
	}
}

func waitFor(t *testing.T, ch <-chan *domain.Package) *domain.Package {
	t.Helper()
	select {
	case pkg := <-ch:
		return pkg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	loader := newFakeLoader()
	loader.put(testPackage("CS1", domain.StatusPickedUp))
	feed := NewChangeFeed(loader, nil, zap.NewNop())

	got := make(chan *domain.Package, 4)
	sub := feed.Subscribe("cs1", func(pkg *domain.Package) { got <- pkg })
	defer sub.Unsubscribe()

	pkg := waitFor(t, got)
	if pkg == nil || pkg.CurrentStatus != domain.StatusPickedUp {
		t.Fatalf("initial snapshot = %+v", pkg)
	}
}

func TestSubscribeAbsentPackageDeliversNil(t *testing.T) {
	feed := NewChangeFeed(newFakeLoader(), nil, zap.NewNop())

	got := make(chan *domain.Package, 4)
	sub := feed.Subscribe("CS404", func(pkg *domain.Package) { got <- pkg })
	defer sub.Unsubscribe()

	if pkg := waitFor(t, got); pkg != nil {
		t.Fatalf("expected nil snapshot for absent package, got %+v", pkg)
	}
}

func TestDispatchNotifiesEverySubscriber(t *testing.T) {
	loader := newFakeLoader()
	loader.put(testPackage("CS2", domain.StatusPickedUp))
	feed := NewChangeFeed(loader, nil, zap.NewNop())

	first := make(chan *domain.Package, 4)
	second := make(chan *domain.Package, 4)
	subA := feed.Subscribe("CS2", func(pkg *domain.Package) { first <- pkg })
	subB := feed.Subscribe("CS2", func(pkg *domain.Package) { second <- pkg })
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	waitFor(t, first)
	waitFor(t, second)

	loader.put(testPackage("CS2", domain.StatusDelivered))
	feed.Dispatch(context.Background(), "CS2")

	if pkg := waitFor(t, first); pkg.CurrentStatus != domain.StatusDelivered {
		t.Errorf("subscriber A saw %q", pkg.CurrentStatus)
	}
	if pkg := waitFor(t, second); pkg.CurrentStatus != domain.StatusDelivered {
		t.Errorf("subscriber B saw %q", pkg.CurrentStatus)
	}
}

func TestUnsubscribeStopsNotificationsAndIsIdempotent(t *testing.T) {
	loader := newFakeLoader()
	loader.put(testPackage("CS3", domain.StatusPickedUp))
	feed := NewChangeFeed(loader, nil, zap.NewNop())

	got := make(chan *domain.Package, 4)
	sub := feed.Subscribe("CS3", func(pkg *domain.Package) { got <- pkg })
	waitFor(t, got)

	sub.Unsubscribe()
	sub.Unsubscribe()

	feed.Dispatch(context.Background(), "CS3")
	select {
	case <-got:
		t.Error("notification received after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatchWithoutSubscribersIsNoop(t *testing.T) {
	feed := NewChangeFeed(newFakeLoader(), nil, zap.NewNop())
	feed.Dispatch(context.Background(), "CS9")
}
