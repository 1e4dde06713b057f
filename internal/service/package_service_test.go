package service

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/spec-kit/parcel-tracker/internal/domain"
	"github.com/spec-kit/parcel-tracker/internal/repository"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

type fakePackageRepo struct {
	packages map[string]*domain.Package

	createCalls     int
	createConflicts int
	getCalls        int
	setStatusCalls  int
	statusConflicts int
	deleteCalls     int
}

func newFakePackageRepo() *fakePackageRepo {
	return &fakePackageRepo{packages: make(map[string]*domain.Package)}
}

func (f *fakePackageRepo) Create(_ context.Context, pkg *domain.Package) error {
	f.createCalls++
	if f.createConflicts > 0 {
		f.createConflicts--
		return apperrors.NewConflict("tracking code already exists", nil)
	}
	if _, exists := f.packages[pkg.TrackingCode]; exists {
		return apperrors.NewConflict("tracking code already exists", nil)
	}
	pkg.Version = 1
	clone := *pkg
	f.packages[pkg.TrackingCode] = &clone
	return nil
}

func (f *fakePackageRepo) Get(_ context.Context, trackingCode string) (*domain.Package, error) {
	f.getCalls++
	pkg, ok := f.packages[domain.NormalizeTrackingCode(trackingCode)]
	if !ok {
		return nil, nil
	}
	clone := *pkg
	clone.StatusHistory = append([]domain.StatusEvent(nil), pkg.StatusHistory...)
	return &clone, nil
}

func (f *fakePackageRepo) List(_ context.Context) ([]domain.Package, error) {
	out := make([]domain.Package, 0, len(f.packages))
	for _, pkg := range f.packages {
		out = append(out, *pkg)
	}
	return out, nil
}

func (f *fakePackageRepo) UpdateFields(_ context.Context, trackingCode string, update repository.PackageUpdate) (*domain.Package, error) {
	pkg, ok := f.packages[domain.NormalizeTrackingCode(trackingCode)]
	if !ok {
		return nil, nil
	}
	if update.Sender != nil {
		pkg.Sender = *update.Sender
	}
	if update.Recipient != nil {
		pkg.Recipient = *update.Recipient
	}
	if update.Origin != nil {
		pkg.Origin = *update.Origin
	}
	if update.Destination != nil {
		pkg.Destination = *update.Destination
	}
	clone := *pkg
	return &clone, nil
}

func (f *fakePackageRepo) SetStatus(_ context.Context, trackingCode string, history []domain.StatusEvent, current domain.Status, expectedVersion int64) error {
	f.setStatusCalls++
	if f.statusConflicts > 0 {
		f.statusConflicts--
		return apperrors.NewConflict("concurrent status write", nil)
	}
	pkg, ok := f.packages[domain.NormalizeTrackingCode(trackingCode)]
	if !ok {
		return apperrors.NewNotFound("package", nil)
	}
	if pkg.Version != expectedVersion {
		return apperrors.NewConflict("concurrent status write", nil)
	}
	pkg.StatusHistory = append([]domain.StatusEvent(nil), history...)
	pkg.CurrentStatus = current
	pkg.Version++
	return nil
}

func (f *fakePackageRepo) Delete(_ context.Context, trackingCode string) error {
	f.deleteCalls++
	delete(f.packages, domain.NormalizeTrackingCode(trackingCode))
	return nil
}

func seedPackage(t *testing.T, service *PackageService) *domain.Package {
	t.Helper()
	pkg, err := service.CreatePackage(context.Background(), "admin-1", PackageCreateInput{
		Sender:      domain.ContactInfo{Name: "Claire Martin", Address: "10 rue de Rivoli, Paris"},
		Recipient:   domain.ContactInfo{Name: "Karim Haddad", Address: "3 quai du Port, Marseille"},
		Origin:      "Paris",
		Destination: "Marseille",
	})
	if err != nil {
		t.Fatalf("CreatePackage: %v", err)
	}
	return pkg
}

func TestCreatePackageRegeneratesCodeOnCollision(t *testing.T) {
	repo := newFakePackageRepo()
	repo.createConflicts = 2
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})

	pkg := seedPackage(t, svc)

	if repo.createCalls != 3 {
		t.Fatalf("expected 3 create attempts, got %d", repo.createCalls)
	}
	if pkg.CurrentStatus != domain.StatusPickedUp {
		t.Fatalf("unexpected initial status %q", pkg.CurrentStatus)
	}
	if len(pkg.StatusHistory) != 1 {
		t.Fatalf("expected one seeded history event, got %d", len(pkg.StatusHistory))
	}
}

func TestCreatePackageGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newFakePackageRepo()
	repo.createConflicts = 10
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})

	_, err := svc.CreatePackage(context.Background(), "admin-1", PackageCreateInput{
		Sender:      domain.ContactInfo{Name: "A", Address: "B"},
		Recipient:   domain.ContactInfo{Name: "C", Address: "D"},
		Origin:      "Paris",
		Destination: "Lyon",
	})
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict after exhausted retries, got %v", err)
	}
	if repo.createCalls != createRetries {
		t.Fatalf("expected %d attempts, got %d", createRetries, repo.createCalls)
	}
}

func TestAdvanceStatusAppendsEvent(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	updated, err := svc.AdvanceStatus(context.Background(), pkg.TrackingCode, domain.StatusInTransit, "Lyon")
	if err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}
	if updated.CurrentStatus != domain.StatusInTransit {
		t.Fatalf("expected current status %q, got %q", domain.StatusInTransit, updated.CurrentStatus)
	}
	if len(updated.StatusHistory) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(updated.StatusHistory))
	}
	last := updated.StatusHistory[len(updated.StatusHistory)-1]
	if last.Location != "Lyon" {
		t.Fatalf("expected location Lyon, got %q", last.Location)
	}

	stored, _ := repo.Get(context.Background(), pkg.TrackingCode)
	if stored.CurrentStatus != domain.StatusInTransit {
		t.Fatalf("repository not updated, status %q", stored.CurrentStatus)
	}
}

func TestAdvanceStatusNotFound(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})

	_, err := svc.AdvanceStatus(context.Background(), "CS000000000XX", domain.StatusInTransit, "Lyon")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdvanceStatusRetriesOnVersionConflict(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	repo.statusConflicts = 1
	updated, err := svc.AdvanceStatus(context.Background(), pkg.TrackingCode, domain.StatusDelivered, "Marseille")
	if err != nil {
		t.Fatalf("AdvanceStatus after conflict: %v", err)
	}
	if repo.setStatusCalls != 2 {
		t.Fatalf("expected 2 write attempts, got %d", repo.setStatusCalls)
	}
	if updated.CurrentStatus != domain.StatusDelivered {
		t.Fatalf("unexpected status %q", updated.CurrentStatus)
	}
}

func TestAdvanceStatusRejectsUnknownStatus(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	_, err := svc.AdvanceStatus(context.Background(), pkg.TrackingCode, domain.Status("Perdu"), "Lyon")
	if err == nil {
		t.Fatal("expected validation error for unknown status")
	}
	if apperrors.ToDomainError(err).Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestUpdatePackageValidatesAndReportsAbsence(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	empty := ""
	if _, err := svc.UpdatePackage(context.Background(), pkg.TrackingCode, repository.PackageUpdate{Origin: &empty}); err == nil {
		t.Fatal("expected validation error for empty origin")
	}

	lyon := "Lyon"
	updated, err := svc.UpdatePackage(context.Background(), pkg.TrackingCode, repository.PackageUpdate{Destination: &lyon})
	if err != nil {
		t.Fatalf("UpdatePackage: %v", err)
	}
	if updated.Destination != "Lyon" {
		t.Fatalf("expected destination Lyon, got %q", updated.Destination)
	}
	if updated.TrackingCode != pkg.TrackingCode || updated.AdminID != pkg.AdminID {
		t.Fatal("identity fields must not change on update")
	}

	if _, err := svc.UpdatePackage(context.Background(), "CS000000000XX", repository.PackageUpdate{Destination: &lyon}); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdatePackageRepeatedApplyYieldsSameDocument(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	lyon := "Lyon"
	sender := domain.ContactInfo{Name: "Claire Martin", Address: "8 rue Oberkampf, Paris"}
	update := repository.PackageUpdate{Sender: &sender, Destination: &lyon}

	first, err := svc.UpdatePackage(context.Background(), pkg.TrackingCode, update)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	second, err := svc.UpdatePackage(context.Background(), pkg.TrackingCode, update)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated update changed the document:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDeletePackageIdempotent(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	if err := svc.DeletePackage(context.Background(), pkg.TrackingCode); err != nil {
		t.Fatalf("DeletePackage: %v", err)
	}
	if err := svc.DeletePackage(context.Background(), pkg.TrackingCode); err != nil {
		t.Fatalf("second delete should succeed, got %v", err)
	}
	if got, _ := svc.GetPackage(context.Background(), pkg.TrackingCode); got != nil {
		t.Fatal("package still present after delete")
	}
}

func TestTrackIsCaseInsensitive(t *testing.T) {
	repo := newFakePackageRepo()
	svc := NewPackageService(PackageDependencies{PackageRepo: repo})
	pkg := seedPackage(t, svc)

	found, err := svc.Track(context.Background(), "  "+strings.ToLower(pkg.TrackingCode)+" ")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if found == nil || found.TrackingCode != pkg.TrackingCode {
		t.Fatalf("expected package %q, got %+v", pkg.TrackingCode, found)
	}

	absent, err := svc.Track(context.Background(), "CS000000000XX")
	if err != nil {
		t.Fatalf("Track absent: %v", err)
	}
	if absent != nil {
		t.Fatal("expected nil for absent tracking code")
	}
}
