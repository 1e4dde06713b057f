package domain

import (
	"testing"
	"time"

	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

func validInput() CreateInput {
	return CreateInput{
		TrackingCode: "cs123456789fr",
		AdminID:      "admin-1",
		Sender:       ContactInfo{Name: "John Doe", Address: "123 Main St"},
		Recipient:    ContactInfo{Name: "Jane Smith", Address: "456 Oak Ave"},
		Origin:       "Paris, France",
		Destination:  "Marseille, France",
	}
}

func TestNewPackage(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	pkg, err := NewPackage(validInput(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pkg.TrackingCode != "CS123456789FR" {
		t.Errorf("tracking code not normalized: %q", pkg.TrackingCode)
	}
	if pkg.CurrentStatus != StatusPickedUp {
		t.Errorf("current status = %q, want %q", pkg.CurrentStatus, StatusPickedUp)
	}
	if len(pkg.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(pkg.StatusHistory))
	}
	if pkg.StatusHistory[0].Location != "Paris, France" {
		t.Errorf("initial event location = %q, want origin", pkg.StatusHistory[0].Location)
	}
	if !pkg.StatusHistory[0].Timestamp.Equal(now) {
		t.Errorf("initial event timestamp = %v, want %v", pkg.StatusHistory[0].Timestamp, now)
	}
}

func TestNewPackageNamesFirstMissingField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"sender name", func(in *CreateInput) { in.Sender.Name = "" }, "sender.name"},
		{"sender address", func(in *CreateInput) { in.Sender.Address = "  " }, "sender.address"},
		{"recipient name", func(in *CreateInput) { in.Recipient.Name = "" }, "recipient.name"},
		{"recipient address", func(in *CreateInput) { in.Recipient.Address = "" }, "recipient.address"},
		{"origin", func(in *CreateInput) { in.Origin = "" }, "origin"},
		{"destination", func(in *CreateInput) { in.Destination = "" }, "destination"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)

			_, err := NewPackage(input, time.Now())
			if err == nil {
				t.Fatal("expected validation error")
			}
			domainErr := apperrors.ToDomainError(err)
			if domainErr.Code != "VALIDATION_FAILED" {
				t.Errorf("code = %q, want VALIDATION_FAILED", domainErr.Code)
			}
			if got := domainErr.Details["field"]; got != tc.field {
				t.Errorf("field = %v, want %q", got, tc.field)
			}
		})
	}
}

func TestAppendStatusSequence(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pkg, err := NewPackage(validInput(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []struct {
		status   Status
		location string
	}{
		{StatusInTransit, "Lyon, France"},
		{StatusAtHub, "Marseille, France"},
		{StatusOutForDelivery, "Marseille, France"},
		{StatusDelivered, "Marseille, France"},
	}

	for i, step := range steps {
		at := now.Add(time.Duration(i+1) * time.Hour)
		if err := pkg.AppendStatus(step.status, step.location, at); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if pkg.CurrentStatus != StatusDelivered {
		t.Errorf("current status = %q, want last appended", pkg.CurrentStatus)
	}
	if len(pkg.StatusHistory) != 1+len(steps) {
		t.Errorf("history length = %d, want %d", len(pkg.StatusHistory), 1+len(steps))
	}
	if latest := pkg.LatestEvent(); latest == nil || latest.Status != StatusDelivered {
		t.Errorf("latest event = %+v, want Livré", latest)
	}
}

func TestAppendStatusAllowsAnyTransition(t *testing.T) {
	// Returns and re-attempts mean the enumeration order is not enforced.
	pkg, err := NewPackage(validInput(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pkg.AppendStatus(StatusDelivered, "Marseille, France", time.Now()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := pkg.AppendStatus(StatusPickedUp, "Marseille, France", time.Now()); err != nil {
		t.Errorf("backwards transition rejected: %v", err)
	}
}

func TestAppendStatusRejectsBadInput(t *testing.T) {
	pkg, err := NewPackage(validInput(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pkg.AppendStatus(Status("Lost"), "Paris", time.Now()); err == nil {
		t.Error("expected error for unknown status")
	}
	if err := pkg.AppendStatus(StatusInTransit, "  ", time.Now()); err == nil {
		t.Error("expected error for empty location")
	}
	if len(pkg.StatusHistory) != 1 {
		t.Errorf("failed appends must not grow history, length = %d", len(pkg.StatusHistory))
	}
}

func TestAppendStatusClampsBackwardsClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pkg, err := NewPackage(validInput(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pkg.AppendStatus(StatusInTransit, "Lyon, France", now.Add(-time.Hour)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ts := pkg.StatusHistory[1].Timestamp; ts.Before(pkg.StatusHistory[0].Timestamp) {
		t.Errorf("append-order timestamps must be non-decreasing, got %v", ts)
	}
	if latest := pkg.LatestEvent(); latest.Status != StatusInTransit {
		t.Errorf("latest event = %q, want the appended one", latest.Status)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pkg, err := NewPackage(validInput(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = pkg.AppendStatus(StatusInTransit, "Lyon, France", now.Add(time.Hour))
	_ = pkg.AppendStatus(StatusDelivered, "Marseille, France", now.Add(2*time.Hour))

	view := pkg.HistoryNewestFirst()
	if view[0].Status != StatusDelivered || view[2].Status != StatusPickedUp {
		t.Errorf("display view not newest-first: %+v", view)
	}
	// storage order untouched
	if pkg.StatusHistory[0].Status != StatusPickedUp {
		t.Error("storage order must remain insertion order")
	}
}

func TestPermissiveTransitions(t *testing.T) {
	var v TransitionValidator = PermissiveTransitions{}
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			if !v.Allowed(from, to) {
				t.Fatalf("default validator rejected %q -> %q", from, to)
			}
		}
	}
}
