package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/parcel-tracker/internal/domain"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// PackageUpdate carries a partial edit of the non-history fields. The tracking
// code and admin id can never change through an update.
type PackageUpdate struct {
	Sender      *domain.ContactInfo
	Recipient   *domain.ContactInfo
	Origin      *string
	Destination *string
}

// Empty reports whether the update touches nothing.
func (u PackageUpdate) Empty() bool {
	return u.Sender == nil && u.Recipient == nil && u.Origin == nil && u.Destination == nil
}

// PackageRepository maps the package aggregate onto the packages collection,
// keyed by tracking code.
type PackageRepository interface {
	Create(ctx context.Context, pkg *domain.Package) error
	// Get returns (nil, nil) when no package matches; absence is a result,
	// not an error.
	Get(ctx context.Context, trackingCode string) (*domain.Package, error)
	List(ctx context.Context) ([]domain.Package, error)
	UpdateFields(ctx context.Context, trackingCode string, update PackageUpdate) (*domain.Package, error)
	SetStatus(ctx context.Context, trackingCode string, history []domain.StatusEvent, current domain.Status, expectedVersion int64) error
	Delete(ctx context.Context, trackingCode string) error
}

type packageRepository struct {
	pool *pgxpool.Pool
}

// NewPackageRepository instantiates repository.
func NewPackageRepository(pool *pgxpool.Pool) PackageRepository {
	return &packageRepository{pool: pool}
}

const packageColumns = `tracking_code, admin_id, sender, recipient, origin, destination,
               current_status, status_history, version, created_at, updated_at`

func (r *packageRepository) Create(ctx context.Context, pkg *domain.Package) error {
	sender, recipient, history, err := marshalDocumentFields(pkg)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	// Non-overwriting write: key collisions surface as a conflict the caller
	// retries with a regenerated code.
	const query = `
        INSERT INTO packages (tracking_code, admin_id, sender, recipient, origin, destination, current_status, status_history, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        ON CONFLICT (tracking_code) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		pkg.TrackingCode,
		pkg.AdminID,
		sender,
		recipient,
		pkg.Origin,
		pkg.Destination,
		pkg.CurrentStatus,
		history,
		pkg.CreatedAt,
	)
	if err != nil {
		return r.wrap("create", pkg.TrackingCode, err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflict("tracking code already exists", map[string]any{"id": pkg.TrackingCode})
	}
	pkg.Version = 1
	return nil
}

func (r *packageRepository) Get(ctx context.Context, trackingCode string) (*domain.Package, error) {
	code := domain.NormalizeTrackingCode(trackingCode)
	query := fmt.Sprintf(`SELECT %s FROM packages WHERE tracking_code=$1`, packageColumns)

	pkg, err := scanPackage(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.wrap("get", code, err)
	}
	return pkg, nil
}

func (r *packageRepository) List(ctx context.Context) ([]domain.Package, error) {
	// Ordered by tracking code for stable admin-table rendering.
	query := fmt.Sprintf(`SELECT %s FROM packages ORDER BY tracking_code ASC`, packageColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, r.wrap("list", "packages", err)
	}
	defer rows.Close()

	var result []domain.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, r.wrap("list", "packages", err)
		}
		result = append(result, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("list", "packages", err)
	}
	return result, nil
}

func (r *packageRepository) UpdateFields(ctx context.Context, trackingCode string, update PackageUpdate) (*domain.Package, error) {
	code := domain.NormalizeTrackingCode(trackingCode)
	if update.Empty() {
		return r.Get(ctx, code)
	}

	sets := []string{"updated_at=NOW()"}
	args := []any{}

	if update.Sender != nil {
		encoded, err := json.Marshal(update.Sender)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		args = append(args, encoded)
		sets = append(sets, fmt.Sprintf("sender=$%d", len(args)))
	}
	if update.Recipient != nil {
		encoded, err := json.Marshal(update.Recipient)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		args = append(args, encoded)
		sets = append(sets, fmt.Sprintf("recipient=$%d", len(args)))
	}
	if update.Origin != nil {
		args = append(args, strings.TrimSpace(*update.Origin))
		sets = append(sets, fmt.Sprintf("origin=$%d", len(args)))
	}
	if update.Destination != nil {
		args = append(args, strings.TrimSpace(*update.Destination))
		sets = append(sets, fmt.Sprintf("destination=$%d", len(args)))
	}

	args = append(args, code)
	query := fmt.Sprintf(`UPDATE packages SET %s WHERE tracking_code=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), packageColumns)

	pkg, err := scanPackage(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.wrap("update", code, err)
	}
	return pkg, nil
}

func (r *packageRepository) SetStatus(ctx context.Context, trackingCode string, history []domain.StatusEvent, current domain.Status, expectedVersion int64) error {
	code := domain.NormalizeTrackingCode(trackingCode)
	encoded, err := json.Marshal(history)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	// Compare-and-swap on version so concurrent advances cannot silently drop
	// each other's events.
	const query = `
        UPDATE packages SET status_history=$1, current_status=$2, version=version+1, updated_at=NOW()
        WHERE tracking_code=$3 AND version=$4`
	cmd, err := r.pool.Exec(ctx, query, encoded, current, code, expectedVersion)
	if err != nil {
		return r.wrap("set_status", code, err)
	}
	if cmd.RowsAffected() == 0 {
		existing, err := r.Get(ctx, code)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperrors.NewNotFound("package", map[string]any{"id": code})
		}
		return apperrors.NewConflict("package modified concurrently", map[string]any{"id": code})
	}
	return nil
}

func (r *packageRepository) Delete(ctx context.Context, trackingCode string) error {
	code := domain.NormalizeTrackingCode(trackingCode)
	// Hard delete; deleting an absent code is not an error.
	if _, err := r.pool.Exec(ctx, `DELETE FROM packages WHERE tracking_code=$1`, code); err != nil {
		return r.wrap("delete", code, err)
	}
	return nil
}

func (r *packageRepository) wrap(operation, target string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501":
			return apperrors.NewPermissionDenied(operation, "packages/"+target, err)
		case "23505":
			return apperrors.NewConflict("tracking code already exists", map[string]any{"id": target})
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTransient(operation, err)
	}
	return apperrors.NewInternalError(err)
}

func marshalDocumentFields(pkg *domain.Package) (sender, recipient, history []byte, err error) {
	if sender, err = json.Marshal(pkg.Sender); err != nil {
		return nil, nil, nil, err
	}
	if recipient, err = json.Marshal(pkg.Recipient); err != nil {
		return nil, nil, nil, err
	}
	if history, err = json.Marshal(pkg.StatusHistory); err != nil {
		return nil, nil, nil, err
	}
	return sender, recipient, history, nil
}

func scanPackage(row pgx.Row) (*domain.Package, error) {
	var (
		pkg       domain.Package
		sender    []byte
		recipient []byte
		history   []byte
	)
	if err := row.Scan(
		&pkg.TrackingCode,
		&pkg.AdminID,
		&sender,
		&recipient,
		&pkg.Origin,
		&pkg.Destination,
		&pkg.CurrentStatus,
		&history,
		&pkg.Version,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sender, &pkg.Sender); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recipient, &pkg.Recipient); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &pkg.StatusHistory); err != nil {
		return nil, err
	}
	return &pkg, nil
}
