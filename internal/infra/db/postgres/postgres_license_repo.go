package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

// Ensure licenseRepo implements repository.LicenseRepository
var _ repository.LicenseRepository = (*licenseRepo)(nil)

const licenseColumns = `id, license_key, user_id, product_id, package_id, subscription_id, domain_limit, status, expires_at, last_validated_at, created_at, updated_at`

type licenseRepo struct {
	pool *pgxpool.Pool
}

func NewLicenseRepo(pool *pgxpool.Pool) *licenseRepo {
	return &licenseRepo{pool: pool}
}

func (r *licenseRepo) Save(ctx context.Context, tx repository.Tx, l *model.License) error {
	const q = `
INSERT INTO licenses (` + licenseColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  package_id=$5, subscription_id=$6, domain_limit=$7, status=$8, expires_at=$9, last_validated_at=$10, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q,
		l.ID, l.LicenseKey, l.UserID, l.ProductID, l.PackageID, l.SubscriptionID,
		l.DomainLimit, l.Status, l.ExpiresAt, l.LastValidatedAt, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *licenseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.License, error) {
	const q = `SELECT ` + licenseColumns + ` FROM licenses WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *licenseRepo) FindByKeyAndProduct(ctx context.Context, tx repository.Tx, licenseKey, productSlug string) (*model.License, error) {
	const q = `
SELECT l.id, l.license_key, l.user_id, l.product_id, l.package_id, l.subscription_id,
       l.domain_limit, l.status, l.expires_at, l.last_validated_at, l.created_at, l.updated_at
  FROM licenses l
  JOIN products p ON p.id = l.product_id
 WHERE l.license_key=$1 AND p.slug=$2 AND p.active
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, licenseKey, productSlug)
}

func (r *licenseRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.License, error) {
	const q = `SELECT ` + licenseColumns + ` FROM licenses WHERE subscription_id=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, subscriptionID)
}

// CreateIfAbsent relies on the partial unique index on subscription_id: the
// insert silently does nothing when a license for the subscription already
// exists, which is what makes duplicate webhook delivery safe.
func (r *licenseRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, l *model.License) (*model.License, bool, error) {
	if l.SubscriptionID == nil {
		if err := r.Save(ctx, tx, l); err != nil {
			return nil, false, err
		}
		return l, true, nil
	}

	const q = `
INSERT INTO licenses (` + licenseColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (subscription_id) WHERE subscription_id IS NOT NULL DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		l.ID, l.LicenseKey, l.UserID, l.ProductID, l.PackageID, l.SubscriptionID,
		l.DomainLimit, l.Status, l.ExpiresAt, l.LastValidatedAt, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return nil, false, domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 1 {
		return l, true, nil
	}
	existing, err := r.FindBySubscriptionID(ctx, tx, *l.SubscriptionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *licenseRepo) TouchValidated(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE licenses SET last_validated_at=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *licenseRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.LicenseStatus) error {
	const q = `UPDATE licenses SET status=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *licenseRepo) UpdatePlan(ctx context.Context, tx repository.Tx, id, packageID string, domainLimit *int) error {
	const q = `UPDATE licenses SET package_id=$2, domain_limit=$3, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, packageID, domainLimit)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *licenseRepo) MarkExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `
UPDATE licenses
   SET status='expired', updated_at=NOW()
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at <= $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}

func (r *licenseRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.License, error) {
	const q = `SELECT ` + licenseColumns + ` FROM licenses ORDER BY created_at DESC OFFSET $1 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, offset, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *licenseRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.LicenseStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM licenses GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.LicenseStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.LicenseStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *licenseRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.License, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	l, err := scanLicense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLicense(row rowScanner) (*model.License, error) {
	var l model.License
	err := row.Scan(
		&l.ID, &l.LicenseKey, &l.UserID, &l.ProductID, &l.PackageID, &l.SubscriptionID,
		&l.DomainLimit, &l.Status, &l.ExpiresAt, &l.LastValidatedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
