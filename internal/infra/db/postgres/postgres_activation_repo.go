package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

var _ repository.ActivationRepository = (*activationRepo)(nil)

const activationColumns = `id, license_id, domain, ip_address, user_agent, activated_at, last_checked_at, deactivated_at`

type activationRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewActivationRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *activationRepo {
	return &activationRepo{pool: pool, tm: tm}
}

func (r *activationRepo) FindByLicenseAndDomain(ctx context.Context, tx repository.Tx, licenseID, domainName string) (*model.LicenseActivation, error) {
	const q = `SELECT ` + activationColumns + ` FROM license_activations WHERE license_id=$1 AND domain=$2 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, licenseID, domainName)
	if err != nil {
		return nil, err
	}
	a, err := scanActivation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *activationRepo) CountActive(ctx context.Context, tx repository.Tx, licenseID string) (int, error) {
	const q = `SELECT COUNT(*) FROM license_activations WHERE license_id=$1 AND deactivated_at IS NULL;`
	row, err := pickRow(ctx, r.pool, tx, q, licenseID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *activationRepo) CountAllActive(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `SELECT COUNT(*) FROM license_activations WHERE deactivated_at IS NULL;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *activationRepo) ListActive(ctx context.Context, tx repository.Tx, licenseID string) ([]*model.LicenseActivation, error) {
	const q = `SELECT ` + activationColumns + ` FROM license_activations WHERE license_id=$1 AND deactivated_at IS NULL ORDER BY activated_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, licenseID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.LicenseActivation
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// InsertIfUnderLimit is the single write path that can grow a license's set of
// active domains. The SELECT ... FOR UPDATE on the license row serializes
// concurrent activations for the same license, so the count-then-insert pair
// is race free even across processes.
func (r *activationRepo) InsertIfUnderLimit(ctx context.Context, a *model.LicenseActivation) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		const lockQ = `SELECT domain_limit FROM licenses WHERE id=$1 FOR UPDATE;`
		row, err := pickRow(ctx, r.pool, tx, lockQ, a.LicenseID)
		if err != nil {
			return err
		}
		var limit *int
		if err := row.Scan(&limit); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}

		if limit != nil {
			used, err := r.CountActive(ctx, tx, a.LicenseID)
			if err != nil {
				return err
			}
			if used >= *limit {
				return fmt.Errorf("domain limit of %d reached: %w", *limit, domain.ErrDomainLimitReached)
			}
		}

		const insQ = `
INSERT INTO license_activations (` + activationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
		if _, err := execSQL(ctx, r.pool, tx, insQ,
			a.ID, a.LicenseID, a.Domain, a.IPAddress, a.UserAgent,
			a.ActivatedAt, a.LastCheckedAt, a.DeactivatedAt); err != nil {
			// A concurrent activation of the same new domain can slip past
			// the caller's lookup; the UNIQUE (license_id, domain) row it
			// inserted first surfaces here, not as a capacity problem.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}

		const stampQ = `UPDATE licenses SET last_validated_at=NOW(), updated_at=NOW() WHERE id=$1;`
		if _, err := execSQL(ctx, r.pool, tx, stampQ, a.LicenseID); err != nil {
			return domain.ErrOperationFailed
		}
		return nil
	})
}

func (r *activationRepo) Reactivate(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE license_activations SET deactivated_at=NULL, activated_at=$2 WHERE id=$1;`
	return r.exec(ctx, tx, q, id, at)
}

func (r *activationRepo) Deactivate(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE license_activations SET deactivated_at=$2 WHERE id=$1 AND deactivated_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *activationRepo) DeactivateAll(ctx context.Context, tx repository.Tx, licenseID string, at time.Time) (int, error) {
	const q = `UPDATE license_activations SET deactivated_at=$2 WHERE license_id=$1 AND deactivated_at IS NULL;`
	tag, err := execSQL(ctx, r.pool, tx, q, licenseID, at)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}

func (r *activationRepo) TouchChecked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE license_activations SET last_checked_at=$2 WHERE id=$1;`
	return r.exec(ctx, tx, q, id, at)
}

func (r *activationRepo) exec(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanActivation(row rowScanner) (*model.LicenseActivation, error) {
	var a model.LicenseActivation
	err := row.Scan(
		&a.ID, &a.LicenseID, &a.Domain, &a.IPAddress, &a.UserAgent,
		&a.ActivatedAt, &a.LastCheckedAt, &a.DeactivatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
