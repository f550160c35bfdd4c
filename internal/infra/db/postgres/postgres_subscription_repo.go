package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"plugin-license-server/internal/domain"
	"plugin-license-server/internal/domain/model"
	"plugin-license-server/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionColumns = `id, user_id, provider_id, type, price_id, status, created_at`

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET type=$4, price_id=$5, status=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.ProviderID, s.Type, s.PriceID, s.Status, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByProviderID(ctx context.Context, tx repository.Tx, providerID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_id=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, providerID)
}

func (r *subscriptionRepo) FindByUserAndType(ctx context.Context, tx repository.Tx, userID, typ string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 AND type=$2 ORDER BY created_at DESC LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID, typ)
}

func (r *subscriptionRepo) UpdatePlan(ctx context.Context, tx repository.Tx, id, typ, priceID string) error {
	const q = `UPDATE subscriptions SET type=$2, price_id=$3 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, typ, priceID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var s model.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.ProviderID, &s.Type, &s.PriceID, &s.Status, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}
