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

var (
	_ repository.ProductRepository = (*productRepo)(nil)
	_ repository.PackageRepository = (*packageRepo)(nil)
)

const productColumns = `id, slug, name, type, active, created_at`

type productRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *productRepo {
	return &productRepo{pool: pool}
}

func (r *productRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (` + productColumns + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET slug=$2, name=$3, type=$4, active=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Slug, p.Name, p.Type, p.Active, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *productRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *productRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE slug=$1;`
	return r.queryOne(ctx, tx, q, slug)
}

func (r *productRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Type, &p.Active, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *productRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Product, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Type, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}

const packageColumns = `id, product_id, slug, name, domain_limit, monthly_price_id, yearly_price_id, active, created_at`

type packageRepo struct {
	pool *pgxpool.Pool
}

func NewPackageRepo(pool *pgxpool.Pool) *packageRepo {
	return &packageRepo{pool: pool}
}

func (r *packageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	const q = `
INSERT INTO packages (` + packageColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  slug=$3, name=$4, domain_limit=$5, monthly_price_id=$6, yearly_price_id=$7, active=$8;`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.ProductID, p.Slug, p.Name, p.DomainLimit, p.MonthlyPriceID, p.YearlyPriceID, p.Active, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *packageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *packageRepo) FindByPriceID(ctx context.Context, tx repository.Tx, priceID string) (*model.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages WHERE monthly_price_id=$1 OR yearly_price_id=$1 LIMIT 1;`
	return r.queryOne(ctx, tx, q, priceID)
}

func (r *packageRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages WHERE slug=$1;`
	return r.queryOne(ctx, tx, q, slug)
}

func (r *packageRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Package, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var p model.Package
	err = row.Scan(&p.ID, &p.ProductID, &p.Slug, &p.Name, &p.DomainLimit,
		&p.MonthlyPriceID, &p.YearlyPriceID, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}
