package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories accept nil for the non-transactional
// path; NoTX makes that explicit at call sites.
type Tx interface{}

var NoTX Tx

// TransactionManager executes a function inside a database transaction,
// passing the handle down so repository calls join the same transaction.
// Keeping the handle opaque keeps use-case signatures storage-agnostic while
// still letting implementations run SELECT ... FOR UPDATE where an invariant
// needs the check and the write serialized.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
