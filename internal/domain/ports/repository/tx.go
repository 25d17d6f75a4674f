package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. The concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories accept nil for the non-transactional
// path and fall back to the pool.
type Tx interface{}

// NoTX is passed where no transaction is wanted.
var NoTX Tx

// TransactionManager executes a function inside a database transaction,
// handing the tx handle to the callback. Keeps use-case signatures free of
// storage types while still letting multi-write operations commit or roll
// back as a unit.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
