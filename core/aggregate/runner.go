package aggregate

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/kittenwarrior-qb/renew-wishzy-be-sub001/database"
)

// TxRunner is the transaction boundary used for every aggregate write.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error
}

type sqlxRunner struct {
	db *sqlx.DB
}

// NewTxRunner returns a runner opening READ COMMITTED transactions on db.
// Lost updates are prevented by row locks, not by the isolation level.
func NewTxRunner(db *sqlx.DB) TxRunner {
	return sqlxRunner{db: db}
}

func (r sqlxRunner) InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	return database.TransactionContext(ctx, r.db, nil, fn)
}
