// Package txm carries a database transaction through context so that usecases
// can compose repository calls from several domains into one atomic unit.
package txm

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Manager runs fn inside a transaction. Calls nested inside an open
// transaction join it; only the outermost call commits.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type scopeKey struct{}

// Scope is the per-transaction state stored in the context.
type Scope struct {
	tx    *sqlx.Tx
	hooks []func()
}

// NewScope creates a scope for tx. tx may be nil for non-SQL managers.
func NewScope(tx *sqlx.Tx) *Scope {
	return &Scope{tx: tx}
}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	return scopeFrom(ctx) != nil
}

// AfterCommit registers fn to run once the outermost transaction commits.
// Without an open transaction fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	if s := scopeFrom(ctx); s != nil {
		s.hooks = append(s.hooks, fn)
		return
	}
	fn()
}

// Committed runs the registered hooks. Managers call it after a successful commit
// and after every lock has been released.
func (s *Scope) Committed() {
	hooks := s.hooks
	s.hooks = nil
	for _, h := range hooks {
		h()
	}
}

// Executor returns the transaction carried by ctx, or db when there is none.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if s := scopeFrom(ctx); s != nil && s.tx != nil {
		return s.tx
	}
	return db
}

type sqlManager struct {
	db *sqlx.DB
}

func NewSQLManager(db *sqlx.DB) Manager {
	return &sqlManager{db: db}
}

func (m *sqlManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	scope := NewScope(tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(WithScope(ctx, scope)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	scope.Committed()
	return nil
}
