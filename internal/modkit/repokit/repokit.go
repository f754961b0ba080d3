// Package repokit is how service repos bind to a querier. A repo package
// exposes NewPG() Binder[Repo]; services bind it to the pool for reads and to
// a transaction or savepoint querier for writes.
package repokit

import "rollcall/internal/platform/store"

type (
	// Queryer is the sql surface a bound repo runs on
	Queryer = store.RowQuerier
	// TxRunner opens transactions
	TxRunner = store.TxRunner
	// Row is a single scanned row
	Row = store.Row
	// Rows is a result set
	Rows = store.Rows
	// CommandTag reports what a write did
	CommandTag = store.CommandTag
)

// Binder makes a T that runs its queries on q
type Binder[T any] interface {
	Bind(q Queryer) T
}

// BindFunc is a Binder from a plain function, handy for fakes
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds b to q. A nil q is a wiring bug and panics here rather than
// on the first query.
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: bind on a nil querier")
	}
	return b.Bind(q)
}
