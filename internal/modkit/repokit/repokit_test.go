package repokit

import (
	"context"
	"testing"
)

type fakeQ struct{ Queryer }

type counter struct{ q Queryer }

func (c counter) Count(context.Context) int {
	if c.q == nil {
		return -1
	}
	return 1
}

func TestMustBind(t *testing.T) {
	t.Parallel()

	var bound Queryer
	b := BindFunc[counter](func(q Queryer) counter {
		bound = q
		return counter{q: q}
	})
	q := fakeQ{}
	if got := MustBind[counter](b, q).Count(context.Background()); got != 1 {
		t.Fatalf("Count = %d", got)
	}
	if bound != Queryer(q) {
		t.Fatalf("binder saw a different querier")
	}
}

func TestMustBind_NilQuerierPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	var tx TxRunner
	MustBind[counter](BindFunc[counter](func(q Queryer) counter { return counter{q: q} }), tx)
}
