package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTx struct{ pgx.Tx }

func TestConn_FallsBackWithoutTx(t *testing.T) {
	assert.Nil(t, TxFromContext(context.Background()))

	var fallback Querier = stubTx{}
	assert.Equal(t, fallback, Conn(context.Background(), fallback))
}

func TestConn_PrefersTxFromContext(t *testing.T) {
	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	got := Conn(ctx, nil)
	assert.Same(t, tx, got)
}

func TestInTx_ReusesOuterTransaction(t *testing.T) {
	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	// A nil pool would panic if a new transaction were started.
	tr := NewTransactor(nil)

	called := false
	err := tr.InTx(ctx, func(inner context.Context) error {
		called = true
		assert.Same(t, tx, TxFromContext(inner))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	sentinel := errors.New("rollback me")
	err = tr.InTx(ctx, func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}
