package settlement

import (
	"context"
	"testing"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-settlement-sol/internal/chain/chaintest"
)

func TestReconcile(t *testing.T) {
	f := newFixture(t, 2_000_000, 0)

	rec, err := f.engine.Transfer(context.Background(), f.request(10))
	require.NoError(t, err)

	res, err := f.engine.Reconcile(context.Background(), rec.Signature, 0)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.State)
	assert.Equal(t, rec.Slot, res.Slot)

	res, err = f.engine.Reconcile(context.Background(), "1111111111111111111111111111111111111111111111111111111111111111", 0)
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, res.State)
}

func TestReconcile_FailedTransaction(t *testing.T) {
	f := newFixture(t, 2_000_000, 0)
	f.ledger.LandFailures = true

	var sig string
	req := f.request(10)
	req.Authority = sdktypes.NewAccount()
	req.OnSubmitted = func(s string, _ uint64) { sig = s }

	_, err := f.engine.Transfer(context.Background(), req)
	require.ErrorIs(t, err, ErrRejected)

	res, err := f.engine.Reconcile(context.Background(), sig, 0)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.NotEmpty(t, res.Err)
}

func TestReconcile_NetworkError(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.ledger.FailNext(chaintest.MethodGetSignatureStatus, 1, unavailable("getSignatureStatuses"))

	_, err := f.engine.Reconcile(context.Background(), "sig", 0)
	assert.ErrorIs(t, err, ErrNetwork)
}
