package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/require"

	"grant-settlement-sol/internal/chain"
	"grant-settlement-sol/internal/chain/chaintest"
	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/settlement/lock"
	"grant-settlement-sol/internal/types"
)

var mint = consts.PYUSDDevnetMint

type fixture struct {
	ledger     *chaintest.Ledger
	engine     *Engine
	admin      sdktypes.Account
	adminATA   types.Pubkey
	student    types.Pubkey
	studentATA types.Pubkey
}

// newFixture 管理员持有 adminBalance；studentBalance < 0 表示学生尚未开户
func newFixture(t *testing.T, adminBalance uint64, studentBalance int64) *fixture {
	t.Helper()
	l := chaintest.NewLedger()
	l.AddMint(mint, consts.TokenProgram2022, consts.PYUSDDecimals)

	f := &fixture{
		ledger:  l,
		admin:   sdktypes.NewAccount(),
		student: types.PubkeyFromCommon(sdktypes.NewAccount().PublicKey),
	}
	f.adminATA = l.AddTokenAccount(f.adminPubkey(), mint, adminBalance)
	f.engine = NewEngine(l, lock.NewLocalLocker(), Option{
		Decimals:     consts.PYUSDDecimals,
		PollInterval: time.Millisecond,
	})

	var err error
	if studentBalance >= 0 {
		f.studentATA = l.AddTokenAccount(f.student, mint, uint64(studentBalance))
	} else {
		f.studentATA, err = f.engine.Resolve(f.student, mint)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) adminPubkey() types.Pubkey {
	return types.PubkeyFromCommon(f.admin.PublicKey)
}

func (f *fixture) request(amount Amount) TransferRequest {
	return TransferRequest{
		Source:           f.adminATA,
		Destination:      f.studentATA,
		DestinationOwner: f.student,
		Mint:             mint,
		Amount:           amount,
		Authority:        f.admin,
	}
}

func (f *fixture) balance(t *testing.T, account types.Pubkey) uint64 {
	t.Helper()
	b, ok := f.ledger.TokenBalance(account)
	require.True(t, ok, "account %s missing", account)
	return b
}

func unavailable(op string) error {
	return fmt.Errorf("%s: %w: connection reset by peer", op, chain.ErrUnavailable)
}

func mustAmount(t *testing.T, s string) Amount {
	t.Helper()
	a, err := ParseAmount(s, consts.PYUSDDecimals)
	require.NoError(t, err)
	return a
}

func timeoutCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
