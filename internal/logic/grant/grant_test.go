package grant

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-settlement-sol/internal/chain"
	"grant-settlement-sol/internal/chain/chaintest"
	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/mq"
	"grant-settlement-sol/internal/settlement"
	"grant-settlement-sol/internal/settlement/lock"
	"grant-settlement-sol/internal/types"
	"grant-settlement-sol/internal/verify"
)

var mint = consts.PYUSDDevnetMint

type stubVerifier map[string]string

func (v stubVerifier) Verify(_ context.Context, id string) (verify.Student, error) {
	name, ok := v[id]
	if !ok {
		return verify.Student{}, fmt.Errorf("%w: easelite id %s", settlement.ErrVerificationFailed, id)
	}
	return verify.Student{EaseliteID: id, Name: name}, nil
}

type fixture struct {
	chain    *chaintest.Ledger
	engine   *settlement.Engine
	svc      *Service
	store    *ledger.MemoryStore
	guard    *ledger.MemoryGuard
	pub      *mq.MemoryPublisher
	admin    sdktypes.Account
	adminATA types.Pubkey
	student  types.Pubkey
}

type fixtureOption struct {
	adminBalance int64 // <0 表示管理员尚未开户
	pollInterval time.Duration
}

func newFixture(t *testing.T, opt fixtureOption) *fixture {
	t.Helper()
	if opt.pollInterval == 0 {
		opt.pollInterval = time.Millisecond
	}

	l := chaintest.NewLedger()
	l.AddMint(mint, consts.TokenProgram2022, consts.PYUSDDecimals)

	f := &fixture{
		chain:   l,
		store:   ledger.NewMemoryStore(),
		guard:   ledger.NewMemoryGuard(),
		pub:     mq.NewMemoryPublisher(),
		admin:   sdktypes.NewAccount(),
		student: types.PubkeyFromCommon(sdktypes.NewAccount().PublicKey),
	}
	adminOwner := types.PubkeyFromCommon(f.admin.PublicKey)
	l.SetLamports(adminOwner, 1_500_000_000)

	f.engine = settlement.NewEngine(l, lock.NewLocalLocker(), settlement.Option{
		Decimals:     consts.PYUSDDecimals,
		PollInterval: opt.pollInterval,
	})
	if opt.adminBalance >= 0 {
		f.adminATA = l.AddTokenAccount(adminOwner, mint, uint64(opt.adminBalance))
	} else {
		var err error
		f.adminATA, err = f.engine.Resolve(adminOwner, mint)
		require.NoError(t, err)
	}

	f.rebuild(nil)
	return f
}

// rebuild 以相同配置重建 Service，mod 可替换依赖
func (f *fixture) rebuild(mod func(d *Deps)) {
	deps := Deps{
		Engine:    f.engine,
		Store:     f.store,
		Guard:     f.guard,
		Verifier:  stubVerifier{"EAS123": "Ada Lovelace", "EAS124": "Alan Turing"},
		Publisher: f.pub,
	}
	if mod != nil {
		mod(&deps)
	}
	f.svc = NewService(deps, Option{
		Mint:           mint,
		Admin:          f.admin,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	})
	f.svc.provisionBaseDelay = time.Millisecond
}

func (f *fixture) submit(t *testing.T, amount string) *ledger.GrantRequest {
	t.Helper()
	g, err := f.svc.Submit(context.Background(), SubmitRequest{
		EaseliteID:   "EAS123",
		OwnerAddress: f.student.String(),
		Reason:       "Textbook expenses",
		Amount:       amount,
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) studentATA(t *testing.T) types.Pubkey {
	t.Helper()
	ata, err := f.engine.Resolve(f.student, mint)
	require.NoError(t, err)
	return ata
}

func (f *fixture) tokenBalance(account types.Pubkey) uint64 {
	b, _ := f.chain.TokenBalance(account)
	return b
}

func unavailable(op string) error {
	return fmt.Errorf("%s: %w: connection reset by peer", op, chain.ErrUnavailable)
}

func TestSubmit_CreatesPendingRequest(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "2.50")

	assert.Equal(t, ledger.StatusPending, g.Status)
	assert.Equal(t, "2.5", g.Amount)
	assert.Equal(t, "Ada Lovelace", g.DisplayName)
	assert.Equal(t, f.student.String(), g.OwnerAddress)
	assert.Equal(t, f.studentATA(t).String(), g.TokenAccountAddress)
	assert.Zero(t, f.chain.Calls(chaintest.MethodSendTransaction), "submission never touches the chain")
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	base := SubmitRequest{EaseliteID: "EAS123", OwnerAddress: f.student.String(), Reason: "Lab fees", Amount: "1"}

	cases := []struct {
		name   string
		mutate func(r *SubmitRequest)
		code   string
	}{
		{"zero amount", func(r *SubmitRequest) { r.Amount = "0" }, CodeInvalidAmount},
		{"negative amount", func(r *SubmitRequest) { r.Amount = "-1" }, CodeInvalidAmount},
		{"not a number", func(r *SubmitRequest) { r.Amount = "two" }, CodeInvalidAmount},
		{"too many decimals", func(r *SubmitRequest) { r.Amount = "0.0000001" }, CodeInvalidAmount},
		{"missing reason", func(r *SubmitRequest) { r.Reason = "  " }, CodeInvalidRequest},
		{"bad owner", func(r *SubmitRequest) { r.OwnerAddress = "not-base58!" }, CodeInvalidRequest},
		{"unverified student", func(r *SubmitRequest) { r.EaseliteID = "EAS999" }, CodeVerificationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := f.svc.Submit(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.code, Code(err))
		})
	}

	all, err := f.svc.List(context.Background(), ledger.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "rejected submissions leave no record")
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 0})
	_, err := f.svc.List(context.Background(), ledger.ListFilter{Status: "paid"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestApprove_SettlesAndProvisionsDestination(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "2.5")

	res, err := f.svc.Approve(context.Background(), g.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusApproved, res.Grant.Status)
	assert.Equal(t, res.Transfer.Signature, res.Grant.Signature)
	assert.Equal(t, settlement.Amount(2_500_000), res.Transfer.Amount)
	assert.Equal(t, "2.5", res.AdminBalance)
	assert.Equal(t, uint64(2_500_000), f.tokenBalance(f.adminATA))
	assert.Equal(t, uint64(2_500_000), f.tokenBalance(f.studentATA(t)))

	rec, err := f.guard.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "guard released after approval")

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, mq.EventGrantApproved, events[0].Type)
	assert.Equal(t, res.Transfer.Signature, events[0].Signature)
	assert.Equal(t, "2.5", events[0].Amount)
}

func TestApprove_InsufficientBalanceStaysPending(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 1_000_000})
	g := f.submit(t, "2")

	_, err := f.svc.Approve(context.Background(), g.ID)
	assert.ErrorIs(t, err, settlement.ErrInsufficientBalance)
	assert.Equal(t, CodeInsufficientBalance, Code(err))

	got, err := f.store.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.Equal(t, uint64(1_000_000), f.tokenBalance(f.adminATA))
	assert.Zero(t, f.chain.Calls(chaintest.MethodSendTransaction))
	assert.Empty(t, f.pub.Events())

	rec, err := f.guard.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestApprove_OnlyPending(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "1")
	require.NoError(t, f.svc.Reject(context.Background(), g.ID, "duplicate request"))

	_, err := f.svc.Approve(context.Background(), g.ID)
	assert.ErrorIs(t, err, ledger.ErrNotPending)

	_, err = f.svc.Approve(context.Background(), 404)
	assert.Equal(t, CodeNotFound, Code(err))
}

func TestApprove_RefusedWhileInFlight(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "1")
	require.NoError(t, f.guard.Begin(context.Background(), g.ID))

	_, err := f.svc.Approve(context.Background(), g.ID)
	assert.ErrorIs(t, err, ledger.ErrSettlementInFlight)
	assert.Zero(t, f.chain.Calls(chaintest.MethodSendTransaction))
}

func TestApprove_RetriesTransientFailure(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	f.chain.AddTokenAccount(f.student, mint, 0)
	g := f.submit(t, "1")
	f.chain.FailNext(chaintest.MethodGetLatestBlockhash, 1, unavailable(chaintest.MethodGetLatestBlockhash))

	res, err := f.svc.Approve(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, res.Grant.Status)
	assert.Equal(t, 2, f.chain.Calls(chaintest.MethodGetLatestBlockhash))
	assert.Equal(t, uint64(1_000_000), f.tokenBalance(f.studentATA(t)))
}

func TestApprove_PublishFailureDoesNotUndoApproval(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "1")
	f.pub.FailWith(fmt.Errorf("broker down"))

	res, err := f.svc.Approve(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, res.Grant.Status)
}

func TestApprove_PendingConfirmationThenReconciled(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000, pollInterval: time.Hour})
	f.chain.AddTokenAccount(f.student, mint, 0)
	g := f.submit(t, "2")
	f.chain.ConfirmAfterPolls = 1

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.svc.Approve(ctx, g.ID)
	require.Error(t, err)
	assert.Equal(t, CodePendingConfirmation, Code(err))
	p, ok := settlement.IsPendingConfirmation(err)
	require.True(t, ok)

	got, err := f.store.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status, "never claims failure or success while unconfirmed")

	rec, err := f.guard.Get(context.Background(), g.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, p.Signature, rec.Signature)

	_, err = f.svc.Approve(context.Background(), g.ID)
	assert.ErrorIs(t, err, ledger.ErrSettlementInFlight, "second approve refused while in flight")
	assert.ErrorIs(t, f.svc.Reject(context.Background(), g.ID, "changed my mind"), ledger.ErrSettlementInFlight)

	sum, err := f.svc.ReconcileInFlight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Approved: 1}, sum)

	got, err = f.store.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, got.Status)
	assert.Equal(t, p.Signature, got.Signature)
	rec, err = f.guard.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
	require.Len(t, f.pub.Events(), 1)
}

func TestApprove_PendingThenExpiredIsReleased(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000, pollInterval: time.Hour})
	f.chain.AddTokenAccount(f.student, mint, 0)
	g := f.submit(t, "2")
	f.chain.LoseNextSends(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.svc.Approve(ctx, g.ID)
	require.Equal(t, CodePendingConfirmation, Code(err))

	sum, err := f.svc.ReconcileInFlight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Pending: 1}, sum, "checkpoint still valid")

	f.chain.SetBlockHeight(10_000)
	sum, err = f.svc.ReconcileInFlight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Pending: 1}, sum, "owner heartbeat is recent")

	f.svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	sum, err = f.svc.ReconcileInFlight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Released: 1}, sum)
	f.svc.now = time.Now

	got, err := f.store.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.Equal(t, uint64(5_000_000), f.tokenBalance(f.adminATA))

	// 释放后可以重新审批
	res, err := f.svc.Approve(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, res.Grant.Status)
}

func TestReconcileInFlight_StaleUnsignedGuard(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "1")
	ctx := context.Background()
	require.NoError(t, f.guard.Begin(ctx, g.ID))

	sum, err := f.svc.ReconcileInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Pending: 1}, sum, "approval may still be running")

	f.svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	sum, err = f.svc.ReconcileInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Released: 1}, sum)

	rec, err := f.guard.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReject(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "3")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Reject(ctx, g.ID, " "), ErrInvalidRequest)
	require.NoError(t, f.svc.Reject(ctx, g.ID, "duplicate request"))
	assert.ErrorIs(t, f.svc.Reject(ctx, g.ID, "again"), ledger.ErrNotPending)

	got, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRejected, got.Status)
	assert.Equal(t, "duplicate request", got.RejectReason)

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, mq.EventGrantRejected, events[0].Type)
	assert.Equal(t, "duplicate request", events[0].Reason)
}

func TestAccountViews(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	ctx := context.Background()

	admin, err := f.svc.AdminAccount(ctx)
	require.NoError(t, err)
	assert.True(t, admin.Exists)
	assert.Equal(t, "5", admin.Balance)
	assert.Equal(t, uint64(5_000_000), admin.BalanceMinor)
	assert.Equal(t, "1.5", admin.Sol)
	assert.Equal(t, f.adminATA.String(), admin.TokenAccount)

	student, err := f.svc.Account(ctx, f.student.String())
	require.NoError(t, err)
	assert.False(t, student.Exists, "no account yet")
	assert.Equal(t, "0", student.Balance)

	_, err = f.svc.Account(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEnsureAdminAccount(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: -1})
	ctx := context.Background()
	f.chain.FailNext(chaintest.MethodGetLatestBlockhash, 1, unavailable(chaintest.MethodGetLatestBlockhash))

	view, err := f.svc.EnsureAdminAccount(ctx)
	require.NoError(t, err)
	assert.True(t, view.Exists)
	assert.Equal(t, "0", view.Balance)
	assert.Equal(t, f.adminATA.String(), view.TokenAccount)

	sends := f.chain.Calls(chaintest.MethodSendTransaction)
	_, err = f.svc.EnsureAdminAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, sends, f.chain.Calls(chaintest.MethodSendTransaction), "idempotent")
}

func TestReconcile_RequiresSignature(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 0})
	_, err := f.svc.Reconcile(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	res, err := f.svc.Reconcile(context.Background(), "unknown-sig", 0)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateUnknown, res.State)
}

func TestCode(t *testing.T) {
	cases := map[error]string{
		nil:                               CodeOK,
		settlement.ErrInvalidAmount:       CodeInvalidAmount,
		settlement.ErrExpired:             CodeExpired,
		&settlement.RejectedError{}:       CodeRejected,
		&settlement.NetworkError{Op: "x"}: CodeNetworkError,
		ledger.ErrNotPending:              CodeNotPending,
		ledger.ErrGuardNotHeld:            CodeSettlementInFlight,
		fmt.Errorf("boom"):                CodeInternal,
		&settlement.PendingConfirmationError{Signature: "s", Err: context.DeadlineExceeded}: CodePendingConfirmation,
	}
	for err, code := range cases {
		assert.Equal(t, code, Code(err), "%v", err)
	}
}

// failAfterTransfer 链上转账成功后仍返回错误
type failAfterTransfer struct {
	settlement.GrantExecutor
	err error
}

func (e failAfterTransfer) Transfer(ctx context.Context, req settlement.TransferRequest) (settlement.TransferRecord, error) {
	if _, err := e.GrantExecutor.Transfer(ctx, req); err != nil {
		return settlement.TransferRecord{}, err
	}
	return settlement.TransferRecord{}, e.err
}

func TestApprove_KeepsGuardWhenOutcomeUnknownAfterBroadcast(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	f.chain.AddTokenAccount(f.student, mint, 0)
	f.rebuild(func(d *Deps) {
		d.Executor = failAfterTransfer{GrantExecutor: f.engine, err: errors.New("lock expired while function was running")}
	})
	g := f.submit(t, "2")
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, g.ID)
	require.Error(t, err)

	rec, err := f.guard.Get(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, rec, "broadcast transfer keeps its guard")
	assert.NotEmpty(t, rec.Signature)

	_, err = f.svc.Approve(ctx, g.ID)
	assert.Equal(t, CodeSettlementInFlight, Code(err))

	sum, err := f.svc.ReconcileInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 1, Approved: 1}, sum)

	got, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, got.Status)
	assert.Equal(t, rec.Signature, got.Signature)
	assert.Equal(t, uint64(2_000_000), f.tokenBalance(f.studentATA(t)), "paid exactly once")
	assert.Equal(t, 1, f.chain.Calls(chaintest.MethodSendTransaction))
}

// expireThenTransfer 第一次尝试广播后过期，之后交给真实执行器
type expireThenTransfer struct {
	settlement.GrantExecutor
	calls   int
	expired func()
}

func (e *expireThenTransfer) Transfer(ctx context.Context, req settlement.TransferRequest) (settlement.TransferRecord, error) {
	e.calls++
	if e.calls == 1 {
		req.OnSubmitted("5expiredSignature", 10)
		e.expired()
		return settlement.TransferRecord{}, fmt.Errorf("confirm: %w", settlement.ErrExpired)
	}
	return e.GrantExecutor.Transfer(ctx, req)
}

func TestReconcileInFlight_KeepsExpiredGuardWhileOwnerRetries(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	f.chain.AddTokenAccount(f.student, mint, 0)
	f.chain.SetBlockHeight(10_000)
	ctx := context.Background()

	var g *ledger.GrantRequest
	exec := &expireThenTransfer{GrantExecutor: f.engine}
	exec.expired = func() {
		sum, err := f.svc.ReconcileInFlight(ctx)
		require.NoError(t, err)
		assert.Equal(t, ReconcileSummary{Checked: 1, Pending: 1}, sum)

		_, err = f.svc.Approve(ctx, g.ID)
		assert.ErrorIs(t, err, ledger.ErrSettlementInFlight, "guard is still owned by the running approval")
	}
	f.rebuild(func(d *Deps) { d.Executor = exec })
	g = f.submit(t, "1")

	res, err := f.svc.Approve(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusApproved, res.Grant.Status)
	assert.Equal(t, 2, exec.calls)
	assert.Equal(t, 1, f.chain.Calls(chaintest.MethodSendTransaction))
	assert.Equal(t, uint64(1_000_000), f.tokenBalance(f.studentATA(t)))

	rec, err := f.guard.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// gatedStore 在 MarkRejected 处停住，直到测试放行
type gatedStore struct {
	ledger.Store
	entered chan struct{}
	proceed chan struct{}
}

func (s *gatedStore) MarkRejected(ctx context.Context, id int64, reason string) error {
	close(s.entered)
	<-s.proceed
	return s.Store.MarkRejected(ctx, id, reason)
}

func TestReject_ExcludesConcurrentApprove(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "1")
	gate := &gatedStore{Store: f.store, entered: make(chan struct{}), proceed: make(chan struct{})}
	f.rebuild(func(d *Deps) { d.Store = gate })
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.svc.Reject(ctx, g.ID, "duplicate request") }()
	<-gate.entered

	_, err := f.svc.Approve(ctx, g.ID)
	assert.ErrorIs(t, err, ledger.ErrSettlementInFlight)
	assert.Equal(t, CodeSettlementInFlight, Code(err))

	close(gate.proceed)
	require.NoError(t, <-done)

	got, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRejected, got.Status)
	assert.Zero(t, f.chain.Calls(chaintest.MethodSendTransaction))
	assert.Zero(t, f.tokenBalance(f.studentATA(t)))

	rec, err := f.guard.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "reject releases its guard")
}

func TestReject_RefusedWhileApprovalInFlight(t *testing.T) {
	f := newFixture(t, fixtureOption{adminBalance: 5_000_000})
	g := f.submit(t, "1")
	ctx := context.Background()
	require.NoError(t, f.guard.Begin(ctx, g.ID))

	err := f.svc.Reject(ctx, g.ID, "duplicate request")
	assert.ErrorIs(t, err, ledger.ErrSettlementInFlight)

	rec, err := f.guard.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec, "guard of the running approval is untouched")
	got, err := f.store.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)
}
