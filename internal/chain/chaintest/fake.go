// Package chaintest 提供内存版 Solana 账本，用于结算流程测试。
// 只模拟结算用到的指令：ATA Create / CreateIdempotent 与 TransferChecked。
package chaintest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	sdktoken "github.com/blocto/solana-go-sdk/program/token"
	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	"grant-settlement-sol/internal/chain"
	"grant-settlement-sol/internal/chain/instruction"
	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/types"
)

// 方法名，用于故障注入与调用计数
const (
	MethodGetAccountInfo         = "getAccountInfo"
	MethodGetTokenAccountBalance = "getTokenAccountBalance"
	MethodGetBalance             = "getBalance"
	MethodGetLatestBlockhash     = "getLatestBlockhash"
	MethodGetBlockHeight         = "getBlockHeight"
	MethodSendTransaction        = "sendTransaction"
	MethodGetSignatureStatus     = "getSignatureStatuses"
)

const (
	defaultValidWindow  = 150
	tokenAccountSize    = 165
	tokenAccountRent    = 2_039_280
	tokenInsufficientFn = "custom program error: 0x1"
)

type tokenAccount struct {
	owner  types.Pubkey
	mint   types.Pubkey
	amount uint64
}

type injected struct {
	n   int
	err error
}

// Ledger 内存账本，实现 chain.Client
type Ledger struct {
	mu sync.Mutex

	TokenProgram types.Pubkey
	// ValidWindow 新 blockhash 的有效区块数
	ValidWindow uint64
	// HeightStep 每次 GetBlockHeight 后区块高度的增量，用于模拟时间推进
	HeightStep uint64
	// LandFailures 为 true 时执行失败的交易仍会上链并在状态中带 Err（跳过 preflight 的效果），
	// 否则 SendTransaction 直接返回错误（preflight 失败）
	LandFailures bool
	// ConfirmAfterPolls 交易上链后需要查询多少次状态才返回 confirmed
	ConfirmAfterPolls int

	height     uint64
	slot       uint64
	hashSeq    uint64
	blockhash  map[string]uint64 // blockhash -> lastValidBlockHeight
	accounts   map[types.Pubkey]*chain.AccountInfo
	tokens     map[types.Pubkey]*tokenAccount
	lamports   map[types.Pubkey]uint64
	statuses   map[string]*chain.SignatureStatus
	pendingAck map[string]int

	failures   map[string][]injected
	lostSends  int
	lateErrors []injected // 交易上链后仍返回错误
	calls      map[string]int
	onSend     func(sig string)
}

var _ chain.Client = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{
		TokenProgram: consts.TokenProgram2022,
		ValidWindow:  defaultValidWindow,
		height:       1000,
		slot:         5000,
		blockhash:    make(map[string]uint64),
		accounts:     make(map[types.Pubkey]*chain.AccountInfo),
		tokens:       make(map[types.Pubkey]*tokenAccount),
		lamports:     make(map[types.Pubkey]uint64),
		statuses:     make(map[string]*chain.SignatureStatus),
		pendingAck:   make(map[string]int),
		failures:     make(map[string][]injected),
		calls:        make(map[string]int),
	}
}

// AddMint 写入 mint 账户，decimals 位于数据偏移 44
func (l *Ledger) AddMint(mint, program types.Pubkey, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data := make([]byte, consts.MintAccountSize)
	data[consts.MintDecimalsOffset] = decimals
	data[45] = 1 // is_initialized
	l.accounts[mint] = &chain.AccountInfo{Owner: program, Lamports: 1_461_600, Data: data}
}

// AddTokenAccount 为 owner 创建规范 ATA 并设置余额，返回 ATA 地址
func (l *Ledger) AddTokenAccount(owner, mint types.Pubkey, amount uint64) types.Pubkey {
	ata, err := instruction.FindAssociatedTokenAddress(owner, mint, l.TokenProgram)
	if err != nil {
		panic(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.putTokenAccount(l.tokens, l.accounts, ata, owner, mint, amount)
	return ata
}

func (l *Ledger) SetLamports(owner types.Pubkey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lamports[owner] = lamports
}

// TokenBalance 返回 token account 余额，账户不存在时 ok=false
func (l *Ledger) TokenBalance(account types.Pubkey) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ta, ok := l.tokens[account]
	if !ok {
		return 0, false
	}
	return ta.amount, true
}

func (l *Ledger) TokenAccountCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tokens)
}

// FailNext 让 method 的后续 n 次调用返回 err
func (l *Ledger) FailNext(method string, n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[method] = append(l.failures[method], injected{n: n, err: err})
}

// LoseNextSends 后续 n 笔交易被节点接受但永远不会上链
func (l *Ledger) LoseNextSends(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lostSends += n
}

// FailAfterApply 后续 n 笔交易正常上链，但 SendTransaction 返回 err（模拟响应丢失）
func (l *Ledger) FailAfterApply(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lateErrors = append(l.lateErrors, injected{n: n, err: err})
}

// OnSend 每次 SendTransaction 被调用时回调（在锁外执行）
func (l *Ledger) OnSend(fn func(sig string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSend = fn
}

func (l *Ledger) SetBlockHeight(h uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height = h
}

func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// Status 直接读取签名状态，不计入调用次数
func (l *Ledger) Status(sig string) (*chain.SignatureStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.statuses[sig]
	if !ok {
		return nil, false
	}
	cp := *st
	return &cp, true
}

func (l *Ledger) GetAccountInfo(_ context.Context, account types.Pubkey) (*chain.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodGetAccountInfo); err != nil {
		return nil, err
	}
	info, ok := l.accounts[account]
	if !ok {
		return nil, nil
	}
	cp := *info
	cp.Data = append([]byte(nil), info.Data...)
	return &cp, nil
}

func (l *Ledger) GetTokenAccountBalance(_ context.Context, account types.Pubkey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodGetTokenAccountBalance); err != nil {
		return 0, err
	}
	ta, ok := l.tokens[account]
	if !ok {
		if _, exists := l.accounts[account]; exists {
			return 0, fmt.Errorf("%s: %w", MethodGetTokenAccountBalance,
				&chain.RPCError{Code: -32602, Message: "Invalid param: not a Token account"})
		}
		return 0, fmt.Errorf("%s: %w", MethodGetTokenAccountBalance, chain.ErrAccountNotFound)
	}
	return ta.amount, nil
}

func (l *Ledger) GetBalance(_ context.Context, owner types.Pubkey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodGetBalance); err != nil {
		return 0, err
	}
	return l.lamports[owner], nil
}

func (l *Ledger) GetLatestBlockhash(_ context.Context) (chain.Checkpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodGetLatestBlockhash); err != nil {
		return chain.Checkpoint{}, err
	}
	l.hashSeq++
	seed := sha256.Sum256([]byte(fmt.Sprintf("blockhash-%d", l.hashSeq)))
	hash := base58.Encode(seed[:])
	lastValid := l.height + l.ValidWindow
	l.blockhash[hash] = lastValid
	return chain.Checkpoint{Blockhash: hash, LastValidBlockHeight: lastValid}, nil
}

func (l *Ledger) GetBlockHeight(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodGetBlockHeight); err != nil {
		return 0, err
	}
	h := l.height
	l.height += l.HeightStep
	return h, nil
}

func (l *Ledger) SendTransaction(_ context.Context, tx sdktypes.Transaction) (string, error) {
	sig, cb, err := l.send(tx)
	if cb != nil {
		cb(sig)
	}
	return sig, err
}

func (l *Ledger) send(tx sdktypes.Transaction) (string, func(string), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cb := l.onSend
	if err := l.enter(MethodSendTransaction); err != nil {
		return "", cb, err
	}
	if len(tx.Signatures) == 0 {
		return "", cb, fmt.Errorf("%s: %w", MethodSendTransaction, &chain.RPCError{Code: -32602, Message: "missing signature"})
	}
	sig := base58.Encode(tx.Signatures[0])

	// 同一签名重复广播：已处理则直接返回
	if _, done := l.statuses[sig]; done {
		return sig, cb, nil
	}

	lastValid, ok := l.blockhash[tx.Message.RecentBlockHash]
	if !ok || l.height > lastValid {
		return "", cb, fmt.Errorf("%s: %w", MethodSendTransaction, chain.ErrBlockhashNotFound)
	}

	if l.lostSends > 0 {
		l.lostSends--
		return sig, cb, nil
	}

	execErr := l.execute(tx)
	if execErr != nil && !l.LandFailures {
		return "", cb, fmt.Errorf("%s: %w", MethodSendTransaction, execErr)
	}

	l.slot++
	st := &chain.SignatureStatus{Slot: l.slot, Confirmed: true}
	if execErr != nil {
		st.Err = execErr.Error()
	}
	l.statuses[sig] = st
	if l.ConfirmAfterPolls > 0 {
		l.pendingAck[sig] = l.ConfirmAfterPolls
	}

	if len(l.lateErrors) > 0 {
		late := &l.lateErrors[0]
		late.n--
		err := late.err
		if late.n <= 0 {
			l.lateErrors = l.lateErrors[1:]
		}
		return "", cb, err
	}
	return sig, cb, nil
}

func (l *Ledger) GetSignatureStatus(_ context.Context, signature string) (*chain.SignatureStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enter(MethodGetSignatureStatus); err != nil {
		return nil, err
	}
	st, ok := l.statuses[signature]
	if !ok {
		return nil, nil
	}
	if n := l.pendingAck[signature]; n > 0 {
		l.pendingAck[signature] = n - 1
		return &chain.SignatureStatus{Slot: st.Slot}, nil
	}
	cp := *st
	return &cp, nil
}

// enter 计数并消费注入的故障，调用方需持有锁
func (l *Ledger) enter(method string) error {
	l.calls[method]++
	queue := l.failures[method]
	if len(queue) == 0 {
		return nil
	}
	queue[0].n--
	err := queue[0].err
	if queue[0].n <= 0 {
		l.failures[method] = queue[1:]
	}
	return err
}

// execute 在状态副本上依次执行全部指令，全部成功后才提交
func (l *Ledger) execute(tx sdktypes.Transaction) error {
	msg := tx.Message
	tokens := make(map[types.Pubkey]*tokenAccount, len(l.tokens))
	for k, v := range l.tokens {
		cp := *v
		tokens[k] = &cp
	}
	accounts := make(map[types.Pubkey]*chain.AccountInfo, len(l.accounts))
	for k, v := range l.accounts {
		accounts[k] = v
	}

	isSigner := func(idx int) bool {
		return idx < int(msg.Header.NumRequireSignatures)
	}
	key := func(idx int) (types.Pubkey, error) {
		if idx < 0 || idx >= len(msg.Accounts) {
			return types.Pubkey{}, fmt.Errorf("account index %d out of range", idx)
		}
		return types.PubkeyFromCommon(msg.Accounts[idx]), nil
	}

	for i, cix := range msg.Instructions {
		program, err := key(cix.ProgramIDIndex)
		if err != nil {
			return &chain.RPCError{Code: -32002, Message: err.Error()}
		}
		keys := make([]types.Pubkey, len(cix.Accounts))
		for j, idx := range cix.Accounts {
			if keys[j], err = key(idx); err != nil {
				return &chain.RPCError{Code: -32002, Message: err.Error()}
			}
		}

		switch {
		case program == consts.AssociatedTokenProgram:
			err = l.execCreateATA(tokens, accounts, cix.Data, keys)
		case program == l.TokenProgram:
			authSigned := len(cix.Accounts) >= 4 && isSigner(cix.Accounts[3])
			err = l.execTransferChecked(tokens, accounts, cix.Data, keys, authSigned)
		default:
			err = fmt.Errorf("unsupported program %s", program)
		}
		if err != nil {
			if err.Error() == tokenInsufficientFn {
				return fmt.Errorf("instruction %d: %w: %s", i, chain.ErrInsufficientFunds, tokenInsufficientFn)
			}
			return &chain.RPCError{Code: -32002, Message: fmt.Sprintf("Error processing Instruction %d: %v", i, err)}
		}
	}

	l.tokens = tokens
	l.accounts = accounts
	return nil
}

func (l *Ledger) execCreateATA(
	tokens map[types.Pubkey]*tokenAccount,
	accounts map[types.Pubkey]*chain.AccountInfo,
	data []byte,
	keys []types.Pubkey,
) error {
	if len(data) != 1 || len(keys) < 6 {
		return fmt.Errorf("invalid ata instruction")
	}
	ata, owner, mint, program := keys[1], keys[2], keys[3], keys[5]
	if program != l.TokenProgram {
		return fmt.Errorf("incorrect program id")
	}
	mintInfo, ok := accounts[mint]
	if !ok || mintInfo.Owner != program {
		return fmt.Errorf("invalid mint")
	}
	want, err := instruction.FindAssociatedTokenAddress(owner, mint, program)
	if err != nil || want != ata {
		return fmt.Errorf("invalid seeds")
	}
	if _, exists := tokens[ata]; exists {
		if data[0] == instruction.ATAInstructionCreateIdempotent {
			return nil
		}
		return fmt.Errorf("account already in use")
	}
	l.putTokenAccount(tokens, accounts, ata, owner, mint, 0)
	return nil
}

func (l *Ledger) execTransferChecked(
	tokens map[types.Pubkey]*tokenAccount,
	accounts map[types.Pubkey]*chain.AccountInfo,
	data []byte,
	keys []types.Pubkey,
	authSigned bool,
) error {
	if len(data) != 10 || data[0] != byte(sdktoken.InstructionTransferChecked) || len(keys) < 4 {
		return fmt.Errorf("invalid instruction data")
	}
	amount := binary.LittleEndian.Uint64(data[1:9])
	decimals := data[9]

	src, mint, dst, auth := keys[0], keys[1], keys[2], keys[3]
	from, ok := tokens[src]
	if !ok {
		return fmt.Errorf("invalid account data for instruction")
	}
	to, ok := tokens[dst]
	if !ok {
		return fmt.Errorf("invalid account data for instruction")
	}
	if from.mint != mint || to.mint != mint {
		return fmt.Errorf("custom program error: 0x3") // MintMismatch
	}
	mintInfo := accounts[mint]
	if mintInfo == nil || mintInfo.Data[consts.MintDecimalsOffset] != decimals {
		return fmt.Errorf("custom program error: 0x12") // MintDecimalsMismatch
	}
	if !authSigned || from.owner != auth {
		return fmt.Errorf("custom program error: 0x4") // OwnerMismatch
	}
	if from.amount < amount {
		return errors.New(tokenInsufficientFn)
	}
	from.amount -= amount
	to.amount += amount
	return nil
}

func (l *Ledger) putTokenAccount(
	tokens map[types.Pubkey]*tokenAccount,
	accounts map[types.Pubkey]*chain.AccountInfo,
	ata, owner, mint types.Pubkey,
	amount uint64,
) {
	tokens[ata] = &tokenAccount{owner: owner, mint: mint, amount: amount}
	accounts[ata] = &chain.AccountInfo{
		Owner:    l.TokenProgram,
		Lamports: tokenAccountRent,
		Data:     make([]byte, tokenAccountSize),
	}
}
