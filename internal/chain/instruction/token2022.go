package instruction

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	sdktoken "github.com/blocto/solana-go-sdk/program/token"
	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"

	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/types"
)

// ATA 程序指令编号
// 参考: https://github.com/solana-program/associated-token-account/blob/main/interface/src/instruction.rs
const (
	ATAInstructionCreate           uint8 = 0
	ATAInstructionCreateIdempotent uint8 = 1
)

// SDK 自带的 ATA / token 帮助函数固定使用 Token v1 程序，这里按 token program 参数构造

type createIdempotentData struct {
	Instruction uint8
}

type transferCheckedData struct {
	Instruction sdktoken.Instruction
	Amount      uint64
	Decimals    uint8
}

// FindAssociatedTokenAddress 推导 (owner, tokenProgram, mint) 对应的 ATA 地址
// seeds: [owner, tokenProgram, mint]，program: Associated Token Program
func FindAssociatedTokenAddress(owner, mint, tokenProgram types.Pubkey) (types.Pubkey, error) {
	ata, _, err := common.FindProgramAddress(
		[][]byte{owner[:], tokenProgram[:], mint[:]},
		consts.AssociatedTokenProgram.ToCommon(),
	)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("find associated token address: %w", err)
	}
	return types.PubkeyFromCommon(ata), nil
}

type CreateIdempotentParam struct {
	Funder       types.Pubkey
	Owner        types.Pubkey
	Mint         types.Pubkey
	TokenAccount types.Pubkey // 由 FindAssociatedTokenAddress 推导
	TokenProgram types.Pubkey
}

// CreateIdempotent 构造 ATA CreateIdempotent 指令，账户已存在时链上为 no-op
// 账户顺序:
//  0. funder（签名、可写）
//  1. associated token account（可写）
//  2. owner
//  3. mint
//  4. System Program
//  5. Token Program
func CreateIdempotent(p CreateIdempotentParam) (sdktypes.Instruction, error) {
	data, err := borsh.Serialize(createIdempotentData{Instruction: ATAInstructionCreateIdempotent})
	if err != nil {
		return sdktypes.Instruction{}, fmt.Errorf("serialize create idempotent: %w", err)
	}
	return sdktypes.Instruction{
		ProgramID: consts.AssociatedTokenProgram.ToCommon(),
		Accounts: []sdktypes.AccountMeta{
			{PubKey: p.Funder.ToCommon(), IsSigner: true, IsWritable: true},
			{PubKey: p.TokenAccount.ToCommon(), IsSigner: false, IsWritable: true},
			{PubKey: p.Owner.ToCommon(), IsSigner: false, IsWritable: false},
			{PubKey: p.Mint.ToCommon(), IsSigner: false, IsWritable: false},
			{PubKey: consts.SystemProgram.ToCommon(), IsSigner: false, IsWritable: false},
			{PubKey: p.TokenProgram.ToCommon(), IsSigner: false, IsWritable: false},
		},
		Data: data,
	}, nil
}

type TransferCheckedParam struct {
	From         types.Pubkey // 源 token account
	To           types.Pubkey // 目标 token account
	Mint         types.Pubkey
	Auth         types.Pubkey // 源账户 owner
	Amount       uint64
	Decimals     uint8 // 必须与 mint 记录的精度一致，否则链上拒绝
	TokenProgram types.Pubkey
}

// TransferChecked 构造 Token / Token-2022 的 TransferChecked 指令
// 数据布局: [12, amount(u64 LE), decimals(u8)]
// 账户顺序: source(可写), mint, destination(可写), authority(签名)
func TransferChecked(p TransferCheckedParam) (sdktypes.Instruction, error) {
	data, err := borsh.Serialize(transferCheckedData{
		Instruction: sdktoken.InstructionTransferChecked,
		Amount:      p.Amount,
		Decimals:    p.Decimals,
	})
	if err != nil {
		return sdktypes.Instruction{}, fmt.Errorf("serialize transfer checked: %w", err)
	}
	return sdktypes.Instruction{
		ProgramID: p.TokenProgram.ToCommon(),
		Accounts: []sdktypes.AccountMeta{
			{PubKey: p.From.ToCommon(), IsSigner: false, IsWritable: true},
			{PubKey: p.Mint.ToCommon(), IsSigner: false, IsWritable: false},
			{PubKey: p.To.ToCommon(), IsSigner: false, IsWritable: true},
			{PubKey: p.Auth.ToCommon(), IsSigner: true, IsWritable: false},
		},
		Data: data,
	}, nil
}
