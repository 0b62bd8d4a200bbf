package consts

import "grant-settlement-sol/internal/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"

	// PYUSD（Token-2022）
	PYUSDDevnetMintStr = "CXk2AMBfi3TwaEL2468s6zP8xq9NxTXjp9gjMgzeUynM"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对
var (
	SystemProgram          = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram           = types.PubkeyFromBase58(TokenProgramStr)
	TokenProgram2022       = types.PubkeyFromBase58(TokenProgram2022Str)
	AssociatedTokenProgram = types.PubkeyFromBase58(AssociatedTokenProgramStr)

	PYUSDDevnetMint = types.PubkeyFromBase58(PYUSDDevnetMintStr)
)

// IsSPLTokenProgram 判断是否为 SPL Token 程序（Token v1 或 Token-2022）
func IsSPLTokenProgram(programId types.Pubkey) bool {
	return programId == TokenProgram || programId == TokenProgram2022
}
