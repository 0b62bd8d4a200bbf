package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// AdminKeyEnv 出资账户私钥所在的环境变量
const AdminKeyEnv = "ADMIN_PRIVATE_KEY"

var ErrEmptyAdminKey = errors.New(AdminKeyEnv + " is not set")

// ParseAdminKey 支持两种格式：
//   - solana-keygen 导出的 JSON 数组，如 [12,34,...]（64 字节）
//   - base58 编码的 64 字节私钥
func ParseAdminKey(raw string) (sdktypes.Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sdktypes.Account{}, ErrEmptyAdminKey
	}

	if strings.HasPrefix(raw, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(raw), &ints); err != nil {
			return sdktypes.Account{}, fmt.Errorf("parse %s as json array: %w", AdminKeyEnv, err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return sdktypes.Account{}, fmt.Errorf("%s: byte %d out of range: %d", AdminKeyEnv, i, v)
			}
			b[i] = byte(v)
		}
		acc, err := sdktypes.AccountFromBytes(b)
		if err != nil {
			return sdktypes.Account{}, fmt.Errorf("%s: %w", AdminKeyEnv, err)
		}
		return acc, nil
	}

	acc, err := sdktypes.AccountFromBase58(raw)
	if err != nil {
		return sdktypes.Account{}, fmt.Errorf("%s: %w", AdminKeyEnv, err)
	}
	return acc, nil
}
