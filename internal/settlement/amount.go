package settlement

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount token 最小单位数量，所有运算都在整数上进行
type Amount uint64

var maxAmount = decimal.RequireFromString(strconv.FormatUint(math.MaxUint64, 10))

// ParseAmount 把十进制字符串按 10^decimals 换算为最小单位。
// 小数位多于 decimals、负数、溢出 uint64 都返回 ErrInvalidAmount，不做截断。
func ParseAmount(s string, decimals uint8) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, decimals)
	}
	if scaled.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return Amount(scaled.BigInt().Uint64()), nil
}

// FormatAmount 把最小单位格式化为十进制字符串（去掉末尾多余的 0）
func FormatAmount(a Amount, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -int32(decimals)).String()
}
