package consts

const (
	// PYUSDDecimals PYUSD 的最小单位精度（1 PYUSD = 10^6）
	PYUSDDecimals uint8 = 6

	// MintDecimalsOffset mint 账户数据中 decimals 字段的偏移
	// 布局: mint_authority(36) + supply(8) + decimals(1) + ...
	MintDecimalsOffset = 44
	// MintAccountSize 基础 mint 账户长度（Token-2022 扩展追加在其后）
	MintAccountSize = 82

	SOLDecimals uint8 = 9
)
