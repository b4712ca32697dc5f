package utils

import (
	"github.com/holiman/uint256"
)

// Uint256ToString renders an amount as a decimal string ("0" for nil)
func Uint256ToString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// ParseAmount parses a decimal (or 0x-hex) amount string into uint256
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

// CloneAmount returns a defensive copy of an amount (nil becomes zero)
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}

const (
	// DecimalScale represents the scaling factor for amounts (10^6)
	DecimalScale = 1e6
)

// GetDecimalScale returns the decimal scale factor that clients should use
func GetDecimalScale() uint64 {
	return DecimalScale
}
