package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

var sixDigits = big.NewInt(1_000_000)

// NewOrderNumber 生成订单号：ORD + YYYYMMDD + 6 位随机数字
func NewOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, sixDigits)
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}
	return fmt.Sprintf("ORD%s%06d", now.Format("20060102"), n.Int64()), nil
}
