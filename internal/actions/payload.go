package actions

import (
	"github.com/shopspring/decimal"
)

// Payload values arrive two ways: constructed in-process (the NPC engine
// hands over native int64/decimal.Decimal values) or round-tripped
// through the pending_actions JSON column (where every number becomes a
// float64 and every decimal.Decimal becomes a string). These helpers
// accept both shapes so Process behaves identically for either caller.

func payloadString(payload map[string]interface{}, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func payloadInt64(payload map[string]interface{}, key string) (int64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func payloadDecimal(payload map[string]interface{}, key string) (decimal.Decimal, bool) {
	v, ok := payload[key]
	if !ok {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Zero, false
	}
}
