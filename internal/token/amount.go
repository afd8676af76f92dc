package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// stockPrecision is the decimal precision every stock token is created with.
// Two digits gives 10g resolution on quantities in kilograms.
const stockPrecision uint32 = 2

// memoLimit keeps asset memos inside the ledger's memo-size cap.
const memoLimit = 100

// toRawUnits converts a kg quantity to ledger integer units at the given
// precision. Quantities with more fractional digits than the asset supports
// are rejected rather than silently rounded.
func toRawUnits(qty decimal.Decimal, precision uint32) (int64, error) {
	raw := qty.Shift(int32(precision))
	if !raw.IsInteger() {
		return 0, validationf("quantity %s exceeds asset precision of %d decimals", qty.String(), precision)
	}
	if !raw.IsPositive() {
		return 0, validationf("quantity must be positive, got %s", qty.String())
	}
	return raw.IntPart(), nil
}

// fromRawUnits converts ledger integer units back to kg.
func fromRawUnits(raw int64, precision uint32) decimal.Decimal {
	return decimal.NewFromInt(raw).Shift(-int32(precision))
}

// deriveSymbol builds a ledger symbol from the product name plus a time-based
// suffix so repeated creations of the same product never collide.
func deriveSymbol(productName string, now time.Time) string {
	var b strings.Builder
	for _, r := range productName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
		if b.Len() >= 6 {
			break
		}
	}
	prefix := b.String()
	if prefix == "" {
		prefix = "STK"
	}
	return prefix + "-" + strconv.FormatInt(now.Unix(), 36)
}

// buildMemo produces a short, ledger-safe memo for a stock asset. Truncation
// backs up to a rune boundary so a multi-byte product name never yields an
// invalid-UTF-8 memo.
func buildMemo(productName string) string {
	memo := fmt.Sprintf("stock:%s", productName)
	if len(memo) > memoLimit {
		cut := memoLimit
		for cut > 0 && !utf8.RuneStart(memo[cut]) {
			cut--
		}
		memo = memo[:cut]
	}
	return memo
}
