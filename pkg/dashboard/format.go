package dashboard

import (
	"math/big"
	"strings"

	"github.com/ecotrack/eco-go/pkg/encoding/fixedn"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatAmount formats a fixed-point token amount with digit grouping, like
// "1,234.5". Nil amounts are shown as "?".
func FormatAmount(v *big.Int, decimals int) string {
	if v == nil {
		return "?"
	}
	s := fixedn.ToString(v, decimals)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")

	n, ok := new(big.Int).SetString(intPart, 10)
	if ok && n.IsInt64() {
		intPart = printer.Sprintf("%d", n.Int64())
	}
	if neg {
		intPart = "-" + intPart
	}
	if hasFrac {
		return intPart + "." + frac
	}
	return intPart
}

// formatCount formats an integer with digit grouping.
func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}
