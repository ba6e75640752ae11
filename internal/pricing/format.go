package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var frPrinter = message.NewPrinter(language.French)

// FormatPrice renders an amount the way it is printed on French receipts,
// e.g. "1 234,56 €". The integer part is grouped by x/text; cents are taken
// from the decimal string so large amounts keep their exact digits.
func FormatPrice(amount decimal.Decimal) string {
	fixed := Cents(amount).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	units, cents, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(units, 10, 64)
	if err != nil {
		return sign + units + "," + cents + " €"
	}
	return sign + frPrinter.Sprint(number.Decimal(n)) + "," + cents + " €"
}
