package greenops

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer is the locale-aware message printer for number formatting.
// Uses English locale for consistent thousand separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// tonneDisplayThresholdKg switches FormatMass from kilograms to tonnes.
const tonneDisplayThresholdKg = 1000.0

// FormatNumber formats an integer with thousand separators.
// Example: FormatNumber(18248) returns "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat formats a float with the specified precision and thousand separators.
// Example: FormatFloat(1234.567, 2) returns "1,234.57".
func FormatFloat(f float64, precision int) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if precision < 0 {
		precision = 0
	}

	formatted := strconv.FormatFloat(f, 'f', precision, 64)
	intPart, fracPart, hasFrac := strings.Cut(formatted, ".")

	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return formatted
	}
	grouped := FormatNumber(n)
	if n == 0 && strings.HasPrefix(intPart, "-") {
		// -0.5 parses its integer part as 0 and would lose the sign.
		grouped = "-" + grouped
	}
	if !hasFrac {
		return grouped
	}
	return grouped + "." + fracPart
}

// FormatMass renders a CO2e mass in kilograms, switching to tonnes at 1,000 kg.
// Example: FormatMass(456, 2) returns "456.00 kgCO2e";
// FormatMass(12500, 2) returns "12.50 tCO2e".
func FormatMass(kg float64, precision int) string {
	if math.Abs(kg) >= tonneDisplayThresholdKg {
		return FormatFloat(kg/TonsToKg, precision) + " tCO2e"
	}
	return FormatFloat(kg, precision) + " kgCO2e"
}

// FormatPercent renders a percentage with the given precision.
func FormatPercent(p float64, precision int) string {
	return FormatFloat(p, precision) + "%"
}
