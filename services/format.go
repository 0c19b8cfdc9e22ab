package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatRobux renders an amount with two decimals, e.g. "1,234.50 R$".
func FormatRobux(v float64) string {
	return moneyPrinter.Sprintf("%.2f R$", v)
}

// FormatUSD renders an amount with two decimals, e.g. "$0.05".
func FormatUSD(v float64) string {
	return moneyPrinter.Sprintf("$%.2f", v)
}
