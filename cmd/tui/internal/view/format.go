package view

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MrJamesThe3rd/cambio/internal/transaction"
)

const apiTimeout = 10 * time.Second

var (
	printer = message.NewPrinter(language.Spanish)
	titler  = cases.Title(language.Spanish)
)

// SetLocale picks the language used for amounts and labels. It is meant to
// be called once before the program starts.
func SetLocale(tag string) {
	lang, err := language.Parse(tag)
	if err != nil {
		lang = language.Spanish
	}

	printer = message.NewPrinter(lang)
	titler = cases.Title(lang)
}

// FormatAmount renders amount in the given ISO currency. Unknown codes fall
// back to two decimals followed by the code.
func FormatAmount(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}

	return printer.Sprint(currency.Symbol(unit.Amount(amount.Round(2).InexactFloat64())))
}

// FormatDate formats a time.Time into local YYYY-MM-DD HH:MM.
func FormatDate(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// StateLabel is the human form of a lifecycle state.
func StateLabel(s transaction.State) string {
	return titler.String(strings.ReplaceAll(string(s), "_", " "))
}

// ActionLabel is the human form of an action.
func ActionLabel(a transaction.Action) string {
	return titler.String(strings.ReplaceAll(string(a), "_", " "))
}

// APICtx returns a context with a standard timeout for API calls.
func APICtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), apiTimeout)
}
