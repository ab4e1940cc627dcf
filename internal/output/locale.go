package output

import (
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale holds resolved number formatting conventions.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// DetectLocale resolves the user's locale from environment variables.
// Falls back to en-US if nothing is set or parseable.
func DetectLocale() Locale {
	raw := os.Getenv("LC_ALL")
	if raw == "" {
		raw = os.Getenv("LC_NUMERIC")
	}
	if raw == "" {
		raw = os.Getenv("LANG")
	}
	return NewLocale(raw)
}

// NewLocale creates a Locale from a POSIX locale string (e.g. "es_ES.UTF-8")
// or BCP 47 tag (e.g. "es-ES"). Returns en-US for empty or unparseable input.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	return Locale{tag: tag, printer: message.NewPrinter(tag)}
}

// FormatNumber formats v with locale grouping and up to two decimals.
func (l Locale) FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return l.printer.Sprint(number.Decimal(int64(v)))
	}
	return l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatPrice formats v with exactly two decimals.
func (l Locale) FormatPrice(v float64) string {
	return l.printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}
