package statement

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var displayPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount with thousand separators and two decimal
// places for UI and export consumers.
func FormatAmount(v float64) string {
	return displayPrinter.Sprintf("%.2f", v)
}

func displayFormattingFor(line StatementLine) DisplayFormatting {
	if line.Formatting.Kind == KindSection {
		return DisplayFormatting{}
	}
	return DisplayFormatting{
		CurrentFormatted:  FormatAmount(line.CurrentPeriodValue),
		PreviousFormatted: FormatAmount(line.PreviousPeriodValue),
	}
}
