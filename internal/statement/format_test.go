package statement

import "testing"

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1234567.891, "1,234,567.89"},
		{0, "0.00"},
		{-9876.5, "-9,876.50"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.want {
			t.Fatalf("FormatAmount(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestDisplayFormattingSkipsSections(t *testing.T) {
	section := StatementLine{Formatting: LineFormatting{Kind: KindSection}, CurrentPeriodValue: 5}
	if df := displayFormattingFor(section); df.CurrentFormatted != "" {
		t.Fatalf("section formatted as %q", df.CurrentFormatted)
	}
	item := StatementLine{Formatting: LineFormatting{Kind: KindItem}, CurrentPeriodValue: 1500}
	if df := displayFormattingFor(item); df.CurrentFormatted != "1,500.00" {
		t.Fatalf("item formatted as %q", df.CurrentFormatted)
	}
}
