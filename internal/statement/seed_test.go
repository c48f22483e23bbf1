package statement

import "testing"

func TestSeedTemplates(t *testing.T) {
	seeds, err := SeedTemplates()
	if err != nil {
		t.Fatalf("SeedTemplates: %v", err)
	}
	byCode := make(map[string]StatementTemplate, len(seeds))
	for _, tmpl := range seeds {
		byCode[tmpl.StatementCode] = tmpl
	}
	for _, code := range []string{
		CodeRevenueExpenditure, CodeBalanceSheet, CodeCashFlow,
		CodeNetAssetsChanges, CodeBudgetVsActual,
	} {
		tmpl, ok := byCode[code]
		if !ok {
			t.Fatalf("no seed template for %s", code)
		}
		if tmpl.Version == 0 || len(tmpl.Lines) == 0 {
			t.Fatalf("seed %s incomplete: %+v", code, tmpl)
		}
		if warnings := validateTemplateShape(tmpl); len(warnings) != 0 {
			t.Fatalf("seed %s shape warnings: %v", code, warnings)
		}
	}
}

func TestSeedTemplatesDisplayOrder(t *testing.T) {
	seeds, err := SeedTemplates()
	if err != nil {
		t.Fatalf("SeedTemplates: %v", err)
	}
	for _, tmpl := range seeds {
		for i, line := range tmpl.Lines {
			if line.DisplayOrder != i {
				t.Fatalf("%s line %s display order = %d, want %d", tmpl.StatementCode, line.LineCode, line.DisplayOrder, i)
			}
			if line.Formatting.Kind == "" {
				t.Fatalf("%s line %s has no kind", tmpl.StatementCode, line.LineCode)
			}
		}
	}
}

func TestSeedCashFlowOrdering(t *testing.T) {
	seeds, err := SeedTemplates()
	if err != nil {
		t.Fatalf("SeedTemplates: %v", err)
	}
	for _, tmpl := range seeds {
		if tmpl.StatementCode != CodeCashFlow {
			continue
		}
		ordered, warnings := orderTemplateLines(tmpl)
		if len(warnings) != 0 {
			t.Fatalf("cash flow ordering warnings: %v", warnings)
		}
		pos := make(map[string]int, len(ordered))
		for i, line := range ordered {
			pos[line.LineCode] = i
		}
		if pos[LineCashEnd] < pos[LineNetIncreaseCash] || pos[LineNetIncreaseCash] < pos[LineNetCashOperating] {
			t.Fatalf("cash chain out of order: %v", pos)
		}
		return
	}
	t.Fatal("cash flow seed missing")
}
