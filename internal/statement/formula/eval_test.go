package formula

import "testing"

func TestEvaluateArithmetic(t *testing.T) {
	ctx := Context{
		EventValues: map[string]float64{"REV_GRANTS": 250000, "EXP_SALARIES": 180000},
	}
	res, err := Evaluate("REV_GRANTS - EXP_SALARIES", ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 70000 {
		t.Fatalf("expected 70000 got %v", res.Value)
	}
	if len(res.Unresolved) != 0 {
		t.Fatalf("expected no unresolved symbols got %v", res.Unresolved)
	}
}

func TestEvaluatePrecedenceAndParens(t *testing.T) {
	ctx := Context{CustomMappings: map[string]float64{"A": 2, "B": 3, "C": 4}}
	res, err := Evaluate("A + B * C", ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 14 {
		t.Fatalf("expected 14 got %v", res.Value)
	}
	res, err = Evaluate("(A + B) * C", ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 20 {
		t.Fatalf("expected 20 got %v", res.Value)
	}
}

func TestEvaluateUnaryMinus(t *testing.T) {
	ctx := Context{EventValues: map[string]float64{"X": 5}}
	res, err := Evaluate("-X + 10", ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 5 {
		t.Fatalf("expected 5 got %v", res.Value)
	}
}

func TestEvaluateUnresolvedSymbolIsZero(t *testing.T) {
	res, err := Evaluate("MISSING + 100", Context{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 100 {
		t.Fatalf("expected 100 got %v", res.Value)
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != "MISSING" {
		t.Fatalf("expected MISSING recorded, got %v", res.Unresolved)
	}
}

func TestEvaluateDivisionByZeroDegrades(t *testing.T) {
	res, err := Evaluate("100 / ZERO", Context{EventValues: map[string]float64{"ZERO": 0}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 0 {
		t.Fatalf("expected 0 got %v", res.Value)
	}
}

func TestEvaluateLineValuesTakePriority(t *testing.T) {
	ctx := Context{
		LineValues:  map[string]float64{"TOTAL_REVENUES": 500},
		EventValues: map[string]float64{"TOTAL_REVENUES": 999},
	}
	res, err := Evaluate("TOTAL_REVENUES", ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Value != 500 {
		t.Fatalf("expected line value 500 got %v", res.Value)
	}
}

func TestEvaluateMalformed(t *testing.T) {
	if _, err := Evaluate("1 + ", Context{}); err == nil {
		t.Fatalf("expected error for trailing operator")
	}
	if _, err := Evaluate("(1 + 2", Context{}); err == nil {
		t.Fatalf("expected error for unbalanced parenthesis")
	}
	if _, err := Evaluate("", Context{}); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestReferences(t *testing.T) {
	refs := References("A + B * (A - C) / 2")
	if len(refs) != 3 {
		t.Fatalf("expected 3 unique refs got %v", refs)
	}
	if refs[0] != "A" || refs[1] != "B" || refs[2] != "C" {
		t.Fatalf("unexpected ref order: %v", refs)
	}
}
