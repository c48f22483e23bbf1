package statement

import (
	"github.com/aegis-hfm/aegis-hfm/internal/statement/formula"
)

// orderTemplateLines returns the template's lines in evaluation order. Data
// lines carry no references; formula lines reference whatever their
// expression mentions; registry lines reference their declared inputs.
// Display order is untouched, only the evaluation sequence is derived.
func orderTemplateLines(tmpl StatementTemplate) ([]TemplateLine, []string) {
	byCode := make(map[string]TemplateLine, len(tmpl.Lines))
	nodes := make([]formula.Node, 0, len(tmpl.Lines))
	for _, line := range tmpl.Lines {
		byCode[line.LineCode] = line
		node := formula.Node{Code: line.LineCode}
		if line.CalculationFormula != "" {
			node.Refs = formula.References(line.CalculationFormula)
		} else if refs := SpecialTotalRefs(line.LineCode); refs != nil {
			node.Refs = refs
		}
		nodes = append(nodes, node)
	}

	orderedCodes, warnings := formula.Order(nodes)
	ordered := make([]TemplateLine, 0, len(orderedCodes))
	for _, code := range orderedCodes {
		ordered = append(ordered, byCode[code])
	}
	return ordered, warnings
}

// evaluateLineFormula runs one expression against the request's symbol maps.
// Lookup priority is line values first, then event totals, previous-period
// event totals, and finally custom mappings.
func evaluateLineFormula(expr string, eventTotals, lineValues, previousEventTotals, customMappings map[string]float64) (formula.Result, error) {
	return formula.Evaluate(expr, formula.Context{
		EventValues:          eventTotals,
		LineValues:           lineValues,
		PreviousPeriodValues: previousEventTotals,
		CustomMappings:       customMappings,
	})
}
