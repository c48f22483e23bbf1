package statement

import (
	"context"
	"fmt"
)

// TemplateRepository loads the currently-active template version for a
// statement code. Implemented by the pgx repository, with the embedded seed
// set as a bootstrap.
type TemplateRepository interface {
	ActiveTemplate(ctx context.Context, statementCode string) (StatementTemplate, error)
}

// Loader wraps template retrieval with shape validation. A generation
// request always uses the single active version; versions are never mixed
// within one statement.
type Loader struct {
	repo TemplateRepository
}

// NewLoader constructs a template loader.
func NewLoader(repo TemplateRepository) *Loader {
	return &Loader{repo: repo}
}

// Load fetches the active template for the code. Returns ErrTemplateNotFound
// when no active version exists.
func (l *Loader) Load(ctx context.Context, statementCode string) (StatementTemplate, []string, error) {
	if l == nil || l.repo == nil {
		return StatementTemplate{}, nil, fmt.Errorf("statement: template loader not initialised")
	}
	tmpl, err := l.repo.ActiveTemplate(ctx, statementCode)
	if err != nil {
		return StatementTemplate{}, nil, err
	}
	return tmpl, validateTemplateShape(tmpl), nil
}

// validateTemplateShape flags lines that declare more than one evaluation
// mode. Evaluation precedence still picks exactly one path; the warning
// exists so template authors notice the ambiguity.
func validateTemplateShape(tmpl StatementTemplate) []string {
	var warnings []string
	seen := make(map[string]struct{}, len(tmpl.Lines))
	for _, line := range tmpl.Lines {
		if _, dup := seen[line.LineCode]; dup {
			warnings = append(warnings, fmt.Sprintf("template %s: duplicate line code %s", tmpl.StatementCode, line.LineCode))
		}
		seen[line.LineCode] = struct{}{}

		modes := 0
		if len(line.EventMappings) > 0 {
			modes++
		}
		if line.CalculationFormula != "" {
			modes++
		}
		// Registry membership only counts when the line declares nothing
		// else; a formula on a registry code deliberately supersedes it.
		if modes == 0 && IsSpecialTotal(line.LineCode) {
			modes++
		}
		if modes > 1 {
			warnings = append(warnings, fmt.Sprintf("template %s: line %s declares multiple evaluation modes", tmpl.StatementCode, line.LineCode))
		}
	}
	return warnings
}

// ResolveEventRefs returns a copy of the template whose event mappings all
// carry canonical codes, resolving numeric IDs through the registry table.
// Refs that resolve to nothing are dropped with a warning.
func ResolveEventRefs(tmpl StatementTemplate, idToCode map[int64]string) (StatementTemplate, []string) {
	var warnings []string
	resolved := tmpl
	resolved.Lines = make([]TemplateLine, len(tmpl.Lines))
	for i, line := range tmpl.Lines {
		out := line
		out.EventMappings = make([]EventRef, 0, len(line.EventMappings))
		for _, ref := range line.EventMappings {
			code := ref.Code
			if code == "" {
				code = idToCode[ref.ID]
			}
			if code == "" {
				warnings = append(warnings, fmt.Sprintf("line %s: event id %d has no registered code", line.LineCode, ref.ID))
				continue
			}
			out.EventMappings = append(out.EventMappings, EventRef{ID: ref.ID, Code: code})
		}
		resolved.Lines[i] = out
	}
	return resolved, warnings
}
