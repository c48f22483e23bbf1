package statement

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	yaml "gopkg.in/yaml.v2"
)

//go:embed templates/*.yaml
var seedFS embed.FS

type seedLine struct {
	LineCode    string            `yaml:"line_code"`
	Description string            `yaml:"description"`
	Kind        string            `yaml:"kind"`
	Indent      int               `yaml:"indent"`
	Bold        bool              `yaml:"bold"`
	Events      []string          `yaml:"events"`
	Formula     string            `yaml:"formula"`
	Metadata    map[string]string `yaml:"metadata"`
}

type seedTemplate struct {
	StatementCode string     `yaml:"statement_code"`
	StatementName string     `yaml:"statement_name"`
	Version       int        `yaml:"version"`
	Lines         []seedLine `yaml:"lines"`
}

// SeedTemplates parses the embedded default template definitions. These are
// the shipped statement charts; deployments may supersede them with newer
// template versions in the database.
func SeedTemplates() ([]StatementTemplate, error) {
	entries, err := fs.Glob(seedFS, "templates/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	templates := make([]StatementTemplate, 0, len(entries))
	for _, name := range entries {
		raw, err := seedFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		var seed seedTemplate
		if err := yaml.Unmarshal(raw, &seed); err != nil {
			return nil, fmt.Errorf("statement: parse seed template %s: %w", name, err)
		}
		tmpl, err := seed.toTemplate()
		if err != nil {
			return nil, fmt.Errorf("statement: seed template %s: %w", name, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (s seedTemplate) toTemplate() (StatementTemplate, error) {
	if s.StatementCode == "" {
		return StatementTemplate{}, fmt.Errorf("statement_code required")
	}
	version := s.Version
	if version == 0 {
		version = 1
	}
	tmpl := StatementTemplate{
		StatementCode: s.StatementCode,
		StatementName: s.StatementName,
		Version:       version,
		Lines:         make([]TemplateLine, 0, len(s.Lines)),
	}
	for i, line := range s.Lines {
		if line.LineCode == "" {
			return StatementTemplate{}, fmt.Errorf("line %d: line_code required", i)
		}
		kind := LineKind(line.Kind)
		if kind == "" {
			kind = KindItem
		}
		switch kind {
		case KindItem, KindSection, KindSubtotal, KindTotal:
		default:
			return StatementTemplate{}, fmt.Errorf("line %s: unknown kind %q", line.LineCode, line.Kind)
		}
		mappings := make([]EventRef, 0, len(line.Events))
		for _, code := range line.Events {
			mappings = append(mappings, EventRef{Code: code})
		}
		tmpl.Lines = append(tmpl.Lines, TemplateLine{
			LineCode:           line.LineCode,
			Description:        line.Description,
			EventMappings:      mappings,
			CalculationFormula: line.Formula,
			Formatting: LineFormatting{
				IndentLevel: line.Indent,
				Bold:        line.Bold,
				Kind:        kind,
			},
			Metadata:     line.Metadata,
			DisplayOrder: i,
		})
	}
	return tmpl, nil
}
