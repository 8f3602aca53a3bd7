package template

import "unicode/utf8"

// Summary describes a template together with a variable set.
type Summary struct {
	TemplateVariables []string            `json:"templateVariables"`
	ScopedVariables   map[string][]string `json:"scopedVariables,omitempty"`
	ProvidedVariables []string            `json:"providedVariables"`
	Validation        ValidationResult    `json:"validation"`
	ProcessedLength   int                 `json:"processedLength"`
	VariableCount     int                 `json:"variableCount"`
	Issues            []Issue             `json:"issues,omitempty"`
}

// Summarize extracts, validates and processes tmpl with vars in one call.
// ProcessedLength counts characters of the output and is 0 when the
// template cannot be processed.
func Summarize(tmpl string, vars Variables) Summary {
	analysis := Analyze(tmpl)
	validation := ValidateVariables(vars, analysis.Required)

	s := Summary{
		TemplateVariables: analysis.Required,
		ScopedVariables:   analysis.Scoped,
		ProvidedVariables: validation.Provided,
		Validation:        validation,
		VariableCount:     len(analysis.Required),
	}
	if res, err := defaultEngine.ProcessDetailed(tmpl, vars); err == nil {
		s.ProcessedLength = utf8.RuneCountInString(res.HTML)
		s.Issues = res.Issues
	}
	return s
}
