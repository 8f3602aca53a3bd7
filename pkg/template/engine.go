package template

// Variables maps template variable names to their values. Values are
// strings, numbers, booleans, nil, lists, or nested Variables, as produced
// by decoding JSON.
type Variables = map[string]any

// Engine processes templates with variable substitution.
// An Engine holds only immutable options and is safe for concurrent use.
type Engine struct {
	sanitize     bool
	sanitizeOpts SanitizeOptions
}

// Option configures an Engine.
type Option func(*Engine)

// WithSanitize escapes HTML in every string variable before substitution.
func WithSanitize(opts SanitizeOptions) Option {
	return func(e *Engine) {
		e.sanitize = true
		e.sanitizeOpts = opts
	}
}

// New creates a new template engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the output of a processing run.
type Result struct {
	HTML   string  `json:"html"`
	Issues []Issue `json:"issues,omitempty"`
}

// Process substitutes vars into tmpl. Iteration blocks expand before
// conditionals are resolved, and conditionals before plain placeholders.
// A nil vars map is not a mapping: tmpl is returned unchanged.
func (e *Engine) Process(tmpl string, vars Variables) (string, error) {
	res, err := e.ProcessDetailed(tmpl, vars)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// ProcessDetailed is like Process but also reports malformed markers that
// were left in the output as literal text.
func (e *Engine) ProcessDetailed(tmpl string, vars Variables) (*Result, error) {
	t, err := Parse(tmpl)
	if err != nil {
		return nil, err
	}
	if vars == nil {
		return &Result{HTML: tmpl, Issues: t.Issues}, nil
	}
	if e.sanitize {
		vars = SanitizeVariables(vars, e.sanitizeOpts)
	}
	return &Result{HTML: t.Execute(vars), Issues: t.Issues}, nil
}

var defaultEngine = New()

// Process substitutes vars into tmpl using an engine without sanitization.
func Process(tmpl string, vars Variables) (string, error) {
	return defaultEngine.Process(tmpl, vars)
}
