package template

import "strings"

// Analysis describes the names a template references.
type Analysis struct {
	// Required lists the top-level names, iteration block names first,
	// then placeholders and conditional guards in document order.
	Required []string `json:"required"`
	// Scoped maps each top-level iteration block to the names used inside
	// its body. They resolve per element and are not required up front.
	Scoped map[string][]string `json:"scoped,omitempty"`
}

// ExtractVariables returns the variable names tmpl requires at the top
// level, without duplicates. An empty template requires nothing.
func ExtractVariables(tmpl string) []string {
	return Analyze(tmpl).Required
}

// Analyze extracts required and per-element names from tmpl.
func Analyze(tmpl string) Analysis {
	a := Analysis{Required: []string{}}
	if tmpl == "" {
		return a
	}
	toks := lex(tmpl)
	match := pair(toks)

	var arrays, others nameSet
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.kind {
		case tokOpenEach:
			j := match[i]
			if j < 0 {
				continue
			}
			arrays.add(t.name)
			if a.Scoped == nil {
				a.Scoped = make(map[string][]string)
			}
			a.Scoped[t.name] = mergeNames(a.Scoped[t.name], scopedNames(toks[i+1:j]))
			i = j
		case tokVar:
			if isTopLevelName(t.name) {
				others.add(t.name)
			}
		case tokOpenIf, tokOpenUnless:
			others.add(t.name)
		}
	}

	var all nameSet
	for _, n := range arrays.names {
		all.add(n)
	}
	for _, n := range others.names {
		all.add(n)
	}
	if all.names != nil {
		a.Required = all.names
	}
	return a
}

// scopedNames lists the placeholder and guard names inside an iteration body.
func scopedNames(body []token) []string {
	var set nameSet
	for _, t := range body {
		switch t.kind {
		case tokVar:
			if isTopLevelName(t.name) {
				set.add(t.name)
			}
		case tokOpenIf, tokOpenUnless, tokOpenEach:
			set.add(t.name)
		}
	}
	return set.names
}

func isTopLevelName(name string) bool {
	if name == "" || name == "else" || name == "." {
		return false
	}
	return !strings.ContainsAny(name[:1], "#/@")
}

// nameSet is an insertion-ordered set of names.
type nameSet struct {
	names []string
	seen  map[string]struct{}
}

func (s *nameSet) add(name string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

func mergeNames(dst, src []string) []string {
	var set nameSet
	for _, n := range dst {
		set.add(n)
	}
	for _, n := range src {
		set.add(n)
	}
	return set.names
}
