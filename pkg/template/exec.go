package template

import "strings"

// scope resolves names during execution. The root scope holds the caller's
// variables; each iteration pushes a scope for the current element.
type scope struct {
	parent *scope
	vars   map[string]Value

	inElem bool
	elem   Value
	index  int
	count  int
}

func newRootScope(vars map[string]any) *scope {
	converted := make(map[string]Value, len(vars))
	for k, v := range vars {
		converted[k] = FromAny(v)
	}
	return &scope{vars: converted}
}

func (s *scope) push(elem Value, index, count int) *scope {
	return &scope{parent: s, inElem: true, elem: elem, index: index, count: count}
}

func (s *scope) lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.local(name); ok {
			return v, true
		}
	}
	return Null, false
}

func (s *scope) local(name string) (Value, bool) {
	if !s.inElem {
		v, ok := s.vars[name]
		return v, ok
	}
	switch name {
	case "@index":
		return NumberValue(float64(s.index)), true
	case "@number":
		return NumberValue(float64(s.index + 1)), true
	case "@first":
		return BoolValue(s.index == 0), true
	case "@last":
		return BoolValue(s.index == s.count-1), true
	case ".":
		if s.elem.Kind() == KindObject {
			return Null, false
		}
		return s.elem, true
	}
	return s.elem.Field(name)
}

// Execute renders the template against vars. Placeholders whose names are
// not supplied are left in the output as written.
func (t *Template) Execute(vars map[string]any) string {
	var b strings.Builder
	execNodes(&b, t.Nodes, newRootScope(vars))
	return b.String()
}

func execNodes(b *strings.Builder, nodes []Node, s *scope) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *Literal:
			b.WriteString(n.Text)
		case *Variable:
			if v, ok := s.lookup(n.Name); ok {
				b.WriteString(v.String())
			} else {
				b.WriteString(n.Raw)
			}
		case *Cond:
			v, _ := s.lookup(n.Name)
			if v.Truthy() != n.Negate {
				execNodes(b, n.Then, s)
			} else {
				execNodes(b, n.Else, s)
			}
		case *Each:
			execEach(b, n, s)
		}
	}
}

func execEach(b *strings.Builder, n *Each, s *scope) {
	v, ok := s.lookup(n.Name)
	if !ok || v.Kind() != KindList {
		// Not iterable: markers stay as written, the body still resolves
		// against the enclosing scope.
		b.WriteString(n.Open)
		execNodes(b, n.Body, s)
		b.WriteString(n.Close)
		return
	}
	count := v.Len()
	for i := 0; i < count; i++ {
		execNodes(b, n.Body, s.push(v.Index(i), i, count))
	}
}
