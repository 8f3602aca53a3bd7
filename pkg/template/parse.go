package template

import (
	"errors"
	"fmt"
)

// ErrInvalidTemplate is returned when the template is missing or empty.
var ErrInvalidTemplate = errors.New("template must be a non-empty string")

// Node is an element of a parsed template.
type Node interface {
	node()
}

// Literal is text copied to the output unchanged.
type Literal struct {
	Text string
}

// Variable is a {{name}} placeholder.
type Variable struct {
	Name string
	Raw  string
}

// Cond is an {{#if}} or {{#unless}} block.
type Cond struct {
	Name   string
	Negate bool
	Then   []Node
	Else   []Node
}

// Each is an {{#name}}...{{/name}} iteration block.
type Each struct {
	Name  string
	Body  []Node
	Open  string
	Close string
}

func (*Literal) node()  {}
func (*Variable) node() {}
func (*Cond) node()     {}
func (*Each) node()     {}

// Issue describes a malformed marker that was kept as literal text.
type Issue struct {
	Pos     int    `json:"pos"`
	Marker  string `json:"marker"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s at offset %d", i.Message, i.Marker, i.Pos)
}

// Template is a parsed template. It is immutable and safe for concurrent
// use by multiple goroutines.
type Template struct {
	Nodes  []Node
	Issues []Issue
}

// Parse parses src into a Template. Unterminated blocks and stray closing
// markers do not fail the parse: they are kept as literal text and listed
// in Template.Issues.
func Parse(src string) (*Template, error) {
	if src == "" {
		return nil, ErrInvalidTemplate
	}
	toks := lex(src)
	p := &parser{toks: toks, match: pair(toks)}
	nodes := p.parseRange(0, len(toks))
	return &Template{Nodes: nodes, Issues: p.issues}, nil
}

// pair matches every opening marker with its closing marker in one stack
// pass. A closer that belongs to an outer block abandons the unmatched
// blocks opened after it. match[i] is the partner index, or -1.
func pair(toks []token) []int {
	match := make([]int, len(toks))
	for i := range match {
		match[i] = -1
	}
	var stack []int
	for i, t := range toks {
		switch {
		case isOpen(t.kind):
			stack = append(stack, i)
		case t.kind == tokClose:
			for k := len(stack) - 1; k >= 0; k-- {
				if t.closes(toks[stack[k]]) {
					match[stack[k]] = i
					match[i] = stack[k]
					stack = stack[:k]
					break
				}
			}
		}
	}
	return match
}

type parser struct {
	toks   []token
	match  []int
	issues []Issue
}

func (p *parser) parseRange(lo, hi int) []Node {
	var nodes []Node
	for i := lo; i < hi; i++ {
		t := p.toks[i]
		switch t.kind {
		case tokText, tokElse:
			nodes = appendLiteral(nodes, t.raw)
		case tokVar:
			nodes = append(nodes, &Variable{Name: t.name, Raw: t.raw})
		case tokClose:
			p.issue(t, "stray closing marker")
			nodes = appendLiteral(nodes, t.raw)
		case tokOpenIf, tokOpenUnless, tokOpenEach:
			j := p.match[i]
			if j < 0 {
				p.issue(t, "unterminated block")
				nodes = appendLiteral(nodes, t.raw)
				continue
			}
			nodes = append(nodes, p.block(i, j))
			i = j
		}
	}
	return nodes
}

func (p *parser) block(open, end int) Node {
	t := p.toks[open]
	if t.kind == tokOpenEach {
		return &Each{
			Name:  t.name,
			Body:  p.parseRange(open+1, end),
			Open:  t.raw,
			Close: p.toks[end].raw,
		}
	}
	c := &Cond{Name: t.name, Negate: t.kind == tokOpenUnless}
	split := p.findElse(open+1, end)
	if split < 0 {
		c.Then = p.parseRange(open+1, end)
		return c
	}
	c.Then = p.parseRange(open+1, split)
	c.Else = p.parseRange(split+1, end)
	return c
}

// findElse returns the index of the first {{else}} that is not inside a
// nested block, or -1.
func (p *parser) findElse(lo, hi int) int {
	for i := lo; i < hi; i++ {
		switch {
		case p.toks[i].kind == tokElse:
			return i
		case isOpen(p.toks[i].kind) && p.match[i] >= 0:
			i = p.match[i]
		}
	}
	return -1
}

func (p *parser) issue(t token, msg string) {
	p.issues = append(p.issues, Issue{Pos: t.pos, Marker: t.raw, Message: msg})
}

func appendLiteral(nodes []Node, text string) []Node {
	if n := len(nodes); n > 0 {
		if lit, ok := nodes[n-1].(*Literal); ok {
			lit.Text += text
			return nodes
		}
	}
	return append(nodes, &Literal{Text: text})
}
