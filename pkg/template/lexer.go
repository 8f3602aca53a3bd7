package template

import "strings"

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokVar
	tokOpenIf
	tokOpenUnless
	tokOpenEach
	tokClose
	tokElse
)

// token is one lexical item of a template. raw always holds the exact
// source text so that inert markers can be written back unchanged.
type token struct {
	kind tokenKind
	name string
	raw  string
	pos  int
}

// closes reports whether t is the closing marker for open.
func (t token) closes(open token) bool {
	if t.kind != tokClose {
		return false
	}
	switch open.kind {
	case tokOpenIf:
		return t.name == "if"
	case tokOpenUnless:
		return t.name == "unless"
	case tokOpenEach:
		return t.name == open.name
	}
	return false
}

func isOpen(k tokenKind) bool {
	return k == tokOpenIf || k == tokOpenUnless || k == tokOpenEach
}

// isReserved reports whether name is a block keyword that can never be an
// iteration block name.
func isReserved(name string) bool {
	return name == "if" || name == "unless" || name == "else"
}

// lex splits a template into a flat token stream. Adjacent text is merged.
func lex(src string) []token {
	var toks []token
	text := func(s string, pos int) {
		if s == "" {
			return
		}
		if n := len(toks); n > 0 && toks[n-1].kind == tokText {
			toks[n-1].raw += s
			return
		}
		toks = append(toks, token{kind: tokText, raw: s, pos: pos})
	}

	i := 0
	for i < len(src) {
		start := strings.Index(src[i:], openDelim)
		if start < 0 {
			text(src[i:], i)
			break
		}
		start += i
		end := strings.Index(src[start+len(openDelim):], closeDelim)
		if end < 0 {
			text(src[i:], i)
			break
		}
		end += start + len(openDelim)
		inner := src[start+len(openDelim) : end]
		// "{{a {{b}}" - only the innermost opening delimiter starts a marker.
		if k := strings.LastIndex(inner, openDelim); k >= 0 {
			start += len(openDelim) + k
			inner = inner[k+len(openDelim):]
		}
		// "{{{a}}}" - extra leading braces are text before the marker.
		if extra := len(inner) - len(strings.TrimLeft(inner, "{")); extra > 0 {
			start += extra
			inner = inner[extra:]
		}
		text(src[i:start], i)

		raw := src[start : end+len(closeDelim)]
		if tok, ok := classify(inner); ok {
			tok.raw = raw
			tok.pos = start
			toks = append(toks, tok)
		} else {
			text(raw, start)
		}
		i = end + len(closeDelim)
	}
	return toks
}

// classify turns the text between delimiters into a marker token.
// It returns false for text that is not a marker at all, e.g. "{{ }}".
func classify(inner string) (token, bool) {
	expr := strings.TrimSpace(inner)
	if expr == "" {
		return token{}, false
	}
	switch expr[0] {
	case '#':
		rest := strings.TrimSpace(expr[1:])
		fields := strings.Fields(rest)
		switch {
		case len(fields) == 2 && fields[0] == "if":
			return token{kind: tokOpenIf, name: fields[1]}, true
		case len(fields) == 2 && fields[0] == "unless":
			return token{kind: tokOpenUnless, name: fields[1]}, true
		case len(fields) == 1 && !isReserved(fields[0]):
			return token{kind: tokOpenEach, name: fields[0]}, true
		}
		return token{}, false
	case '/':
		name := strings.TrimSpace(expr[1:])
		if name == "" || strings.ContainsAny(name, " \t\r\n") {
			return token{}, false
		}
		return token{kind: tokClose, name: name}, true
	}
	if expr == "else" {
		return token{kind: tokElse}, true
	}
	return token{kind: tokVar, name: expr}, true
}
