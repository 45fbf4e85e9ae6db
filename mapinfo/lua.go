// Package mapinfo decodes the two metadata grammars SpringRTS maps carry:
// the modern `mapinfo.lua` table expression and the legacy `.smd`
// key=value text format.
//
// No Lua library exists anywhere in this module's dependency pack, so the
// table-expression grammar here is a small hand-written recursive-descent
// parser rather than an imported one — see DESIGN.md. Regex-based
// extraction was deliberately avoided; spec.md calls that approach out as
// brittle for this exact grammar.
package mapinfo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beyond-all-reason/map-parser/maperr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokEquals
	tokComma
	tokSemi
	tokMinus
	tokString
	tokNumber
	tokIdent
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

type lexer struct {
	src []rune
	pos int
	toks []token
}

func lex(data []byte) []token {
	l := &lexer{src: []rune(string(data))}
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF})
			break
		}
		c := l.src[l.pos]
		switch {
		case c == '{':
			l.toks = append(l.toks, token{kind: tokLBrace})
			l.pos++
		case c == '}':
			l.toks = append(l.toks, token{kind: tokRBrace})
			l.pos++
		case c == '[':
			l.toks = append(l.toks, token{kind: tokLBracket})
			l.pos++
		case c == ']':
			l.toks = append(l.toks, token{kind: tokRBracket})
			l.pos++
		case c == '=':
			l.toks = append(l.toks, token{kind: tokEquals})
			l.pos++
		case c == ',':
			l.toks = append(l.toks, token{kind: tokComma})
			l.pos++
		case c == ';':
			l.toks = append(l.toks, token{kind: tokSemi})
			l.pos++
		case c == '-':
			l.toks = append(l.toks, token{kind: tokMinus})
			l.pos++
		case c == '\'' || c == '"':
			l.toks = append(l.toks, l.lexString(c))
		case c >= '0' && c <= '9':
			l.toks = append(l.toks, l.lexNumber())
		case isIdentStart(c):
			l.toks = append(l.toks, l.lexIdent())
		default:
			l.pos++ // skip unrecognized byte rather than failing the whole file
		}
	}
	return l.toks
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '-':
			l.pos += 2
			if l.pos+1 < len(l.src) && l.src[l.pos] == '[' && l.src[l.pos+1] == '[' {
				l.pos += 2
				for l.pos+1 < len(l.src) && !(l.src[l.pos] == ']' && l.src[l.pos+1] == ']') {
					l.pos++
				}
				l.pos += 2
			} else {
				for l.pos < len(l.src) && l.src[l.pos] != '\n' {
					l.pos++
				}
			}
		default:
			return
		}
	}
}

func (l *lexer) lexString(quote rune) token {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) && l.src[l.pos] != quote {
		if l.src[l.pos] == '\\' && l.pos+1 < len(l.src) {
			l.pos++
		}
		sb.WriteRune(l.src[l.pos])
		l.pos++
	}
	l.pos++ // closing quote
	return token{kind: tokString, text: sb.String()}
}

func (l *lexer) lexNumber() token {
	start := l.pos
	for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	v, _ := strconv.ParseFloat(text, 64)
	return token{kind: tokNumber, text: text, num: v}
}

func (l *lexer) lexIdent() token {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: string(l.src[start:l.pos])}
}

// parser walks the token stream produced by lex.
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

// ParseMapInfo parses a `return { ... }` style Lua table expression into a
// nested dictionary per spec.md §4.H: leaves are string, float64, bool, or
// []interface{}/map[string]interface{} for subtables. Unknown or
// malformed individual fields are omitted rather than aborting the parse;
// the leading `return` is optional, but a missing top-level table is a
// hard error.
func ParseMapInfo(data []byte) (map[string]interface{}, error) {
	p := &parser{toks: lex(data)}

	if p.peek().kind == tokIdent && p.peek().text == "return" {
		p.next()
	}
	if p.peek().kind != tokLBrace {
		return nil, fmt.Errorf("mapinfo: no top-level table: %w", maperr.ErrMetadataParseFailed)
	}

	v, err := p.parseTable()
	if err != nil {
		return nil, fmt.Errorf("mapinfo: %w: %v", maperr.ErrMetadataParseFailed, err)
	}
	dict, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("mapinfo: top-level table is not dict-shaped: %w", maperr.ErrMetadataParseFailed)
	}
	return dict, nil
}

// parseTable parses a brace-delimited table body (the opening '{' must be
// the current token) and returns either []interface{} (every entry was
// positional, i.e. a dense integer-keyed subtable) or
// map[string]interface{}.
func (p *parser) parseTable() (interface{}, error) {
	if p.peek().kind != tokLBrace {
		return nil, fmt.Errorf("expected '{'")
	}
	p.next()

	dict := make(map[string]interface{})
	var list []interface{}
	pureArray := true

	for {
		switch p.peek().kind {
		case tokRBrace:
			p.next()
			if pureArray {
				return list, nil
			}
			for i, v := range list {
				dict[strconv.Itoa(i+1)] = v
			}
			return dict, nil
		case tokEOF:
			return nil, fmt.Errorf("unterminated table")
		}

		if p.peek().kind == tokIdent && p.peekAt(1).kind == tokEquals {
			key := p.next().text
			p.next() // '='
			val, err := p.parseValue()
			if err == nil {
				dict[key] = val
			}
			pureArray = false
		} else if p.peek().kind == tokLBracket {
			p.next()
			keyTok := p.next()
			var key string
			switch keyTok.kind {
			case tokString:
				key = keyTok.text
			case tokNumber:
				key = strconv.FormatFloat(keyTok.num, 'g', -1, 64)
			default:
				key = keyTok.text
			}
			if p.peek().kind == tokRBracket {
				p.next()
			}
			if p.peek().kind == tokEquals {
				p.next()
			}
			val, err := p.parseValue()
			if err == nil {
				dict[key] = val
			}
			pureArray = false
		} else {
			val, err := p.parseValue()
			if err == nil {
				list = append(list, val)
			}
		}

		switch p.peek().kind {
		case tokComma, tokSemi:
			p.next()
		}
	}
}

func (p *parser) parseValue() (interface{}, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return t.text, nil
	case tokNumber:
		p.next()
		return t.num, nil
	case tokMinus:
		p.next()
		n := p.peek()
		if n.kind != tokNumber {
			return nil, fmt.Errorf("expected number after unary minus")
		}
		p.next()
		return -n.num, nil
	case tokIdent:
		p.next()
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil":
			return nil, fmt.Errorf("nil value")
		default:
			return t.text, nil
		}
	case tokLBrace:
		return p.parseTable()
	default:
		return nil, fmt.Errorf("unexpected token in value position")
	}
}
