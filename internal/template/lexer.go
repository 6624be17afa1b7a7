package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for name expression tokens.
const (
	TokenText        TokenType = iota // Literal text
	TokenPlaceholder                  // {slug}
	TokenEOF                          // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenPlaceholder:
		return "PLACEHOLDER"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string // literal text, or the slug without braces
	Raw   string // source text of the token
	Pos   Position
}

// Lexer tokenizes a name expression. It never fails: a brace that does not
// open a well-formed placeholder is literal text.
type Lexer struct {
	input    string
	name     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input. name is only used in
// positions, e.g. the template code.
func NewLexer(input, name string) *Lexer {
	return &Lexer{
		input: input,
		name:  name,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens ending with TokenEOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.nextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func (l *Lexer) nextToken() Token {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}
	}
	if n := placeholderLen(l.input[l.pos:]); n > 0 {
		return l.scanPlaceholder(n)
	}
	return l.scanText()
}

// scanText scans literal text until the next placeholder or EOF.
func (l *Lexer) scanText() Token {
	l.markStart()
	start := l.pos

	// always consume at least one rune so a stray '{' makes progress
	l.advance()
	for l.pos < len(l.input) && placeholderLen(l.input[l.pos:]) == 0 {
		l.advance()
	}

	text := l.input[start:l.pos]
	return Token{Type: TokenText, Value: text, Raw: text, Pos: l.startPosition()}
}

// scanPlaceholder consumes a placeholder of n bytes, braces included.
func (l *Lexer) scanPlaceholder(n int) Token {
	l.markStart()
	raw := l.input[l.pos : l.pos+n]
	// placeholders never span lines
	l.pos += n
	l.col += utf8.RuneCountInString(raw)

	return Token{
		Type:  TokenPlaceholder,
		Value: raw[1 : len(raw)-1],
		Raw:   raw,
		Pos:   l.startPosition(),
	}
}

// placeholderLen returns the byte length of the placeholder starting at s[0],
// or 0 if s does not start with one.
func placeholderLen(s string) int {
	if !strings.HasPrefix(s, "{") {
		return 0
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '}':
			if i == 1 {
				return 0
			}
			return i + 1
		case isSlugByte(c):
		default:
			return 0
		}
	}
	return 0
}

// ValidSlug reports whether s can be referenced as a {slug} placeholder.
func ValidSlug(s string) bool {
	return s != "" && placeholderLen("{"+s+"}") == len(s)+2
}

func isSlugByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.'
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Source: l.name, Line: l.line, Column: l.col}
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() Position {
	return Position{Source: l.name, Line: l.lastLine, Column: l.lastCol}
}
