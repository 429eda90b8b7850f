package parser

import (
	"fmt"
	"unicode/utf8"

	"github.com/sandrolain/gocel/pkg/types"
)

const eof = -1

// Lexer converts a CEL expression into a sequence of tokens.
// The implementation is based on Rob Pike's "Lexical Scanning in Go" technique.
type Lexer struct {
	input   string // Input string being scanned
	length  int    // Length of input string
	start   int    // Start position of current token
	current int    // Current position in input
	width   int    // Width of last rune read
	err     error  // First error encountered
}

// NewLexer creates a new lexer from the provided input string.
// The input is tokenized by successive calls to the Next method.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		length: len(input),
	}
}

// Next returns the next token from the input.
// When the end of the input is reached, Next returns TokenEOF for all
// subsequent calls. After an error, Next returns TokenError.
func (l *Lexer) Next() Token {
	if l.err != nil {
		return Token{Type: TokenError, Position: l.current}
	}
	l.skipWhitespace()

	ch := l.nextRune()
	if ch == eof {
		return l.eof()
	}

	// Check for two-character symbols first (e.g., !=, <=, &&)
	if rts := lookupSymbol2(ch); rts != nil {
		for _, rt := range rts {
			if l.acceptRune(rt.r) {
				return l.newToken(rt.tt)
			}
		}
	}

	// A dot followed by a digit starts a double literal (.5)
	if ch == '.' && l.peekIsDigit() {
		l.backup()
		return l.scanNumber()
	}

	// Check for single-character symbols
	if tt := lookupSymbol1(ch); tt > 0 {
		return l.newToken(tt)
	}

	// String literals (single or double quoted)
	if ch == '"' || ch == '\'' {
		return l.scanString(ch, false, false)
	}

	// Number literals
	if isDigit(ch) {
		l.backup()
		return l.scanNumber()
	}

	if isNameStart(ch) {
		l.backup()
		return l.scanName()
	}

	return l.error(types.ErrInvalidCharacter, fmt.Sprintf("unexpected character %q", ch))
}

// Error returns the first error encountered during lexing, if any.
func (l *Lexer) Error() error {
	return l.err
}

// scanString reads a string or bytes literal. The opening quote has already
// been consumed; any r/b prefix is part of the current token.
// Triple-quoted literals may span lines, the others may not.
func (l *Lexer) scanString(quote rune, raw, isBytes bool) Token {
	triple := false
	if l.acceptRune(quote) {
		if !l.acceptRune(quote) {
			// Empty literal: '' or ""
			return l.newToken(stringTokenType(isBytes))
		}
		triple = true
	}

	for {
		ch := l.nextRune()
		switch ch {
		case eof:
			t := l.error(types.ErrStringNotClosed, "unterminated string literal")
			if e, ok := l.err.(*types.Error); ok {
				e.Token = "eof"
			}
			return t
		case '\n', '\r':
			if !triple {
				return l.error(types.ErrStringNotClosed, "unterminated string literal")
			}
		case '\\':
			if raw {
				continue
			}
			if r := l.nextRune(); r == eof {
				t := l.error(types.ErrStringNotClosed, "unterminated string literal")
				if e, ok := l.err.(*types.Error); ok {
					e.Token = "eof"
				}
				return t
			}
		case quote:
			if !triple {
				return l.newToken(stringTokenType(isBytes))
			}
			if l.acceptRune(quote) {
				if l.acceptRune(quote) {
					return l.newToken(stringTokenType(isBytes))
				}
			}
		}
	}
}

func stringTokenType(isBytes bool) TokenType {
	if isBytes {
		return TokenBytes
	}
	return TokenString
}

// scanNumber reads a number literal from the current position.
// Format: 0x[0-9a-fA-F]+u? | [0-9]+u? | [0-9]*\.[0-9]+([eE][+-]?[0-9]+)? | [0-9]+[eE][+-]?[0-9]+
func (l *Lexer) scanNumber() Token {
	if l.acceptRune('0') && l.acceptRunes2('x', 'X') {
		if !l.acceptAll(isHexDigit) {
			return l.error(types.ErrInvalidNumber, "invalid hexadecimal literal")
		}
		tt := TokenInt
		if l.acceptRunes2('u', 'U') {
			tt = TokenUInt
		}
		return l.finishNumber(tt)
	}
	l.acceptAll(isDigit)

	isDouble := false
	// Decimal part; a dot not followed by a digit is a member access (1.size()).
	if l.peek() == '.' && l.peekAtIsDigit(1) {
		l.acceptRune('.')
		l.acceptAll(isDigit)
		isDouble = true
	}

	// Exponent part
	if l.acceptRunes2('e', 'E') {
		l.acceptRunes2('+', '-')
		if !l.acceptAll(isDigit) {
			return l.error(types.ErrInvalidNumber, "invalid exponent in number literal")
		}
		isDouble = true
	}

	if l.acceptRunes2('u', 'U') {
		if isDouble {
			return l.error(types.ErrInvalidNumber, "invalid unsigned integer marker on floating point literal")
		}
		return l.finishNumber(TokenUInt)
	}
	if isDouble {
		return l.finishNumber(TokenDouble)
	}
	return l.finishNumber(TokenInt)
}

// finishNumber rejects literals running straight into a name, e.g. 123abc.
func (l *Lexer) finishNumber(tt TokenType) Token {
	if r := l.peek(); isNameStart(r) || isDigit(r) {
		l.acceptAll(isNameChar)
		return l.error(types.ErrInvalidNumber, "malformed number literal")
	}
	return l.newToken(tt)
}

// scanName reads an identifier or keyword from the current position.
// Identifiers made only of r/R/b/B directly followed by a quote are
// string literal prefixes.
func (l *Lexer) scanName() Token {
	l.acceptAll(isNameChar)

	word := l.input[l.start:l.current]
	if q := l.peek(); (q == '"' || q == '\'') && len(word) <= 2 {
		if raw, isBytes, ok := stringPrefix(word); ok {
			l.nextRune()
			return l.scanString(q, raw, isBytes)
		}
	}

	t := l.newToken(TokenName)
	if tt := lookupKeyword(t.Value); tt > 0 {
		t.Type = tt
	}
	return t
}

// stringPrefix decodes a literal prefix such as r, b, rb or BR.
func stringPrefix(word string) (raw, isBytes, ok bool) {
	for _, c := range word {
		switch c {
		case 'r', 'R':
			if raw {
				return false, false, false
			}
			raw = true
		case 'b', 'B':
			if isBytes {
				return false, false, false
			}
			isBytes = true
		default:
			return false, false, false
		}
	}
	return raw, isBytes, word != ""
}

// Helper methods

func (l *Lexer) eof() Token {
	return Token{
		Type:     TokenEOF,
		Position: l.current,
	}
}

func (l *Lexer) error(code types.ErrorCode, message string) Token {
	t := l.newToken(TokenError)
	l.err = &types.Error{
		Code:     code,
		Message:  message,
		Position: t.Position,
		Token:    t.Value,
	}
	return t
}

func (l *Lexer) newToken(tt TokenType) Token {
	t := Token{
		Type:     tt,
		Value:    l.input[l.start:l.current],
		Position: l.start,
	}
	l.width = 0
	l.start = l.current
	return t
}

func (l *Lexer) nextRune() rune {
	if l.current >= l.length {
		l.width = 0
		return eof
	}

	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	return r
}

func (l *Lexer) backup() {
	l.current -= l.width
}

func (l *Lexer) ignore() {
	l.start = l.current
}

func (l *Lexer) peek() rune {
	if l.current >= l.length {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.current:])
	return r
}

func (l *Lexer) peekIsDigit() bool {
	return l.peekAtIsDigit(0)
}

// peekAtIsDigit reports whether the byte at offset from the current
// position is an ASCII digit.
func (l *Lexer) peekAtIsDigit(offset int) bool {
	i := l.current + offset
	return i < l.length && l.input[i] >= '0' && l.input[i] <= '9'
}

func (l *Lexer) acceptRune(r rune) bool {
	return l.accept(func(c rune) bool {
		return c == r
	})
}

func (l *Lexer) acceptRunes2(r1, r2 rune) bool {
	return l.accept(func(c rune) bool {
		return c == r1 || c == r2
	})
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

// skipWhitespace skips blanks and // line comments.
func (l *Lexer) skipWhitespace() {
	for {
		l.acceptAll(isWhitespace)
		l.ignore()

		if l.current+1 < l.length && l.input[l.current] == '/' && l.input[l.current+1] == '/' {
			for {
				ch := l.nextRune()
				if ch == eof || ch == '\n' {
					break
				}
			}
			l.ignore()
			continue
		}
		return
	}
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isNameStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isNameChar(r rune) bool {
	return isNameStart(r) || isDigit(r)
}
