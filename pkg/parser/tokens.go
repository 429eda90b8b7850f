package parser

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt     // 123, 0x1F
	TokenUInt    // 123u, 0x1Fu
	TokenDouble  // 3.14, 1e-10, .5
	TokenString  // "hello", 'hello', """multi""", r"raw"
	TokenBytes   // b"bytes"
	TokenBoolean // true, false
	TokenNull    // null
	TokenName    // identifier

	// Grouping symbols
	TokenBracketOpen  // [
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }
	TokenParenOpen    // (
	TokenParenClose   // )

	// Basic symbols
	TokenDot       // .
	TokenComma     // ,
	TokenColon     // :
	TokenCondition // ?

	// Arithmetic operators
	TokenPlus  // +
	TokenMinus // -
	TokenMult  // *
	TokenDiv   // /
	TokenMod   // %

	// Comparison operators
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	// Logical operators
	TokenNot // !
	TokenAnd // &&
	TokenOr  // ||
	TokenIn  // in
)

// String returns a string representation of the token type.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "(eof)"
	case TokenError:
		return "(error)"
	case TokenInt:
		return "(int)"
	case TokenUInt:
		return "(uint)"
	case TokenDouble:
		return "(double)"
	case TokenString:
		return "(string)"
	case TokenBytes:
		return "(bytes)"
	case TokenBoolean:
		return "(boolean)"
	case TokenNull:
		return "(null)"
	case TokenName:
		return "(name)"
	case TokenBracketOpen:
		return "["
	case TokenBracketClose:
		return "]"
	case TokenBraceOpen:
		return "{"
	case TokenBraceClose:
		return "}"
	case TokenParenOpen:
		return "("
	case TokenParenClose:
		return ")"
	case TokenDot:
		return "."
	case TokenComma:
		return ","
	case TokenColon:
		return ":"
	case TokenCondition:
		return "?"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenMult:
		return "*"
	case TokenDiv:
		return "/"
	case TokenMod:
		return "%"
	case TokenEqual:
		return "=="
	case TokenNotEqual:
		return "!="
	case TokenLess:
		return "<"
	case TokenLessEqual:
		return "<="
	case TokenGreater:
		return ">"
	case TokenGreaterEqual:
		return ">="
	case TokenNot:
		return "!"
	case TokenAnd:
		return "&&"
	case TokenOr:
		return "||"
	case TokenIn:
		return "in"
	default:
		return "(unknown)"
	}
}

// Token represents a lexical token in a CEL expression.
type Token struct {
	Type     TokenType // Type of the token
	Value    string    // Literal value of the token (raw source text)
	Position int       // Starting byte offset in the input string
}

// symbols1 maps single-character symbols to token types.
var symbols1 = [...]TokenType{
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'{': TokenBraceOpen,
	'}': TokenBraceClose,
	'(': TokenParenOpen,
	')': TokenParenClose,
	'.': TokenDot,
	',': TokenComma,
	':': TokenColon,
	'?': TokenCondition,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMult,
	'/': TokenDiv,
	'%': TokenMod,
	'<': TokenLess,
	'>': TokenGreater,
	'!': TokenNot,
}

// runeTokenType pairs a rune with its corresponding token type.
type runeTokenType struct {
	r  rune
	tt TokenType
}

// symbols2 maps two-character symbol sequences to token types.
// The key is the first character of the sequence.
var symbols2 = [...][]runeTokenType{
	'!': {{'=', TokenNotEqual}},
	'=': {{'=', TokenEqual}},
	'<': {{'=', TokenLessEqual}},
	'>': {{'=', TokenGreaterEqual}},
	'&': {{'&', TokenAnd}},
	'|': {{'|', TokenOr}},
}

const (
	symbol1Count = rune(len(symbols1))
	symbol2Count = rune(len(symbols2))
)

// lookupSymbol1 returns the token type for a single-character symbol.
// Returns 0 if the rune is not a valid symbol.
func lookupSymbol1(r rune) TokenType {
	if r < 0 || r >= symbol1Count {
		return 0
	}
	return symbols1[r]
}

// lookupSymbol2 returns possible two-character symbol completions.
// Returns nil if the rune cannot start a two-character symbol.
func lookupSymbol2(r rune) []runeTokenType {
	if r < 0 || r >= symbol2Count {
		return nil
	}
	return symbols2[r]
}

// lookupKeyword returns the token type for a keyword.
// Returns 0 if the string is not a recognized keyword.
func lookupKeyword(s string) TokenType {
	switch s {
	case "in":
		return TokenIn
	case "true", "false":
		return TokenBoolean
	case "null":
		return TokenNull
	default:
		return 0
	}
}

// reserved lists identifiers that may not be used as names.
var reserved = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "let": true,
	"loop": true, "package": true, "namespace": true, "return": true,
	"var": true, "void": true, "while": true,
}

// IsReserved reports whether name is a reserved word.
func IsReserved(name string) bool {
	return reserved[name]
}
