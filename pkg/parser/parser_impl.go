package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sandrolain/gocel/pkg/types"
)

// Parser implements a recursive descent parser for CEL expressions.
// It uses Pratt's "Top Down Operator Precedence" algorithm to handle
// operator precedence correctly.
//
// Nodes are allocated from an arena after their children, so every node
// receives a larger ID than any node beneath it.
type Parser struct {
	lexer   *Lexer
	current Token
	prev    Token
	arena   *types.NodeArena
	opts    CompileOptions
	depth   int
}

// NewParser creates a new parser for the given input string.
func NewParser(input string, opts ...CompileOption) *Parser {
	options := defaultCompileOptions()
	for _, opt := range opts {
		opt(&options)
	}

	p := &Parser{
		lexer: NewLexer(input),
		arena: types.NewNodeArena(),
		opts:  options,
	}

	// Read the first token
	p.advance()

	return p
}

// Parse parses the entire expression and returns the compiled Program.
// Parsing stops at the first syntax error.
func (p *Parser) Parse() (*types.Program, error) {
	input := p.lexer.input
	if p.opts.MaxLength > 0 && len(input) > p.opts.MaxLength {
		return nil, p.locate(types.NewError(types.ErrExpressionTooLong,
			fmt.Sprintf("expression exceeds %d bytes", p.opts.MaxLength), 0))
	}

	if p.current.Type == TokenEOF {
		return nil, p.error(types.ErrEmptyExpression, "empty expression")
	}

	node, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenEOF {
		return nil, p.unexpected()
	}

	return types.NewProgram(node, input, p.arena), nil
}

// Operator precedence table (binding power)
// Higher values bind more tightly
var precedence = map[TokenType]int{
	TokenCondition:    10, // ? :
	TokenOr:           20, // ||
	TokenAnd:          30, // &&
	TokenEqual:        40, // ==
	TokenNotEqual:     40, // !=
	TokenLess:         40, // <
	TokenLessEqual:    40, // <=
	TokenGreater:      40, // >
	TokenGreaterEqual: 40, // >=
	TokenIn:           40, // in
	TokenPlus:         50, // +
	TokenMinus:        50, // -
	TokenMult:         60, // *
	TokenDiv:          60, // /
	TokenMod:          60, // %
	TokenDot:          80, // .
	TokenBracketOpen:  80, // [
	TokenParenOpen:    80, // (
}

// unaryPrecedence binds ! and unary - tighter than any binary operator but
// looser than member access.
const unaryPrecedence = 70

// getPrecedence returns the precedence of a token type.
func (p *Parser) getPrecedence(tt TokenType) int {
	if prec, ok := precedence[tt]; ok {
		return prec
	}
	return 0
}

// advance moves to the next token.
func (p *Parser) advance() {
	p.prev = p.current
	p.current = p.lexer.Next()
}

// expect checks if the current token matches the expected type and advances.
func (p *Parser) expect(tt TokenType) error {
	if p.current.Type != tt {
		switch p.current.Type {
		case TokenError:
			return p.lexError()
		case TokenEOF:
			return p.error(types.ErrUnexpectedEnd, fmt.Sprintf("expected %s but reached end of expression", tt))
		}
		return p.error(types.ErrExpectedToken, fmt.Sprintf("expected %s but got %s", tt, p.describe(p.current)))
	}
	p.advance()
	return nil
}

// error creates a parser error located at the current token.
func (p *Parser) error(code types.ErrorCode, message string) error {
	return p.errorAt(code, message, p.current)
}

func (p *Parser) errorAt(code types.ErrorCode, message string, tok Token) error {
	err := &types.Error{
		Code:     code,
		Message:  message,
		Position: tok.Position,
		Token:    tok.Value,
	}
	return p.locate(err)
}

// locate fills in the 1-based line and column of err.
func (p *Parser) locate(err *types.Error) error {
	line, col := types.Location(p.lexer.input, err.Position)
	return err.WithLocation(line, col)
}

// lexError returns the error recorded by the lexer.
func (p *Parser) lexError() error {
	var e *types.Error
	if errors.As(p.lexer.Error(), &e) {
		return p.locate(e)
	}
	return p.error(types.ErrSyntaxError, "invalid token")
}

// unexpected reports the current token as out of place.
func (p *Parser) unexpected() error {
	switch p.current.Type {
	case TokenError:
		return p.lexError()
	case TokenEOF:
		return p.error(types.ErrUnexpectedEnd, "unexpected end of expression")
	}
	return p.error(types.ErrSyntaxError, fmt.Sprintf("unexpected token %s", p.describe(p.current)))
}

func (p *Parser) describe(t Token) string {
	if t.Value != "" {
		return strconv.Quote(t.Value)
	}
	return t.Type.String()
}

func (p *Parser) alloc(nodeType types.NodeType, position int) *types.ASTNode {
	return p.arena.Alloc(nodeType, position)
}

// parseExpression parses an expression with operator precedence.
// rbp is the right binding power (minimum precedence).
func (p *Parser) parseExpression(rbp int) (*types.ASTNode, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.opts.MaxDepth > 0 && p.depth > p.opts.MaxDepth {
		return nil, p.error(types.ErrNestingTooDeep,
			fmt.Sprintf("expression nesting exceeds maximum depth %d", p.opts.MaxDepth))
	}

	// Parse prefix expression (nud - null denotation)
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	// Parse infix expressions while precedence allows (led - left denotation)
	for rbp < p.getPrecedence(p.current.Type) {
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// parsePrefix parses a prefix expression (nud - null denotation).
func (p *Parser) parsePrefix() (*types.ASTNode, error) {
	token := p.current

	switch token.Type {
	case TokenInt:
		return p.parseInt(false)
	case TokenUInt:
		return p.parseUInt()
	case TokenDouble:
		return p.parseDouble(false)
	case TokenString, TokenBytes:
		return p.parseString()
	case TokenBoolean:
		p.advance()
		node := p.alloc(types.NodeLiteral, token.Position)
		node.Value = types.Bool(token.Value == "true")
		return node, nil
	case TokenNull:
		p.advance()
		node := p.alloc(types.NodeLiteral, token.Position)
		node.Value = types.NullValue
		return node, nil
	case TokenName:
		return p.parseName()
	case TokenDot:
		// Leading dot: root-scoped identifier (.name)
		p.advance()
		if p.current.Type != TokenName {
			return nil, p.unexpected()
		}
		return p.parseName()
	case TokenMinus:
		return p.parseUnaryMinus()
	case TokenNot:
		return p.parseUnary()
	case TokenParenOpen:
		return p.parseGrouping()
	case TokenBracketOpen:
		return p.parseListConstructor()
	case TokenBraceOpen:
		return p.parseMapConstructor()
	default:
		return nil, p.unexpected()
	}
}

// parseInfix parses an infix expression (led - left denotation).
func (p *Parser) parseInfix(left *types.ASTNode) (*types.ASTNode, error) {
	switch p.current.Type {
	case TokenCondition:
		return p.parseConditional(left)
	case TokenDot:
		return p.parseMember(left)
	case TokenBracketOpen:
		return p.parseIndex(left)
	case TokenParenOpen:
		return p.parseGlobalCall(left)
	default:
		return p.parseBinaryOp(left)
	}
}

func (p *Parser) parseInt(negative bool) (*types.ASTNode, error) {
	token := p.current
	v, err := parseIntLiteral(token.Value, negative)
	if err != nil {
		return nil, p.error(types.ErrNumberOutOfRange, fmt.Sprintf("integer literal %s out of range", token.Value))
	}
	p.advance()
	node := p.alloc(types.NodeLiteral, token.Position)
	node.Value = types.Int(v)
	return node, nil
}

func (p *Parser) parseUInt() (*types.ASTNode, error) {
	token := p.current
	v, err := parseUintLiteral(token.Value)
	if err != nil {
		return nil, p.error(types.ErrNumberOutOfRange, fmt.Sprintf("unsigned integer literal %s out of range", token.Value))
	}
	p.advance()
	node := p.alloc(types.NodeLiteral, token.Position)
	node.Value = types.UInt(v)
	return node, nil
}

func (p *Parser) parseDouble(negative bool) (*types.ASTNode, error) {
	token := p.current
	v, err := strconv.ParseFloat(token.Value, 64)
	if err != nil {
		return nil, p.error(types.ErrNumberOutOfRange, fmt.Sprintf("double literal %s out of range", token.Value))
	}
	if negative {
		v = -v
	}
	p.advance()
	node := p.alloc(types.NodeLiteral, token.Position)
	node.Value = types.Double(v)
	return node, nil
}

func (p *Parser) parseString() (*types.ASTNode, error) {
	token := p.current
	s, err := unquote(token.Value)
	if err != nil {
		return nil, p.error(types.ErrUnsupportedEscape, err.Error())
	}
	p.advance()
	node := p.alloc(types.NodeLiteral, token.Position)
	if token.Type == TokenBytes {
		node.Value = types.Bytes(s)
	} else {
		node.Value = types.String(s)
	}
	return node, nil
}

func (p *Parser) parseName() (*types.ASTNode, error) {
	token := p.current
	if IsReserved(token.Value) {
		return nil, p.error(types.ErrReservedIdentifier, fmt.Sprintf("reserved identifier %q", token.Value))
	}
	p.advance()
	node := p.alloc(types.NodeIdent, token.Position)
	node.Name = token.Value
	return node, nil
}

// parseUnaryMinus parses -expr. A minus directly in front of a numeric
// literal is folded into the literal so that the smallest int64 can be written.
func (p *Parser) parseUnaryMinus() (*types.ASTNode, error) {
	token := p.current
	p.advance()

	switch p.current.Type {
	case TokenInt:
		lit, err := p.parseInt(true)
		if err != nil {
			return nil, err
		}
		lit.Position = token.Position
		return lit, nil
	case TokenDouble:
		lit, err := p.parseDouble(true)
		if err != nil {
			return nil, err
		}
		lit.Position = token.Position
		return lit, nil
	}

	operand, err := p.parseExpression(unaryPrecedence)
	if err != nil {
		return nil, err
	}
	node := p.alloc(types.NodeUnary, token.Position)
	node.Name = "-"
	node.LHS = operand
	return node, nil
}

// parseUnary parses !expr.
func (p *Parser) parseUnary() (*types.ASTNode, error) {
	token := p.current
	p.advance()
	operand, err := p.parseExpression(unaryPrecedence)
	if err != nil {
		return nil, err
	}
	node := p.alloc(types.NodeUnary, token.Position)
	node.Name = "!"
	node.LHS = operand
	return node, nil
}

// parseGrouping parses ( expr ).
func (p *Parser) parseGrouping() (*types.ASTNode, error) {
	p.advance()
	inner, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenParenClose); err != nil {
		return nil, err
	}
	return inner, nil
}

// parseListConstructor parses [a, b, c]. A trailing comma is allowed.
func (p *Parser) parseListConstructor() (*types.ASTNode, error) {
	token := p.current
	p.advance()

	elems, err := p.parseExpressionList(TokenBracketClose)
	if err != nil {
		return nil, err
	}
	node := p.alloc(types.NodeList, token.Position)
	node.Expressions = elems
	return node, nil
}

// parseMapConstructor parses {k: v, ...}. A trailing comma is allowed.
func (p *Parser) parseMapConstructor() (*types.ASTNode, error) {
	token := p.current
	p.advance()

	var entries []*types.ASTNode
	for p.current.Type != TokenBraceClose {
		keyToken := p.current
		key, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		value, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		entry := p.alloc(types.NodeEntry, keyToken.Position)
		entry.LHS = key
		entry.RHS = value
		entries = append(entries, entry)

		if p.current.Type != TokenComma {
			break
		}
		p.advance()
	}
	if err := p.expect(TokenBraceClose); err != nil {
		return nil, err
	}

	node := p.alloc(types.NodeMap, token.Position)
	node.Expressions = entries
	return node, nil
}

// parseExpressionList parses comma separated expressions up to and
// including the closing token. A trailing comma is allowed.
func (p *Parser) parseExpressionList(closing TokenType) ([]*types.ASTNode, error) {
	var items []*types.ASTNode
	for p.current.Type != closing {
		item, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.current.Type != TokenComma {
			break
		}
		p.advance()
	}
	if err := p.expect(closing); err != nil {
		return nil, err
	}
	return items, nil
}

// parseBinaryOp parses left-associative binary operators.
func (p *Parser) parseBinaryOp(left *types.ASTNode) (*types.ASTNode, error) {
	token := p.current
	prec := p.getPrecedence(token.Type)
	p.advance()

	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}

	node := p.alloc(types.NodeBinary, token.Position)
	node.Name = token.Type.String()
	node.LHS = left
	node.RHS = right
	return node, nil
}

// parseConditional parses cond ? then : else. The else branch is parsed
// with the lowest binding power, making the operator right-associative.
func (p *Parser) parseConditional(condition *types.ASTNode) (*types.ASTNode, error) {
	token := p.current
	p.advance()

	then, err := p.parseExpression(precedence[TokenCondition])
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	otherwise, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	node := p.alloc(types.NodeCondition, token.Position)
	node.LHS = condition
	node.RHS = then
	node.Expressions = []*types.ASTNode{otherwise}
	return node, nil
}

// parseIndex parses operand[index].
func (p *Parser) parseIndex(operand *types.ASTNode) (*types.ASTNode, error) {
	token := p.current
	p.advance()

	index, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenBracketClose); err != nil {
		return nil, err
	}

	node := p.alloc(types.NodeIndex, token.Position)
	node.LHS = operand
	node.RHS = index
	return node, nil
}

// parseMember parses operand.field and operand.method(args), expanding
// comprehension macros.
func (p *Parser) parseMember(operand *types.ASTNode) (*types.ASTNode, error) {
	p.advance()
	nameToken := p.current
	if nameToken.Type != TokenName {
		return nil, p.unexpected()
	}
	p.advance()

	if p.current.Type != TokenParenOpen {
		node := p.alloc(types.NodeSelect, nameToken.Position)
		node.LHS = operand
		node.Name = nameToken.Value
		return node, nil
	}

	p.advance()
	args, err := p.parseExpressionList(TokenParenClose)
	if err != nil {
		return nil, err
	}

	if macro, ok := expandMacro(p, operand, nameToken, args); ok {
		return macro.node, macro.err
	}

	node := p.alloc(types.NodeCall, nameToken.Position)
	node.Name = nameToken.Value
	node.LHS = operand
	node.Arguments = args
	return node, nil
}

// parseGlobalCall parses name(args). Only plain identifiers can be called.
func (p *Parser) parseGlobalCall(callee *types.ASTNode) (*types.ASTNode, error) {
	if callee.Type != types.NodeIdent {
		return nil, p.error(types.ErrSyntaxError, "expression is not callable")
	}
	p.advance()

	args, err := p.parseExpressionList(TokenParenClose)
	if err != nil {
		return nil, err
	}

	if callee.Name == "has" {
		return p.expandHas(callee, args)
	}

	node := p.alloc(types.NodeCall, callee.Position)
	node.Name = callee.Name
	node.Arguments = args
	return node, nil
}
