package types

// NodeType identifies the type of an AST node.
type NodeType string

// AST node types.
const (
	NodeLiteral NodeType = "literal" // int, uint, double, string, bytes, bool, null
	NodeIdent   NodeType = "ident"   // variable or function name

	// Access
	NodeSelect NodeType = "select" // operand.field, has(operand.field)
	NodeIndex  NodeType = "index"  // operand[index]
	NodeCall   NodeType = "call"   // name(args) or target.name(args)

	// Operators
	NodeUnary     NodeType = "unary"     // !, -
	NodeBinary    NodeType = "binary"    // arithmetic, relations, in, &&, ||
	NodeCondition NodeType = "condition" // ? :

	// Constructors
	NodeList  NodeType = "list"  // [...]
	NodeMap   NodeType = "map"   // {...}
	NodeEntry NodeType = "entry" // key: value inside a map constructor

	// Macros
	NodeComprehension NodeType = "comprehension" // all, exists, exists_one, filter, map
)

// Comprehension macro names.
const (
	MacroAll       = "all"
	MacroExists    = "exists"
	MacroExistsOne = "exists_one"
	MacroFilter    = "filter"
	MacroMap       = "map"
)

// ASTNode represents a node in the Abstract Syntax Tree.
//
// Field usage by node type:
//
//	NodeLiteral        Value
//	NodeIdent          Name
//	NodeSelect         LHS (operand), Name (field), TestOnly (has macro)
//	NodeIndex          LHS (operand), RHS (index)
//	NodeCall           Name, LHS (receiver, nil for global calls), Arguments
//	NodeUnary          Name (operator), LHS
//	NodeBinary         Name (operator), LHS, RHS
//	NodeCondition      LHS (condition), RHS (then), Expressions[0] (else)
//	NodeList           Expressions
//	NodeMap            Expressions (NodeEntry items)
//	NodeEntry          LHS (key), RHS (value)
//	NodeComprehension  Name (macro), IterVar, LHS (range), Arguments (predicate and/or transform)
type ASTNode struct {
	ID       int64
	Type     NodeType
	Value    Value
	Name     string
	Position int

	// Relations
	LHS         *ASTNode
	RHS         *ASTNode
	Arguments   []*ASTNode
	Expressions []*ASTNode

	// Attributes
	IterVar  string
	TestOnly bool
}

// NewASTNode creates a new AST node of the specified type.
// Nodes created this way carry ID 0; prefer NodeArena.Alloc when parsing.
func NewASTNode(nodeType NodeType, position int) *ASTNode {
	return &ASTNode{
		Type:     nodeType,
		Position: position,
	}
}

// arenaChunkSize is the number of ASTNode values pre-allocated per arena chunk.
const arenaChunkSize = 64

// NodeArena is a bump-pointer allocator for ASTNode values.
//
// Nodes are carved out of fixed-size chunks and receive a 1-based ID equal to
// their allocation index, so IDs are dense, monotonically increasing and never
// reused within one arena. The ID doubles as the lookup key for Node.
//
// # Lifetime
//
// The arena MUST stay alive as long as any pointer returned by Alloc is
// reachable. Attaching the arena to the [Program] achieves this.
//
// # Thread safety
//
// NodeArena is NOT safe for concurrent Alloc calls. Each parser owns its own
// arena; once parsing completes the arena is read-only and Node may be called
// from any goroutine.
type NodeArena struct {
	chunks [][]ASTNode
	pos    int // next free index in the last chunk
	count  int64
}

// NewNodeArena allocates an arena pre-warmed with one initial chunk.
func NewNodeArena() *NodeArena {
	return &NodeArena{
		chunks: [][]ASTNode{make([]ASTNode, arenaChunkSize)},
	}
}

// Alloc returns a pointer to a zero-valued ASTNode inside the arena with
// ID, Type and Position set.
func (a *NodeArena) Alloc(nodeType NodeType, position int) *ASTNode {
	if a.pos >= arenaChunkSize {
		a.chunks = append(a.chunks, make([]ASTNode, arenaChunkSize))
		a.pos = 0
	}
	n := &a.chunks[len(a.chunks)-1][a.pos]
	a.pos++
	a.count++
	n.ID = a.count
	n.Type = nodeType
	n.Position = position
	return n
}

// Len returns the number of nodes allocated so far.
func (a *NodeArena) Len() int {
	return int(a.count)
}

// Node returns the node with the given ID, or nil if id is out of range.
func (a *NodeArena) Node(id int64) *ASTNode {
	if id <= 0 || id > a.count {
		return nil
	}
	idx := id - 1
	return &a.chunks[idx/arenaChunkSize][idx%arenaChunkSize]
}

// Walk visits n and its children depth-first in source order. If fn returns
// false the children of that node are skipped.
func Walk(n *ASTNode, fn func(*ASTNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	Walk(n.LHS, fn)
	Walk(n.RHS, fn)
	for _, arg := range n.Arguments {
		Walk(arg, fn)
	}
	for _, e := range n.Expressions {
		Walk(e, fn)
	}
}

// String returns a string representation of the node type.
func (n *ASTNode) String() string {
	switch n.Type {
	case NodeIdent, NodeSelect, NodeCall, NodeUnary, NodeBinary, NodeComprehension:
		return string(n.Type) + "(" + n.Name + ")"
	case NodeLiteral:
		if n.Value != nil {
			return string(n.Type) + "(" + Repr(n.Value) + ")"
		}
	}
	return string(n.Type)
}
