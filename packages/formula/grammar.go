package formula

import (
	"fmt"
	"strconv"
)

// Symbol is a terminal (a TokenType) or a nonterminal of the grammar.
type Symbol int

const (
	SymExpr Symbol = Symbol(tokenTypeCount) + iota
	SymArgs
	SymProp
	SymUnit
	SymDataSource
	SymFormula
)

var symbolNames = map[Symbol]string{
	SymExpr:       "Expr",
	SymArgs:       "Args",
	SymProp:       "Prop",
	SymUnit:       "Unit",
	SymDataSource: "DataSource",
	SymFormula:    "Formula",
}

// T converts a token type into a terminal symbol
func T(t TokenType) Symbol { return Symbol(t) }

func (s Symbol) IsTerminal() bool { return s < Symbol(tokenTypeCount) }

func (s Symbol) String() string {
	if s.IsTerminal() {
		return TokenType(s).String()
	}
	return symbolNames[s]
}

// operator priorities; a higher priority binds tighter
const (
	PrioArgs     = 0
	PrioCompare  = 1
	PrioAdditive = 2
	PrioMultiply = 3
	PrioUnary    = 5
	PrioMember   = 6
	PrioPrimary  = 10
)

// Rule is one production of the grammar. A rule whose pattern starts with
// its own target is left-recursive and extends an already parsed target.
type Rule struct {
	Target     Symbol
	Priority   int
	RightAssoc bool
	Pattern    []Symbol
	// Accept may reject a structurally matched pattern
	Accept func(children []*TreeNode) bool
	Build  func(t *TreeNode) (Node, error)
}

func (r *Rule) leftRecursive() bool {
	return len(r.Pattern) > 1 && r.Pattern[0] == r.Target
}

func (r *Rule) String() string {
	s := r.Target.String() + " <-"
	for _, p := range r.Pattern {
		s += " " + p.String()
	}
	return s
}

// TreeNode is a node of the token tree produced by matching rules. Start and
// End are rune offsets into the formula text.
type TreeNode struct {
	Symbol   Symbol
	Rule     *Rule // nil for terminals
	Token    Token
	Children []*TreeNode
	Start    int
	End      int
}

// Build converts the token tree into an AST with the rule's builder
func (t *TreeNode) Build() (Node, error) {
	if t.Rule == nil || t.Rule.Build == nil {
		return nil, NewSyntaxError(t.Start, "unexpected "+t.Symbol.String())
	}
	return t.Rule.Build(t)
}

func (t *TreeNode) position() NodePosition {
	return NodePosition{Start: t.Start, End: t.End}
}

// Grammar is a rule table indexed by target nonterminal
type Grammar struct {
	rules      []*Rule
	seeds      map[Symbol][]*Rule
	extensions map[Symbol][]*Rule
}

// NewGrammar indexes rules. Declaration order breaks ties between
// alternatives of equal length and priority.
func NewGrammar(rules []*Rule) *Grammar {
	g := &Grammar{
		rules:      rules,
		seeds:      map[Symbol][]*Rule{},
		extensions: map[Symbol][]*Rule{},
	}
	for _, r := range rules {
		if r.leftRecursive() {
			g.extensions[r.Target] = append(g.extensions[r.Target], r)
		} else {
			g.seeds[r.Target] = append(g.seeds[r.Target], r)
		}
	}
	return g
}

// Rules returns the rule table in declaration order
func (g *Grammar) Rules() []*Rule { return g.rules }

var defaultGrammar = NewGrammar(formulaRules())

func rule(target Symbol, prio int, build func(*TreeNode) (Node, error), pattern ...Symbol) *Rule {
	return &Rule{Target: target, Priority: prio, Pattern: pattern, Build: build}
}

func formulaRules() []*Rule {
	binary := func(op BinaryOp, t TokenType, prio int) *Rule {
		return rule(SymExpr, prio, buildBinary(op), SymExpr, T(t), SymExpr)
	}
	unit := rule(SymUnit, PrioPrimary, buildUnit, T(TokenNumber), T(TokenIdentifier))
	unit.Accept = acceptUnit
	dataSourceUnit := rule(SymDataSource, PrioPrimary, buildDataSource, T(TokenAt), SymProp, T(TokenComma), T(TokenIdentifier))
	dataSourceUnit.Accept = func(c []*TreeNode) bool { return IsUnitSuffix(c[3].Token.Value) }

	return []*Rule{
		rule(SymFormula, PrioPrimary, buildFirst, SymExpr),
		rule(SymFormula, PrioPrimary, buildFirst, SymDataSource),

		rule(SymDataSource, PrioPrimary, buildDataSource, T(TokenAt), SymProp),
		dataSourceUnit,

		rule(SymExpr, PrioPrimary, buildNumber, T(TokenNumber)),
		rule(SymExpr, PrioPrimary, buildString, T(TokenString)),
		rule(SymExpr, PrioPrimary, buildColor, T(TokenColor)),
		rule(SymExpr, PrioPrimary, buildFirst, SymUnit),
		unit,
		rule(SymExpr, PrioPrimary, buildFirst, SymProp),
		rule(SymExpr, PrioPrimary, buildCall, SymProp, T(TokenLeftParen), SymArgs, T(TokenRightParen)),
		rule(SymExpr, PrioPrimary, buildCall, SymProp, T(TokenLeftParen), T(TokenRightParen)),
		rule(SymExpr, PrioPrimary, buildGroup, T(TokenLeftParen), SymExpr, T(TokenRightParen)),
		rule(SymExpr, PrioPrimary, buildReserved, T(TokenReserved), T(TokenLeftParen), SymArgs, T(TokenRightParen)),
		rule(SymExpr, PrioPrimary, buildMacro, T(TokenBacktick), SymExpr, T(TokenBacktick)),
		rule(SymExpr, PrioUnary, buildUnary(UnaryOpPlus), T(TokenPlus), SymExpr),
		rule(SymExpr, PrioUnary, buildUnary(UnaryOpMinus), T(TokenMinus), SymExpr),

		rule(SymExpr, PrioMember, buildMember, SymExpr, T(TokenPeriod), SymProp),
		rule(SymExpr, PrioMember, buildMemberCall, SymExpr, T(TokenPeriod), SymProp, T(TokenLeftParen), SymArgs, T(TokenRightParen)),
		rule(SymExpr, PrioMember, buildMemberCall, SymExpr, T(TokenPeriod), SymProp, T(TokenLeftParen), T(TokenRightParen)),
		binary(BinOpMultiply, TokenAsterisk, PrioMultiply),
		binary(BinOpDivide, TokenSlash, PrioMultiply),
		binary(BinOpAdd, TokenPlus, PrioAdditive),
		binary(BinOpSubtract, TokenMinus, PrioAdditive),
		binary(BinOpEqual, TokenEqual, PrioCompare),
		binary(BinOpNotEqual, TokenNotEqual, PrioCompare),
		binary(BinOpLess, TokenLess, PrioCompare),
		binary(BinOpLessEqual, TokenLessEqual, PrioCompare),
		binary(BinOpGreater, TokenGreater, PrioCompare),
		binary(BinOpGreaterEqual, TokenGreaterEqual, PrioCompare),

		rule(SymArgs, PrioArgs, nil, SymExpr),
		rule(SymArgs, PrioArgs, nil, SymArgs, T(TokenComma), SymExpr),

		rule(SymProp, PrioMember, buildProp, T(TokenIdentifier)),
		rule(SymProp, PrioMember, buildProp, T(TokenIdentifier), T(TokenLeftBracket), SymArgs, T(TokenRightBracket)),
		rule(SymProp, PrioMember, buildProp, SymProp, T(TokenPeriod), T(TokenIdentifier)),
		rule(SymProp, PrioMember, buildProp, SymProp, T(TokenPeriod), T(TokenIdentifier), T(TokenLeftBracket), SymArgs, T(TokenRightBracket)),
	}
}

// acceptUnit joins a number and an identifier only when they touch and the
// identifier is a length or angle suffix.
func acceptUnit(c []*TreeNode) bool {
	num, ident := c[0].Token, c[1].Token
	return num.End == ident.Pos && IsUnitSuffix(ident.Value)
}

func buildFirst(t *TreeNode) (Node, error) { return t.Children[0].Build() }

func buildNumber(t *TreeNode) (Node, error) {
	tok := t.Children[0].Token
	v, err := ParseNumber(tok.Value)
	if err != nil {
		return nil, atPosition(err, t.position())
	}
	return &ImmediateNode{Value: v, Text: tok.Value, Position: t.position()}, nil
}

func buildString(t *TreeNode) (Node, error) {
	s := t.Children[0].Token.Value
	return &ImmediateNode{Value: StringValue(s), Text: QuoteString(s), Position: t.position()}, nil
}

func buildColor(t *TreeNode) (Node, error) {
	tok := t.Children[0].Token
	c, err := ParseColor(tok.Value)
	if err != nil {
		return nil, atPosition(err, t.position())
	}
	return &ImmediateNode{Value: ColorValue(c), Text: tok.Value, Position: t.position()}, nil
}

func buildUnit(t *TreeNode) (Node, error) {
	num, suffix := t.Children[0].Token, t.Children[1].Token
	f, err := strconv.ParseFloat(num.Value, 64)
	if err != nil {
		return nil, NewSyntaxError(num.Pos, "invalid number: "+num.Value)
	}
	v, ok := UnitValue(f, suffix.Value)
	if !ok {
		return nil, NewSyntaxError(suffix.Pos, "unknown unit: "+suffix.Value)
	}
	return &ImmediateNode{Value: v, Text: num.Value + suffix.Value, Position: t.position()}, nil
}

func buildGroup(t *TreeNode) (Node, error) {
	inner, err := t.Children[1].Build()
	if err != nil {
		return nil, err
	}
	return &GroupNode{Inner: inner, Position: t.position()}, nil
}

func buildUnary(op UnaryOp) func(*TreeNode) (Node, error) {
	return func(t *TreeNode) (Node, error) {
		operand, err := t.Children[1].Build()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Op: op, Operand: operand, Position: t.position()}, nil
	}
}

func buildBinary(op BinaryOp) func(*TreeNode) (Node, error) {
	return func(t *TreeNode) (Node, error) {
		left, err := t.Children[0].Build()
		if err != nil {
			return nil, err
		}
		right, err := t.Children[2].Build()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: op, Left: left, Right: right, Position: t.position()}, nil
	}
}

// buildArgs flattens a left-recursive Args tree
func buildArgs(t *TreeNode) ([]Node, error) {
	if t.Symbol != SymArgs {
		return nil, NewSyntaxError(t.Start, "expected arguments")
	}
	if len(t.Children) == 1 {
		n, err := t.Children[0].Build()
		if err != nil {
			return nil, err
		}
		return []Node{n}, nil
	}
	head, err := buildArgs(t.Children[0])
	if err != nil {
		return nil, err
	}
	last, err := t.Children[2].Build()
	if err != nil {
		return nil, err
	}
	return append(head, last), nil
}

// optionalArgs builds the Args child at i, or none for an empty call
func optionalArgs(t *TreeNode, i int) ([]Node, error) {
	if i < len(t.Children) && t.Children[i].Symbol == SymArgs {
		return buildArgs(t.Children[i])
	}
	return []Node{}, nil
}

// buildPropNode builds a Prop tree as a chain of PropertyNodes, innermost
// first.
func buildPropNode(t *TreeNode) (*PropertyNode, error) {
	c := t.Children
	n := &PropertyNode{Position: t.position()}
	var nameAt int
	if c[0].Symbol == SymProp {
		target, err := buildPropNode(c[0])
		if err != nil {
			return nil, err
		}
		n.Target = target
		nameAt = 2
	}
	n.Name = c[nameAt].Token.Value
	if len(c) > nameAt+1 {
		args, err := buildArgs(c[nameAt+2])
		if err != nil {
			return nil, err
		}
		n.Args, n.Indexed = args, true
	}
	return n, nil
}

func buildProp(t *TreeNode) (Node, error) { return buildPropNode(t) }

func buildCall(t *TreeNode) (Node, error) {
	prop, err := buildPropNode(t.Children[0])
	if err != nil {
		return nil, err
	}
	args, err := optionalArgs(t, 2)
	if err != nil {
		return nil, err
	}
	return callOf(prop, args, t)
}

func callOf(prop *PropertyNode, args []Node, t *TreeNode) (Node, error) {
	if prop.Indexed {
		return nil, NewSyntaxError(prop.Position.End, fmt.Sprintf("cannot call indexed property %s", prop.Name))
	}
	return &MethodNode{Target: prop.Target, Name: prop.Name, Args: args, Position: t.position()}, nil
}

// graft makes expr the target of the innermost node of a property chain
func graft(expr Node, prop *PropertyNode) {
	start := expr.GetPosition().Start
	for n := prop; ; {
		n.Position.Start = start
		inner, ok := n.Target.(*PropertyNode)
		if n.Target == nil || !ok {
			n.Target = expr
			return
		}
		n = inner
	}
}

func buildMember(t *TreeNode) (Node, error) {
	expr, err := t.Children[0].Build()
	if err != nil {
		return nil, err
	}
	prop, err := buildPropNode(t.Children[2])
	if err != nil {
		return nil, err
	}
	graft(expr, prop)
	return prop, nil
}

func buildMemberCall(t *TreeNode) (Node, error) {
	expr, err := t.Children[0].Build()
	if err != nil {
		return nil, err
	}
	prop, err := buildPropNode(t.Children[2])
	if err != nil {
		return nil, err
	}
	graft(expr, prop)
	args, err := optionalArgs(t, 4)
	if err != nil {
		return nil, err
	}
	return callOf(prop, args, t)
}

func buildReserved(t *TreeNode) (Node, error) {
	args, err := buildArgs(t.Children[2])
	if err != nil {
		return nil, err
	}
	return &ReservedCallNode{Word: t.Children[0].Token.Value, Args: args, Position: t.position()}, nil
}

func buildMacro(t *TreeNode) (Node, error) {
	inner, err := t.Children[1].Build()
	if err != nil {
		return nil, err
	}
	return &ImmediateEvalNode{Inner: inner, Position: t.position()}, nil
}

func buildDataSource(t *TreeNode) (Node, error) {
	prop, err := buildPropNode(t.Children[1])
	if err != nil {
		return nil, err
	}
	n := &DataSourceNode{Property: prop, Position: t.position()}
	if len(t.Children) == 4 {
		n.Unit = t.Children[3].Token.Value
	}
	return n, nil
}
