package formula

import (
	"slices"
	"strings"
)

type memoKey struct {
	sym     Symbol
	pos     int
	minPrio int
}

type parseResult struct {
	node *TreeNode
	end  int
	ok   bool
}

// Parser matches a token stream against a Grammar. Alternatives are tried at
// each position and the longest match wins; left-recursive rules then extend
// the match while their priority allows. Results are memoised per symbol,
// position and minimum priority.
type Parser struct {
	grammar  *Grammar
	tokens   []Token
	memo     map[memoKey]parseResult
	furthest int
	expected map[TokenType]bool
}

// NewParser creates a parser over tokens, which must end with TokenEOF.
func NewParser(g *Grammar, tokens []Token) *Parser {
	return &Parser{
		grammar:  g,
		tokens:   tokens,
		memo:     map[memoKey]parseResult{},
		expected: map[TokenType]bool{},
	}
}

// ParseFormula lexes and parses formula text with the default grammar.
func ParseFormula(text string) (Node, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse parses a token stream with the default grammar.
func Parse(tokens []Token) (Node, error) {
	return NewParser(defaultGrammar, tokens).Parse()
}

// ParseTree matches the whole token stream as a Formula and returns the
// token tree.
func (p *Parser) ParseTree() (*TreeNode, error) {
	if len(p.tokens) == 0 || p.tokens[len(p.tokens)-1].Type != TokenEOF {
		return nil, NewSyntaxError(0, "token stream is not terminated")
	}
	res := p.parse(SymFormula, 0, 0)
	if !res.ok || res.end != len(p.tokens)-1 {
		return nil, p.syntaxError()
	}
	return res.node, nil
}

// Parse matches the token stream and builds the AST.
func (p *Parser) Parse() (Node, error) {
	tree, err := p.ParseTree()
	if err != nil {
		return nil, err
	}
	return tree.Build()
}

func (p *Parser) parse(sym Symbol, pos, minPrio int) parseResult {
	if sym.IsTerminal() {
		return p.matchToken(TokenType(sym), pos)
	}

	key := memoKey{sym, pos, minPrio}
	if res, ok := p.memo[key]; ok {
		return res
	}
	// a re-entrant request for the same key fails instead of looping
	p.memo[key] = parseResult{}

	var best parseResult
	var bestRule *Rule
	for _, r := range p.grammar.seeds[sym] {
		children, end, ok := p.matchPattern(r, r.Pattern, pos, nil)
		if !ok {
			continue
		}
		if better(end, r, best, bestRule) {
			best = parseResult{node: newTree(r, children), end: end, ok: true}
			bestRule = r
		}
	}

	for best.ok {
		var ext parseResult
		var extRule *Rule
		for _, r := range p.grammar.extensions[sym] {
			if r.Priority < minPrio {
				continue
			}
			children, end, ok := p.matchPattern(r, r.Pattern[1:], best.end, best.node)
			if !ok {
				continue
			}
			if better(end, r, ext, extRule) {
				ext = parseResult{node: newTree(r, children), end: end, ok: true}
				extRule = r
			}
		}
		if !ext.ok {
			break
		}
		best = ext
	}

	p.memo[key] = best
	return best
}

// better reports whether a match of r ending at end beats the current one:
// longer first, then higher priority, then earlier declaration.
func better(end int, r *Rule, cur parseResult, curRule *Rule) bool {
	if !cur.ok || end > cur.end {
		return true
	}
	return end == cur.end && r.Priority > curRule.Priority
}

// matchPattern matches pattern from pos. head is the already parsed
// left operand of a left-recursive rule.
func (p *Parser) matchPattern(r *Rule, pattern []Symbol, pos int, head *TreeNode) ([]*TreeNode, int, bool) {
	children := make([]*TreeNode, 0, len(r.Pattern))
	if head != nil {
		children = append(children, head)
	}
	for i, sym := range pattern {
		res := p.parse(sym, pos, operandPriority(r, sym, i == len(pattern)-1))
		if !res.ok {
			return nil, pos, false
		}
		children = append(children, res.node)
		pos = res.end
	}
	if r.Accept != nil && !r.Accept(children) {
		return nil, pos, false
	}
	return children, pos, true
}

// operandPriority is the minimum priority for a nonterminal of r's pattern.
// Only a trailing operand of the rule's own target is constrained: at
// priority+1 for left-associative binary rules, at priority for right
// associative and prefix rules.
func operandPriority(r *Rule, sym Symbol, last bool) int {
	if !last || sym != r.Target {
		return 0
	}
	if r.leftRecursive() && !r.RightAssoc {
		return r.Priority + 1
	}
	return r.Priority
}

func (p *Parser) matchToken(t TokenType, pos int) parseResult {
	if pos < len(p.tokens) && p.tokens[pos].Type == t {
		tok := p.tokens[pos]
		return parseResult{
			node: &TreeNode{Symbol: T(t), Token: tok, Start: tok.Pos, End: tok.End},
			end:  pos + 1,
			ok:   true,
		}
	}
	if pos > p.furthest {
		p.furthest = pos
		clear(p.expected)
	}
	if pos == p.furthest {
		p.expected[t] = true
	}
	return parseResult{}
}

func newTree(r *Rule, children []*TreeNode) *TreeNode {
	return &TreeNode{
		Symbol:   r.Target,
		Rule:     r,
		Children: children,
		Start:    children[0].Start,
		End:      children[len(children)-1].End,
	}
}

func (p *Parser) syntaxError() *Error {
	idx := min(p.furthest, len(p.tokens)-1)
	tok := p.tokens[idx]

	var msg strings.Builder
	msg.WriteString("unexpected ")
	switch tok.Type {
	case TokenEOF:
		msg.WriteString(TokenEOF.String())
	case TokenString:
		msg.WriteString("string " + QuoteString(tok.Value))
	default:
		msg.WriteString(tok.Type.String() + " " + tok.Value)
	}

	if len(p.expected) > 0 {
		expected := make([]TokenType, 0, len(p.expected))
		for t := range p.expected {
			expected = append(expected, t)
		}
		slices.Sort(expected)
		msg.WriteString(", expected ")
		for i, t := range expected {
			if i > 0 {
				msg.WriteString(" or ")
			}
			msg.WriteString(t.String())
		}
	}
	return NewSyntaxError(tok.Pos, msg.String())
}
