package formula

import (
	"strings"
	"unicode"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenColor
	TokenIdentifier
	TokenReserved
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenComma
	TokenPeriod
	TokenAt
	TokenBacktick
	TokenPlus
	TokenMinus
	TokenAsterisk
	TokenSlash
	TokenEqual
	TokenNotEqual
	TokenLess
	TokenLessEqual
	TokenGreater
	TokenGreaterEqual
	tokenTypeCount
)

var tokenNames = [...]string{
	TokenEOF:          "end of formula",
	TokenNumber:       "number",
	TokenString:       "string",
	TokenColor:        "color",
	TokenIdentifier:   "identifier",
	TokenReserved:     "reserved word",
	TokenLeftParen:    "'('",
	TokenRightParen:   "')'",
	TokenLeftBracket:  "'['",
	TokenRightBracket: "']'",
	TokenComma:        "','",
	TokenPeriod:       "'.'",
	TokenAt:           "'@'",
	TokenBacktick:     "'`'",
	TokenPlus:         "'+'",
	TokenMinus:        "'-'",
	TokenAsterisk:     "'*'",
	TokenSlash:        "'/'",
	TokenEqual:        "'='",
	TokenNotEqual:     "'<>'",
	TokenLess:         "'<'",
	TokenLessEqual:    "'<='",
	TokenGreater:      "'>'",
	TokenGreaterEqual: "'>='",
}

func (t TokenType) String() string {
	if t >= 0 && t < tokenTypeCount {
		return tokenNames[t]
	}
	return "unknown token"
}

// ReservedWords are recognised case-insensitively and always lexed as
// TokenReserved with an upper-case value.
var ReservedWords = map[string]bool{
	"IF":   true,
	"AND":  true,
	"OR":   true,
	"NOT":  true,
	"CASE": true,
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charHash       = '#'
	charLParen     = '('
	charRParen     = ')'
	charLBracket   = '['
	charRBracket   = ']'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charAt         = '@'
	charBacktick   = '`'
	charUnderscore = '_'
)

// hexColorDigits is the number of hex digits in a #AARRGGBB literal
const hexColorDigits = 8

// Token represents a lexical token with position information. Pos and End are
// rune offsets into the formula text.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// Lexer tokenizes formula text
type Lexer struct {
	input  string
	runes  []rune // UTF-8 aware representation
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given formula text
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		runes:  []rune(input),
		tokens: []Token{},
	}
}

// Tokenize lexes text into tokens terminated by a TokenEOF.
func Tokenize(text string) ([]Token, error) {
	return NewLexer(text).Tokenize()
}

// Tokenize tokenizes the entire input. The returned slice always ends with a
// TokenEOF token.
func (l *Lexer) Tokenize() ([]Token, error) {
	l.pos = 0
	l.tokens = l.tokens[:0]
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			return l.tokens, nil
		}
	}
}

func (l *Lexer) nextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos, End: l.pos}, nil
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if l.isDigit(ch) {
		return l.scanNumber(), nil
	}

	if ch == charHash {
		return l.scanColor()
	}

	if l.isAlpha(ch) || ch == charUnderscore {
		return l.scanIdentifier(), nil
	}

	switch ch {
	case charLParen:
		return l.single(TokenLeftParen), nil
	case charRParen:
		return l.single(TokenRightParen), nil
	case charLBracket:
		return l.single(TokenLeftBracket), nil
	case charRBracket:
		return l.single(TokenRightBracket), nil
	case charComma:
		return l.single(TokenComma), nil
	case charPeriod:
		return l.single(TokenPeriod), nil
	case charAt:
		return l.single(TokenAt), nil
	case charBacktick:
		return l.single(TokenBacktick), nil
	case charPlus:
		return l.single(TokenPlus), nil
	case charMinus:
		return l.single(TokenMinus), nil
	case charAsterisk:
		return l.single(TokenAsterisk), nil
	case charSlash:
		return l.single(TokenSlash), nil
	case charEqual:
		return l.single(TokenEqual), nil
	case charLess:
		switch l.peek(1) {
		case charGreater:
			return l.double(TokenNotEqual), nil
		case charEqual:
			return l.double(TokenLessEqual), nil
		}
		return l.single(TokenLess), nil
	case charGreater:
		if l.peek(1) == charEqual {
			return l.double(TokenGreaterEqual), nil
		}
		return l.single(TokenGreater), nil
	}

	return Token{}, NewSyntaxError(startPos, "unexpected character: "+string(ch))
}

func (l *Lexer) single(t TokenType) Token {
	tok := Token{Type: t, Value: string(l.runes[l.pos]), Pos: l.pos, End: l.pos + 1}
	l.pos++
	return tok
}

func (l *Lexer) double(t TokenType) Token {
	tok := Token{Type: t, Value: l.substring(l.pos, l.pos+2), Pos: l.pos, End: l.pos + 2}
	l.pos += 2
	return tok
}

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return unicode.IsLetter(ch)
}

func (l *Lexer) isAlphaNumeric(ch rune) bool {
	return l.isAlpha(ch) || l.isDigit(ch) || ch == charUnderscore
}

func (l *Lexer) isHexDigit(ch rune) bool {
	return l.isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.pos < len(l.runes) && l.isDigit(l.current()) {
		l.pos++
	}

	// a period not followed by a digit belongs to a member access
	if l.current() == charPeriod && l.isDigit(l.peek(1)) {
		l.pos++
		for l.pos < len(l.runes) && l.isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++

		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		if !l.isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for l.pos < len(l.runes) && l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				result.WriteRune(charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: result.String(), Pos: startPos, End: l.pos}, nil
		}
		result.WriteRune(ch)
		l.pos++
	}

	return Token{}, NewSyntaxError(startPos, "unclosed string literal")
}

// scanColor scans a #AARRGGBB literal
func (l *Lexer) scanColor() (Token, error) {
	startPos := l.pos
	l.pos++ // consume '#'
	for l.pos < len(l.runes) && l.isAlphaNumeric(l.current()) {
		if !l.isHexDigit(l.current()) {
			return Token{}, NewSyntaxError(startPos, "invalid hex color: "+l.substring(startPos, l.pos+1))
		}
		l.pos++
	}
	if l.pos-startPos-1 != hexColorDigits {
		return Token{}, NewSyntaxError(startPos, "hex color must have 8 digits: "+l.substring(startPos, l.pos))
	}
	return Token{Type: TokenColor, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}, nil
}

// scanIdentifier scans identifiers and reserved words
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos
	for l.pos < len(l.runes) && l.isAlphaNumeric(l.current()) {
		l.pos++
	}
	value := l.substring(startPos, l.pos)
	if upper := strings.ToUpper(value); ReservedWords[upper] {
		return Token{Type: TokenReserved, Value: upper, Pos: startPos, End: l.pos}
	}
	return Token{Type: TokenIdentifier, Value: value, Pos: startPos, End: l.pos}
}
