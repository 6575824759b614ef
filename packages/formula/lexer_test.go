package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexerTokenTypes(t *testing.T) {
	tests := []struct {
		formula string
		want    []TokenType
	}{
		{"1+2", []TokenType{TokenNumber, TokenPlus, TokenNumber, TokenEOF}},
		{"a.b[1]", []TokenType{TokenIdentifier, TokenPeriod, TokenIdentifier, TokenLeftBracket, TokenNumber, TokenRightBracket, TokenEOF}},
		{"@Width,cm", []TokenType{TokenAt, TokenIdentifier, TokenComma, TokenIdentifier, TokenEOF}},
		{"x<>y", []TokenType{TokenIdentifier, TokenNotEqual, TokenIdentifier, TokenEOF}},
		{"x<=y>=z<w>v=u", []TokenType{
			TokenIdentifier, TokenLessEqual, TokenIdentifier, TokenGreaterEqual, TokenIdentifier,
			TokenLess, TokenIdentifier, TokenGreater, TokenIdentifier, TokenEqual, TokenIdentifier, TokenEOF,
		}},
		{"`1*2`", []TokenType{TokenBacktick, TokenNumber, TokenAsterisk, TokenNumber, TokenBacktick, TokenEOF}},
		{"if(a)", []TokenType{TokenReserved, TokenLeftParen, TokenIdentifier, TokenRightParen, TokenEOF}},
		{"#FF102030", []TokenType{TokenColor, TokenEOF}},
		{"3.foo", []TokenType{TokenNumber, TokenPeriod, TokenIdentifier, TokenEOF}},
		{"  ", []TokenType{TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			tokens, err := Tokenize(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tokenTypes(tokens))
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	for _, text := range []string{"0", "42", "3.25", "1e5", "1.5E-3", "2e+10"} {
		tokens, err := Tokenize(text)
		require.NoError(t, err, text)
		assert.Equal(t, TokenNumber, tokens[0].Type, text)
		assert.Equal(t, text, tokens[0].Value, text)
	}

	// an exponent without digits is not part of the number
	tokens, err := Tokenize("2em")
	require.NoError(t, err)
	assert.Equal(t, []TokenType{TokenNumber, TokenIdentifier, TokenEOF}, tokenTypes(tokens))
	assert.Equal(t, "2", tokens[0].Value)
	assert.Equal(t, "em", tokens[1].Value)
}

func TestLexerStringEscapes(t *testing.T) {
	tokens, err := Tokenize(`"He said ""Hi"""`)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, TokenString, tokens[0].Type)
	assert.Equal(t, `He said "Hi"`, tokens[0].Value)
	assert.Equal(t, 0, tokens[0].Pos)
	assert.Equal(t, 16, tokens[0].End)
}

func TestLexerUnicodePositions(t *testing.T) {
	tokens, err := Tokenize(`"世界" + Größe`)
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, "世界", tokens[0].Value)
	assert.Equal(t, 5, tokens[1].Pos)
	assert.Equal(t, "Größe", tokens[2].Value)
	assert.Equal(t, 7, tokens[2].Pos)
	assert.Equal(t, 12, tokens[2].End)
}

func TestLexerReservedWordsAreUpperCased(t *testing.T) {
	tokens, err := Tokenize("And oR nOT case If")
	require.NoError(t, err)
	for _, tok := range tokens[:5] {
		assert.Equal(t, TokenReserved, tok.Type)
	}
	assert.Equal(t, "AND", tokens[0].Value)
	assert.Equal(t, "CASE", tokens[3].Value)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		formula string
		pos     int
	}{
		{`"hello`, 0},
		{`1 + "open`, 4},
		{"#FFF", 0},
		{"#FF00FF00FF", 0},
		{"#GG00FF00", 0},
		{"1 § 2", 2},
		{"a ; b", 2},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := Tokenize(tt.formula)
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err))
			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.pos, fe.Pos)
		})
	}
}
