package chunk

import (
	"unicode"
	"unicode/utf8"
)

// Token is a single token with byte offsets into the source text.
// Offsets let the chunker recover chunk text by slicing the original
// string instead of re-joining decoded tokens, which would be lossy.
type Token struct {
	Text  string
	Start int // byte offset, inclusive
	End   int // byte offset, exclusive
}

// Tokenizer converts text to a token sequence. The same tokenizer instance
// is used for chunking and for any token-budget decisions downstream, so
// token counts stay consistent across the build pipeline.
type Tokenizer interface {
	Encode(text string) []Token
}

// wordTokenizer is the default tokenizer: maximal runs of letters and
// digits form one token each, every other non-space rune is its own token.
// This approximates the embedding model's wordpiece segmentation closely
// enough for window sizing while staying deterministic and dependency-free.
type wordTokenizer struct{}

// NewWordTokenizer returns the default word-level tokenizer.
func NewWordTokenizer() Tokenizer {
	return wordTokenizer{}
}

func (wordTokenizer) Encode(text string) []Token {
	var tokens []Token
	start := -1 // current word start, -1 when not inside a word

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{Text: text[start:end], Start: start, End: end})
			start = -1
		}
	}

	for i, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if start < 0 {
				start = i
			}
		case unicode.IsSpace(r):
			flush(i)
		default:
			flush(i)
			end := i + utf8.RuneLen(r)
			tokens = append(tokens, Token{Text: text[i:end], Start: i, End: end})
		}
	}
	flush(len(text))

	return tokens
}
