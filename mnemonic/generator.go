package mnemonic

import (
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"strings"
)

// Generator produces verification codes from one language's wordlist.
// A Generator is immutable after construction and safe for concurrent use;
// every Generate call is independent.
type Generator struct {
	lang    Language
	words   []string
	members map[string]struct{}
}

// NewGenerator returns a Generator bound to lang, or
// [ErrUnsupportedLanguage].
func NewGenerator(lang Language) (*Generator, error) {
	words, err := List(lang)
	if err != nil {
		return nil, err
	}

	members := make(map[string]struct{}, len(words))
	for _, w := range words {
		members[w] = struct{}{}
	}

	return &Generator{
		lang:    lang,
		words:   words,
		members: members,
	}, nil
}

// Language returns the language the Generator is bound to.
func (g *Generator) Language() Language {
	return g.lang
}

// Generate draws wordCount uniformly random words (with replacement) and joins
// them with separator. wordCount must be at least 1; the upper policy bound of
// 12 is enforced by configuration, not here.
func (g *Generator) Generate(wordCount int, separator string) (string, error) {
	if wordCount < 1 {
		return "", errors.New("word count must be at least 1")
	}

	max := big.NewInt(ListSize)
	picked := make([]string, wordCount)
	for i := range picked {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		picked[i] = g.words[n.Int64()]
	}

	return strings.Join(picked, separator), nil
}

// Validate reports whether every separator-delimited word of code belongs to
// the Generator's wordlist. It does not compare against any issued code.
func (g *Generator) Validate(code, separator string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, w := range strings.Split(code, separator) {
		if _, ok := g.members[w]; !ok {
			return false
		}
	}
	return true
}

// EntropyBits returns the entropy of a wordCount-word code in bits.
// Two words over a 2048-word list are worth 22 bits.
func (g *Generator) EntropyBits(wordCount int) float64 {
	if wordCount < 1 {
		return 0
	}
	return float64(wordCount) * math.Log2(ListSize)
}
