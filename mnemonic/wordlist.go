// Package mnemonic generates human-readable verification codes from the
// canonical BIP-39 wordlists.
//
// Each supported language has a fixed, ordered vocabulary of exactly 2048
// words whose order matches the canonical BIP-39 list, so codes are portable
// and auditable. A [Generator] is bound to one language and draws every word
// with a cryptographically secure random source.
package mnemonic

import (
	"errors"

	"github.com/tyler-smith/go-bip39/wordlists"
)

// Language identifies a supported BIP-39 wordlist.
type Language string

const (
	English            Language = "english"
	ChineseSimplified  Language = "chinese_simplified"
	ChineseTraditional Language = "chinese_traditional"
	Czech              Language = "czech"
	French             Language = "french"
	Italian            Language = "italian"
	Japanese           Language = "japanese"
	Korean             Language = "korean"
	Spanish            Language = "spanish"
)

// ListSize is the number of words in every wordlist.
const ListSize = 2048

// ErrUnsupportedLanguage reports a language outside the supported set.
var ErrUnsupportedLanguage = errors.New("unsupported code language")

var lists = map[Language][]string{
	English:            wordlists.English,
	ChineseSimplified:  wordlists.ChineseSimplified,
	ChineseTraditional: wordlists.ChineseTraditional,
	Czech:              wordlists.Czech,
	French:             wordlists.French,
	Italian:            wordlists.Italian,
	Japanese:           wordlists.Japanese,
	Korean:             wordlists.Korean,
	Spanish:            wordlists.Spanish,
}

// Languages returns the supported languages in a stable order.
func Languages() []Language {
	return []Language{
		English,
		ChineseSimplified,
		ChineseTraditional,
		Czech,
		French,
		Italian,
		Japanese,
		Korean,
		Spanish,
	}
}

// Supported reports whether lang is one of the supported languages.
func Supported(lang Language) bool {
	_, ok := lists[lang]
	return ok
}

// List returns the canonical ordered wordlist for lang. The slice is shared;
// callers must not modify it. The word at index i has numeric value i.
func List(lang Language) ([]string, error) {
	words, ok := lists[lang]
	if !ok {
		return nil, ErrUnsupportedLanguage
	}
	return words, nil
}
