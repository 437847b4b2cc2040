// Package wallet turns a decrypted account secret into a signing identity.
// A secret is either a 12-word BIP-39 mnemonic or a raw secp256k1 private key;
// it is classified once when entered and carried as a Secret from then on.
package wallet

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	"github.com/mrz1836/satchel/internal/secure"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// MnemonicWords is the only mnemonic length accepted.
const MnemonicWords = 12

// mnemonicEntropyBits yields MnemonicWords words.
const mnemonicEntropyBits = 128

// MaxTypoDistance is the largest edit distance still offered as a suggestion.
const MaxTypoDistance = 2

//nolint:gochecknoglobals // lazily built lookup over the fixed BIP-39 list
var (
	wordIndexOnce sync.Once
	wordIndex     map[string]struct{}
)

// GenerateMnemonic creates a new 12-word mnemonic from secure.Reader.
func GenerateMnemonic() (string, error) {
	entropy, err := secure.RandomBytes(mnemonicEntropyBits / 8)
	if err != nil {
		return "", err
	}
	defer secure.Zero(entropy)

	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ValidateMnemonic checks word count, word membership and checksum. Unknown
// words produce a suggestion listing likely corrections.
func ValidateMnemonic(phrase string) error {
	normalized := NormalizeMnemonic(phrase)
	if len(strings.Fields(normalized)) != MnemonicWords {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidMnemonic,
			"the seed phrase must have exactly "+strconv.Itoa(MnemonicWords)+" words")
	}

	if typos := DetectTypos(normalized); len(typos) > 0 {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidMnemonic, FormatTypoSuggestions(typos))
	}

	if !bip39.IsMnemonicValid(normalized) {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidMnemonic, "checksum mismatch: check the word order")
	}
	return nil
}

// IsValidWord reports whether word is in the BIP-39 English list.
func IsValidWord(word string) bool {
	wordIndexOnce.Do(func() {
		list := bip39.GetWordList()
		wordIndex = make(map[string]struct{}, len(list))
		for _, w := range list {
			wordIndex[w] = struct{}{}
		}
	})
	_, ok := wordIndex[strings.ToLower(word)]
	return ok
}

// SuggestWord returns the closest BIP-39 word within MaxTypoDistance, or "".
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	best := math.MaxInt
	var suggestion string
	for _, w := range bip39.GetWordList() {
		d := levenshtein.ComputeDistance(input, w)
		if d == 0 {
			return w
		}
		if d < best {
			best = d
			suggestion = w
		}
	}

	if best <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// Typo is a word outside the BIP-39 list.
type Typo struct {
	Index      int // 0-based position in the phrase
	Word       string
	Suggestion string // empty when nothing is close
}

// DetectTypos lists every word in phrase that is not a BIP-39 word.
func DetectTypos(phrase string) []Typo {
	var typos []Typo
	for i, w := range strings.Fields(NormalizeMnemonic(phrase)) {
		if IsValidWord(w) {
			continue
		}
		typos = append(typos, Typo{Index: i, Word: w, Suggestion: SuggestWord(w)})
	}
	return typos
}

// FormatTypoSuggestions renders typos one per line with 1-based positions.
func FormatTypoSuggestions(typos []Typo) string {
	lines := make([]string, 0, len(typos))
	for _, t := range typos {
		line := "word " + strconv.Itoa(t.Index+1) + ": '" + t.Word + "'"
		if t.Suggestion != "" {
			line += " - did you mean '" + t.Suggestion + "'?"
		} else {
			line += " is not a valid seed word"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
