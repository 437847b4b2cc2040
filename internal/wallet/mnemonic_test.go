package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func TestGenerateMnemonicUnique(t *testing.T) {
	t.Parallel()

	a, err := wallet.GenerateMnemonic()
	require.NoError(t, err)
	b, err := wallet.GenerateMnemonic()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidateMnemonic(t *testing.T) {
	t.Parallel()

	require.NoError(t, wallet.ValidateMnemonic(testMnemonic))
	require.NoError(t, wallet.ValidateMnemonic("ABANDON abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"))

	// Valid words, bad checksum.
	err := wallet.ValidateMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	require.ErrorIs(t, err, satchelerr.ErrInvalidMnemonic)
	assert.Contains(t, satchelerr.Suggestion(err), "checksum")

	err = wallet.ValidateMnemonic("abandon abandon")
	require.ErrorIs(t, err, satchelerr.ErrInvalidMnemonic)
}

func TestValidateMnemonicSuggestsTypos(t *testing.T) {
	t.Parallel()

	err := wallet.ValidateMnemonic("abandon abandon abandn abandon abandon abandon abandon abandon abandon abandon abandon about")
	require.ErrorIs(t, err, satchelerr.ErrInvalidMnemonic)
	assert.Equal(t, "word 3: 'abandn' - did you mean 'abandon'?", satchelerr.Suggestion(err))
}

func TestDetectTypos(t *testing.T) {
	t.Parallel()

	typos := wallet.DetectTypos("abandon xqxqxq abandon")
	require.Len(t, typos, 1)
	assert.Equal(t, 1, typos[0].Index)
	assert.Equal(t, "xqxqxq", typos[0].Word)
	assert.Empty(t, typos[0].Suggestion)
	assert.Equal(t, "word 2: 'xqxqxq' is not a valid seed word", wallet.FormatTypoSuggestions(typos))

	assert.Empty(t, wallet.DetectTypos(testMnemonic))
}

func TestSuggestWord(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "about", wallet.SuggestWord("about"))
	assert.Equal(t, "about", wallet.SuggestWord("ABOUT"))
	assert.Empty(t, wallet.SuggestWord("qqqqqqqqqq"))
	assert.True(t, wallet.IsValidWord("Zoo"))
	assert.False(t, wallet.IsValidWord("zooo"))
}

func TestNormalizeMnemonic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b c", wallet.NormalizeMnemonic("  A\tb\n\nC "))
}
