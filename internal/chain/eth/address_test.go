package eth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func TestIsValidAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{"checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"uppercase", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", true},
		{"no prefix", "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00", false},
		{"short", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe", false},
		{"long", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed0", false},
		{"non hex", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeg", false},
		{"uppercase prefix", "0X5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, IsValidAddress(tt.addr))
		})
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	addr, err := ParseAddress(" 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Hex())

	_, err = ParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)

	_, err = ParseAddress("0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.ErrorIs(t, err, satchelerr.ErrInvalidAddress, "bad checksum")

	_, err = ParseAddress("alice")
	require.ErrorIs(t, err, satchelerr.ErrInvalidAddress)
}

func TestToChecksumAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		ToChecksumAddress("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"))
	assert.Equal(t, "not-an-address", ToChecksumAddress("not-an-address"))
}
