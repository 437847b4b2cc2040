package wallet

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/mrz1836/satchel/internal/secure"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// PrivateKeyHexLen is the length of a private key in hex, without "0x".
const PrivateKeyHexLen = 64

// Kind tells the two secret variants apart.
type Kind int

// Secret kinds.
const (
	KindPrivateKey Kind = iota + 1
	KindMnemonic
)

func (k Kind) String() string {
	switch k {
	case KindPrivateKey:
		return "private-key"
	case KindMnemonic:
		return "mnemonic"
	default:
		return "unknown"
	}
}

// Secret is a classified account secret. Its value lives in locked memory
// and never appears in fmt output.
type Secret struct {
	kind  Kind
	value *secure.Bytes
}

// ParseSecret classifies raw user input. After trimming, input containing
// whitespace is a mnemonic and must have exactly 12 words; anything else is
// a private key and must be 64 hex characters once an optional 0x prefix is
// removed. The word list and checksum are checked later, by Build.
func ParseSecret(input string) (*Secret, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, satchelerr.ErrInvalidSecret
	}

	if strings.IndexFunc(trimmed, unicode.IsSpace) >= 0 {
		if len(strings.Fields(trimmed)) != MnemonicWords {
			return nil, satchelerr.WithDetails(satchelerr.ErrInvalidSecret, map[string]string{
				"kind":  KindMnemonic.String(),
				"words": strconv.Itoa(len(strings.Fields(trimmed))),
			})
		}
		return &Secret{kind: KindMnemonic, value: secure.FromString(NormalizeMnemonic(trimmed))}, nil
	}

	key := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(key) != PrivateKeyHexLen {
		return nil, satchelerr.WithDetails(satchelerr.ErrInvalidSecret, map[string]string{
			"kind":   KindPrivateKey.String(),
			"length": strconv.Itoa(len(key)),
		})
	}
	if _, err := hex.DecodeString(key); err != nil {
		return nil, satchelerr.WithDetails(satchelerr.ErrInvalidSecret, map[string]string{
			"kind": KindPrivateKey.String(),
		})
	}

	return &Secret{kind: KindPrivateKey, value: secure.FromString(strings.ToLower(key))}, nil
}

// SecretFromBytes classifies a decrypted keystore payload.
func SecretFromBytes(plain []byte) (*Secret, error) {
	return ParseSecret(string(plain))
}

// NewMnemonicSecret generates a fresh 12-word mnemonic secret.
func NewMnemonicSecret() (*Secret, error) {
	phrase, err := GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	return &Secret{kind: KindMnemonic, value: secure.FromString(phrase)}, nil
}

// Kind returns the secret variant.
func (s *Secret) Kind() Kind {
	return s.kind
}

// Bytes exposes the canonical secret text for encryption. The slice is
// owned by the Secret and is zeroed by Destroy.
func (s *Secret) Bytes() []byte {
	return s.value.Bytes()
}

// Reveal returns the secret text. Only used to show a freshly generated
// mnemonic to its owner once.
func (s *Secret) Reveal() string {
	return string(s.value.Bytes())
}

// Clone returns an independent copy.
func (s *Secret) Clone() *Secret {
	return &Secret{kind: s.kind, value: s.value.Clone()}
}

// Destroy zeroes the secret.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.value.Destroy()
}

// String redacts the value.
func (s *Secret) String() string {
	return "wallet.Secret{" + s.kind.String() + ", redacted}"
}

// GoString redacts the value for %#v.
func (s *Secret) GoString() string {
	return s.String()
}
