// Package keystore encrypts account secrets into self-describing,
// password-protected containers in the Web3 Secret Storage (v3) format:
// scrypt or PBKDF2 key derivation, AES-128-CTR, and a Keccak-256 MAC over the
// derived key and ciphertext.
package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	gethks "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Version is the only container version this package reads or writes.
const Version = 3

const (
	cipherAES128CTR = "aes-128-ctr"
	kdfScrypt       = "scrypt"
	kdfPBKDF2       = "pbkdf2"
	prfHMACSHA256   = "hmac-sha256"

	derivedKeyLen = 32
	ivLen         = 16
	macLen        = 32

	// maxScryptN bounds the work a crafted container can demand.
	maxScryptN = 1 << 22
)

// Container is a serialized encrypted secret. It never holds the plaintext or
// the derived key.
type Container struct {
	Version int               `json:"version"`
	ID      string            `json:"id"`
	Name    string            `json:"name,omitempty"`
	Crypto  gethks.CryptoJSON `json:"crypto"`
}

//nolint:gochecknoglobals // process-wide default, overridden by config and tests
var (
	workMu      sync.RWMutex
	workScryptN = gethks.StandardScryptN
	workScryptP = gethks.StandardScryptP
)

// SetScryptWorkFactor changes the default scrypt cost used by Encrypt.
func SetScryptWorkFactor(n, p int) {
	workMu.Lock()
	defer workMu.Unlock()
	workScryptN = n
	workScryptP = p
}

// ScryptWorkFactor returns the default scrypt cost used by Encrypt.
func ScryptWorkFactor() (n, p int) {
	workMu.RLock()
	defer workMu.RUnlock()
	return workScryptN, workScryptP
}

type options struct {
	name    string
	scryptN int
	scryptP int
}

// Option customizes Encrypt.
type Option func(*options)

// WithName records the account name in the container.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithWorkFactor overrides the scrypt cost for a single call.
func WithWorkFactor(n, p int) Option {
	return func(o *options) {
		o.scryptN = n
		o.scryptP = p
	}
}

// Encrypt seals secret under password. Every call draws a fresh salt, IV and
// container id, so two encryptions of the same input never match.
func Encrypt(secret []byte, password string, opts ...Option) (*Container, error) {
	if len(secret) == 0 {
		return nil, satchelerr.ErrInvalidSecret
	}

	o := options{}
	o.scryptN, o.scryptP = ScryptWorkFactor()
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkScryptN(o.scryptN); err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrConfigInvalid, err)
	}

	cj, err := gethks.EncryptDataV3(secret, []byte(password), o.scryptN, o.scryptP)
	if err != nil {
		return nil, fmt.Errorf("encrypting secret: %w", err)
	}

	return &Container{
		Version: Version,
		ID:      uuid.NewString(),
		Name:    o.name,
		Crypto:  cj,
	}, nil
}

// Decrypt opens c with password. A MAC mismatch yields ErrWrongPassword;
// anything structurally unusable yields ErrKeystoreCorrupt.
func Decrypt(c *Container, password string) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	plain, err := gethks.DecryptDataV3(c.Crypto, password)
	if err != nil {
		if errors.Is(err, gethks.ErrDecrypt) {
			return nil, satchelerr.ErrWrongPassword
		}
		return nil, satchelerr.WithCause(satchelerr.ErrKeystoreCorrupt, err)
	}

	return plain, nil
}

// Parse decodes a serialized container and checks its structure.
func Parse(data []byte) (*Container, error) {
	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrKeystoreCorrupt, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal serializes the container as indented JSON.
func (c *Container) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks everything Decrypt needs short of the password.
func (c *Container) Validate() error {
	if c == nil {
		return corrupt("container is empty")
	}
	if c.Version != Version {
		return corrupt("unsupported version %d", c.Version)
	}
	if c.Crypto.Cipher != cipherAES128CTR {
		return corrupt("unsupported cipher %q", c.Crypto.Cipher)
	}
	if err := checkHex("mac", c.Crypto.MAC, macLen); err != nil {
		return err
	}
	if err := checkHex("iv", c.Crypto.CipherParams.IV, ivLen); err != nil {
		return err
	}
	if err := checkHex("ciphertext", c.Crypto.CipherText, -1); err != nil {
		return err
	}
	return checkKDF(c.Crypto.KDF, c.Crypto.KDFParams)
}

func checkKDF(kdf string, params map[string]any) error {
	if err := checkHexParam(params, "salt"); err != nil {
		return err
	}

	dklen, err := intParam(params, "dklen")
	if err != nil {
		return err
	}
	if dklen != derivedKeyLen {
		return corrupt("unsupported dklen %d", dklen)
	}

	switch kdf {
	case kdfScrypt:
		n, err := intParam(params, "n")
		if err != nil {
			return err
		}
		if err := checkScryptN(n); err != nil {
			return corrupt("%v", err)
		}
		for _, key := range []string{"r", "p"} {
			v, err := intParam(params, key)
			if err != nil {
				return err
			}
			if v < 1 {
				return corrupt("kdf param %s must be positive", key)
			}
		}
	case kdfPBKDF2:
		c, err := intParam(params, "c")
		if err != nil {
			return err
		}
		if c < 1 {
			return corrupt("kdf param c must be positive")
		}
		if prf, _ := params["prf"].(string); prf != prfHMACSHA256 {
			return corrupt("unsupported prf %q", prf)
		}
	default:
		return corrupt("unsupported kdf %q", kdf)
	}

	return nil
}

func checkScryptN(n int) error {
	if n < 2 || n > maxScryptN || bits.OnesCount(uint(n)) != 1 {
		return fmt.Errorf("scrypt N %d must be a power of two in [2, %d]", n, maxScryptN)
	}
	return nil
}

// intParam reads a numeric KDF parameter. Parsed JSON yields float64; a
// container built in-process yields int.
func intParam(params map[string]any, key string) (int, error) {
	switch v := params[key].(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, corrupt("kdf param %s is not an integer", key)
		}
		return int(v), nil
	default:
		return 0, corrupt("kdf param %s missing", key)
	}
}

func checkHexParam(params map[string]any, key string) error {
	s, ok := params[key].(string)
	if !ok {
		return corrupt("kdf param %s missing", key)
	}
	return checkHex(key, s, -1)
}

// checkHex decodes s and, when want >= 0, checks the decoded length.
func checkHex(field, s string, want int) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return corrupt("%s is not hex", field)
	}
	if len(b) == 0 {
		return corrupt("%s is empty", field)
	}
	if want >= 0 && len(b) != want {
		return corrupt("%s has length %d, want %d", field, len(b), want)
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return satchelerr.WithCause(satchelerr.ErrKeystoreCorrupt, fmt.Errorf(format, args...))
}
