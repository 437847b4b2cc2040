// Package backup exports an account to a single passphrase-encrypted file
// and imports it back. A backup carries the account's keystore, its tracked
// tokens and its beneficiary book.
package backup

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/mrz1836/satchel/internal/account"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Version is the current backup format version.
const Version = 1

// EncryptionMethod names the envelope encryption in manifests.
const EncryptionMethod = "age-scrypt"

// Backup is the on-disk backup document. Only EncryptedData is secret; the
// manifest is readable without the passphrase.
type Backup struct {
	Version       int      `json:"version"`
	Manifest      Manifest `json:"manifest"`
	EncryptedData []byte   `json:"encrypted_data"`

	// Checksum is the hex SHA3-256 of EncryptedData.
	Checksum string `json:"checksum"`
}

// Manifest describes a backup.
type Manifest struct {
	Account          string         `json:"account"`
	Address          common.Address `json:"address"`
	CreatedAt        time.Time      `json:"created_at"`
	Tokens           int            `json:"tokens"`
	Beneficiaries    int            `json:"beneficiaries"`
	EncryptionMethod string         `json:"encryption_method"`
}

// payload is the decrypted body of a backup.
type payload struct {
	Keystore      json.RawMessage       `json:"keystore"`
	Tokens        []account.Token       `json:"tokens"`
	Beneficiaries []account.Beneficiary `json:"beneficiaries"`
}

// Checksum returns the hex SHA3-256 of data.
func Checksum(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newBackup(m Manifest, encrypted []byte) *Backup {
	return &Backup{
		Version:       Version,
		Manifest:      m,
		EncryptedData: encrypted,
		Checksum:      Checksum(encrypted),
	}
}

// Validate checks the format version, the manifest and the checksum.
func (b *Backup) Validate() error {
	if b.Version != Version {
		return invalidFormat(fmt.Sprintf("unsupported version %d", b.Version))
	}
	if account.ValidateName(b.Manifest.Account) != nil {
		return invalidFormat("missing or invalid account name")
	}
	if len(b.EncryptedData) == 0 {
		return invalidFormat("no encrypted data")
	}

	if actual := Checksum(b.EncryptedData); actual != b.Checksum {
		return satchelerr.WithDetails(satchelerr.ErrBackupCorrupted, map[string]string{
			"expected": b.Checksum,
			"actual":   actual,
		})
	}
	return nil
}

func invalidFormat(reason string) error {
	return satchelerr.WithDetails(satchelerr.ErrBackupCorrupted, map[string]string{"reason": reason})
}
