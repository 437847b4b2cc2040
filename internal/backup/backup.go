package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync/atomic"
	"time"

	"filippo.io/age"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/fileutil"
	"github.com/mrz1836/satchel/internal/keystore"
	"github.com/mrz1836/satchel/internal/secure"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Extension is the conventional file extension for backups.
const Extension = ".satchel"

// DefaultWorkFactor is the age scrypt work factor (log2 N) for new backups.
const DefaultWorkFactor = 18

//nolint:gochecknoglobals // lowered by tests
var workFactor atomic.Int32

func init() {
	workFactor.Store(DefaultWorkFactor)
}

// SetWorkFactor changes the scrypt work factor for backups created after the
// call. Tests use it to keep encryption fast.
func SetWorkFactor(logN int) {
	workFactor.Store(int32(logN)) //nolint:gosec // G115: small constant
}

// Store is the part of the account store a backup needs.
type Store interface {
	Exists(name string) bool
	Unlock(name, password string) (*wallet.Secret, error)
	Container(name string) (*keystore.Container, error)
	Create(name string, secret *wallet.Secret, password string) (*account.Account, error)
	AllTokens(name string) ([]account.Token, error)
	AddToken(name string, tok account.Token) error
	Beneficiaries(name string) ([]account.Beneficiary, error)
	AddBeneficiary(name, label, address string) error
}

// Service exports and imports account backups.
type Service struct {
	store  Store
	logger *config.Logger
}

// NewService returns a backup service over store.
func NewService(store Store, logger *config.Logger) *Service {
	if logger == nil {
		logger = config.NullLogger()
	}
	return &Service{store: store, logger: logger.Component("backup")}
}

// Export re-authenticates name with password and writes its backup to path,
// encrypted under the same password.
func (s *Service) Export(name, password, path string) (*Backup, error) {
	secret, err := s.store.Unlock(name, password)
	if err != nil {
		return nil, err
	}
	id, err := wallet.Build(secret, big.NewInt(1))
	secret.Destroy()
	if err != nil {
		return nil, err
	}
	address := id.Address()
	id.Destroy()

	container, err := s.store.Container(name)
	if err != nil {
		return nil, err
	}
	ks, err := container.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding keystore: %w", err)
	}
	tokens, err := s.store.AllTokens(name)
	if err != nil {
		return nil, err
	}
	book, err := s.store.Beneficiaries(name)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload{Keystore: ks, Tokens: tokens, Beneficiaries: book})
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	encrypted, err := encrypt(body, password)
	secure.Zero(body)
	if err != nil {
		return nil, err
	}

	b := newBackup(Manifest{
		Account:          name,
		Address:          address,
		CreatedAt:        time.Now().UTC(),
		Tokens:           len(tokens),
		Beneficiaries:    len(book),
		EncryptionMethod: EncryptionMethod,
	}, encrypted)

	if err := fileutil.WriteJSON(path, b); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}
	s.logger.Info("exported account %s to %s", name, path)
	return b, nil
}

// Verify reads path and checks its integrity without decrypting it.
func (s *Service) Verify(path string) (*Manifest, error) {
	b, err := read(path)
	if err != nil {
		return nil, err
	}
	return &b.Manifest, nil
}

// Import restores the backup at path as account name, or under the
// account name recorded in the backup when name is empty. An existing
// account is only replaced when overwrite is set.
func (s *Service) Import(path, password, name string, overwrite bool) (*Manifest, error) {
	b, err := read(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = b.Manifest.Account
	}
	if err := account.ValidateName(name); err != nil {
		return nil, err
	}
	if s.store.Exists(name) && !overwrite {
		return nil, satchelerr.WithSuggestion(
			satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"account": name, "reason": "already exists"}),
			"Import under a different name",
		)
	}

	body, err := decrypt(b.EncryptedData, password)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(body)

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, invalidFormat("undecodable payload")
	}

	container, err := keystore.Parse(p.Keystore)
	if err != nil {
		return nil, err
	}
	plain, err := keystore.Decrypt(container, password)
	if err != nil {
		return nil, err
	}
	secret, err := wallet.SecretFromBytes(plain)
	secure.Zero(plain)
	if err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrKeystoreCorrupt, err)
	}
	defer secret.Destroy()

	if _, err := s.store.Create(name, secret, password); err != nil {
		return nil, err
	}
	for _, tok := range p.Tokens {
		if err := s.store.AddToken(name, tok); err != nil {
			return nil, fmt.Errorf("restoring token %s: %w", tok.Address.Hex(), err)
		}
	}
	for _, ben := range p.Beneficiaries {
		if err := s.store.AddBeneficiary(name, ben.Label, ben.Address.Hex()); err != nil {
			return nil, fmt.Errorf("restoring beneficiary %s: %w", ben.Label, err)
		}
	}

	s.logger.Info("imported account %s from %s", name, path)
	m := b.Manifest
	m.Account = name
	return &m, nil
}

func read(path string) (*Backup, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path chosen by the user
	if errors.Is(err, os.ErrNotExist) {
		return nil, satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"backup": path, "reason": "file not found"})
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}

	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, invalidFormat("not a backup document")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func encrypt(plaintext []byte, password string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(int(workFactor.Load()))

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func decrypt(ciphertext []byte, password string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		var wrong *age.NoIdentityMatchError
		if errors.As(err, &wrong) {
			return nil, satchelerr.ErrWrongPassword
		}
		return nil, satchelerr.WithCause(satchelerr.ErrBackupCorrupted, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrBackupCorrupted, err)
	}
	return plaintext, nil
}
