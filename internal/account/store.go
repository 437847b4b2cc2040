package account

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/fileutil"
	"github.com/mrz1836/satchel/internal/keystore"
	"github.com/mrz1836/satchel/internal/secure"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Observer is told about accounts removed from the store.
type Observer interface {
	AccountDeleted(name string)
}

// Store is a filesystem-backed account store.
type Store struct {
	root   string
	logger *config.Logger

	mu        sync.Mutex // serializes read-modify-write of account files
	observers []Observer
}

// NewStore returns a store rooted at root (usually <home>/accounts).
func NewStore(root string, logger *config.Logger) *Store {
	if logger == nil {
		logger = config.NullLogger()
	}
	return &Store{root: root, logger: logger.Component("account")}
}

// Root returns the directory holding all accounts.
func (s *Store) Root() string {
	return s.root
}

// Observe registers o for deletion events.
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Create encrypts secret under password and writes it as name's keystore.
// An existing keystore for name is overwritten; its token and beneficiary
// files are kept.
func (s *Store) Create(name string, secret *wallet.Secret, password string) (*Account, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if secret == nil || len(secret.Bytes()) == 0 {
		return nil, satchelerr.ErrInvalidSecret
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	container, err := keystore.Encrypt(secret.Bytes(), password, keystore.WithName(name))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.exists(name)
	if err := s.writeKeystore(name, container); err != nil {
		return nil, err
	}

	if existed {
		s.logger.Info("overwrote keystore for account %s", name)
	} else {
		s.logger.Info("created account %s (%s)", name, secret.Kind())
	}

	return &Account{Name: name, Dir: s.accountDir(name)}, nil
}

// Unlock decrypts name's keystore. The caller owns the returned secret and
// must Destroy it. Wrong passwords are returned, never retried.
func (s *Store) Unlock(name, password string) (*wallet.Secret, error) {
	container, err := s.readKeystore(name)
	if err != nil {
		return nil, err
	}

	plain, err := keystore.Decrypt(container, password)
	if err != nil {
		if errors.Is(err, satchelerr.ErrWrongPassword) {
			s.logger.Debug("wrong password for account %s", name)
		} else {
			s.logger.Error("keystore for account %s unreadable: %v", name, err)
		}
		return nil, err
	}
	defer secure.Zero(plain)

	secret, err := wallet.SecretFromBytes(plain)
	if err != nil {
		s.logger.Error("keystore for account %s holds an unrecognized secret", name)
		return nil, satchelerr.WithCause(satchelerr.ErrKeystoreCorrupt, err)
	}
	return secret, nil
}

// ChangePassword re-encrypts name's secret under newPassword. The keystore
// is replaced atomically.
func (s *Store) ChangePassword(name, oldPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	secret, err := s.Unlock(name, oldPassword)
	if err != nil {
		return err
	}
	defer secret.Destroy()

	container, err := keystore.Encrypt(secret.Bytes(), newPassword, keystore.WithName(name))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeKeystore(name, container); err != nil {
		return err
	}

	s.logger.Info("changed password for account %s", name)
	return nil
}

// Delete re-authenticates and then removes every file belonging to name.
// Observers are notified after removal.
func (s *Store) Delete(name, password string) error {
	secret, err := s.Unlock(name, password)
	if err != nil {
		return err
	}
	secret.Destroy()

	s.mu.Lock()
	if err := os.RemoveAll(s.accountDir(name)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("removing account %s: %w", name, err)
	}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.logger.Info("deleted account %s", name)
	for _, o := range observers {
		o.AccountDeleted(name)
	}
	return nil
}

// Exists reports whether name has a keystore.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	return s.exists(name)
}

func (s *Store) exists(name string) bool {
	info, err := os.Stat(s.keystorePath(name))
	return err == nil && info.Mode().IsRegular()
}

// List returns account names in sorted order. Directories without a
// keystore are skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading account directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		if s.exists(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Container returns name's raw keystore without decrypting it.
func (s *Store) Container(name string) (*keystore.Container, error) {
	return s.readKeystore(name)
}

func (s *Store) readKeystore(name string) (*keystore.Container, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.keystorePath(name)) //nolint:gosec // G304: name validated above
	if errors.Is(err, os.ErrNotExist) {
		names, _ := s.List()
		return nil, notFound(satchelerr.ErrAccountNotFound, name, names)
	}
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	return keystore.Parse(data)
}

func (s *Store) writeKeystore(name string, c *keystore.Container) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encoding keystore: %w", err)
	}
	if err := os.MkdirAll(s.accountDir(name), fileutil.DirPerm); err != nil {
		return fmt.Errorf("creating account directory: %w", err)
	}
	return fileutil.WriteAtomic(s.keystorePath(name), data, fileutil.FilePerm)
}
