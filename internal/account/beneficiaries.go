package account

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/fileutil"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Beneficiary is a labeled recipient address.
type Beneficiary struct {
	Label   string         `json:"label"`
	Address common.Address `json:"address"`
}

// AddBeneficiary stores address under label. A label that already exists is
// overwritten without warning.
func (s *Store) AddBeneficiary(name, label, address string) error {
	label = strings.TrimSpace(label)
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if !eth.IsValidAddress(address) {
		return satchelerr.WithDetails(satchelerr.ErrInvalidAddress, map[string]string{"address": address})
	}
	if !s.Exists(name) {
		return s.missingAccount(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.readBeneficiaries(name)
	if err != nil {
		return err
	}
	book[label] = common.HexToAddress(address)

	if err := fileutil.WriteJSON(s.beneficiariesPath(name), book); err != nil {
		return fmt.Errorf("saving beneficiaries: %w", err)
	}
	s.logger.Info("account %s saved beneficiary %s", name, label)
	return nil
}

// RemoveBeneficiary deletes label from name's address book.
func (s *Store) RemoveBeneficiary(name, label string) error {
	label = strings.TrimSpace(label)
	if !s.Exists(name) {
		return s.missingAccount(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.readBeneficiaries(name)
	if err != nil {
		return err
	}
	if _, ok := book[label]; !ok {
		return notFound(satchelerr.ErrBeneficiaryNotFound, label, labels(book))
	}
	delete(book, label)

	return fileutil.WriteJSON(s.beneficiariesPath(name), book)
}

// Beneficiaries returns name's address book sorted by label.
func (s *Store) Beneficiaries(name string) ([]Beneficiary, error) {
	if !s.Exists(name) {
		return nil, s.missingAccount(name)
	}

	s.mu.Lock()
	book, err := s.readBeneficiaries(name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Beneficiary, 0, len(book))
	for _, l := range labels(book) {
		out = append(out, Beneficiary{Label: l, Address: book[l]})
	}
	return out, nil
}

// Beneficiary resolves label to an address.
func (s *Store) Beneficiary(name, label string) (common.Address, error) {
	if !s.Exists(name) {
		return common.Address{}, s.missingAccount(name)
	}

	s.mu.Lock()
	book, err := s.readBeneficiaries(name)
	s.mu.Unlock()
	if err != nil {
		return common.Address{}, err
	}

	addr, ok := book[strings.TrimSpace(label)]
	if !ok {
		return common.Address{}, notFound(satchelerr.ErrBeneficiaryNotFound, label, labels(book))
	}
	return addr, nil
}

func (s *Store) readBeneficiaries(name string) (map[string]common.Address, error) {
	book := map[string]common.Address{}
	err := fileutil.ReadJSON(s.beneficiariesPath(name), &book)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]common.Address{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading beneficiaries: %w", err)
	}
	if book == nil {
		// a literal null decodes to a nil map
		book = map[string]common.Address{}
	}
	return book, nil
}

func (s *Store) beneficiariesPath(name string) string {
	return filepath.Join(s.accountDir(name), beneficiariesFile)
}

func labels(book map[string]common.Address) []string {
	out := make([]string, 0, len(book))
	for l := range book {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
