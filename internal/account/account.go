// Package account persists named accounts on disk. Each account is a
// directory holding its encrypted keystore, the tokens it tracks and its
// beneficiary address book:
//
//	<root>/<name>/keystore.json
//	<root>/<name>/tokens/<contract address>.json
//	<root>/<name>/beneficiaries.json
package account

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Validation limits.
const (
	MinNameLength     = 3
	MaxNameLength     = 64
	MinPasswordLength = 6

	keystoreFile      = "keystore.json"
	tokensDir         = "tokens"
	beneficiariesFile = "beneficiaries.json"

	maxSuggestDistance = 2
)

//nolint:gochecknoglobals // compiled once
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Account is a stored account.
type Account struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

// ValidateName checks the account name policy: 3 to 64 characters of
// letters, digits, underscore or hyphen.
func ValidateName(name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength || !nameRegex.MatchString(name) {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidName,
			"names are 3-64 characters of letters, digits, '_' or '-'")
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return satchelerr.WithSuggestion(satchelerr.ErrWeakPassword,
			"use at least 6 characters")
	}
	return nil
}

// ValidateLabel checks a beneficiary label: at least 3 visible characters.
func ValidateLabel(label string) error {
	if len(strings.TrimSpace(label)) < MinNameLength {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidName,
			"beneficiary names need at least 3 characters")
	}
	return nil
}

// closest returns the candidate nearest to input within a small edit
// distance, or "".
func closest(input string, candidates []string) string {
	best := math.MaxInt
	var match string
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(input), strings.ToLower(c))
		if d < best {
			best = d
			match = c
		}
	}
	if best <= maxSuggestDistance {
		return match
	}
	return ""
}

func notFound(sentinel error, name string, candidates []string) error {
	err := satchelerr.WithDetails(sentinel, map[string]string{"name": name})
	if s := closest(name, candidates); s != "" {
		return satchelerr.WithSuggestion(err, "did you mean '"+s+"'?")
	}
	return err
}

// Dir returns the directory holding name's files. Everything under it is
// removed with the account.
func (s *Store) Dir(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return s.accountDir(name), nil
}

func (s *Store) accountDir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Store) keystorePath(name string) string {
	return filepath.Join(s.root, name, keystoreFile)
}
