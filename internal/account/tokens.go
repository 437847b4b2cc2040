package account

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/fileutil"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Token is an ERC-20 contract tracked by an account on one chain.
type Token struct {
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals uint8          `json:"decimals"`
	Address  common.Address `json:"address"`
	ChainID  uint64         `json:"chain_id"`
}

// AddToken records tok for account name, replacing any token stored at the
// same contract address.
func (s *Store) AddToken(name string, tok Token) error {
	if !s.Exists(name) {
		return s.missingAccount(name)
	}
	if tok.Address == (common.Address{}) {
		return satchelerr.ErrInvalidAddress
	}
	if strings.TrimSpace(tok.Name) == "" {
		return satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"field": "token name"})
	}

	if err := fileutil.WriteJSON(s.tokenPath(name, tok.Address), tok); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	s.logger.Info("account %s tracks token %s on chain %d", name, tok.Address.Hex(), tok.ChainID)
	return nil
}

// Tokens lists the tokens name tracks on chainID, sorted by name.
func (s *Store) Tokens(name string, chainID uint64) ([]Token, error) {
	all, err := s.AllTokens(name)
	if err != nil {
		return nil, err
	}

	tokens := all[:0]
	for _, tok := range all {
		if tok.ChainID == chainID {
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

// AllTokens lists the tokens name tracks on every chain.
func (s *Store) AllTokens(name string) ([]Token, error) {
	if !s.Exists(name) {
		return nil, s.missingAccount(name)
	}

	dir := filepath.Join(s.accountDir(name), tokensDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Token{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tokens: %w", err)
	}

	tokens := make([]Token, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var tok Token
		if err := fileutil.ReadJSON(filepath.Join(dir, e.Name()), &tok); err != nil {
			s.logger.Warn("skipping unreadable token file %s: %v", e.Name(), err)
			continue
		}
		tokens = append(tokens, tok)
	}

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Name != tokens[j].Name {
			return tokens[i].Name < tokens[j].Name
		}
		return tokens[i].Address.Hex() < tokens[j].Address.Hex()
	})
	return tokens, nil
}

// Token looks up a tracked token by contract address on chainID.
func (s *Store) Token(name string, chainID uint64, address common.Address) (Token, error) {
	if !s.Exists(name) {
		return Token{}, s.missingAccount(name)
	}

	var tok Token
	err := fileutil.ReadJSON(s.tokenPath(name, address), &tok)
	if errors.Is(err, os.ErrNotExist) || (err == nil && tok.ChainID != chainID) {
		return Token{}, satchelerr.WithDetails(satchelerr.ErrTokenNotFound, map[string]string{
			"address":  address.Hex(),
			"chain_id": fmt.Sprint(chainID),
		})
	}
	if err != nil {
		return Token{}, fmt.Errorf("reading token: %w", err)
	}
	return tok, nil
}

// RemoveToken stops tracking address.
func (s *Store) RemoveToken(name string, address common.Address) error {
	if !s.Exists(name) {
		return s.missingAccount(name)
	}

	err := os.Remove(s.tokenPath(name, address))
	if errors.Is(err, os.ErrNotExist) {
		return satchelerr.WithDetails(satchelerr.ErrTokenNotFound, map[string]string{"address": address.Hex()})
	}
	return err
}

func (s *Store) tokenPath(name string, address common.Address) string {
	return filepath.Join(s.accountDir(name), tokensDir, strings.ToLower(address.Hex())+".json")
}

func (s *Store) missingAccount(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	names, _ := s.List()
	return notFound(satchelerr.ErrAccountNotFound, name, names)
}
