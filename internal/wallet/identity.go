package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/mrz1836/satchel/internal/secure"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// DerivationPath is the BIP-44 path used for mnemonic secrets: the first
// external address of the first Ethereum account.
const DerivationPath = "m/44'/60'/0'/0/0"

// ErrIdentityDestroyed is returned when a destroyed identity is asked to sign.
var ErrIdentityDestroyed = errors.New("signing identity has been destroyed")

// Identity is a signing key bound to one chain id. The address does not
// depend on the chain id; the signer does.
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
	kind    Kind
}

// Build derives the signing identity for secret on chainID.
func Build(secret *Secret, chainID *big.Int) (*Identity, error) {
	if secret == nil || secret.value.Destroyed() {
		return nil, satchelerr.ErrInvalidSecret
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"chain_id": fmt.Sprint(chainID)})
	}

	var (
		key *ecdsa.PrivateKey
		err error
	)
	switch secret.kind {
	case KindMnemonic:
		key, err = keyFromMnemonic(string(secret.Bytes()))
	case KindPrivateKey:
		key, err = crypto.HexToECDSA(string(secret.Bytes()))
		if err != nil {
			err = satchelerr.WithCause(satchelerr.ErrInvalidSecret, err)
		}
	default:
		err = satchelerr.ErrInvalidSecret
	}
	if err != nil {
		return nil, err
	}

	return newIdentity(key, chainID, secret.kind), nil
}

func newIdentity(key *ecdsa.PrivateKey, chainID *big.Int, kind Kind) *Identity {
	id := new(big.Int).Set(chainID)
	return &Identity{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
		kind:    kind,
	}
}

func keyFromMnemonic(phrase string) (*ecdsa.PrivateKey, error) {
	if err := ValidateMnemonic(phrase); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(phrase, "")
	defer secure.Zero(seed)

	path, err := accounts.ParseDerivationPath(DerivationPath)
	if err != nil {
		return nil, err
	}

	node, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	for _, index := range path {
		child, err := node.NewChildKey(index)
		secure.Zero(node.Key)
		if err != nil {
			return nil, fmt.Errorf("deriving %s: %w", DerivationPath, err)
		}
		node = child
	}
	defer secure.Zero(node.Key)

	return crypto.ToECDSA(node.Key)
}

// Address returns the account address.
func (id *Identity) Address() common.Address {
	return id.address
}

// ChainID returns a copy of the bound chain id.
func (id *Identity) ChainID() *big.Int {
	return new(big.Int).Set(id.chainID)
}

// Kind reports which secret variant the identity came from.
func (id *Identity) Kind() Kind {
	return id.kind
}

// SignTx signs tx for the bound chain id.
func (id *Identity) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	if id.key == nil {
		return nil, ErrIdentityDestroyed
	}
	return types.SignTx(tx, id.signer, id.key)
}

// WithChainID returns a new identity for the same key on another chain. The
// receiver is left untouched; its owner decides when to destroy it.
func (id *Identity) WithChainID(chainID *big.Int) (*Identity, error) {
	if id.key == nil {
		return nil, ErrIdentityDestroyed
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"chain_id": fmt.Sprint(chainID)})
	}
	key, err := copyKey(id.key)
	if err != nil {
		return nil, err
	}
	return newIdentity(key, chainID, id.kind), nil
}

// Clone returns an independent identity that can be destroyed separately.
func (id *Identity) Clone() (*Identity, error) {
	return id.WithChainID(id.chainID)
}

// Destroy zeroes the private scalar. Signing afterwards fails.
func (id *Identity) Destroy() {
	if id == nil || id.key == nil {
		return
	}
	words := id.key.D.Bits()
	for i := range words {
		words[i] = 0
	}
	id.key = nil
}

// Destroyed reports whether Destroy has run.
func (id *Identity) Destroyed() bool {
	return id.key == nil
}

func copyKey(key *ecdsa.PrivateKey) (*ecdsa.PrivateKey, error) {
	raw := crypto.FromECDSA(key)
	defer secure.Zero(raw)
	return crypto.ToECDSA(raw)
}
