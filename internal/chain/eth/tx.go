package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NewNativeTransfer builds an unsigned legacy value transfer.
func NewNativeTransfer(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
	})
}

// NewTokenTransfer builds an unsigned call to token carrying transfer call
// data and no value.
func NewTokenTransfer(nonce uint64, token common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Value:    new(big.Int),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
}

// Fee returns gasPrice * gasLimit.
func Fee(gasPrice *big.Int, gasLimit uint64) *big.Int {
	return new(big.Int).Mul(orZero(gasPrice), new(big.Int).SetUint64(gasLimit))
}
