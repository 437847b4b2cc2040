package chaintest

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownContract is returned for calls to contracts a Token does not
// describe.
var ErrUnknownContract = errors.New("execution reverted")

// Token is an ERC-20 contract answered by Fake.Call.
type Token struct {
	ABI      abi.ABI
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
	Balances map[common.Address]*big.Int
}

// Handler answers name, symbol, decimals and balanceOf for t.
func (t *Token) Handler() func(msg ethereum.CallMsg) ([]byte, error) {
	return func(msg ethereum.CallMsg) ([]byte, error) {
		if msg.To == nil || *msg.To != t.Address || len(msg.Data) < 4 {
			return nil, ErrUnknownContract
		}
		selector := msg.Data[:4]
		for name, m := range t.ABI.Methods {
			if !bytes.Equal(m.ID, selector) {
				continue
			}
			switch name {
			case "name":
				return m.Outputs.Pack(t.Name)
			case "symbol":
				return m.Outputs.Pack(t.Symbol)
			case "decimals":
				return m.Outputs.Pack(t.Decimals)
			case "balanceOf":
				args, err := m.Inputs.Unpack(msg.Data[4:])
				if err != nil {
					return nil, err
				}
				holder, _ := args[0].(common.Address)
				bal, ok := t.Balances[holder]
				if !ok {
					bal = new(big.Int)
				}
				return m.Outputs.Pack(bal)
			}
		}
		return nil, ErrUnknownContract
	}
}
