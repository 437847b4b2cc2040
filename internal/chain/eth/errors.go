package eth

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Node error fragments, as returned by geth-compatible JSON-RPC servers.
var errorKinds = []struct {
	fragments []string
	sentinel  *satchelerr.SatchelError
}{
	{[]string{"nonce too low", "already known"}, satchelerr.ErrNonceTooLow},
	{[]string{"underpriced", "fee cap less than block base fee", "max fee per gas less than block base fee"}, satchelerr.ErrUnderpriced},
	{[]string{"execution reverted", "reverted"}, satchelerr.ErrReverted},
	{[]string{"insufficient funds"}, satchelerr.ErrInsufficientFunds},
}

// ClassifyError maps an RPC failure onto the wallet's error kinds. Anything
// unrecognized is ErrChainUnavailable. Errors that already carry a kind and
// context cancellations pass through.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var se *satchelerr.SatchelError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, kind := range errorKinds {
		for _, f := range kind.fragments {
			if strings.Contains(msg, f) {
				return satchelerr.WithCause(kind.sentinel, err)
			}
		}
	}
	return satchelerr.WithCause(satchelerr.ErrChainUnavailable, err)
}

// jsonrpcMethodNotFound is the JSON-RPC 2.0 code for an unknown method.
const jsonrpcMethodNotFound = -32601

var methodNotFoundFragments = []string{
	"method not found",
	"does not exist/is not available",
	"method not supported",
}

// IsMethodNotFound reports whether err says the endpoint does not serve the
// called method at all, as opposed to failing while serving it.
func IsMethodNotFound(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == jsonrpcMethodNotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, f := range methodNotFoundFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
