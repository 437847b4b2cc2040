package eth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want *satchelerr.SatchelError
	}{
		{"nonce too low: next nonce 5, tx nonce 4", satchelerr.ErrNonceTooLow},
		{"already known", satchelerr.ErrNonceTooLow},
		{"replacement transaction underpriced", satchelerr.ErrUnderpriced},
		{"transaction underpriced", satchelerr.ErrUnderpriced},
		{"max fee per gas less than block base fee", satchelerr.ErrUnderpriced},
		{"execution reverted: ERC20: transfer amount exceeds balance", satchelerr.ErrReverted},
		{"insufficient funds for gas * price + value", satchelerr.ErrInsufficientFunds},
		{"dial tcp 127.0.0.1:8545: connect: connection refused", satchelerr.ErrChainUnavailable},
		{"502 Bad Gateway", satchelerr.ErrChainUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			t.Parallel()
			cause := errors.New(tt.msg) //nolint:err113 // node error text
			err := ClassifyError(cause)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, cause)
		})
	}
}

func TestClassifyErrorPassThrough(t *testing.T) {
	t.Parallel()

	require.NoError(t, ClassifyError(nil))
	assert.Equal(t, satchelerr.ErrTokenNotFound, ClassifyError(satchelerr.ErrTokenNotFound))
	require.ErrorIs(t, ClassifyError(context.Canceled), context.Canceled)
}

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestIsMethodNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"json-rpc code", ClassifyError(codedError{code: -32601, msg: "unsupported"}), true},
		{"geth message", errors.New("the method eth_estimateGas does not exist/is not available"), true}, //nolint:err113 // node message
		{"method not found", errors.New("Method not found"), true},                                        //nolint:err113 // node message
		{"other code", ClassifyError(codedError{code: -32000, msg: "gas required exceeds allowance (65000)"}), false},
		{"connection refused", ClassifyError(errors.New("dial tcp: connection refused")), false}, //nolint:err113 // test error
		{"out of gas", ClassifyError(errors.New("out of gas")), false},                           //nolint:err113 // node message
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsMethodNotFound(tt.err))
		})
	}
}
