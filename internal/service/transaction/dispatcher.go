package transaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/metrics"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Dispatcher defaults.
const (
	DefaultMaxInFlight    = 8
	DefaultPollInterval   = 4 * time.Second
	DefaultReceiptTimeout = 10 * time.Minute
	defaultResultBuffer   = 32
)

// Result reports how a submitted transfer ended.
type Result struct {
	JobID    string
	Transfer *PendingTransfer
	Hash     common.Hash // zero if the transaction never reached the node
	Link     string      // explorer page, empty when the network has none
	Receipt  *types.Receipt
	Err      error
}

// DispatcherOptions tunes a Dispatcher. Zero values take the defaults.
type DispatcherOptions struct {
	MaxInFlight    int64
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	ResultBuffer   int
	Metrics        *metrics.Metrics
	Logger         *config.Logger
}

// Dispatcher submits confirmed transfers in the background. Each job signs
// with its own copy of the identity and talks to the chain over its own
// client, so the session can move on while jobs run. Jobs finish in any
// order; failures are reported, never retried.
type Dispatcher struct {
	signer  SignerProvider
	nonces  *eth.NonceManager
	sem     *semaphore.Weighted
	results chan Result
	poll    time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	logger  LogWriter

	ctx    context.Context //nolint:containedctx // cancels every job on forced shutdown
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher drawing identities and connections
// from signer.
func NewDispatcher(signer SignerProvider, opts DispatcherOptions) *Dispatcher {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = DefaultReceiptTimeout
	}
	if opts.ResultBuffer <= 0 {
		opts.ResultBuffer = defaultResultBuffer
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		signer:  signer,
		nonces:  eth.NewNonceManager(),
		sem:     semaphore.NewWeighted(opts.MaxInFlight),
		results: make(chan Result, opts.ResultBuffer),
		poll:    opts.PollInterval,
		timeout: opts.ReceiptTimeout,
		metrics: opts.Metrics,
		logger:  opts.Logger.Component("dispatcher"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Notifications delivers one Result per submitted job. It is closed by
// Shutdown. Results are held in a bounded buffer; a job whose result cannot
// be delivered waits until it is read or the dispatcher shuts down.
func (d *Dispatcher) Notifications() <-chan Result {
	return d.results
}

// Submit starts a background job for p, which must be confirmed, and
// returns its id at once. The session's current identity must still be the
// one p was estimated for.
func (d *Dispatcher) Submit(p *PendingTransfer) (string, error) {
	identity, err := d.signer.SigningIdentity()
	if err != nil {
		return "", err
	}
	if identity.Address() != p.From || identity.ChainID().Uint64() != p.Network.ChainID {
		identity.Destroy()
		return "", satchelerr.WithDetails(satchelerr.ErrInvalidState, map[string]string{
			"reason": "account or network changed since the estimate",
		})
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		identity.Destroy()
		return "", satchelerr.WithDetails(satchelerr.ErrTransferCancelled, map[string]string{
			"reason": "dispatcher is shut down",
		})
	}
	if err := p.submit(); err != nil {
		d.mu.Unlock()
		identity.Destroy()
		return "", err
	}
	id := uuid.NewString()
	d.wg.Add(1)
	d.mu.Unlock()

	d.metrics.RecordTransferSubmitted()
	d.logger.Info("job %s: %s %s to %s on %s", id, p.FormatAmount(), p.Symbol(), p.To.Hex(), p.Network.Name)

	go d.run(id, p, identity)
	return id, nil
}

// Wait blocks until every submitted job has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones. If ctx ends
// first the remaining jobs are cancelled; their transactions may still be
// mined. Notifications is closed before Shutdown returns.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.Wait(ctx)
	if err != nil {
		d.cancel()
		d.wg.Wait()
	}
	d.cancel()
	close(d.results)
	return err
}

func (d *Dispatcher) run(id string, p *PendingTransfer, identity *wallet.Identity) {
	defer d.wg.Done()
	defer identity.Destroy()

	res := Result{JobID: id, Transfer: p}
	receipt, err := d.execute(d.ctx, p, identity, &res)
	err = submissionError(err)
	res.Receipt, res.Err = receipt, err

	p.finish(receipt, err)
	d.metrics.RecordTransferResult(err)
	if err != nil {
		d.logger.Error("job %s failed: %v", id, err)
	} else {
		d.logger.Info("job %s mined: %s block %s gas %d", id, res.Hash.Hex(), receipt.BlockNumber, receipt.GasUsed)
	}

	select {
	case d.results <- res:
	case <-d.ctx.Done():
	}
}

func (d *Dispatcher) execute(ctx context.Context, p *PendingTransfer, identity *wallet.Identity, res *Result) (*types.Receipt, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrTransferCancelled, err)
	}
	defer d.sem.Release(1)

	client, err := eth.Dial(ctx, d.signer.Dialer(), p.Network, d.signer.ClientOptions()...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	pending, err := client.PendingNonce(ctx, p.From)
	if err != nil {
		return nil, err
	}
	nonce := d.nonces.Next(p.From, pending)

	tx, err := buildTx(p, nonce)
	if err != nil {
		d.nonces.Release(p.From)
		return nil, err
	}
	signed, err := identity.SignTx(tx)
	if err != nil {
		d.nonces.Release(p.From)
		return nil, satchelerr.WithCause(satchelerr.ErrTransferFailed, err)
	}
	if err := client.Send(ctx, signed); err != nil {
		d.nonces.Release(p.From)
		return nil, err
	}

	res.Hash = signed.Hash()
	res.Link = p.Network.TxLink(res.Hash)
	p.setHash(res.Hash)
	d.logger.Debug("job %s broadcast %s nonce %d", res.JobID, res.Hash.Hex(), nonce)

	waitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return client.WaitMined(waitCtx, res.Hash, d.poll)
}

func buildTx(p *PendingTransfer, nonce uint64) (*types.Transaction, error) {
	if p.Token == nil {
		return eth.NewNativeTransfer(nonce, p.To, p.Amount, p.GasLimit, p.GasPrice), nil
	}
	data, err := eth.PackTransfer(p.To, p.Amount)
	if err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrTransferFailed, err)
	}
	return eth.NewTokenTransfer(nonce, p.Token.Address, data, p.GasLimit, p.GasPrice), nil
}

// submissionError keeps classified errors and folds anything else into
// ErrTransferFailed.
func submissionError(err error) error {
	if err == nil {
		return nil
	}
	var se *satchelerr.SatchelError
	if errors.As(err, &se) {
		return err
	}
	return satchelerr.WithCause(satchelerr.ErrTransferFailed, err)
}
