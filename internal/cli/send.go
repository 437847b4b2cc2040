package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/service/transaction"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

type sendView struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Hash     string `json:"hash,omitempty"`
	Link     string `json:"link,omitempty"`
	Block    uint64 `json:"block,omitempty"`
	GasUsed  uint64 `json:"gas_used,omitempty"`
	Amount   string `json:"amount"`
	Symbol   string `json:"symbol"`
	To       string `json:"to"`
	Fee      string `json:"fee"`
	ChainID  uint64 `json:"chain_id"`
	ErrorMsg string `json:"error,omitempty"`
}

func (a *App) sendCmd() *cobra.Command {
	var (
		to     string
		amount string
		token  string
		gas    string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "send <name>",
		Short: "Send the native coin or an ERC-20 token",
		Long: `Send the native coin, or a tracked ERC-20 token with --token.

The recipient is a 0x address or a beneficiary label. Native amounts are
decimal (0.25); token amounts are whole tokens. The transfer is priced and
summarized before anything is signed, and the command waits until it is
mined or fails.`,
		Example: `  satchel send main --to bob --amount 0.1
  satchel send main --to 0x742d35Cc6634C0532925a3b844Bc454e4438f44e --amount 25 --token 0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238 --gas fast`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if gas == "" {
				gas = a.cfg.Transfer.GasTier
			}
			tier, err := eth.ParseGasTier(gas)
			if err != nil {
				return err
			}
			if err := a.unlock(args[0]); err != nil {
				return err
			}

			req := transaction.Request{Recipient: to, Amount: amount}
			if token != "" {
				tok, err := a.trackedToken(args[0], token)
				if err != nil {
					return err
				}
				req.Token = &tok
			}

			ctx, cancel := a.chainContext(cmd.Context())
			defer cancel()
			p, err := a.prepareTransfer(ctx, req, tier)
			if err != nil {
				return err
			}
			if err := a.confirmTransfer(p, yes); err != nil {
				return err
			}
			return a.submitAndWait(cmd.Context(), p)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address or beneficiary label")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to send")
	cmd.Flags().StringVar(&token, "token", "", "ERC-20 contract address of a tracked token")
	cmd.Flags().StringVar(&gas, "gas", "", "gas tier: default, slow, medium, fast (default: from config)")
	cmd.Flags().BoolVar(&yes, "yes", false, "submit without asking for confirmation")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// trackedToken looks up a token the account tracks on the selected network.
func (a *App) trackedToken(name, address string) (account.Token, error) {
	addr, err := eth.ParseAddress(address)
	if err != nil {
		return account.Token{}, err
	}
	return a.store.Token(name, a.session.Network().ChainID, addr)
}

func (a *App) builder() *transaction.Builder {
	return transaction.NewBuilder(&transaction.Config{
		Session:       a.session,
		Beneficiaries: a.store,
		Metrics:       a.metrics,
		Logger:        a.logger,
	})
}

func (a *App) dispatcher() *transaction.Dispatcher {
	return transaction.NewDispatcher(a.session, transaction.DispatcherOptions{
		MaxInFlight:    a.cfg.Transfer.MaxInFlight,
		PollInterval:   a.cfg.Transfer.ReceiptPollInterval,
		ReceiptTimeout: a.cfg.Transfer.ReceiptTimeout,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
}

// prepareTransfer drafts and prices req.
func (a *App) prepareTransfer(ctx context.Context, req transaction.Request, tier eth.GasTier) (*transaction.PendingTransfer, error) {
	b := a.builder()
	p, err := b.Draft(req)
	if err != nil {
		return nil, err
	}
	if err := b.Estimate(ctx, p, tier); err != nil {
		_ = p.Cancel()
		return nil, err
	}
	return p, nil
}

// confirmTransfer shows the summary and records the user's decision. A
// declined transfer is cancelled and reported as ErrTransferCancelled.
func (a *App) confirmTransfer(p *transaction.PendingTransfer, yes bool) error {
	if err := a.writeSummary(a.errOut, p); err != nil {
		return err
	}
	if !yes {
		ok, err := a.prompter.Confirm("Send this transaction?", false)
		if err != nil {
			_ = p.Cancel()
			return err
		}
		if !ok {
			_ = p.Cancel()
			return satchelerr.ErrTransferCancelled
		}
	}
	return p.Confirm()
}

func (a *App) writeSummary(w io.Writer, p *transaction.PendingTransfer) error {
	to := p.To.Hex()
	if p.Recipient != "" && p.Recipient != to {
		to = fmt.Sprintf("%s (%s)", p.Recipient, to)
	}
	fee := fmt.Sprintf("%s %s", p.FormatFee(), p.Network.Symbol)
	if v := fiat.Format(p.FiatFee, p.Currency); v != "" && p.FiatFee > 0 {
		fee = fmt.Sprintf("%s (~%s)", fee, v)
	}

	_, err := fmt.Fprintf(w, `
  From:      %s
  To:        %s
  Amount:    %s %s
  Network:   %s (%d)
  Gas:       %s, %s x %d
  Max fee:   %s

`, p.From.Hex(), to, p.FormatAmount(), p.Symbol(), p.Network.Name, p.Network.ChainID,
		p.Tier, eth.FormatGasPrice(p.GasPrice), p.GasLimit, fee)
	return err
}

// submitAndWait hands p to a dispatcher and blocks until its result arrives.
func (a *App) submitAndWait(ctx context.Context, p *transaction.PendingTransfer) error {
	d := a.dispatcher()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = d.Shutdown(sctx)
	}()

	id, err := d.Submit(p)
	if err != nil {
		return err
	}
	a.msg.Infof("Submitted transfer %s, waiting for it to be mined...", shortID(id))

	select {
	case res := <-d.Notifications():
		if res.Err != nil {
			if res.Hash != (common.Hash{}) {
				a.msg.Warnf("transaction %s failed %s", res.Hash.Hex(), res.Link)
			}
			return res.Err
		}
		return a.renderResult(res)
	case <-ctx.Done():
		if h := p.Hash(); h != (common.Hash{}) {
			return satchelerr.WithSuggestion(satchelerr.WithCause(satchelerr.ErrTransferFailed, ctx.Err()),
				fmt.Sprintf("Transaction %s was broadcast and may still be mined", h.Hex()))
		}
		return ctx.Err()
	}
}

func (a *App) renderResult(res transaction.Result) error {
	p := res.Transfer
	view := resultView(res)
	return a.formatter.Emit(view, func(w io.Writer) error {
		a.msg.Successf("Sent %s %s to %s", view.Amount, view.Symbol, p.To.Hex())
		_, err := fmt.Fprintf(w, "  Hash:      %s\n  Block:     %d\n  Gas used:  %d\n", view.Hash, view.Block, view.GasUsed)
		if err == nil && view.Link != "" {
			_, err = fmt.Fprintf(w, "  Explorer:  %s\n", view.Link)
		}
		return err
	})
}

func resultView(res transaction.Result) sendView {
	p := res.Transfer
	view := sendView{
		JobID:   res.JobID,
		Status:  p.State().String(),
		Link:    res.Link,
		Amount:  p.FormatAmount(),
		Symbol:  p.Symbol(),
		To:      p.To.Hex(),
		Fee:     p.FormatFee(),
		ChainID: p.Network.ChainID,
	}
	if res.Hash != (common.Hash{}) {
		view.Hash = res.Hash.Hex()
	}
	if res.Receipt != nil {
		view.GasUsed = res.Receipt.GasUsed
		if res.Receipt.BlockNumber != nil {
			view.Block = res.Receipt.BlockNumber.Uint64()
		}
	}
	if res.Err != nil {
		view.ErrorMsg = res.Err.Error()
	}
	return view
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
