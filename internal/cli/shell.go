package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/output"
	"github.com/mrz1836/satchel/internal/prompt"
	"github.com/mrz1836/satchel/internal/service/transaction"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// fatal marks errors that end the shell instead of returning to the menu.
type fatal struct{ err error }

func (f fatal) Error() string { return f.err.Error() }
func (f fatal) Unwrap() error { return f.err }

// Dashboard entries, in menu order.
const (
	menuSend = iota
	menuSendToken
	menuBalance
	menuReceive
	menuSwitchNetwork
	menuAddToken
	menuBeneficiaries
	menuChangePassword
	menuDelete
	menuLogout
	menuQuit
)

var menuLabels = [...]string{
	menuSend:           "Send",
	menuSendToken:      "Send token",
	menuBalance:        "Balance",
	menuReceive:        "Receive",
	menuSwitchNetwork:  "Switch network",
	menuAddToken:       "Add token",
	menuBeneficiaries:  "Beneficiaries",
	menuChangePassword: "Change password",
	menuDelete:         "Delete account",
	menuLogout:         "Log out",
	menuQuit:           "Quit",
}

func (a *App) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive wallet dashboard",
		Long: `Start an interactive session. Pick or create an account, then send,
check balances and manage tokens and beneficiaries from a menu.

Transfers confirmed in the shell are submitted in the background; their
results are printed as they arrive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return newShell(a, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
		},
	}
}

// shell is one interactive dashboard session.
type shell struct {
	a        *App
	out      io.Writer
	jobs     *transaction.Dispatcher
	notified chan struct{}
}

func newShell(a *App, in io.Reader, out io.Writer) *shell {
	// Transfer results are printed from the watch goroutine.
	var mu sync.Mutex
	out = &lockedWriter{mu: &mu, w: out}
	a.errOut = &lockedWriter{mu: &mu, w: a.errOut}

	// The dashboard is always text.
	a.formatter = output.NewFormatter(output.FormatText, out)
	a.msg = output.NewMessenger(out, a.errOut)
	a.prompter = prompt.New(in, a.errOut)
	return &shell{a: a, out: out}
}

// lockedWriter serializes writes to w with writers sharing mu.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (s *shell) run(ctx context.Context) error {
	s.jobs = s.a.dispatcher()
	s.notified = make(chan struct{})
	go s.watch()
	defer s.shutdown(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		var err error
		if s.a.session.Unlocked() {
			err = s.dashboard(ctx)
		} else {
			err = s.chooseAccount()
		}

		var f fatal
		switch {
		case errors.As(err, &f):
			return f.err
		case err == nil:
		case errors.Is(err, errQuit), errors.Is(err, prompt.ErrClosed):
			return nil
		case errors.Is(err, satchelerr.ErrKeystoreCorrupt):
			s.report(err)
			s.a.session.Logout()
		default:
			s.report(err)
		}
	}
}

// watch prints transfer results until the dispatcher shuts down.
func (s *shell) watch() {
	defer close(s.notified)
	for res := range s.jobs.Notifications() {
		p := res.Transfer
		if res.Err != nil {
			s.a.msg.Warnf("Transfer %s of %s %s to %s failed: %v", shortID(res.JobID), p.FormatAmount(), p.Symbol(), p.To.Hex(), res.Err)
			continue
		}
		view := resultView(res)
		s.a.msg.Successf("Transfer %s mined: %s %s to %s in block %d (gas %d) %s",
			shortID(res.JobID), view.Amount, view.Symbol, view.To, view.Block, view.GasUsed, view.Hash)
		if view.Link != "" {
			s.a.msg.Infof("%s", view.Link)
		}
	}
}

func (s *shell) shutdown(ctx context.Context) {
	if n := s.a.metrics.InFlight(); n > 0 {
		s.a.msg.Infof("Waiting for %d pending transfer(s)...", n)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	_ = s.jobs.Shutdown(ctx)
	<-s.notified
}

func (s *shell) report(err error) {
	_ = output.FormatError(s.a.errOut, err, output.FormatText)
}

// chooseAccount unlocks an existing account or creates one.
func (s *shell) chooseAccount() error {
	names, err := s.a.store.List()
	if err != nil {
		return fatal{err}
	}
	options := append(append([]string(nil), names...), "Create new account", "Import account", "Quit")

	choice, err := s.a.prompter.Select("\nAccounts", options)
	if err != nil {
		return err
	}
	switch choice - len(names) {
	case 0:
		return s.createAccount(false)
	case 1:
		return s.createAccount(true)
	case 2:
		return errQuit
	default:
		return s.a.unlock(names[choice])
	}
}

func (s *shell) createAccount(imported bool) error {
	name, err := s.a.prompter.Ask("Account name", account.ValidateName)
	if err != nil {
		return err
	}

	var secret *wallet.Secret
	if imported {
		secret, err = s.a.askSecret()
	} else {
		secret, err = wallet.NewMnemonicSecret()
	}
	if err != nil {
		return err
	}
	defer secret.Destroy()

	view, err := s.a.createAccount(name, secret, false)
	if err != nil {
		return err
	}
	s.a.msg.Successf("Account %s ready: %s", view.Name, view.Address)
	if !imported {
		_, err = fmt.Fprintf(s.out, "\nSeed phrase (write it down, it will not be shown again):\n\n  %s\n\n", secret.Reveal())
	}
	return err
}

func (s *shell) dashboard(ctx context.Context) error {
	st := s.a.session.State()
	header := fmt.Sprintf("\n%s on %s (%d)\n%s", st.Account, st.Network.Name, st.Network.ChainID, st.Address.Hex())
	if v := fiat.Format(st.Rate, st.Currency); v != "" && st.Rate > 0 {
		header += fmt.Sprintf("\n1 %s = %s", st.Network.Symbol, v)
	}

	choice, err := s.a.prompter.Select(header, menuLabels[:])
	if err != nil {
		return err
	}

	switch choice {
	case menuSend:
		return s.send(ctx, false)
	case menuSendToken:
		return s.send(ctx, true)
	case menuBalance:
		return s.balance(ctx)
	case menuReceive:
		return s.a.showAddress(st.Account, st.Address, true)
	case menuSwitchNetwork:
		return s.switchNetwork(ctx)
	case menuAddToken:
		return s.addToken(ctx, st.Account)
	case menuBeneficiaries:
		return s.beneficiaries(st.Account)
	case menuChangePassword:
		if err := s.a.changePassword(st.Account); err != nil {
			return err
		}
		s.a.msg.Successf("Password changed")
		return nil
	case menuDelete:
		deleted, err := s.a.deleteAccount(st.Account, false)
		if deleted {
			s.a.msg.Successf("Deleted account %s", st.Account)
		}
		return err
	case menuLogout:
		s.a.session.Logout()
		return nil
	default:
		return errQuit
	}
}

// send walks through one transfer and leaves it with the dispatcher.
func (s *shell) send(ctx context.Context, withToken bool) error {
	name, err := s.a.session.Account()
	if err != nil {
		return err
	}

	req := transaction.Request{}
	if withToken {
		tok, err := s.pickToken(name)
		if err != nil || tok == nil {
			return err
		}
		req.Token = tok
	}

	book, err := s.a.store.Beneficiaries(name)
	if err != nil {
		return err
	}
	if len(book) > 0 {
		views := make([]beneficiaryView, 0, len(book))
		for _, b := range book {
			views = append(views, beneficiaryView{Label: b.Label, Address: b.Address.Hex()})
		}
		if err := s.a.renderBeneficiaries(s.out, views); err != nil {
			return err
		}
	}
	req.Recipient, err = s.a.prompter.Ask("Recipient (0x address or beneficiary)", func(in string) error {
		_, err := transaction.ResolveRecipient(s.a.store, name, in)
		if errors.Is(err, satchelerr.ErrBeneficiaryNotFound) {
			// an unknown label is a typo here, not a lookup failure
			return satchelerr.WithSuggestion(satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{
				"recipient": in,
				"reason":    "not a saved beneficiary",
			}), satchelerr.Suggestion(err))
		}
		return err
	})
	if err != nil {
		return err
	}

	req.Amount, err = s.askAmount(req.Token)
	if err != nil {
		return err
	}

	tier, err := s.pickGasTier()
	if err != nil {
		return err
	}

	cctx, cancel := s.a.chainContext(ctx)
	defer cancel()
	p, err := s.price(cctx, req, tier)
	if err != nil {
		return err
	}
	if err := s.a.confirmTransfer(p, false); err != nil {
		if errors.Is(err, satchelerr.ErrTransferCancelled) {
			s.a.msg.Infof("Transfer cancelled")
			return nil
		}
		return err
	}

	id, err := s.jobs.Submit(p)
	if err != nil {
		return err
	}
	s.a.msg.Infof("Transfer %s submitted; the result will be shown when it is mined", shortID(id))
	return nil
}

func (s *shell) askAmount(token *account.Token) (string, error) {
	unit := s.a.session.Network().Symbol
	if token != nil {
		unit = "whole " + token.Symbol
	}
	return s.a.prompter.Ask(fmt.Sprintf("Amount (%s)", unit), func(in string) error {
		_, err := transaction.ParseAmount(in, token)
		return err
	})
}

// price drafts and estimates req. A transfer the account cannot pay for
// stays in Drafting and the amount is asked again.
func (s *shell) price(ctx context.Context, req transaction.Request, tier eth.GasTier) (*transaction.PendingTransfer, error) {
	b := s.a.builder()
	p, err := b.Draft(req)
	if err != nil {
		return nil, err
	}
	for {
		err := b.Estimate(ctx, p, tier)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, satchelerr.ErrInsufficientFunds) {
			_ = p.Cancel()
			return nil, err
		}
		s.report(err)

		amount, err := s.askAmount(req.Token)
		if err == nil {
			err = b.Amend(p, amount)
		}
		if err != nil {
			_ = p.Cancel()
			return nil, err
		}
	}
}

func (s *shell) pickToken(name string) (*account.Token, error) {
	network := s.a.session.Network()
	tokens, err := s.a.store.Tokens(name, network.ChainID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		s.a.msg.Infof("No tokens tracked on %s. Add one first.", network.Name)
		return nil, nil
	}

	options := make([]string, len(tokens))
	for i, t := range tokens {
		options[i] = fmt.Sprintf("%s (%s)", t.Symbol, t.Address.Hex())
	}
	i, err := s.a.prompter.Select("Token", options)
	if err != nil {
		return nil, err
	}
	return &tokens[i], nil
}

func (s *shell) pickGasTier() (eth.GasTier, error) {
	tiers := eth.GasTiers()
	def := eth.GasTier(s.a.cfg.Transfer.GasTier)
	options := make([]string, len(tiers))
	for i, t := range tiers {
		options[i] = string(t)
		if t == def {
			options[i] += " (configured)"
		}
	}
	i, err := s.a.prompter.Select("Gas price", options)
	if err != nil {
		return "", err
	}
	return tiers[i], nil
}

func (s *shell) balance(ctx context.Context) error {
	cctx, cancel := s.a.chainContext(ctx)
	defer cancel()
	report, err := s.a.balanceService(false).Fetch(cctx)
	if err != nil {
		return err
	}
	return s.a.renderBalances(report)
}

func (s *shell) switchNetwork(ctx context.Context) error {
	views := s.a.networkViews()
	options := make([]string, len(views))
	for i, v := range views {
		options[i] = fmt.Sprintf("%s (%d)", v.Name, v.ChainID)
		if v.Selected {
			options[i] += " *"
		}
	}
	i, err := s.a.prompter.Select("Network", options)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, switchNetworkTimeout)
	defer cancel()
	if err := s.a.session.SwitchNetwork(cctx, views[i].ChainID); err != nil {
		return err
	}
	s.a.msg.Successf("Switched to %s", views[i].Name)
	return nil
}

func (s *shell) addToken(ctx context.Context, name string) error {
	address, err := s.a.prompter.Ask("Token contract address", func(in string) error {
		_, err := eth.ParseAddress(in)
		return err
	})
	if err != nil {
		return err
	}

	cctx, cancel := s.a.chainContext(ctx)
	defer cancel()
	tok, err := s.a.addToken(cctx, name, address)
	if err != nil {
		return err
	}
	s.a.msg.Successf("Tracking %s (%s, %d decimals)", tok.Symbol, tok.Name, tok.Decimals)
	return nil
}

func (s *shell) beneficiaries(name string) error {
	for {
		book, err := s.a.store.Beneficiaries(name)
		if err != nil {
			return err
		}
		views := make([]beneficiaryView, 0, len(book))
		for _, b := range book {
			views = append(views, beneficiaryView{Label: b.Label, Address: b.Address.Hex()})
		}
		if err := s.a.renderBeneficiaries(s.out, views); err != nil {
			return err
		}

		choice, err := s.a.prompter.Select("Beneficiaries", []string{"Add", "Remove", "Back"})
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			err = s.addBeneficiary(name)
		case 1:
			err = s.removeBeneficiary(name, views)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *shell) addBeneficiary(name string) error {
	label, err := s.a.prompter.Ask("Label", account.ValidateLabel)
	if err != nil {
		return err
	}
	address, err := s.a.prompter.Ask("Address", func(in string) error {
		_, err := eth.ParseAddress(in)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.a.store.AddBeneficiary(name, label, address); err != nil {
		return err
	}
	s.a.msg.Successf("Saved %s", strings.TrimSpace(label))
	return nil
}

func (s *shell) removeBeneficiary(name string, views []beneficiaryView) error {
	if len(views) == 0 {
		return nil
	}
	options := make([]string, len(views))
	for i, v := range views {
		options[i] = v.Label
	}
	i, err := s.a.prompter.Select("Remove which?", options)
	if err != nil {
		return err
	}
	if err := s.a.store.RemoveBeneficiary(name, views[i].Label); err != nil {
		return err
	}
	s.a.msg.Successf("Removed %s", views[i].Label)
	return nil
}
