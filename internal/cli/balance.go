package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/output"
	"github.com/mrz1836/satchel/internal/service/balance"
)

type balanceView struct {
	Account string         `json:"account"`
	Address string         `json:"address"`
	ChainID uint64         `json:"chain_id"`
	Network string         `json:"network"`
	Assets  []balanceAsset `json:"assets"`
	Errors  []string       `json:"errors,omitempty"`
}

type balanceAsset struct {
	Token     string  `json:"token,omitempty"`
	Symbol    string  `json:"symbol"`
	Balance   string  `json:"balance"`
	Fiat      float64 `json:"fiat,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	Stale     bool    `json:"stale,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

func (a *App) balanceCmd() *cobra.Command {
	var (
		token   string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "balance <name>",
		Short: "Show native and token balances",
		Long: `Show the account's native balance and every token tracked on the selected
network. When the endpoint cannot be reached the last known balances are
shown and marked stale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.unlock(args[0]); err != nil {
				return err
			}
			ctx, cancel := a.chainContext(cmd.Context())
			defer cancel()

			svc := a.balanceService(noCache)
			var (
				report *balance.Report
				err    error
			)
			if token != "" {
				report, err = a.tokenReport(ctx, svc, token)
			} else {
				report, err = svc.Fetch(ctx)
			}
			if err != nil {
				return err
			}
			return a.renderBalances(report)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "show only this token contract")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not read or update the balance cache")
	return cmd
}

func (a *App) balanceService(noCache bool) *balance.Service {
	return balance.NewService(&balance.Config{
		Session: a.session,
		Tokens:  a.store,
		NoCache: noCache,
		Logger:  a.logger,
	})
}

func (a *App) tokenReport(ctx context.Context, svc *balance.Service, token string) (*balance.Report, error) {
	addr, err := eth.ParseAddress(token)
	if err != nil {
		return nil, err
	}
	entry, err := svc.Token(ctx, addr)
	if err != nil {
		return nil, err
	}
	state := a.session.State()
	return &balance.Report{
		Account: state.Account,
		Address: state.Address,
		Network: state.Network,
		Entries: []balance.Entry{*entry},
	}, nil
}

func (a *App) renderBalances(r *balance.Report) error {
	view := balanceView{
		Account: r.Account,
		Address: r.Address.Hex(),
		ChainID: r.Network.ChainID,
		Network: r.Network.Name,
		Assets:  make([]balanceAsset, 0, len(r.Entries)),
	}
	for i := range r.Entries {
		e := &r.Entries[i]
		asset := balanceAsset{
			Symbol:   e.Symbol,
			Balance:  e.Formatted(),
			Fiat:     e.Fiat,
			Currency: e.Currency,
			Stale:    e.Stale,
		}
		if !e.IsNative() {
			asset.Token = e.Token.Hex()
		}
		if !e.UpdatedAt.IsZero() {
			asset.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
		}
		view.Assets = append(view.Assets, asset)
	}
	for _, err := range r.Errors {
		view.Errors = append(view.Errors, err.Error())
	}

	return a.formatter.Emit(view, func(w io.Writer) error {
		a.msg.Infof("%s on %s (%s)", view.Account, view.Network, view.Address)

		t := output.NewTable("ASSET", "BALANCE", "VALUE")
		t.AlignRight(1, 2)
		for _, asset := range view.Assets {
			symbol := asset.Symbol
			if asset.Stale {
				symbol += " *"
			}
			value := ""
			if asset.Fiat > 0 {
				value = fiat.Format(asset.Fiat, asset.Currency)
			}
			t.AddRow(symbol, asset.Balance, value)
		}
		if err := t.Render(w); err != nil {
			return err
		}

		if r.Stale() {
			a.msg.Warnf("* endpoint unreachable, showing last known balances")
		}
		for _, e := range view.Errors {
			a.msg.Warnf("%s", e)
		}
		return nil
	})
}
