package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/output"
)

type tokenView struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	ChainID  uint64 `json:"chain_id"`
}

func newTokenView(t account.Token) tokenView {
	return tokenView{
		Address:  t.Address.Hex(),
		Name:     t.Name,
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		ChainID:  t.ChainID,
	}
}

func (a *App) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Track ERC-20 tokens",
	}
	cmd.AddCommand(a.tokenAddCmd(), a.tokenListCmd(), a.tokenRemoveCmd())
	return cmd
}

func (a *App) tokenAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <address>",
		Short: "Track a token on the selected network",
		Long: `Track an ERC-20 token by contract address. Its name, symbol and decimals
are read from the contract on the selected network.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.chainContext(cmd.Context())
			defer cancel()

			tok, err := a.addToken(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			view := newTokenView(tok)
			return a.formatter.Emit(view, func(io.Writer) error {
				a.msg.Successf("Tracking %s (%s, %d decimals) on chain %d", view.Symbol, view.Name, view.Decimals, view.ChainID)
				return nil
			})
		},
	}
}

// addToken reads the contract's metadata and stores it for name.
func (a *App) addToken(ctx context.Context, name, address string) (account.Token, error) {
	if !a.store.Exists(name) {
		_, err := a.store.Container(name)
		return account.Token{}, err
	}
	addr, err := eth.ParseAddress(address)
	if err != nil {
		return account.Token{}, err
	}
	client, err := a.session.Client(ctx)
	if err != nil {
		return account.Token{}, err
	}
	info, err := client.TokenInfo(ctx, addr)
	if err != nil {
		return account.Token{}, err
	}

	tok := account.Token{
		Name:     info.Name,
		Symbol:   info.Symbol,
		Decimals: info.Decimals,
		Address:  info.Address,
		ChainID:  client.Network().ChainID,
	}
	if err := a.store.AddToken(name, tok); err != nil {
		return account.Token{}, err
	}
	return tok, nil
}

func (a *App) tokenListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list <name>",
		Short: "List tracked tokens on the selected network",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var (
				tokens []account.Token
				err    error
			)
			if all {
				tokens, err = a.store.AllTokens(args[0])
			} else {
				tokens, err = a.store.Tokens(args[0], a.session.Network().ChainID)
			}
			if err != nil {
				return err
			}

			views := make([]tokenView, 0, len(tokens))
			for _, t := range tokens {
				views = append(views, newTokenView(t))
			}
			return a.formatter.Emit(map[string][]tokenView{"tokens": views}, func(w io.Writer) error {
				if len(views) == 0 {
					a.msg.Infof("No tokens tracked on %s", a.session.Network().Name)
					return nil
				}
				t := output.NewTable("SYMBOL", "NAME", "DECIMALS", "CHAIN", "ADDRESS")
				t.AlignRight(2, 3)
				for _, v := range views {
					t.AddRow(v.Symbol, v.Name, strconv.Itoa(int(v.Decimals)), strconv.FormatUint(v.ChainID, 10), v.Address)
				}
				return t.Render(w)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include tokens on every network")
	return cmd
}

func (a *App) tokenRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name> <address>",
		Short: "Stop tracking a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			addr, err := eth.ParseAddress(args[1])
			if err != nil {
				return err
			}
			if err := a.store.RemoveToken(args[0], addr); err != nil {
				return err
			}
			return a.formatter.Emit(map[string]string{"token": addr.Hex(), "status": "removed"}, func(io.Writer) error {
				a.msg.Successf("Removed token %s", addr.Hex())
				return nil
			})
		},
	}
}
