package cli

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/output"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// accountView is the JSON shape of a single account.
type accountView struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Mnemonic string `json:"mnemonic,omitempty"`
	Explorer string `json:"explorer,omitempty"`
}

func (a *App) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create, import and manage accounts",
	}
	cmd.AddCommand(
		a.accountCreateCmd(),
		a.accountImportCmd(),
		a.accountListCmd(),
		a.accountAddressCmd(),
		a.accountPasswdCmd(),
		a.accountDeleteCmd(),
	)
	return cmd
}

func (a *App) accountCreateCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account from a new 12-word seed phrase",
		Long: `Create an account from a freshly generated 12-word seed phrase.

The phrase is shown once. Write it down: it is the only way to restore the
account if the password or the keystore file is lost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			secret, err := wallet.NewMnemonicSecret()
			if err != nil {
				return err
			}
			defer secret.Destroy()

			view, err := a.createAccount(args[0], secret, yes)
			if err != nil {
				return err
			}
			view.Mnemonic = secret.Reveal()

			return a.formatter.Emit(view, func(w io.Writer) error {
				a.msg.Successf("Created account %s", view.Name)
				_, err := fmt.Fprintf(w, "\nAddress: %s\n\nSeed phrase (write it down, it will not be shown again):\n\n  %s\n\n",
					view.Address, view.Mnemonic)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "overwrite an existing account without asking")
	return cmd
}

func (a *App) accountImportCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import an account from a seed phrase or private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			secret, err := a.askSecret()
			if err != nil {
				return err
			}
			defer secret.Destroy()

			view, err := a.createAccount(args[0], secret, yes)
			if err != nil {
				return err
			}

			return a.formatter.Emit(view, func(io.Writer) error {
				a.msg.Successf("Imported account %s (%s)", view.Name, view.Address)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "overwrite an existing account without asking")
	return cmd
}

// askSecret reads a seed phrase or private key, re-prompting until it
// classifies and derives cleanly.
func (a *App) askSecret() (*wallet.Secret, error) {
	var secret *wallet.Secret
	_, err := a.prompter.AskSecret("Seed phrase (12 words) or private key", func(input string) error {
		s, err := wallet.ParseSecret(input)
		if err != nil {
			return err
		}
		id, err := wallet.Build(s, big.NewInt(1))
		if err != nil {
			s.Destroy()
			if typos := wallet.DetectTypos(input); len(typos) > 0 {
				return satchelerr.WithSuggestion(err, wallet.FormatTypoSuggestions(typos))
			}
			return err
		}
		id.Destroy()
		secret = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// createAccount stores secret as name after asking for a password and
// unlocks it. An existing account is only overwritten after confirmation.
func (a *App) createAccount(name string, secret *wallet.Secret, yes bool) (*accountView, error) {
	if err := validateNewName(name); err != nil {
		return nil, err
	}
	if a.store.Exists(name) && !yes {
		ok, err := a.prompter.Confirm(fmt.Sprintf("Account %s exists. Overwrite its keystore?", name), false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, satchelerr.ErrCancelled
		}
	}

	password, err := a.newPassword()
	if err != nil {
		return nil, err
	}
	if _, err := a.store.Create(name, secret, password); err != nil {
		return nil, err
	}
	if err := a.session.Unlock(name, password); err != nil {
		return nil, err
	}
	addr, err := a.session.Address()
	if err != nil {
		return nil, err
	}

	return &accountView{
		Name:    name,
		Address: addr.Hex(),
		Kind:    secret.Kind().String(),
	}, nil
}

func (a *App) accountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			names, err := a.store.List()
			if err != nil {
				return err
			}
			return a.formatter.Emit(map[string][]string{"accounts": names}, func(w io.Writer) error {
				if len(names) == 0 {
					a.msg.Infof("No accounts yet. Create one with: satchel account create <name>")
					return nil
				}
				_, err := fmt.Fprintln(w, strings.Join(names, "\n"))
				return err
			})
		},
	}
}

func (a *App) accountAddressCmd() *cobra.Command {
	var showQR bool
	cmd := &cobra.Command{
		Use:   "address <name>",
		Short: "Show an account's receive address",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.unlock(args[0]); err != nil {
				return err
			}
			addr, err := a.session.Address()
			if err != nil {
				return err
			}
			return a.showAddress(args[0], addr, showQR)
		},
	}
	cmd.Flags().BoolVar(&showQR, "qr", false, "also print the address as a QR code")
	return cmd
}

func (a *App) showAddress(name string, addr common.Address, showQR bool) error {
	view := accountView{
		Name:     name,
		Address:  addr.Hex(),
		Explorer: a.session.Network().AddressLink(addr),
	}
	return a.formatter.Emit(view, func(w io.Writer) error {
		if _, err := fmt.Fprintln(w, view.Address); err != nil {
			return err
		}
		if view.Explorer != "" {
			if _, err := fmt.Fprintln(w, view.Explorer); err != nil {
				return err
			}
		}
		if showQR {
			return output.RenderQR(w, view.Address, true)
		}
		return nil
	})
}

func (a *App) accountPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <name>",
		Short: "Change an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.changePassword(args[0]); err != nil {
				return err
			}
			return a.formatter.Emit(map[string]string{"account": args[0], "status": "password changed"}, func(io.Writer) error {
				a.msg.Successf("Password changed for %s", args[0])
				return nil
			})
		},
	}
}

func (a *App) changePassword(name string) error {
	if !a.store.Exists(name) {
		_, err := a.store.Container(name)
		return err
	}
	old, err := a.prompter.AskSecret("Current password", func(pw string) error {
		secret, err := a.store.Unlock(name, pw)
		if err == nil {
			secret.Destroy()
		}
		return err
	})
	if err != nil {
		return err
	}
	password, err := a.newPassword()
	if err != nil {
		return err
	}
	return a.store.ChangePassword(name, old, password)
}

func (a *App) accountDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an account and everything stored with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			deleted, err := a.deleteAccount(args[0], yes)
			if err != nil || !deleted {
				return err
			}
			return a.formatter.Emit(map[string]string{"account": args[0], "status": "deleted"}, func(io.Writer) error {
				a.msg.Successf("Deleted account %s", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "do not ask for confirmation")
	return cmd
}

// deleteAccount removes name after confirmation and re-authentication.
func (a *App) deleteAccount(name string, yes bool) (bool, error) {
	if !a.store.Exists(name) {
		_, err := a.store.Container(name)
		return false, err
	}
	if !yes {
		ok, err := a.prompter.Confirm(fmt.Sprintf("Delete account %s with its tokens and beneficiaries? This cannot be undone", name), false)
		if err != nil || !ok {
			return false, err
		}
	}
	_, err := a.prompter.AskSecret(fmt.Sprintf("Password for %s", name), func(pw string) error {
		return a.store.Delete(name, pw)
	})
	return err == nil, err
}

func validateNewName(name string) error {
	if strings.TrimSpace(name) != name {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidName, "names cannot start or end with spaces")
	}
	return nil
}
