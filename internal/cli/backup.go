package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/backup"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

type manifestView struct {
	File          string `json:"file,omitempty"`
	Account       string `json:"account"`
	Address       string `json:"address"`
	CreatedAt     string `json:"created_at"`
	Tokens        int    `json:"tokens"`
	Beneficiaries int    `json:"beneficiaries"`
	Encryption    string `json:"encryption"`
}

func newManifestView(path string, m *backup.Manifest) manifestView {
	return manifestView{
		File:          path,
		Account:       m.Account,
		Address:       m.Address.Hex(),
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
		Tokens:        m.Tokens,
		Beneficiaries: m.Beneficiaries,
		Encryption:    m.EncryptionMethod,
	}
}

func (a *App) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and restore encrypted account backups",
		Long: `Export and restore encrypted account backups.

A backup holds the account's keystore, tracked tokens and beneficiaries,
encrypted with age under the account password.`,
	}
	cmd.AddCommand(a.backupExportCmd(), a.backupImportCmd(), a.backupVerifyCmd())
	return cmd
}

func (a *App) backupService() *backup.Service {
	return backup.NewService(a.store, a.logger)
}

// retryPassword runs op with passwords read from the prompt. Only a wrong
// password is asked again; any other failure ends the loop.
func (a *App) retryPassword(label string, op func(pw string) error) error {
	var fatal error
	_, err := a.prompter.AskSecret(label, func(pw string) error {
		err := op(pw)
		if err == nil || satchelerr.Is(err, satchelerr.ErrWrongPassword) {
			return err
		}
		fatal = err
		return nil
	})
	if err != nil {
		return err
	}
	return fatal
}

func (a *App) backupExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write an encrypted backup of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			if filepath.Ext(path) == "" {
				path += backup.Extension
			}
			if !a.store.Exists(name) {
				_, err := a.store.Container(name)
				return err
			}

			var b *backup.Backup
			err := a.retryPassword(fmt.Sprintf("Password for %s", name), func(pw string) error {
				var err error
				b, err = a.backupService().Export(name, pw, path)
				return err
			})
			if err != nil {
				return err
			}

			view := newManifestView(path, &b.Manifest)
			return a.formatter.Emit(view, func(io.Writer) error {
				a.msg.Successf("Backup of %s written to %s (%d tokens, %d beneficiaries)",
					view.Account, view.File, view.Tokens, view.Beneficiaries)
				return nil
			})
		},
	}
}

func (a *App) backupImportCmd() *cobra.Command {
	var (
		name  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore an account from a backup",
		Long: `Restore an account from a backup. The account keeps the name it was
exported under unless --name is given. The password is the one the account
had when it was exported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc := a.backupService()
			m, err := svc.Verify(args[0])
			if err != nil {
				return err
			}
			target := name
			if target == "" {
				target = m.Account
			}
			if a.store.Exists(target) && !force {
				return satchelerr.WithSuggestion(
					satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"account": target, "reason": "already exists"}),
					"Use --name to import under a different name, or --force to replace it",
				)
			}

			err = a.retryPassword(fmt.Sprintf("Backup password for %s", m.Account), func(pw string) error {
				var err error
				m, err = svc.Import(args[0], pw, target, force)
				return err
			})
			if err != nil {
				return err
			}

			view := newManifestView(args[0], m)
			view.Account = target
			return a.formatter.Emit(view, func(io.Writer) error {
				a.msg.Successf("Restored %s (%s)", target, view.Address)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "import under this account name")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing account")
	return cmd
}

func (a *App) backupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a backup's integrity without decrypting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := a.backupService().Verify(args[0])
			if err != nil {
				return err
			}
			view := newManifestView(args[0], m)
			return a.formatter.Emit(view, func(w io.Writer) error {
				a.msg.Successf("Backup is intact")
				_, err := fmt.Fprintf(w, "  Account:        %s\n  Address:        %s\n  Created:        %s\n  Tokens:         %d\n  Beneficiaries:  %d\n",
					view.Account, view.Address, view.CreatedAt, view.Tokens, view.Beneficiaries)
				return err
			})
		},
	}
}
