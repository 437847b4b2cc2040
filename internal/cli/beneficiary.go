package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/output"
)

type beneficiaryView struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

func (a *App) beneficiaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "beneficiary",
		Aliases: []string{"contact"},
		Short:   "Manage an account's address book",
	}
	cmd.AddCommand(a.beneficiaryAddCmd(), a.beneficiaryRemoveCmd(), a.beneficiaryListCmd())
	return cmd
}

func (a *App) beneficiaryAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <label> <address>",
		Short: "Save an address under a label",
		Long:  "Save an address under a label. An existing label is replaced.",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.store.AddBeneficiary(args[0], args[1], args[2]); err != nil {
				return err
			}
			addr, err := a.store.Beneficiary(args[0], args[1])
			if err != nil {
				return err
			}
			view := beneficiaryView{Label: args[1], Address: addr.Hex()}
			return a.formatter.Emit(view, func(io.Writer) error {
				a.msg.Successf("Saved %s as %s", view.Address, view.Label)
				return nil
			})
		},
	}
}

func (a *App) beneficiaryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name> <label>",
		Short: "Remove a label",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.store.RemoveBeneficiary(args[0], args[1]); err != nil {
				return err
			}
			return a.formatter.Emit(map[string]string{"label": args[1], "status": "removed"}, func(io.Writer) error {
				a.msg.Successf("Removed %s", args[1])
				return nil
			})
		},
	}
}

func (a *App) beneficiaryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <name>",
		Short: "List saved addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			book, err := a.store.Beneficiaries(args[0])
			if err != nil {
				return err
			}
			views := make([]beneficiaryView, 0, len(book))
			for _, b := range book {
				views = append(views, beneficiaryView{Label: b.Label, Address: b.Address.Hex()})
			}
			return a.formatter.Emit(map[string][]beneficiaryView{"beneficiaries": views}, func(w io.Writer) error {
				return a.renderBeneficiaries(w, views)
			})
		},
	}
}

func (a *App) renderBeneficiaries(w io.Writer, views []beneficiaryView) error {
	if len(views) == 0 {
		a.msg.Infof("No beneficiaries saved")
		return nil
	}
	t := output.NewTable("LABEL", "ADDRESS")
	for _, v := range views {
		t.AddRow(v.Label, v.Address)
	}
	return t.Render(w)
}
