package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/satchel/internal/output"
)

type networkView struct {
	ChainID  uint64 `json:"chain_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	URL      string `json:"url"`
	Explorer string `json:"explorer,omitempty"`
	Selected bool   `json:"selected"`
}

func (a *App) networkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Show known networks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List networks from the chain registry",
		Long: `List networks from the chain registry. Networks are read from chains.json
in the satchel home directory, or from the built-in list when it is absent.
Select one for a command with --chain.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			views := a.networkViews()
			return a.formatter.Emit(map[string][]networkView{"networks": views}, func(w io.Writer) error {
				return renderNetworks(w, views)
			})
		},
	})
	return cmd
}

func (a *App) networkViews() []networkView {
	selected := a.session.Network().ChainID
	networks := a.registry.Networks()
	views := make([]networkView, 0, len(networks))
	for _, n := range networks {
		views = append(views, networkView{
			ChainID:  n.ChainID,
			Name:     n.Name,
			Symbol:   n.Symbol,
			URL:      n.URL,
			Explorer: n.Explorer,
			Selected: n.ChainID == selected,
		})
	}
	return views
}

func renderNetworks(w io.Writer, views []networkView) error {
	t := output.NewTable("", "CHAIN", "NAME", "SYMBOL", "RPC")
	t.AlignRight(1)
	for _, v := range views {
		mark := ""
		if v.Selected {
			mark = "*"
		}
		t.AddRow(mark, strconv.FormatUint(v.ChainID, 10), v.Name, v.Symbol, v.URL)
	}
	return t.Render(w)
}
