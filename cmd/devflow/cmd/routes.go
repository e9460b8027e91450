package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/devflow/flow"
)

type routeView struct {
	Category     flow.TaskCategory `yaml:"category"`
	Primary      flow.ProviderID   `yaml:"primary"`
	Secondary    flow.ProviderID   `yaml:"secondary,omitempty"`
	Chosen       flow.ProviderID   `yaml:"chosen,omitempty"`
	UsedFallback bool              `yaml:"usedFallback"`
	Rationale    string            `yaml:"rationale"`
}

func newRoutesCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the task catalog and which provider each category resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			router := flow.NewRouter(flow.NewCredentialRegistry(a.credentials(a.cfg)))

			var views []routeView
			for _, m := range router.Mappings() {
				v := routeView{
					Category:  m.Category,
					Primary:   m.Primary,
					Secondary: m.Secondary,
					Rationale: m.Rationale,
				}
				res, err := router.Resolve(cmd.Context(), m.Category)
				switch {
				case err == nil:
					v.Chosen = res.Chosen.ID
					v.UsedFallback = res.UsedFallback
				case errors.Is(err, flow.ErrNoProviderConfigured):
				default:
					return err
				}
				views = append(views, v)
			}

			switch output {
			case "yaml":
				enc := yaml.NewEncoder(a.out)
				defer enc.Close()
				return enc.Encode(views)
			case "table":
				return writeRoutesTable(a, views)
			default:
				return fmt.Errorf("unknown output %q (want table or yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, yaml)")
	return cmd
}

func writeRoutesTable(a *app, views []routeView) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tPRIMARY\tSECONDARY\tCHOSEN\tFALLBACK")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			v.Category, v.Primary, orDash(string(v.Secondary)), orDash(string(v.Chosen)), v.UsedFallback)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
