package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type catalogEntry struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newCatalogCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List diseases, health systems, countries and AI interventions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.runner.KnowledgeBase()
			var entries []catalogEntry
			for _, d := range store.ListDiseases() {
				entries = append(entries, catalogEntry{"disease", d.ID, d.Name})
			}
			for _, h := range store.ListHealthSystems() {
				entries = append(entries, catalogEntry{"health-system", h.ID, h.Name})
			}
			for _, c := range store.ListCountries() {
				entries = append(entries, catalogEntry{"country", c.ID, c.Name})
			}
			for _, iv := range store.ListInterventions() {
				entries = append(entries, catalogEntry{"intervention", string(iv.ID), iv.Name})
			}

			if jsonOut {
				return a.writeJSON(entries)
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tID\tNAME")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", strings.ToUpper(e.Kind), e.ID, e.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the catalog as JSON")
	return cmd
}
