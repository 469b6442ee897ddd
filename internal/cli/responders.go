package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	thehive "github.com/mkivela/go-thehive"
)

var respondersCmd = &cobra.Command{
	Use:   "responders <entity_kind> <entity_id>",
	Short: "List the responders available for an entity",
	Long: `List the responders available for a specific entity.

Entity kinds: case, alert, observable, case_artifact. Observables are
looked up under every endpoint variant the server may expose.`,
	Args: cobra.ExactArgs(2),
	RunE: runResponders,
}

func runResponders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	responders, err := client.Connectors.RespondersFor(cmd.Context(), strings.ToLower(args[0]), args[1])
	if err != nil {
		return err
	}

	if len(responders) == 0 {
		fmt.Println("No responders available for this entity.")
		return nil
	}

	fmt.Printf("=== %d AVAILABLE RESPONDERS ===\n", len(responders))

	for _, group := range groupByCortex(responders, func(r *thehive.Responder) string { return r.CortexID }) {
		fmt.Printf("\nCortex Instance: %s\n", group.cortexID)
		sort.Slice(group.items, func(i, j int) bool {
			return strings.ToLower(group.items[i].Name) < strings.ToLower(group.items[j].Name)
		})
		for _, r := range group.items {
			fmt.Printf("- %s (ID: %s)\n", r.Name, r.ID)
			if r.Description != "" {
				fmt.Printf("  Description: %s\n", r.Description)
			}
		}
	}

	return nil
}
