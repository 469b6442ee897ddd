package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	thehive "github.com/mkivela/go-thehive"
)

var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List all available Cortex analyzers",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzers,
}

func runAnalyzers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	analyzers, err := client.Connectors.ListAnalyzers(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("=== %d AVAILABLE CORTEX ANALYZERS ===\n", len(analyzers))

	for _, group := range groupByCortex(analyzers, func(a *thehive.Analyzer) string { return a.CortexID }) {
		fmt.Printf("\n== Cortex Instance: %s ==\n", group.cortexID)
		sort.Slice(group.items, func(i, j int) bool {
			return strings.ToLower(group.items[i].Name) < strings.ToLower(group.items[j].Name)
		})
		for _, a := range group.items {
			fmt.Printf("- %s (ID: %s)\n", a.Name, a.ID)
			fmt.Printf("  Supported data types: %s\n", strings.Join(a.DataTypeList, ", "))
		}
	}

	return nil
}

// cortexGroup collects items belonging to one Cortex instance.
type cortexGroup[T any] struct {
	cortexID string
	items    []T
}

// groupByCortex buckets items by Cortex instance, instances sorted by ID.
func groupByCortex[T any](items []T, id func(T) string) []cortexGroup[T] {
	byID := make(map[string][]T)
	for _, item := range items {
		key := id(item)
		if key == "" {
			key = "Unknown"
		}
		byID[key] = append(byID[key], item)
	}

	keys := make([]string, 0, len(byID))
	for k := range byID {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]cortexGroup[T], 0, len(keys))
	for _, k := range keys {
		groups = append(groups, cortexGroup[T]{cortexID: k, items: byID[k]})
	}
	return groups
}
