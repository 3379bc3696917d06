package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

var orderCmd = &cobra.Command{
	Use:   "order [manifest]",
	Short: "Print the execution order of a manifest",
	Long: `Order prints the roles in the order run would invoke them. The order is
deterministic: among roles that are ready at the same time, the one declared
first in the manifest runs first.

Examples:
  foundry order
  foundry order plans/todo.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrder,
}

var orderJSON bool

func init() {
	orderCmd.Flags().BoolVar(&orderJSON, "json", false, "print the order as a JSON array")
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	m, err := loadManifest(currentEnv.manifestPath(firstArg(args)))
	if err != nil {
		return err
	}
	order, err := scheduler.Order(m)
	if err != nil {
		return classifyRunError(err, "")
	}

	if orderJSON {
		data, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to encode order: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printOrder(cmd.OutOrStdout(), m, order)
	return nil
}

func printOrder(out io.Writer, m *manifest.Manifest, order []string) {
	for i, id := range order {
		role, _ := m.Role(id)
		line := fmt.Sprintf("%2d. %s", i+1, id)
		if role.Name != "" && role.Name != id {
			line += fmt.Sprintf(" (%s)", role.Name)
		}
		if len(role.DependsOn) > 0 {
			line += " ← " + strings.Join(role.DependsOn, ", ")
		}
		fmt.Fprintln(out, line)
	}
}
