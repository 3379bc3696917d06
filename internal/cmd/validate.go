package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate [manifest]",
	Short: "Check a manifest without running it",
	Long: `Validate loads a manifest and reports every problem at once: duplicate
role ids, unknown or cyclic dependencies, output paths claimed by more than
one role, and paths that escape the workspace.

Examples:
  foundry validate
  foundry validate plans/todo.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var validateJSON bool

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(validateCmd)
}

// validationReport is the --json output of validate.
type validationReport struct {
	Path    string           `json:"path"`
	Valid   bool             `json:"valid"`
	Project string           `json:"project,omitempty"`
	Roles   int              `json:"roles"`
	Outputs int              `json:"outputs"`
	Issues  []manifest.Issue `json:"issues,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := currentEnv.manifestPath(firstArg(args))
	m, err := loadManifest(path)

	report, err := buildValidationReport(path, m, err)
	if err != nil {
		return err
	}
	if validateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		printValidationReport(cmd.OutOrStdout(), report)
	}
	if !report.Valid {
		return ferrors.New(ferrors.ErrCodeManifestInvalid,
			fmt.Sprintf("manifest %s has %d issues", path, len(report.Issues)))
	}
	return nil
}

// buildValidationReport turns the result of loadManifest into a report.
// Errors other than validation failures are returned as is.
func buildValidationReport(path string, m *manifest.Manifest, loadErr error) (*validationReport, error) {
	report := &validationReport{Path: path}
	if loadErr != nil {
		var verr *manifest.ValidationError
		if !errors.As(loadErr, &verr) {
			return nil, loadErr
		}
		report.Issues = verr.Issues
		return report, nil
	}

	report.Valid = true
	report.Project = m.ProjectName
	report.Roles = len(m.Roles)
	for _, r := range m.Roles {
		report.Outputs += len(r.Outputs)
	}
	return report, nil
}

func printValidationReport(out io.Writer, r *validationReport) {
	if r.Valid {
		fmt.Fprintf(out, "✓ %s: project %s, %d roles, %d outputs\n", r.Path, r.Project, r.Roles, r.Outputs)
		return
	}
	fmt.Fprintf(out, "✗ %s: %d issues\n", r.Path, len(r.Issues))
	for _, issue := range r.Issues {
		fmt.Fprintf(out, "  - %s\n", issue)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
