package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/protocol"
)

var parseCmd = &cobra.Command{
	Use:   "parse <response-file>",
	Short: "Parse a raw role response",
	Long: `Parse runs the output parser over a saved response, typically
<workspace>/<role>/.raw_response.txt, and lists the file segments it accepts,
the segments it skips and the decisions it extracts.

Examples:
  foundry parse backend/.raw_response.txt
  foundry parse response.txt --json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var parseJSON bool

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print the parse result as JSON, including file contents")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ferrors.NewFileNotFoundError(path)
	}
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeFileReadFailed, "cannot read "+path, err)
	}

	result, parseErr := protocol.Parse(string(data))
	out := cmd.OutOrStdout()
	if parseErr != nil {
		var noArtifacts *protocol.NoArtifactsError
		if errors.As(parseErr, &noArtifacts) {
			printParseResult(out, &protocol.Result{Skipped: noArtifacts.Skipped})
		}
		return ferrors.Wrap(ferrors.ErrCodeNoArtifacts, path+" has no usable file segments", parseErr)
	}

	if parseJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode parse result: %w", err)
		}
		return nil
	}
	printParseResult(out, result)
	return nil
}

func printParseResult(out io.Writer, r *protocol.Result) {
	fmt.Fprintf(out, "files (%d):\n", len(r.Artifacts))
	for _, a := range r.Artifacts {
		fmt.Fprintf(out, "  %s  %d bytes\n", a.Path, len(a.Content))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(out, "skipped (%d):\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(out, "  %s  line %d  %s\n", s.Path, s.Line, s.Reason)
		}
	}
	fmt.Fprintf(out, "decisions (%d):\n", len(r.Decisions))
	for _, d := range r.Decisions {
		fmt.Fprintf(out, "  - %s\n    why: %s\n", d.What, d.Why)
	}
}
