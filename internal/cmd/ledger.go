package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/ledger"
	"github.com/felixgeelhaar/foundry/internal/tui"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Read and extend the run ledger",
	Long: `The run ledger lives in .foundry/ledger as four append-only markdown
streams: decisions, errors, learnings and feature_requests. Roles and the
orchestrator write to it during a run; people can add notes with 'ledger note'.`,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show [stream]",
	Short: "Print ledger entries",
	Long: `Show prints the entries of one stream, or of every stream when none is
given.

Examples:
  foundry ledger show
  foundry ledger show errors --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLedgerShow,
}

var ledgerNoteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Append a note to a ledger stream",
	Long: `Note appends an entry written by a person rather than a role. Without
--stream the stream is asked for interactively. Decisions need --why.

Examples:
  foundry ledger note --stream learnings "The API role needs the OpenAPI file as context"
  foundry ledger note --stream decisions --why "Team standard" "Use PostgreSQL"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLedgerNote,
}

var (
	ledgerJSON bool
	noteStream string
	noteAuthor string
	noteWhy    string
)

func init() {
	ledgerShowCmd.Flags().BoolVar(&ledgerJSON, "json", false, "print entries as JSON")
	ledgerNoteCmd.Flags().StringVarP(&noteStream, "stream", "s", "", "decisions, errors, learnings or feature_requests")
	ledgerNoteCmd.Flags().StringVar(&noteAuthor, "author", "human", "author recorded with the entry")
	ledgerNoteCmd.Flags().StringVar(&noteWhy, "why", "", "reason for a decision")

	ledgerCmd.AddCommand(ledgerShowCmd, ledgerNoteCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	streams := ledger.Streams()
	if len(args) == 1 {
		s, err := ledger.ParseStream(args[0])
		if err != nil {
			return err
		}
		streams = []ledger.Stream{s}
	}

	led, err := ledger.Open(currentEnv.Workspace.LedgerDir())
	if err != nil {
		return err
	}

	var all []ledger.Entry
	for _, s := range streams {
		entries, err := led.Entries(s)
		if err != nil {
			return err
		}
		all = append(all, entries...)
	}

	out := cmd.OutOrStdout()
	if ledgerJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}
	printEntries(out, all)
	return nil
}

func printEntries(out io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no entries")
		return
	}
	var stream ledger.Stream
	for _, e := range entries {
		if e.Stream != stream {
			stream = e.Stream
			fmt.Fprintf(out, "== %s ==\n", stream.Title())
		}
		fmt.Fprintf(out, "[%s] %s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.Author, e.ID)
		for _, line := range strings.Split(strings.TrimRight(e.Content, "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
}

func runLedgerNote(cmd *cobra.Command, args []string) error {
	stream := noteStream
	if stream == "" && tui.ShouldPrompt() {
		names := make([]string, 0, 4)
		for _, s := range ledger.Streams() {
			names = append(names, string(s))
		}
		var err error
		if stream, err = tui.PromptForSelect("Which stream?", names); err != nil {
			return err
		}
	}
	if stream == "" {
		return fmt.Errorf("required flag \"stream\" not set")
	}
	s, err := ledger.ParseStream(stream)
	if err != nil {
		return err
	}

	led, err := ledger.Open(currentEnv.Workspace.LedgerDir())
	if err != nil {
		return err
	}
	entry, err := appendNote(led, s, noteAuthor, strings.Join(args, " "), noteWhy)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", s, entry.ID)
	return nil
}

// appendNote writes a note. Decisions are recorded as a what/why pair like
// the ones roles produce.
func appendNote(led *ledger.Ledger, s ledger.Stream, author, text, why string) (ledger.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ledger.Entry{}, fmt.Errorf("note text is empty")
	}
	if s == ledger.Decisions {
		if strings.TrimSpace(why) == "" {
			return ledger.Entry{}, fmt.Errorf("required flag \"why\" not set for a decision")
		}
		return led.Append(s, author, ledger.FormatDecision(text, why))
	}
	return led.Append(s, author, text)
}
