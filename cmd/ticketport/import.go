package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ticketport/ticketport/internal/config"
	"github.com/ticketport/ticketport/internal/debug"
	"github.com/ticketport/ticketport/internal/importer"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/telemetry"
	"github.com/ticketport/ticketport/internal/types"
	"github.com/ticketport/ticketport/internal/ui"
	"github.com/ticketport/ticketport/internal/validation"
)

var errNoInput = errors.New("no input specified")

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a source platform export",
	Long: `Import tickets, users or the custom field catalog from a source platform
export.

Reads from stdin when piped, or use -i for file input. Records already
imported are skipped, so an interrupted import can simply be re-run.`,
}

var importTicketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Import tickets with their comments and custom field values",
	Long: `Import tickets from a JSON array, a {"tickets": [...]} wrapper or JSON
Lines. Users and custom fields the tickets reference are created first.
Unresolvable users fall back to the administrator given with --admin.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		adminEmail, _ := cmd.Flags().GetString("admin")
		format = strings.ToLower(strings.TrimSpace(format))
		if format != "" && format != "json" && format != "jsonl" {
			FatalError("invalid --format %q (use json or jsonl)", format)
		}
		if adminEmail == "" {
			adminEmail = config.GetString("import.admin")
		}
		if adminEmail == "" {
			FatalErrorWithHint("no administrator specified",
				"Pass --admin EMAIL (or set import.admin); create one with 'ticketport admin create'")
		}

		data := mustReadInput(cmd)
		s := openStore()
		admin := mustFindAdmin(s, adminEmail)

		report, err := newImporter(s).ImportTickets(rootCtx, admin.ID, data, format)
		finishImport("Ticket import", report, err)
	},
}

var importUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Import users",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		data := mustReadInput(cmd)
		report, err := newImporter(openStore()).ImportUsers(rootCtx, data)
		finishImport("User import", report, err)
	},
}

var importFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Import the custom field catalog",
	Long: `Import the custom field catalog, either the CSV export (Title,Type,ID)
or a JSON list of field definitions. Fields created as placeholders by an
earlier ticket import are promoted in place.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		data := mustReadInput(cmd)
		report, err := newImporter(openStore()).ImportFieldCatalog(rootCtx, data)
		finishImport("Field catalog import", report, err)
	},
}

// newImporter builds an importer from the import.* config keys.
func newImporter(s storage.Storage) *importer.Importer {
	overrides, err := config.LoadMappingOverrides(config.GetString("import.mapping-file"))
	if err != nil {
		FatalError("%v", err)
	}
	mappings, err := importer.NewMappings(overrides)
	if err != nil {
		FatalError("invalid mapping file: %v", err)
	}
	return importer.New(s, importer.Options{
		SubmitterImpliesAgent: config.GetBool("import.submitter-implies-agent"),
		Mappings:              mappings,
		Logger:                debug.Logger(),
		Metrics:               telemetry.NewImportMetrics(),
	})
}

func mustFindAdmin(s storage.Storage, email string) *types.User {
	admin, err := s.GetUserByEmail(rootCtx, validation.NormalizeEmail(email))
	if err != nil {
		if storage.IsNotFound(err) {
			FatalErrorWithHint(fmt.Sprintf("no user with email %s", email),
				fmt.Sprintf("Run 'ticketport admin create --email %s' first", email))
		}
		FatalError("failed to look up administrator: %v", err)
	}
	return admin
}

func mustReadInput(cmd *cobra.Command) []byte {
	input, _ := cmd.Flags().GetString("input")
	data, err := readInput(input, os.Stdin)
	if errors.Is(err, errNoInput) {
		fmt.Fprintf(os.Stderr, "Error: No input specified.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s -i export.json     # Import from file\n", cmd.CommandPath())
		fmt.Fprintf(os.Stderr, "  cat export.json | %s  # Import from pipe\n", cmd.CommandPath())
		os.Exit(1)
	}
	if err != nil {
		FatalError("%v", err)
	}
	return data
}

// readInput reads the file at path, or stdin when path is empty. An
// interactive stdin is refused rather than waited on.
func readInput(path string, stdin *os.File) ([]byte, error) {
	if path != "" {
		// #nosec G304 - user-provided file path is intentional
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	}
	if stdin == nil || ui.IsTerminal(stdin) {
		return nil, errNoInput
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}

// finishImport prints the report. Skipped records do not change the exit
// status; a failed import does.
func finishImport(title string, report *types.ImportReport, err error) {
	if err != nil {
		FatalError("%s failed: %v", strings.ToLower(title), err)
	}
	if jsonOutput {
		outputJSON(report)
	} else if !debug.IsQuiet() || !report.Success {
		fmt.Print(ui.RenderReport(title, report))
	}
	if !report.Success {
		os.Exit(1)
	}
}

func init() {
	for _, c := range []*cobra.Command{importTicketsCmd, importUsersCmd, importFieldsCmd} {
		c.Flags().StringP("input", "i", "", "Input file (default: stdin)")
		importCmd.AddCommand(c)
	}
	importTicketsCmd.Flags().String("format", "", "Input layout hint: json or jsonl (detected when omitted)")
	importTicketsCmd.Flags().String("admin", "", "Email of the importing administrator")
	rootCmd.AddCommand(importCmd)
}
