package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/coedit/internal/harness"
)

// ValidatedScenario describes one scenario that loaded cleanly.
type ValidatedScenario struct {
	File       string `json:"file"`
	Name       string `json:"name"`
	Steps      int    `json:"steps"`
	Assertions int    `json:"assertions"`
}

// ValidationIssue is a scenario that failed to load.
type ValidationIssue struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	Scenarios []ValidatedScenario `json:"scenarios"`
	Errors    []ValidationIssue   `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario|dir>...",
		Short: "Validate scenarios without running them",
		Long: `Parse scenario files and check them against the scenario schema
without running them. YAML files are decoded strictly; CUE files are
unified with the embedded schema.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (invalid paths, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := findScenarioFiles(paths, "")
	if err != nil {
		return err
	}

	result := ValidationResult{Scenarios: []ValidatedScenario{}}
	for _, file := range files {
		f.VerboseLog("Validating %s", file)
		s, err := harness.LoadScenario(file)
		if err != nil {
			result.Errors = append(result.Errors, ValidationIssue{File: file, Message: err.Error()})
			continue
		}
		result.Scenarios = append(result.Scenarios, ValidatedScenario{
			File:       file,
			Name:       s.Name,
			Steps:      len(s.Steps),
			Assertions: len(s.Assertions),
		})
	}
	result.Valid = len(result.Errors) == 0

	if f.JSON() {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: ErrCodeInvalid, Message: "invalid scenarios", Details: result.Errors}
		}
		if err := f.Respond(result, cliErr); err != nil {
			return err
		}
	} else {
		for _, s := range result.Scenarios {
			f.Printf("✓ %s (%d steps, %d assertions)\n", s.Name, s.Steps, s.Assertions)
		}
		for _, e := range result.Errors {
			f.Printf("✗ %s\n  %s\n", e.File, e.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "invalid scenarios")
	}
	return nil
}
