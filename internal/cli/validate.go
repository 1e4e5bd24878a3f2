package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/datastack/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Model string
}

// ValidationResult is the JSON result of validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Model    string   `json:"model"`
	Path     string   `json:"path,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <model-dir>",
		Short: "Compile a model without opening a store",
		Long: `Compile <model>.cue or <model>.yaml from a directory and report errors.

Example:
  datastack validate ./models --model people`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "model name (required)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	path, err := schema.Find(dir, opts.Model)
	if err != nil {
		if errors.Is(err, schema.ErrModelNotFound) {
			_ = out.Error(ErrCodeModelInvalid, err.Error(), nil)
			return WrapExitError(ExitCommandError, "model not found", err)
		}
		return WrapExitError(ExitCommandError, "invalid model name", err)
	}
	out.VerboseLog("compiling %s", path)

	model, err := schema.LoadFile(opts.Model, path)
	if err != nil {
		var details any
		var compileErr *schema.CompileError
		if errors.As(err, &compileErr) {
			details = map[string]any{"field": compileErr.Field, "line": compileLine(compileErr)}
		}
		_ = out.Error(ErrCodeModelInvalid, err.Error(), details)
		return WrapExitError(ExitFailure, "model is invalid", err)
	}

	names := model.EntityNames()
	if out.JSON() {
		return out.Success(ValidationResult{Valid: true, Model: model.Name, Path: path, Entities: names})
	}
	return out.Success(fmt.Sprintf("✓ %s: %d entities (%s)", model.Name, len(names), strings.Join(names, ", ")))
}

func compileLine(e *schema.CompileError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return e.Line
}
