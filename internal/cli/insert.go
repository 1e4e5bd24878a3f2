package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Values string // JSON object
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <entity>",
		Short: "Insert one object and persist it",
		Long: `Insert an object into the foreground context and persist it.

Values are a JSON object. Numbers are coerced to the declared attribute
type; time attributes take RFC 3339 strings.

Example:
  datastack insert Person --values '{"name": "Ada", "age": 36}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Values, "values", "{}", "attribute values as a JSON object")

	return cmd
}

func runInsert(opts *InsertOptions, entity string, cmd *cobra.Command) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(opts.Values), &values); err != nil {
		return WrapExitError(ExitCommandError, "invalid --values JSON", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.entity(entity); err != nil {
		return err
	}

	obj, err := s.stack.Foreground().Insert(entity, values)
	if err != nil {
		return WrapExitError(ExitFailure, "insert failed", err)
	}
	if err := s.persist(cmd.Context()); err != nil {
		_ = s.out.Error(ErrCodeSave, err.Error(), nil)
		return err
	}

	if s.out.JSON() {
		view, err := newObjectView(obj)
		if err != nil {
			return err
		}
		return s.out.Success(view)
	}
	return s.out.Success(fmt.Sprintf("inserted %s", formatObject(obj)))
}
