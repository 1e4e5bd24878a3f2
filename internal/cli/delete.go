package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/datastack/internal/stack"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Where []string
}

// DeleteResult is the JSON result of delete and delete-all.
type DeleteResult struct {
	Entity  string `json:"entity,omitempty"`
	Deleted int    `json:"deleted"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <entity>",
		Short: "Delete matching objects and persist",
		Long: `Delete every object of an entity matching the --where conditions, then
persist. Without --where every object of the entity is deleted.

Example:
  datastack delete Person --where "age<18"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, `condition such as "age<18" (repeatable)`)

	return cmd
}

func runDelete(opts *DeleteOptions, entity string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	fetchOpts, err := buildFetchOptions(s.stack.Model(), entity, opts.Where, nil)
	if err != nil {
		return err
	}
	fetchOpts = append(fetchOpts, stack.IDsOnly())

	ctx := cmd.Context()
	fg := s.stack.Foreground()
	objs, err := s.fetch(ctx, entity, fetchOpts...)
	if err != nil {
		return err
	}
	s.stack.Delete(fg, objs...)

	if err := s.persist(ctx); err != nil {
		_ = s.out.Error(ErrCodeSave, err.Error(), nil)
		return err
	}

	if s.out.JSON() {
		return s.out.Success(DeleteResult{Entity: entity, Deleted: len(objs)})
	}
	return s.out.Success(fmt.Sprintf("deleted %d %s", len(objs), entity))
}

// NewDeleteAllCommand creates the delete-all command.
func NewDeleteAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every object of every entity and persist",
		Long: `Delete every instance of every entity in the model, then persist.
Fails without deleting anything when an entity cannot be fetched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteAll(rootOpts, cmd)
		},
	}
}

func runDeleteAll(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()

	// Count before deleting so the result reports what was removed. A store
	// that cannot be read fails the command before anything is deleted.
	total := 0
	for _, entity := range s.stack.Model().EntityNames() {
		objs, err := s.fetch(ctx, entity, stack.IDsOnly())
		if err != nil {
			return err
		}
		total += len(objs)
	}

	s.stack.DeleteAll(ctx)
	if err := s.persist(ctx); err != nil {
		_ = s.out.Error(ErrCodeSave, err.Error(), nil)
		return err
	}

	if s.out.JSON() {
		return s.out.Success(DeleteResult{Deleted: total})
	}
	return s.out.Success(fmt.Sprintf("deleted %d objects", total))
}
