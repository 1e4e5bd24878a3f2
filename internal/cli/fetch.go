package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
	"github.com/roach88/datastack/internal/stack"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Where []string
	Sort  []string
	Limit int
	One   bool
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <entity>",
		Short: "Fetch objects of an entity",
		Long: `Fetch objects from the foreground context.

Conditions compare one attribute with a literal using = != < <= > >=.
Several --where flags must all hold. Sort keys take an optional :asc or
:desc suffix; the first key is most significant.

Examples:
  datastack fetch Person
  datastack fetch Person --where "age>=21" --sort name
  datastack fetch Person --sort age:desc --one`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, `condition such as "age>=21" (repeatable)`)
	cmd.Flags().StringArrayVar(&opts.Sort, "sort", nil, "sort key[:asc|desc] (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of objects (0: no limit)")
	cmd.Flags().BoolVar(&opts.One, "one", false, "fetch the first match only")

	return cmd
}

func runFetch(opts *FetchOptions, entity string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	fetchOpts, err := buildFetchOptions(s.stack.Model(), entity, opts.Where, opts.Sort)
	if err != nil {
		return err
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	if opts.Limit > 0 {
		fetchOpts = append(fetchOpts, stack.Limit(opts.Limit))
	}

	ctx := cmd.Context()
	if opts.One {
		fetchOpts = append(fetchOpts, stack.Limit(1))
	}
	objs, err := s.fetch(ctx, entity, fetchOpts...)
	if err != nil {
		return err
	}
	s.out.VerboseLog("fetched %d %s", len(objs), entity)

	if s.out.JSON() {
		views := make([]ObjectView, 0, len(objs))
		for _, o := range objs {
			view, err := newObjectView(o)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		if opts.One {
			if len(views) == 0 {
				return s.out.Success(nil)
			}
			return s.out.Success(views[0])
		}
		return s.out.Success(views)
	}

	if len(objs) == 0 {
		return s.out.Success("no " + entity + " found")
	}
	lines := make([]string, 0, len(objs))
	for _, o := range objs {
		lines = append(lines, formatObject(o))
	}
	return s.out.Success(strings.Join(lines, "\n"))
}

// buildFetchOptions parses --where and --sort against the model.
func buildFetchOptions(model *ir.Model, entity string, where, sortKeys []string) ([]stack.FetchOption, error) {
	es, ok := model.Entity(entity)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown entity %q", entity))
	}

	var opts []stack.FetchOption
	pred, err := queryir.ParseConditions(es, where)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --where", err)
	}
	if pred != nil {
		opts = append(opts, stack.Where(pred))
	}

	if len(sortKeys) > 0 {
		descriptors := make([]queryir.SortDescriptor, 0, len(sortKeys))
		for _, key := range sortKeys {
			d, err := queryir.ParseSort(key)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "invalid --sort", err)
			}
			descriptors = append(descriptors, d)
		}
		opts = append(opts, stack.SortBy(descriptors...))
	}
	return opts, nil
}
