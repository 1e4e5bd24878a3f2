package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/schema"
)

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "entities",
		Short:         "List the configured model's entities",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntities(rootOpts, cmd)
		},
	}
}

func runEntities(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, _, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	model, err := schema.Load(cfg.Model.Dir, cfg.Model.Name)
	if err != nil {
		_ = out.Error(ErrCodeModelInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load model", err)
	}

	if out.JSON() {
		return out.Success(model.Entities)
	}

	lines := make([]string, 0, len(model.Entities))
	for _, name := range model.EntityNames() {
		es, _ := model.Entity(name)
		lines = append(lines, describeEntity(es))
	}
	return out.Success(strings.Join(lines, "\n"))
}

// describeEntity renders "Person: active bool, age int, ..." with
// attributes in name order.
func describeEntity(es *ir.EntitySchema) string {
	attrs := make([]string, 0, len(es.Attributes))
	for _, name := range es.AttributeNames() {
		attrs = append(attrs, fmt.Sprintf("%s %s", name, es.Attributes[name]))
	}
	return fmt.Sprintf("%s: %s", es.Name, strings.Join(attrs, ", "))
}
