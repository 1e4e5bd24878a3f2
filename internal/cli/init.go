package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/datastack/internal/config"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Path      string
	Model     string
	ModelDir  string
	Store     string
	StoreType string
	StoreDir  string
	Force     bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write a config file naming the model and the store.

The store name defaults to the model name. Existing files are kept unless
--force is given.

Examples:
  datastack init --model people
  datastack init --model people --store-type binary --store-dir ./data`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", config.DefaultConfigPath(), "where to write the config")
	cmd.Flags().StringVar(&opts.Model, "model", "", "model name (required)")
	cmd.Flags().StringVar(&opts.ModelDir, "model-dir", ".", "directory holding <model>.cue or <model>.yaml")
	cmd.Flags().StringVar(&opts.Store, "store", "", "store name (default: the model name)")
	cmd.Flags().StringVar(&opts.StoreType, "store-type", string(config.StoreSQLite), "storage medium (sqlite|binary|memory)")
	cmd.Flags().StringVar(&opts.StoreDir, "store-dir", "", "store directory (default: the documents directory)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if _, err := os.Stat(opts.Path); err == nil && !opts.Force {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", opts.Path))
	}

	cfg := config.DefaultConfig()
	cfg.Model.Name = opts.Model
	cfg.Model.Dir = opts.ModelDir
	cfg.Store.Name = opts.Store
	if cfg.Store.Name == "" {
		cfg.Store.Name = opts.Model
	}
	cfg.Store.Type = config.StoreType(opts.StoreType)
	cfg.Store.Dir = opts.StoreDir

	if err := cfg.Validate(); err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if err := cfg.Save(opts.Path); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}

	out.VerboseLog("store file: %s", cfg.StorePath())
	if out.JSON() {
		return out.Success(map[string]string{"path": opts.Path, "store": cfg.StorePath()})
	}
	return out.Success(fmt.Sprintf("wrote %s", opts.Path))
}
