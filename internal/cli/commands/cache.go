package commands

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/apiorm/internal/cli/ui"
	"github.com/conduit-lang/apiorm/pkg/apiorm"
	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command
func NewCacheCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the filter description cache",
	}

	var clearFirst bool
	warm := &cobra.Command{
		Use:   "warm",
		Short: "Describe every filter on every resource and store the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, backend, err := openCached(cmd, opts)
			if err != nil {
				return err
			}
			defer api.Close()

			if clearFirst {
				if err := api.ClearCache(cmd.Context()); err != nil {
					return err
				}
			}
			n, err := api.WarmCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Cached %d filter descriptions in %s", n, backend), opts.noColor))
			return nil
		},
	}
	warm.Flags().BoolVar(&clearFirst, "clear", false, "drop stale descriptions before warming")

	cmd.AddCommand(warm, &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached filter description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, backend, err := openCached(cmd, opts)
			if err != nil {
				return err
			}
			defer api.Close()

			if err := api.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Cleared filter descriptions in %s", backend), opts.noColor))
			return nil
		},
	})
	return cmd
}

// openCached loads the API without a database, attached to the configured cache backend
func openCached(cmd *cobra.Command, opts *globalOptions) (*apiorm.API, string, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, "", err
	}
	if cfg.Cache.Backend == "none" {
		return nil, "", errors.New("the description cache is disabled (cache.backend: none)")
	}

	api, err := apiorm.Load(cfg)
	if err != nil {
		return nil, "", err
	}
	c, err := apiorm.NewCache(cmd.Context(), cfg.Cache)
	if err != nil {
		api.Close()
		return nil, "", err
	}
	return api.WithCache(c), cfg.Cache.Backend, nil
}
