package commands

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/conduit-lang/apiorm/internal/api/metadata"
	"github.com/conduit-lang/apiorm/internal/cli/ui"
	"github.com/conduit-lang/apiorm/internal/config"
	"github.com/conduit-lang/apiorm/pkg/apiorm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

type globalOptions struct {
	configPath string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "apiorm",
		Short: "Resource API queries over a relational mapping",
		Long: color.CyanString(`apiorm - resource operations over mapped entities

apiorm reads an entity mapping and resource definitions, then builds
the SQL each operation runs: filters, ordering, eager joins and pages.

Configuration is read from apiorm.yml and APIORM_* environment variables.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default ./apiorm.yml)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewSQLCommand(opts))
	rootCmd.AddCommand(NewDescribeCommand(opts))
	rootCmd.AddCommand(NewQueryCommand(opts))
	rootCmd.AddCommand(NewCacheCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			kv := ui.NewKeyValues(cmd.OutOrStdout(), color.NoColor)
			kv.Add("apiorm version", Version)
			kv.Add("Git commit", GitCommit)
			kv.Add("Build date", BuildDate)
			kv.Add("Go version", goVer)
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var failure ui.Failure
		if errors.As(err, &failure) {
			failure.Write(rootCmd.ErrOrStderr())
		} else {
			color.New(color.FgRed, color.Bold).Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}

func (o *globalOptions) load() (*config.Config, error) {
	if o.noColor {
		color.NoColor = true
	}
	return config.Load(o.configPath)
}

// findOperation resolves resource and operation names, turning unknown names into
// a failure listing the closest known ones
func findOperation(api *apiorm.API, resource, name string, noColor bool) (*apiorm.Operation, error) {
	op, err := api.Operation(resource, name)
	switch {
	case err == nil:
		return op, nil
	case errors.Is(err, metadata.ErrResourceClassNotFound):
		return nil, ui.NotFound("resource", resource, api.Resources().Names(),
			[]string{"List resources: apiorm describe"}, noColor)
	case errors.Is(err, metadata.ErrOperationNotFound):
		res, _ := api.Resources().Resource(resource)
		return nil, ui.NotFound("operation", name, operationNames(res),
			[]string{fmt.Sprintf("List operations: apiorm describe %s", resource)}, noColor)
	}
	return nil, err
}

func operationNames(res *metadata.Resource) []string {
	var names []string
	for _, ops := range [][]*metadata.Operation{res.Operations, res.GraphQLOperations} {
		for _, op := range ops {
			names = append(names, op.Name)
		}
	}
	sort.Strings(names)
	return names
}

// uriVariables converts --var flags to the map providers take
func uriVariables(vars map[string]string) map[string]interface{} {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
