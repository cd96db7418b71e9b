// Package cli implements the docselect command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"docselect/internal/docstore"
	"docselect/internal/document"
	"docselect/internal/home"
	"docselect/internal/logging"
	"docselect/internal/selection"
)

// env carries what the persistent flags resolve to. It is filled in by the
// root command's PersistentPreRunE.
type env struct {
	// base is the untagged root logger; logger tags records with the cli
	// component.
	base   *slog.Logger
	logger *slog.Logger
	home   home.Dir
	out    *printer
}

// NewRootCommand returns the docselect command with all subcommands wired in.
func NewRootCommand(version string) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:          "docselect",
		Short:        "Document selection language tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
	}

	root.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	root.PersistentFlags().String("schema", "", "schema file (default: <home>/schema.json)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.PersistentFlags().StringSlice("log-component", nil, "per-component log level, e.g. docstore=debug (components: cli, docstore)")
	root.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(
		newParseCmd(e),
		newEvalCmd(e),
		newBucketsCmd(e),
		newOrderCmd(e),
		newConvertCmd(e),
		newLoadCmd(e),
		newVisitCmd(e),
		versionCmd,
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	formatFlag, _ := cmd.Flags().GetString("log-format")
	componentFlags, _ := cmd.Flags().GetStringSlice("log-component")
	homeFlag, _ := cmd.Flags().GetString("home")
	output, _ := cmd.Flags().GetString("output")

	level, err := logging.ParseLevel(levelFlag)
	if err != nil {
		return err
	}
	components, err := logging.ParseComponentLevels(componentFlags)
	if err != nil {
		return err
	}
	logger, _, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Format:     formatFlag,
		Level:      level,
		Components: components,
	})
	if err != nil {
		return err
	}
	e.base = logger
	e.logger = logger.With("component", "cli")

	if homeFlag != "" {
		e.home = home.New(homeFlag)
	} else if e.home, err = home.Default(); err != nil {
		return err
	}

	switch output {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	e.out = newPrinter(output, cmd.OutOrStdout())
	return nil
}

// registry loads the schema named by --schema, or the home schema. A missing
// default schema yields an empty registry so pure selection commands work
// without one.
func (e *env) registry(cmd *cobra.Command, required bool) (*document.Registry, error) {
	path, _ := cmd.Flags().GetString("schema")
	explicit := path != ""
	if !explicit {
		path = e.home.SchemaPath()
	}
	reg, err := document.LoadSchemaFile(path)
	if err == nil {
		e.logger.Debug("schema loaded", "path", path, "types", reg.Types())
		return reg, nil
	}
	if explicit || required {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	e.logger.Debug("no schema, selections are not type-checked", "path", path, "error", err)
	return nil, nil
}

// selector parses text, checking field paths when a registry is available.
func (e *env) selector(text string, reg *document.Registry) (*selection.Selector, error) {
	var opts []selection.Option
	if reg != nil {
		opts = append(opts, selection.WithRegistry(reg))
	}
	return selection.New(text, opts...)
}

// openStore opens the home document store, creating the home directory.
func (e *env) openStore(cmd *cobra.Command) (*docstore.Store, error) {
	reg, err := e.registry(cmd, true)
	if err != nil {
		return nil, err
	}
	if err := e.home.EnsureExists(); err != nil {
		return nil, err
	}
	instance, err := e.home.InstanceID()
	if err != nil {
		return nil, err
	}
	return docstore.Open(e.home.StorePath(), reg,
		docstore.WithLogger(e.base.With("instance", instance)))
}
