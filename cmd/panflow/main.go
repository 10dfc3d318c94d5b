// Panflow - PAN-OS Configuration Transformation Tool
//
// A CLI tool for offline PAN-OS configuration surgery:
//   - Merge objects and policies between contexts or configurations
//   - Deduplicate value-equivalent objects with reference rewriting
//   - Split bidirectional NAT rules into explicit pairs
//   - Dry-run by default (preview changes, require -x to execute)
//   - Audit logging of all changes
//
// Context flags select the scope; commands operate within it:
//
//	panflow -c <config.xml> [--context <ctx>] <noun> <verb> [args] [-x]
//
// Context strings:
//
//	shared                 Shared objects (the default)
//	dg:<name>              Panorama device group
//	vsys:<name>            Firewall vsys
//
// Examples:
//
//	panflow -c panorama.xml object list address
//	panflow -c panorama.xml --context dg:branch object show address web-server
//	panflow -c panorama.xml merge object address web-server --from shared --to dg:branch -x
//	panflow -c fw.xml dedupe address --strategy shortest -x -o fw-clean.xml
//	panflow -c fw.xml nat split rule1 -x
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panflow-net/panflow/pkg/audit"
	"github.com/panflow-net/panflow/pkg/cli"
	"github.com/panflow-net/panflow/pkg/panflow/configio"
	"github.com/panflow-net/panflow/pkg/panflow/engine"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/settings"
	"github.com/panflow-net/panflow/pkg/util"
	"github.com/panflow-net/panflow/pkg/version"
)

var (
	// Global context flags (set the scope for operations)
	configPath  string // -c, --config
	contextFlag string // --context
	deviceType  string // --device-type
	panosVer    string // --panos-version

	// Global option flags
	executeMode bool
	outputPath  string
	verbose     bool
	jsonOutput  bool

	// Global state
	userSettings *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "panflow",
	Short:             "PAN-OS Configuration Transformation Tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Panflow transforms exported PAN-OS configurations offline.

Context flags select the scope; commands operate within it.
Write commands preview changes by default; use -x to execute.

  panflow -c <config.xml> [--context <ctx>] <noun> <verb> [args] [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for certain commands
		if isSettingsOrHelp(cmd) {
			return nil
		}

		// Load user settings
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Apply defaults from settings
		if configPath == "" {
			configPath = userSettings.DefaultConfig
		}
		if deviceType == "" {
			deviceType = userSettings.DeviceType
		}
		if panosVer == "" {
			panosVer = userSettings.Version
		}

		// Set log level: quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		// Initialize audit logger
		auditPath := "panflow_audit.log"
		if home, err := os.UserHomeDir(); err == nil {
			auditPath = home + "/.panflow/audit.log"
		}
		auditLogger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

func init() {
	// Context flags (scope selectors)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration XML file")
	rootCmd.PersistentFlags().StringVar(&contextFlag, "context", "shared", "Context (shared, dg:<name>, vsys:<name>)")
	rootCmd.PersistentFlags().StringVar(&deviceType, "device-type", "", "Override device type (firewall or panorama)")
	rootCmd.PersistentFlags().StringVar(&panosVer, "panos-version", "", "Override PAN-OS version (e.g. 10.1)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Write flags (-x/-o) and output flags (--json) are local to commands that use them.
	// Use addWriteFlags(cmd) and addOutputFlags(cmd) to register them.

	// ============================================================================
	// Command Groups
	// ============================================================================

	rootCmd.AddGroup(
		&cobra.Group{ID: "transform", Title: "Transformations:"},
		&cobra.Group{ID: "query", Title: "Queries & Reports:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{mergeCmd, dedupeCmd, natCmd, objectCmd, policyCmd} {
		cmd.GroupID = "transform"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{reportCmd, checkCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("panflow dev build (use 'make build' for version info)")
		} else {
			fmt.Printf("panflow %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}

// ============================================================================
// Engine Helpers - Load configuration and resolve scope from flags
// ============================================================================

// loadEngine parses the configuration named by -c (or settings default)
// and builds an engine over it, honoring device-type and version overrides.
func loadEngine() (*engine.Engine, error) {
	if configPath == "" {
		return nil, fmt.Errorf("configuration required: use -c <config.xml> or set a default via 'panflow settings set config <path>'")
	}
	tree, err := configio.Load(configPath)
	if err != nil {
		return nil, err
	}
	var opts []engine.Option
	if deviceType != "" {
		dt := pan.DeviceType(deviceType)
		if !dt.Valid() {
			return nil, fmt.Errorf("invalid device type %q (valid: firewall, panorama)", deviceType)
		}
		opts = append(opts, engine.WithDeviceType(dt))
	}
	if panosVer != "" {
		v, err := pan.ParseVersion(panosVer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithVersion(v))
	}
	return engine.New(tree, opts...)
}

// loadEngineAt is loadEngine for an explicit file, used by cross-config merges.
func loadEngineAt(path string) (*engine.Engine, error) {
	tree, err := configio.Load(path)
	if err != nil {
		return nil, err
	}
	return engine.New(tree)
}

// parseContext turns a context string into a pan.Context.
// Accepted forms: "shared", "dg:<name>", "device-group:<name>", "vsys:<name>".
func parseContext(s string) (pan.Context, error) {
	if s == "" || s == "shared" {
		return pan.Shared(), nil
	}
	prefix, name, found := strings.Cut(s, ":")
	if !found || name == "" {
		return pan.Context{}, fmt.Errorf("invalid context %q (use shared, dg:<name>, or vsys:<name>)", s)
	}
	switch prefix {
	case "dg", "device-group":
		return pan.DeviceGroup(name), nil
	case "vsys":
		return pan.Vsys(name), nil
	case "template":
		return pan.Template(name), nil
	default:
		return pan.Context{}, fmt.Errorf("invalid context %q (use shared, dg:<name>, or vsys:<name>)", s)
	}
}

// currentContext resolves the --context flag.
func currentContext() (pan.Context, error) {
	return parseContext(contextFlag)
}

// ============================================================================
// Output Helpers
// ============================================================================

// Helper to print dry-run notice
func printDryRunNotice() {
	if !executeMode {
		fmt.Println("\n" + yellow("DRY-RUN: No changes written. Use -x to execute."))
	}
}

// commitTree writes the transformed tree when -x was given, to -o or back
// over the input file. Without -x it prints the dry-run notice instead.
func commitTree(eng *engine.Engine) error {
	if !executeMode {
		printDryRunNotice()
		return nil
	}
	dest := outputPath
	if dest == "" {
		dest = configPath
	}
	if err := configio.Save(eng.Tree(), dest); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}
	fmt.Println("\n" + green("Configuration written to "+dest))
	return nil
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// addWriteFlags registers -x/--execute and -o/--output as local flags.
// For noun-group parent commands, these are PersistentFlags so subcommands inherit.
func addWriteFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
	flags.StringVarP(&outputPath, "output", "o", "", "Output file (default: overwrite input)")
}

// addOutputFlags registers --json as a local flag.
// For noun-group parent commands, this is a PersistentFlag so subcommands inherit.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}

// auditEvent logs a write-command outcome to the audit journal.
func auditEvent(operation string, kind, object string, ctx pan.Context, err error) {
	event := audit.NewEvent(currentUser(), configPath, operation).
		WithKind(kind).
		WithObject(object).
		WithContext(ctx.String()).
		WithExecuteMode(executeMode)
	if err != nil {
		event.WithError(err)
	} else {
		event.WithSuccess()
	}
	if logErr := audit.Log(event); logErr != nil {
		util.Warnf("audit log write failed: %v", logErr)
	}
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// Color helpers delegate to pkg/cli.
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
