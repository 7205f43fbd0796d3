package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eniac111/cookbook/internal/config"
	"github.com/eniac111/cookbook/internal/inventory"
	"github.com/eniac111/cookbook/internal/logging"
	"github.com/eniac111/cookbook/internal/resolver"
	"github.com/eniac111/cookbook/internal/types"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile   string
	nodeFile  string
	logLevel  string
	logFormat string
	only      string
)

var rootCmd = &cobra.Command{
	Use:   "cookbook",
	Short: "Resolve and apply the app server recipe for one host",
	Long: `cookbook reads a node document (role, environment facts, apps)
and works out what the host needs: recurring rake jobs, database.yml per
app, the HTTPS redirect, SSL cipher hardening and the remote_syslog log
shipper. It can print that plan or apply it locally or over SSH.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx handed to every subcommand.
func ExecuteContext(ctx context.Context) error {
	rootCmd.Version = Version
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cookbook.yaml)")
	rootCmd.PersistentFlags().StringVarP(&nodeFile, "node", "n", "node.yml", "node document, - for stdin")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&only, "only", "", "only artifacts whose target path matches this glob")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

// session is what every subcommand starts from.
type session struct {
	cfg  *config.Config
	log  *slog.Logger
	node *inventory.Node
	plan types.Plan
}

func load(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	log := logging.New(cfg.Logging, cmd.ErrOrStderr())

	node, err := inventory.File{Path: nodeFile, Stdin: cmd.InOrStdin()}.Node(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := resolver.New(cfg.ResolverRecipe()).Resolve(node.Role, node.Environment, node.Apps)
	if err != nil {
		log.Error("resolution failed", "role", node.Role.InstanceRole, "error", err)
		return nil, err
	}
	log.Debug("plan resolved",
		"role", node.Role.InstanceRole,
		"artifacts", len(plan.Artifacts),
		"actions", len(plan.Actions))

	return &session{cfg: cfg, log: log, node: node, plan: plan}, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}
