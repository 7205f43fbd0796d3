package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eniac111/cookbook/internal/apply"
	"github.com/eniac111/cookbook/internal/ssh"
	"github.com/eniac111/cookbook/internal/templates"
)

var (
	dryRun bool
	root   string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the plan to the local host or to every inventory host",
	Long: `Apply resolves the node document, hardens SSL ciphers on app
servers and then materializes the plan: cron jobs, setup commands,
templated files and finally the log shipper restart.

With target.mode=ssh every host listed in the node document is configured
in turn over SSH/SFTP.

Examples:
  cookbook apply --node /etc/cookbook/node.yml
  cookbook apply --dry-run
  cookbook apply --root /tmp/render`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "render everything but write and run nothing")
	applyCmd.Flags().StringVar(&root, "root", "", "write artifacts under this directory and skip actions")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := load(ctx, cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		s.cfg.Apply.DryRun = dryRun
	}
	if cmd.Flags().Changed("root") {
		s.cfg.Apply.Root = root
	}

	plan, err := apply.Filter(s.plan, only)
	if err != nil {
		return err
	}

	set, err := templates.Load()
	if err != nil {
		return err
	}
	applier := &apply.Applier{Templates: set, Log: s.log, DryRun: s.cfg.Apply.DryRun}
	recipe := s.cfg.ResolverRecipe()

	converge := func(t *apply.Target) error {
		manifest := apply.NewManifest()
		if !applier.DryRun {
			if manifest, err = apply.LoadManifest(s.cfg.Apply.ManifestDir, t.Name); err != nil {
				return err
			}
		}
		report, err := applier.Converge(ctx, t, recipe, s.node, plan, manifest)
		if saveErr := manifest.Save(); saveErr != nil {
			s.log.Warn("could not save manifest", "target", t.Name, "error", saveErr)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d directives, %d changed, %s written\n",
			t.Name, len(report.Results), report.Changed(), humanize.Bytes(uint64(report.BytesWritten)))
		return nil
	}

	if s.cfg.Target.Mode == "local" {
		return converge(apply.Local(s.cfg.Apply.Root))
	}

	if len(s.node.Hosts) == 0 {
		return fmt.Errorf("target.mode is ssh but the node document lists no hosts")
	}
	opts := ssh.Options{
		KnownHostsPath:        s.cfg.Target.KnownHosts,
		InsecureIgnoreHostKey: s.cfg.Target.InsecureIgnoreHostKey,
		Logger:                s.log,
	}
	for _, host := range s.node.Hosts {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Target.ConnectTimeout)
		t, err := apply.Dial(dialCtx, host, opts)
		cancel()
		if err != nil {
			return err
		}
		err = converge(t)
		if cerr := t.Close(); cerr != nil {
			s.log.Warn("closing connection", "target", t.Name, "error", cerr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
