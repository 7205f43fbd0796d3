package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eniac111/cookbook/internal/apply"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the plan for the node as YAML",
	Long: `Resolve the node document into artifact and action directives
and print them without touching the host.

Examples:
  cookbook resolve --node node.yml
  cookbook resolve --node - --only '/data/**' < node.json`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := load(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	plan, err := apply.Filter(s.plan, only)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
