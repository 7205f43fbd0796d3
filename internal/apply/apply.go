// Package apply materializes a resolved plan on a target host: scheduled
// actions go to the job scheduler, setup actions run, artifacts are
// rendered and written, then finalize actions run.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eniac111/cookbook/internal/hardening"
	"github.com/eniac111/cookbook/internal/inventory"
	"github.com/eniac111/cookbook/internal/modules/cron"
	"github.com/eniac111/cookbook/internal/modules/file"
	"github.com/eniac111/cookbook/internal/modules/shell"
	"github.com/eniac111/cookbook/internal/resolver"
	"github.com/eniac111/cookbook/internal/templates"
	"github.com/eniac111/cookbook/internal/types"
)

// Applier applies plans with one template set.
type Applier struct {
	Templates *templates.Set
	Log       *slog.Logger
	// DryRun renders every artifact but writes and runs nothing.
	DryRun bool
	Now    func() time.Time
}

// Report summarizes one target's run.
type Report struct {
	Target       string
	Results      []types.ModuleResult
	Hardening    []hardening.Outcome
	BytesWritten int64
}

// Changed counts the results that changed the target.
func (r *Report) Changed() int {
	n := 0
	for _, res := range r.Results {
		if res.Changed {
			n++
		}
	}
	return n
}

// Converge runs the best-effort SSL hardening for roles that need it and
// then applies the plan. Hardening failures are logged and kept in the
// report; they never fail the run.
func (a *Applier) Converge(ctx context.Context, t *Target, recipe resolver.Recipe, node *inventory.Node, plan types.Plan, m *Manifest) (*Report, error) {
	log := a.logger().With("target", t.Name)
	var outcomes []hardening.Outcome
	if resolver.HardensSSL(node.Role.InstanceRole) && !a.DryRun {
		outcomes = hardening.PatchSSLCiphers(t.FS, recipe.SSLConfigPath, node.Apps)
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				log.Warn("ssl cipher patch failed", "app", o.App, "path", o.Path, "error", o.Err)
			case o.Skipped:
				log.Debug("no ssl config to patch", "app", o.App, "path", o.Path)
			default:
				log.Info("ssl ciphers hardened", "app", o.App, "path", o.Path, "matches", o.Matches)
			}
		}
	}
	report, err := a.Apply(ctx, t, plan, m)
	if report != nil {
		report.Hardening = outcomes
	}
	return report, err
}

// Apply materializes plan on t. The first failing directive stops the run
// and is returned as an error; directives already applied stay in place.
func (a *Applier) Apply(ctx context.Context, t *Target, plan types.Plan, m *Manifest) (*Report, error) {
	log := a.logger().With("target", t.Name)
	if m == nil {
		m = NewManifest()
	}
	report := &Report{Target: t.Name}

	shellModule := shell.ShellModule{Runner: t.Runner, LoginUser: t.LoginUser}
	cronModule := cron.CronModule{Runner: t.Runner, LoginUser: t.LoginUser}
	fileModule := file.FileModule{FS: t.FS}

	runActions := func(stage types.Stage) error {
		for _, action := range plan.Actions {
			if action.Stage != stage {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if a.DryRun || t.SkipActions {
				log.Info("skipping action", "stage", stage, "label", action.Label, "command", action.Command)
				continue
			}
			var res types.ModuleResult
			if action.Scheduled() {
				res = cronModule.Run(ctx, action)
			} else {
				res = shellModule.Run(ctx, action)
			}
			if err := a.record(log, report, res); err != nil {
				return err
			}
		}
		return nil
	}

	if err := runActions(types.StageSchedule); err != nil {
		return report, err
	}
	if err := runActions(types.StageSetup); err != nil {
		return report, err
	}

	for _, d := range plan.Artifacts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		content, err := a.Templates.Render(d.TemplateID, d.Variables)
		if err != nil {
			return report, fmt.Errorf("%s: %w", d.TargetPath, err)
		}
		sum := file.ChecksumBytes(content)
		if a.DryRun {
			log.Info("would write", "path", d.TargetPath, "mode", d.Mode.String(), "size", humanize.Bytes(uint64(len(content))))
			continue
		}

		onTarget, statErr := file.Checksum(t.FS, d.TargetPath)
		if recorded, ok := m.Sum(d.TargetPath); ok && statErr == nil {
			if recorded == sum && onTarget == sum {
				// Content is current but mode and owner may have drifted.
				if err := a.record(log, report, fileModule.EnforceAttributes(d)); err != nil {
					return report, err
				}
				continue
			}
			if onTarget != recorded && onTarget != sum {
				log.Warn("artifact modified outside the cookbook", "path", d.TargetPath)
			}
		}

		res := fileModule.Run(d, content)
		if err := a.record(log, report, res); err != nil {
			return report, err
		}
		m.Record(d.TargetPath, d.TemplateID, sum, a.now())
	}

	if err := runActions(types.StageFinalize); err != nil {
		return report, err
	}

	log.Info("target converged",
		"results", len(report.Results),
		"changed", report.Changed(),
		"written", humanize.Bytes(uint64(report.BytesWritten)))
	return report, nil
}

func (a *Applier) record(log *slog.Logger, report *Report, res types.ModuleResult) error {
	report.Results = append(report.Results, res)
	if res.Failed {
		log.Error("directive failed", "module", res.Module, "name", res.Name, "msg", res.Msg)
		return fmt.Errorf("%s %q failed: %s", res.Module, res.Name, res.Msg)
	}
	if res.Changed {
		report.BytesWritten += res.Bytes
	}
	log.Info("directive applied", "module", res.Module, "name", res.Name, "changed", res.Changed)
	log.Debug(res.Msg)
	return nil
}

func (a *Applier) logger() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func (a *Applier) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
