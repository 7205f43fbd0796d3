// Package cron registers scheduled action directives in the crontab of
// the user they run as. Each entry is preceded by a marker comment holding
// its label, so re-runs update entries in place instead of duplicating them.
package cron

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorhill/cronexpr"

	"github.com/eniac111/cookbook/internal/modules/shell"
	"github.com/eniac111/cookbook/internal/types"
)

const markerPrefix = "# cookbook: "

// CronModule edits crontabs through a shell runner.
type CronModule struct {
	Runner    shell.Runner
	LoginUser string
}

// Run installs or updates the crontab entry for a scheduled action.
func (cm CronModule) Run(ctx context.Context, action types.ActionDirective) types.ModuleResult {
	res := types.ModuleResult{
		Name:   action.Label,
		Module: "cron",
	}
	if action.Schedule == nil {
		return failResult(res, "action has no schedule")
	}
	if action.Label == "" || strings.ContainsAny(action.Label, "\r\n") {
		return failResult(res, fmt.Sprintf("invalid cron label %q", action.Label))
	}
	if err := Validate(*action.Schedule); err != nil {
		return failResult(res, err.Error())
	}

	crontab := crontabCommand(cm.LoginUser, action.RunAsUser)

	current, errOut, err := cm.Runner.Run(ctx, crontab+" -l", nil)
	if err != nil {
		if !strings.Contains(errOut, "no crontab") {
			return failResult(res, "crontab -l: "+err.Error()+": "+strings.TrimSpace(errOut))
		}
		current = ""
	}

	updated, changed := Merge(current, action.Label, Line(action))
	if !changed {
		res.Msg = fmt.Sprintf("Cron job '%s' unchanged", action.Label)
		return res
	}

	if _, errOut, err := cm.Runner.Run(ctx, crontab+" -", strings.NewReader(updated)); err != nil {
		return failResult(res, "crontab install: "+err.Error()+": "+strings.TrimSpace(errOut))
	}
	res.Changed = true
	res.Msg = fmt.Sprintf("Cron job '%s' set to '%s'", action.Label, action.Schedule.Expression())
	return res
}

// crontabCommand picks the crontab invocation for editing runAs's table.
// The login user edits its own table directly, root uses -u, and anyone
// else needs sudo because crontab -u is restricted to root.
func crontabCommand(loginUser, runAs string) string {
	switch {
	case runAs == "" || runAs == loginUser:
		return "crontab"
	case loginUser == "root":
		return "crontab -u " + shell.Quote(runAs)
	default:
		return "sudo -n crontab -u " + shell.Quote(runAs)
	}
}

// Validate checks that the schedule forms a valid cron expression.
func Validate(s types.Schedule) error {
	if _, err := cronexpr.Parse(s.Expression()); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.Expression(), err)
	}
	return nil
}

// Line is the crontab line for a scheduled action.
func Line(action types.ActionDirective) string {
	return action.Schedule.Expression() + " " + action.Command
}

// Merge places line under the marker for label in a crontab, replacing
// the previous line for that label or appending a new entry.
func Merge(crontab, label, line string) (string, bool) {
	marker := markerPrefix + label
	lines := strings.Split(strings.TrimRight(crontab, "\n"), "\n")
	if crontab == "" {
		lines = nil
	}
	for i, l := range lines {
		if l != marker {
			continue
		}
		if i+1 < len(lines) {
			if lines[i+1] == line {
				return crontab, false
			}
			lines[i+1] = line
		} else {
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n") + "\n", true
	}
	lines = append(lines, marker, line)
	return strings.Join(lines, "\n") + "\n", true
}

func failResult(res types.ModuleResult, msg string) types.ModuleResult {
	res.Failed = true
	res.Msg = msg
	return res
}
