// Package resolver turns a host's role, its environment facts and the app
// inventory into the ordered artifact and action directives for one
// configuration run.
//
// Resolve is a pure function of its inputs. The one effectful step of the
// recipe, the SSL cipher patch, lives in package hardening and is gated by
// HardensSSL.
package resolver

import (
	"fmt"
	"strings"

	"github.com/eniac111/cookbook/internal/types"
)

// baseLogFiles are shipped on every host, ahead of the per-app logs.
var baseLogFiles = []string{
	"/var/log/nginx/*",
	"/var/log/chef.main.log",
	"/var/log/chef.custom.log",
	"/var/log/mysql/*",
	"/db/mysql/log/slow_query.log",
}

// Template identifiers understood by package templates.
const (
	TemplateDatabase    = "database.yml"
	TemplateSSLRedirect = "custom.conf"
	TemplateInitScript  = "init.d-remote_syslog"
	TemplateLogFiles    = "log_files.yml"
)

// Resolver resolves plans for one recipe.
type Resolver struct {
	recipe Recipe
}

// New returns a Resolver for the given recipe settings.
func New(recipe Recipe) *Resolver {
	return &Resolver{recipe: recipe}
}

// Recipe returns the settings the resolver was built with.
func (r *Resolver) Recipe() Recipe { return r.recipe }

// Resolve computes the plan for one host. Validation happens before any
// directive is built: on error the returned plan is empty.
func (r *Resolver) Resolve(role types.RoleDescriptor, env types.EnvironmentFacts, apps []types.AppDescriptor) (types.Plan, error) {
	if err := ValidateApps(apps); err != nil {
		return types.Plan{}, err
	}
	dbtype, err := DatabaseAdapter(env)
	if err != nil {
		return types.Plan{}, err
	}

	var plan types.Plan

	if r.recipe.SchedulesJobs(role) {
		plan.Actions = append(plan.Actions, r.scheduledJobs()...)
	}

	if WritesDatabaseConfig(role.InstanceRole) {
		for _, app := range apps {
			plan.Artifacts = append(plan.Artifacts, r.databaseConfig(app, env, dbtype))
		}
	}

	if WritesSSLRedirect(role.InstanceRole) {
		plan.Artifacts = append(plan.Artifacts, types.ArtifactDirective{
			TargetPath: r.recipe.SSLRedirectPath(),
			TemplateID: TemplateSSLRedirect,
			Owner:      env.SSHUsername,
			Group:      env.SSHUsername,
			Mode:       0o644,
			Variables:  map[string]interface{}{},
		})
	}

	plan.Actions = append(plan.Actions, types.ActionDirective{
		Label:     "install " + r.recipe.LogShipper + " gem",
		Command:   "gem install " + r.recipe.LogShipper,
		RunAsUser: "root",
		Stage:     types.StageSetup,
	})
	plan.Artifacts = append(plan.Artifacts,
		types.ArtifactDirective{
			TargetPath: r.recipe.InitScriptPath(),
			TemplateID: TemplateInitScript,
			Owner:      "root",
			Group:      "root",
			Mode:       0o755,
			Variables: map[string]interface{}{
				"name":        r.recipe.LogShipper,
				"config_file": r.recipe.LogFilesPath,
			},
		},
		types.ArtifactDirective{
			TargetPath: r.recipe.LogFilesPath,
			TemplateID: TemplateLogFiles,
			Owner:      env.SSHUsername,
			Group:      env.SSHUsername,
			Mode:       0o644,
			Variables: map[string]interface{}{
				"hostname":         env.Hostname,
				"log_files":        LogFiles(apps),
				"destination_host": r.recipe.LogDestination.Host,
				"destination_port": r.recipe.LogDestination.Port,
			},
		},
	)
	plan.Actions = append(plan.Actions, types.ActionDirective{
		Label:     "ensure " + r.recipe.LogShipper + " is running",
		Command:   r.recipe.InitScriptPath() + " restart",
		RunAsUser: "root",
		Stage:     types.StageFinalize,
	})

	return plan, nil
}

func (r *Resolver) scheduledJobs() []types.ActionDirective {
	job := func(label, task string, s types.Schedule) types.ActionDirective {
		return types.ActionDirective{
			Label:     label,
			Command:   r.recipe.rakeCommand(task),
			Schedule:  &s,
			RunAsUser: r.recipe.DeployUser,
			Stage:     types.StageSchedule,
		}
	}
	return []types.ActionDirective{
		job(fmt.Sprintf("Enqueue Scheduled %s Pitches", r.recipe.AppName), "tout:scheduler", r.recipe.DispatchSchedule),
		job("Remind Customers About Trials Ending", "trials:remind", r.recipe.ReminderSchedule),
		job("Run metrics", "metrics:process", r.recipe.MetricsSchedule),
	}
}

func (r *Resolver) databaseConfig(app types.AppDescriptor, env types.EnvironmentFacts, dbtype string) types.ArtifactDirective {
	return types.ArtifactDirective{
		TargetPath: DatabaseConfigPath(app.Name),
		TemplateID: TemplateDatabase,
		Owner:      env.SSHUsername,
		Group:      env.SSHUsername,
		Mode:       0o655,
		Variables: map[string]interface{}{
			"dbuser": env.SSHUsername,
			"dbpass": env.SSHPassword,
			"dbname": r.recipe.AppName,
			"dbhost": env.DBHost,
			"dbtype": dbtype,
			"slaves": append([]string{}, env.DBSlaveHosts...),
		},
	}
}

// DatabaseAdapter maps the environment's database stack onto the ORM
// adapter name written to database.yml.
func DatabaseAdapter(env types.EnvironmentFacts) (string, error) {
	switch env.DBStack {
	case types.DBStackMysql:
		return env.RubyComponentMysqlAdapter, nil
	case types.DBStackPostgres, types.DBStackPostgres9:
		return "postgresql", nil
	}
	return "", &ConfigurationError{Field: "db_stack", Value: string(env.DBStack)}
}

// LogFiles returns the files the log shipper follows: the fixed base list,
// then three logs per app in inventory order.
func LogFiles(apps []types.AppDescriptor) []string {
	files := make([]string, 0, len(baseLogFiles)+3*len(apps))
	files = append(files, baseLogFiles...)
	for _, app := range apps {
		files = append(files, AppLogPaths(app.Name)...)
	}
	return files
}

// ValidateApps rejects app names that would not form a single path
// component, and duplicates that would make two directives share a path.
func ValidateApps(apps []types.AppDescriptor) error {
	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		if err := ValidateAppName(app.Name); err != nil {
			return err
		}
		if seen[app.Name] {
			return &InvalidAppNameError{Name: app.Name, Reason: "duplicate app"}
		}
		seen[app.Name] = true
	}
	return nil
}

// ValidateAppName checks one app name.
func ValidateAppName(name string) error {
	switch {
	case name == "":
		return &InvalidAppNameError{Name: name, Reason: "empty name"}
	case name == "." || name == "..":
		return &InvalidAppNameError{Name: name, Reason: "relative path element"}
	case strings.ContainsAny(name, `/\`):
		return &InvalidAppNameError{Name: name, Reason: "contains a path separator"}
	case strings.ContainsRune(name, 0):
		return &InvalidAppNameError{Name: name, Reason: "contains a NUL byte"}
	}
	return nil
}
