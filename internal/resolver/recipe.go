package resolver

import (
	"fmt"
	"path"

	"github.com/eniac111/cookbook/internal/types"
)

// Recipe carries the fixed, per-deployment settings of the cookbook: the
// application the recurring jobs belong to, the web server layout and the
// log shipper. It is loaded once from configuration.
type Recipe struct {
	AppName           string
	RailsEnv          string
	DeployUser        string
	SchedulerHostName string
	WebServer         string
	LogShipper        string
	LogFilesPath      string
	LogDestination    LogDestination

	DispatchSchedule types.Schedule
	ReminderSchedule types.Schedule
	MetricsSchedule  types.Schedule
}

// LogDestination is where the log shipper forwards lines.
type LogDestination struct {
	Host string
	Port int
}

// DefaultRecipe returns the settings the cookbook ships with.
func DefaultRecipe() Recipe {
	return Recipe{
		AppName:           "Tout",
		RailsEnv:          "production",
		DeployUser:        "deploy",
		SchedulerHostName: string(types.RoleResqueAndRedis),
		WebServer:         "nginx",
		LogShipper:        "remote_syslog",
		LogFilesPath:      "/etc/log_files.yml",
		LogDestination:    LogDestination{Host: "logs.papertrailapp.com", Port: 514},
		DispatchSchedule:  types.Schedule{Minute: "*/5"},
		ReminderSchedule:  types.Schedule{Hour: "12", Minute: "0"},
		MetricsSchedule:   types.Schedule{Hour: "3", Minute: "0"},
	}
}

// AppRoot is the deploy root of an application.
func AppRoot(appName string) string {
	return path.Join("/data", appName)
}

// DatabaseConfigPath is where database.yml is written for an app.
func DatabaseConfigPath(appName string) string {
	return path.Join(AppRoot(appName), "shared", "config", "database.yml")
}

// AppLogPaths returns the per-app log files shipped off the host.
func AppLogPaths(appName string) []string {
	dir := path.Join(AppRoot(appName), "current", "log")
	return []string{
		path.Join(dir, "production.log"),
		path.Join(dir, "resque.log"),
		path.Join(dir, "unicorn.log"),
	}
}

// ServersDir is the web server's per-site configuration directory.
func (r Recipe) ServersDir() string {
	return path.Join("/etc", r.WebServer, "servers")
}

// SSLConfigPath is the web server SSL config of an app.
func (r Recipe) SSLConfigPath(appName string) string {
	return path.Join(r.ServersDir(), appName+".ssl.conf")
}

// SSLRedirectPath is the custom config that forces HTTPS.
func (r Recipe) SSLRedirectPath() string {
	return path.Join(r.ServersDir(), r.AppName, "custom.conf")
}

// InitScriptPath is the start/stop script of the log shipper.
func (r Recipe) InitScriptPath() string {
	return path.Join("/etc/init.d", r.LogShipper)
}

func (r Recipe) rakeCommand(task string) string {
	return fmt.Sprintf("cd %s; RAILS_ENV=%s bundle exec rake %s",
		path.Join(AppRoot(r.AppName), "current"), r.RailsEnv, task)
}
