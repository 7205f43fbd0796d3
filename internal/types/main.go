package types

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// InstanceRole is the operational function assigned to a host.
type InstanceRole string

const (
	RoleSolo           InstanceRole = "solo"
	RoleApp            InstanceRole = "app"
	RoleAppMaster      InstanceRole = "app_master"
	RoleUtil           InstanceRole = "util"
	RoleResqueAndRedis InstanceRole = "resque_and_redis"
	RoleOther          InstanceRole = "other"
)

// InstanceRoles lists every known role in declaration order.
var InstanceRoles = []InstanceRole{
	RoleSolo, RoleApp, RoleAppMaster, RoleUtil, RoleResqueAndRedis, RoleOther,
}

// ParseInstanceRole maps a string onto the closed set of roles.
func ParseInstanceRole(s string) (InstanceRole, error) {
	for _, r := range InstanceRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown instance role %q", s)
}

// UnmarshalYAML rejects roles outside the closed set.
func (r *InstanceRole) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseInstanceRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// DBStack is the database engine family in use. It is kept as a plain
// string at decode time so that an unknown dialect surfaces from the
// resolver as a configuration error instead of a parse failure.
type DBStack string

const (
	DBStackMysql     DBStack = "mysql"
	DBStackPostgres  DBStack = "postgres"
	DBStackPostgres9 DBStack = "postgres9"
)

// RoleDescriptor names the current host and its role.
type RoleDescriptor struct {
	Name         string       `yaml:"name"`
	InstanceRole InstanceRole `yaml:"instance_role" validate:"required"`
}

// EnvironmentFacts are the per-environment values supplied by the inventory.
type EnvironmentFacts struct {
	SSHUsername               string   `yaml:"ssh_username" validate:"required"`
	SSHPassword               string   `yaml:"ssh_password"`
	DBHost                    string   `yaml:"db_host"`
	DBSlaveHosts              []string `yaml:"db_slaves_hostnames"`
	DBStack                   DBStack  `yaml:"db_stack"`
	RubyComponentMysqlAdapter string   `yaml:"mysql_adapter"`
	Hostname                  string   `yaml:"hostname"`
}

// AppDescriptor identifies one deployed application.
type AppDescriptor struct {
	Name string `yaml:"name" validate:"required"`
}

// Mode holds POSIX permission bits and prints them in octal.
type Mode uint32

// Perm converts the mode for use with os and sftp calls.
func (m Mode) Perm() os.FileMode { return os.FileMode(m).Perm() }

func (m Mode) String() string { return fmt.Sprintf("%04o", uint32(m)) }

// MarshalYAML emits the mode as an octal string such as "0644".
func (m Mode) MarshalYAML() (interface{}, error) { return m.String(), nil }

// UnmarshalYAML reads the value as octal digits, with or without a
// leading zero.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	v, err := strconv.ParseUint(value.Value, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", value.Value, err)
	}
	*m = Mode(v)
	return nil
}

// ArtifactDirective is one file to render and write on the target host.
type ArtifactDirective struct {
	TargetPath string                 `yaml:"target_path"`
	TemplateID string                 `yaml:"template"`
	Owner      string                 `yaml:"owner"`
	Group      string                 `yaml:"group"`
	Mode       Mode                   `yaml:"mode"`
	Variables  map[string]interface{} `yaml:"variables,omitempty"`
}

// Schedule holds the cron minute and hour fields of a recurring action.
// Empty fields mean "*".
type Schedule struct {
	Minute string `yaml:"minute,omitempty" mapstructure:"minute"`
	Hour   string `yaml:"hour,omitempty" mapstructure:"hour"`
}

// Expression returns the five-field cron expression for the schedule.
func (s Schedule) Expression() string {
	minute, hour := s.Minute, s.Hour
	if minute == "" {
		minute = "*"
	}
	if hour == "" {
		hour = "*"
	}
	return minute + " " + hour + " * * *"
}

// Stage orders unscheduled actions relative to artifact materialization.
type Stage string

const (
	// StageSchedule actions are registered with the job scheduler.
	StageSchedule Stage = "schedule"
	// StageSetup actions run before any artifact is written.
	StageSetup Stage = "setup"
	// StageFinalize actions run after every artifact is written.
	StageFinalize Stage = "finalize"
)

// ActionDirective is one command to run, once or on a schedule.
type ActionDirective struct {
	Label     string    `yaml:"label"`
	Command   string    `yaml:"command"`
	Schedule  *Schedule `yaml:"schedule,omitempty"`
	RunAsUser string    `yaml:"user"`
	Stage     Stage     `yaml:"stage"`
}

// Scheduled reports whether the action is a recurring job.
func (a ActionDirective) Scheduled() bool { return a.Schedule != nil }

// Plan is the output of one resolution pass.
type Plan struct {
	Artifacts []ArtifactDirective `yaml:"artifacts"`
	Actions   []ActionDirective   `yaml:"actions"`
}

// Inventory holds a list of hosts to manage.
type Inventory struct {
	Hosts []Host `yaml:"hosts" validate:"dive"`
}

// Host represents one machine in the inventory.
type Host struct {
	Name     string `yaml:"name" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password,omitempty"`
	Port     int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	KeyPath  string `yaml:"key_path,omitempty"` // Optional SSH key path
}

// ModuleResult is what each module returns.
type ModuleResult struct {
	Name    string `yaml:"name"`
	Module  string `yaml:"module"`
	Changed bool   `yaml:"changed"`
	Failed  bool   `yaml:"failed"`
	Msg     string `yaml:"msg"`
	Bytes   int64  `yaml:"bytes,omitempty"`
}
