package resolver

import "github.com/eniac111/cookbook/internal/types"

// The switches below list every InstanceRole so that a new role has to be
// placed in each gate explicitly (exhaustive linter).

// SchedulesJobs reports whether the host runs the recurring rake jobs.
func (r Recipe) SchedulesJobs(role types.RoleDescriptor) bool {
	return role.Name == r.SchedulerHostName || role.InstanceRole == types.RoleSolo
}

// WritesDatabaseConfig reports whether database.yml is written per app.
func WritesDatabaseConfig(role types.InstanceRole) bool {
	switch role {
	case types.RoleSolo, types.RoleApp, types.RoleAppMaster, types.RoleUtil:
		return true
	case types.RoleResqueAndRedis, types.RoleOther:
		return false
	}
	return false
}

// HardensSSL reports whether the per-app SSL cipher patch applies.
func HardensSSL(role types.InstanceRole) bool {
	switch role {
	case types.RoleApp, types.RoleAppMaster:
		return true
	case types.RoleSolo, types.RoleUtil, types.RoleResqueAndRedis, types.RoleOther:
		return false
	}
	return false
}

// WritesSSLRedirect reports whether the web server redirect config is written.
func WritesSSLRedirect(role types.InstanceRole) bool {
	switch role {
	case types.RoleSolo, types.RoleApp, types.RoleAppMaster:
		return true
	case types.RoleUtil, types.RoleResqueAndRedis, types.RoleOther:
		return false
	}
	return false
}
