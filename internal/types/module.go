package types

// Module is one backup unit on a client: a set of paths plus lifecycle
// scripts, activated by one or more schedule names. ModuleType names a
// catalog entry under the module install path; fields left empty in
// the client file are filled from that entry's default.toml at load
// time.
type Module struct {
	ModuleType        string     `json:"module_type" toml:"module_type"`
	Name              string     `json:"name" toml:"name"`
	BackupType        BackupType `json:"backup_type" toml:"backup_type"`
	Schedules         []string   `json:"schedules,omitempty" toml:"schedules"`
	BackupPaths       []string   `json:"backup_paths,omitempty" toml:"backup_paths"`
	PreBackupScript   string     `json:"pre_backup_script,omitempty" toml:"pre_backup_script"`
	PostBackupScript  string     `json:"post_backup_script,omitempty" toml:"post_backup_script"`
	PreRestoreScript  string     `json:"pre_restore_script,omitempty" toml:"pre_restore_script"`
	PostRestoreScript string     `json:"post_restore_script,omitempty" toml:"post_restore_script"`
}

// FillDefaults copies catalog defaults into any field the client file
// left empty. Merging is per-field: a module that overrides
// backup_paths still inherits the scripts it does not set.
func (m *Module) FillDefaults(defaults Module) {
	if len(m.BackupPaths) == 0 {
		m.BackupPaths = defaults.BackupPaths
	}
	if m.PreBackupScript == "" {
		m.PreBackupScript = defaults.PreBackupScript
	}
	if m.PostBackupScript == "" {
		m.PostBackupScript = defaults.PostBackupScript
	}
	if m.PreRestoreScript == "" {
		m.PreRestoreScript = defaults.PreRestoreScript
	}
	if m.PostRestoreScript == "" {
		m.PostRestoreScript = defaults.PostRestoreScript
	}
}
