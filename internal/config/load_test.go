package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macarrie/relique/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newServerTree lays out a minimal server configuration directory and
// returns its path. Clients, schedules and module defaults are added
// by each test.
func newServerTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "server.toml"), `
bind_addr = "127.0.0.1"
port = 9433
backup_storage_path = "`+dir+`/storage"
modules_install_path = "`+dir+`/modules"
`)
	return dir
}

func TestLoadServerNoClients(t *testing.T) {
	dir := newServerTree(t)

	cfg, checks, err := LoadServer(filepath.Join(dir, "server.toml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, 9433, cfg.Port)
	require.NotNil(t, cfg.ConfigVersion)
	assert.Empty(t, cfg.Clients)

	require.Len(t, checks, 1)
	assert.Equal(t, "clients", checks[0].Key)
	assert.Equal(t, SeverityWarning, checks[0].Level)
	assert.Equal(t, "No clients defined", checks[0].Desc)
	assert.False(t, HasCritical(checks))
}

func TestLoadServerStampsFreshVersion(t *testing.T) {
	dir := newServerTree(t)
	path := filepath.Join(dir, "server.toml")

	first, _, err := LoadServer(path)
	require.NoError(t, err)
	second, _, err := LoadServer(path)
	require.NoError(t, err)

	assert.NotEqual(t, first.ConfigVersion, second.ConfigVersion)
}

func TestLoadServerClientRecords(t *testing.T) {
	dir := newServerTree(t)
	writeFile(t, filepath.Join(dir, "modules", "generic", "default.toml"), `
module_type = "generic"
name = "generic"
backup_paths = ["/var/data"]
pre_backup_script = "/usr/share/relique/pre.sh"
post_backup_script = "/usr/share/relique/post.sh"
`)
	writeFile(t, filepath.Join(dir, "schedules", "daily.toml"), `
name = "daily"
monday = "09:00-17:00"
tuesday = "09:00-17:00"
`)
	writeFile(t, filepath.Join(dir, "clients", "alpha.toml"), `
name = "alpha"
address = "10.0.0.3"

[[modules]]
module_type = "generic"
name = "alpha-data"
schedules = ["daily"]
pre_backup_script = "/opt/alpha/pre.sh"
`)

	cfg, checks, err := LoadServer(filepath.Join(dir, "server.toml"))
	require.NoError(t, err)
	assert.False(t, HasCritical(checks))
	require.Len(t, cfg.Clients, 1)

	client := cfg.Clients[0]
	assert.Equal(t, cfg.ConfigVersion, client.ConfigVersion)
	require.Len(t, client.Schedules, 1)
	assert.Equal(t, "daily", client.Schedules[0].Name)
	require.Len(t, client.Schedules[0].Monday, 1)
	assert.Equal(t, "09:00-17:00", client.Schedules[0].Monday[0].String())
	assert.Equal(t, types.DefaultClientPort, client.Port)
	assert.Equal(t, cfg.PublicAddress, client.ServerAddress, "pushed record points back at the server")
	assert.Equal(t, 9433, client.ServerPort)

	require.Len(t, client.Modules, 1)
	mod := client.Modules[0]
	assert.Equal(t, []string{"/var/data"}, mod.BackupPaths)
	assert.Equal(t, "/opt/alpha/pre.sh", mod.PreBackupScript, "client value wins over the catalog default")
	assert.Equal(t, "/usr/share/relique/post.sh", mod.PostBackupScript, "catalog default fills the empty field")
	assert.Equal(t, []string{"daily"}, mod.Schedules)
}

func TestLoadServerDuplicateClientName(t *testing.T) {
	dir := newServerTree(t)
	writeFile(t, filepath.Join(dir, "clients", "alpha1.toml"), "name = \"alpha\"\naddress = \"10.0.0.1\"\n")
	writeFile(t, filepath.Join(dir, "clients", "alpha2.toml"), "name = \"alpha\"\naddress = \"10.0.0.2\"\n")

	_, checks, err := LoadServer(filepath.Join(dir, "server.toml"))
	require.NoError(t, err)
	require.True(t, HasCritical(checks))

	var found bool
	for _, c := range checks {
		if c.Key == "clients.name" && c.Level == SeverityCritical {
			found = true
		}
	}
	assert.True(t, found, "expected a critical finding on clients.name, got %v", checks)
}

func TestLoadServerDuplicateEndpoint(t *testing.T) {
	dir := newServerTree(t)
	writeFile(t, filepath.Join(dir, "clients", "alpha.toml"), "name = \"alpha\"\naddress = \"10.0.0.1\"\n")
	writeFile(t, filepath.Join(dir, "clients", "beta.toml"), "name = \"beta\"\naddress = \"10.0.0.1\"\n")

	_, checks, err := LoadServer(filepath.Join(dir, "server.toml"))
	require.NoError(t, err)
	require.True(t, HasCritical(checks))

	var found bool
	for _, c := range checks {
		if c.Key == "clients.address, clients.port" {
			found = true
		}
	}
	assert.True(t, found, "both clients share the default port on the same address")
}

func TestLoadServerMissingModuleDefault(t *testing.T) {
	dir := newServerTree(t)
	writeFile(t, filepath.Join(dir, "clients", "alpha.toml"), `
name = "alpha"
address = "10.0.0.1"

[[modules]]
module_type = "ghost"
name = "alpha-ghost"
`)

	_, checks, err := LoadServer(filepath.Join(dir, "server.toml"))
	require.NoError(t, err)
	require.True(t, HasCritical(checks))
	assert.Equal(t, "modules.module_type", checks[0].Key)
}

func TestLoadServerUnknownKeysPermitted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "server.toml"), "port = 9000\nfuture_knob = true\n")

	cfg, _, err := LoadServer(filepath.Join(dir, "server.toml"))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadServerBadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "server.toml"), "port = [not toml")

	_, _, err := LoadServer(filepath.Join(dir, "server.toml"))
	assert.Error(t, err)
}

func TestLoadClientDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "client.toml"), "")

	cfg, err := LoadClient(filepath.Join(dir, "client.toml"))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultClientPort, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.BindAddr)
	assert.Equal(t, "/etc/relique/cert.pem", cfg.SSLCert)
	assert.False(t, cfg.StrictSSLCertificateCheck)
}

func TestCheckErrorFormat(t *testing.T) {
	err := CheckError{Key: "clients.name", Level: SeverityCritical, Desc: "Duplicate client name 'alpha'"}
	assert.Equal(t, "[Critical] Duplicate client name 'alpha' (key: 'clients.name')", err.Error())
}
