// Package config loads and validates relique configuration: the daemon
// file itself (server.toml or client.toml) plus, for servers, the
// clients and schedules directories and the module defaults catalog.
package config

import (
	"net"
	"strconv"

	"github.com/google/uuid"

	"github.com/macarrie/relique/internal/schedule"
	"github.com/macarrie/relique/internal/types"
)

// DatabaseConfig selects the server job store. The sqlite driver is
// the default and needs no external service; postgres is available for
// installations that already run one.
type DatabaseConfig struct {
	Driver string `toml:"driver" json:"driver"`
	DSN    string `toml:"dsn" json:"dsn"`
}

// Config is the in-memory configuration document for either role.
// Server-only fields are left at their zero values when running as a
// client. ConfigVersion is never read from disk: the loader stamps a
// fresh one on every load, which is how clients detect configuration
// changes.
type Config struct {
	ConfigVersion *uuid.UUID `toml:"-" json:"config_version,omitempty"`

	BindAddr                  string `toml:"bind_addr" json:"bind_addr"`
	Port                      int    `toml:"port" json:"port"`
	PublicAddress             string `toml:"public_address" json:"public_address"`
	SSLCert                   string `toml:"ssl_cert" json:"ssl_cert"`
	SSLKey                    string `toml:"ssl_key" json:"ssl_key"`
	StrictSSLCertificateCheck bool   `toml:"strict_ssl_certificate_check" json:"strict_ssl_certificate_check"`

	ClientsCfgPath     string `toml:"clients_cfg_path" json:"clients_cfg_path"`
	SchedulesCfgPath   string `toml:"schedules_cfg_path" json:"schedules_cfg_path"`
	BackupStoragePath  string `toml:"backup_storage_path" json:"backup_storage_path"`
	ModulesInstallPath string `toml:"modules_install_path" json:"modules_install_path"`

	Database DatabaseConfig `toml:"database" json:"database"`

	Clients   []types.Client      `toml:"-" json:"clients,omitempty"`
	Schedules []schedule.Schedule `toml:"-" json:"schedules,omitempty"`
}

// DefaultServer returns the server configuration used when server.toml
// omits a field.
func DefaultServer() Config {
	return Config{
		BindAddr:           "0.0.0.0",
		Port:               types.DefaultServerPort,
		PublicAddress:      "localhost",
		SSLCert:            "/etc/relique/cert.pem",
		SSLKey:             "/etc/relique/key.pem",
		ClientsCfgPath:     "clients",
		SchedulesCfgPath:   "schedules",
		BackupStoragePath:  "/opt/relique",
		ModulesInstallPath: "/var/lib/relique/modules",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "/var/lib/relique/db/server.db",
		},
	}
}

// DefaultClient returns the client configuration used when client.toml
// omits a field.
func DefaultClient() Config {
	return Config{
		BindAddr: "0.0.0.0",
		Port:     types.DefaultClientPort,
		SSLCert:  "/etc/relique/cert.pem",
		SSLKey:   "/etc/relique/key.pem",
	}
}

// ListenAddr returns the address the HTTP listener binds to.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}
