package types

import (
	"github.com/google/uuid"

	"github.com/macarrie/relique/internal/schedule"
)

// Default API ports, used whenever a configuration file leaves the
// corresponding field unset.
const (
	DefaultServerPort = 8433
	DefaultClientPort = 8434
)

// Client describes one machine backed up by the relique server, as
// declared in a TOML file under the server's clients directory. The
// record pushed to a client daemon during configuration sync is this
// exact struct: the server fills Schedules with its global schedule
// list and stamps ConfigVersion before sending.
type Client struct {
	Name          string              `json:"name" toml:"name"`
	Address       string              `json:"address" toml:"address"`
	Port          int                 `json:"port,omitempty" toml:"port"`
	ServerAddress string              `json:"server_address,omitempty" toml:"server_address"`
	ServerPort    int                 `json:"server_port,omitempty" toml:"server_port"`
	Modules       []Module            `json:"modules,omitempty" toml:"modules"`
	Schedules     []schedule.Schedule `json:"schedules,omitempty" toml:"-"`
	ConfigVersion *uuid.UUID          `json:"config_version,omitempty" toml:"-"`
}

// APIPort returns the port the client daemon listens on.
func (c Client) APIPort() int {
	if c.Port == 0 {
		return DefaultClientPort
	}
	return c.Port
}

// ServerAPIPort returns the port of the server this client reports to.
func (c Client) ServerAPIPort() int {
	if c.ServerPort == 0 {
		return DefaultServerPort
	}
	return c.ServerPort
}
