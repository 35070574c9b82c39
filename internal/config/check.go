package config

import "fmt"

// Severity grades a configuration finding. Critical findings abort
// daemon startup; warnings are logged and startup continues.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "Critical"
	}
	return "Warning"
}

// CheckError is one configuration finding. Key names the configuration
// area in dotted form, "clients.name" for a duplicate client name.
type CheckError struct {
	Key   string
	Level Severity
	Desc  string
}

func (e CheckError) Error() string {
	return fmt.Sprintf("[%s] %s (key: '%s')", e.Level, e.Desc, e.Key)
}

// Check validates cross-client constraints on a loaded server
// configuration: at least one client should exist, client names must
// be unique and no two clients may share an (address, port) endpoint.
func Check(cfg Config) []CheckError {
	var errs []CheckError

	if len(cfg.Clients) == 0 {
		errs = append(errs, CheckError{
			Key:   "clients",
			Level: SeverityWarning,
			Desc:  "No clients defined",
		})
	}

	type endpoint struct {
		addr string
		port int
	}
	seenNames := make(map[string]bool, len(cfg.Clients))
	seenEndpoints := make(map[endpoint]bool, len(cfg.Clients))

	for _, client := range cfg.Clients {
		if seenNames[client.Name] {
			errs = append(errs, CheckError{
				Key:   "clients.name",
				Level: SeverityCritical,
				Desc:  fmt.Sprintf("Duplicate client name '%s'", client.Name),
			})
		}
		seenNames[client.Name] = true

		ep := endpoint{addr: client.Address, port: client.APIPort()}
		if seenEndpoints[ep] {
			errs = append(errs, CheckError{
				Key:   "clients.address, clients.port",
				Level: SeverityCritical,
				Desc:  fmt.Sprintf("Duplicate client address and port '%s:%d'", ep.addr, ep.port),
			})
		}
		seenEndpoints[ep] = true
	}

	return errs
}

// HasCritical reports whether any finding must abort startup.
func HasCritical(errs []CheckError) bool {
	for _, e := range errs {
		if e.Level == SeverityCritical {
			return true
		}
	}
	return false
}
