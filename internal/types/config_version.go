package types

import "github.com/google/uuid"

// ConfigVersion is the configuration sync handshake payload. A nil
// Version means the client daemon has not received a configuration
// from any server yet.
type ConfigVersion struct {
	Version *uuid.UUID `json:"version"`
}

func (v ConfigVersion) String() string {
	if v.Version == nil {
		return "none"
	}
	return v.Version.String()
}

// Matches reports whether both versions are set and equal.
func (v ConfigVersion) Matches(other *uuid.UUID) bool {
	return v.Version != nil && other != nil && *v.Version == *other
}
