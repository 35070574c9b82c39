// Package types holds the domain objects exchanged between the relique
// server and its clients: configuration records, backup jobs and the
// per-file payloads of the delta protocol. Everything here is plain
// data; behaviour lives in the packages that move these values around.
package types

import (
	"database/sql/driver"
	"fmt"
)

// BackupType selects how much data a job carries: a complete copy of
// every backup path, or deltas against the latest completed full backup.
type BackupType int

const (
	BackupTypeFull BackupType = iota
	BackupTypeDiff
)

// ParseBackupType maps the textual form used in TOML files and on the
// wire to a BackupType.
func ParseBackupType(s string) (BackupType, error) {
	switch s {
	case "full":
		return BackupTypeFull, nil
	case "diff":
		return BackupTypeDiff, nil
	default:
		return BackupTypeFull, fmt.Errorf("unknown backup type %q", s)
	}
}

func (t BackupType) String() string {
	switch t {
	case BackupTypeDiff:
		return "diff"
	default:
		return "full"
	}
}

// MarshalText implements encoding.TextMarshaler so backup types appear
// as "full" or "diff" in JSON and TOML documents.
func (t BackupType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *BackupType) UnmarshalText(text []byte) error {
	parsed, err := ParseBackupType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer. Backup types are persisted as integer
// codes, 0 for full and 1 for diff.
func (t BackupType) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan implements sql.Scanner. Codes outside the known range are
// rejected rather than mapped to a default.
func (t *BackupType) Scan(src any) error {
	n, ok := src.(int64)
	if !ok {
		return fmt.Errorf("cannot decode backup type from %T", src)
	}
	if n < int64(BackupTypeFull) || n > int64(BackupTypeDiff) {
		return fmt.Errorf("unknown backup type code %d", n)
	}
	*t = BackupType(n)
	return nil
}
