package types

import (
	"database/sql/driver"
	"fmt"
)

// JobStatus tracks a backup job through its lifecycle. Pending jobs
// have been created but not started, Active jobs are transferring
// files, and the three remaining states are terminal: Done when every
// file landed, Incomplete when some did, Error when the run failed
// outright.
type JobStatus int

const (
	JobStatusPending JobStatus = iota
	JobStatusActive
	JobStatusDone
	JobStatusIncomplete
	JobStatusError
)

// ParseJobStatus maps the textual form used on the wire to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch s {
	case "pending":
		return JobStatusPending, nil
	case "active":
		return JobStatusActive, nil
	case "done":
		return JobStatusDone, nil
	case "incomplete":
		return JobStatusIncomplete, nil
	case "error":
		return JobStatusError, nil
	default:
		return JobStatusPending, fmt.Errorf("unknown job status %q", s)
	}
}

func (s JobStatus) String() string {
	switch s {
	case JobStatusActive:
		return "active"
	case JobStatusDone:
		return "done"
	case JobStatusIncomplete:
		return "incomplete"
	case JobStatusError:
		return "error"
	default:
		return "pending"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *JobStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer. Statuses are persisted as integer
// codes in declaration order, pending being 0.
func (s JobStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

// Scan implements sql.Scanner. Codes outside the known range are
// rejected rather than mapped to a default.
func (s *JobStatus) Scan(src any) error {
	n, ok := src.(int64)
	if !ok {
		return fmt.Errorf("cannot decode job status from %T", src)
	}
	if n < int64(JobStatusPending) || n > int64(JobStatusError) {
		return fmt.Errorf("unknown job status code %d", n)
	}
	*s = JobStatus(n)
	return nil
}
