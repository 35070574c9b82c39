package types

import "github.com/google/uuid"

// BackupFile is the per-file payload of the delta protocol. The client
// sends it without Signature or Delta on the signature leg and with
// Delta filled on the delta leg; the server streams Signature back on
// its own. Byte slices ride JSON as base64 strings.
type BackupFile struct {
	JobID     uuid.UUID `json:"job_id"`
	Path      string    `json:"path"`
	IsDir     bool      `json:"is_dir"`
	Signature []byte    `json:"signature,omitempty"`
	Delta     []byte    `json:"delta,omitempty"`
}
