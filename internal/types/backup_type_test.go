package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackupType(t *testing.T) {
	bt, err := ParseBackupType("full")
	require.NoError(t, err)
	assert.Equal(t, BackupTypeFull, bt)

	bt, err = ParseBackupType("diff")
	require.NoError(t, err)
	assert.Equal(t, BackupTypeDiff, bt)

	_, err = ParseBackupType("incremental")
	assert.Error(t, err)
}

func TestBackupTypeJSON(t *testing.T) {
	raw, err := json.Marshal(BackupTypeDiff)
	require.NoError(t, err)
	assert.Equal(t, `"diff"`, string(raw))

	var bt BackupType
	require.NoError(t, json.Unmarshal([]byte(`"full"`), &bt))
	assert.Equal(t, BackupTypeFull, bt)

	assert.Error(t, json.Unmarshal([]byte(`"weekly"`), &bt))
}

func TestBackupTypeScan(t *testing.T) {
	var bt BackupType
	require.NoError(t, bt.Scan(int64(1)))
	assert.Equal(t, BackupTypeDiff, bt)

	assert.Error(t, bt.Scan(int64(7)), "out of range codes must not decode")
	assert.Error(t, bt.Scan("diff"), "only integer codes are accepted")

	v, err := BackupTypeDiff.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}
