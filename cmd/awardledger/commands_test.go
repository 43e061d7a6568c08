package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/award-ledger/internal/services"
	"github.com/yungbote/award-ledger/internal/snapshot"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWARD_DATA_DIR", dir)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AWARD_CONFIG", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassifyShowList(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "classify", "1001", "0", "National", "--name", "Li", "--class", "C1")
	require.NoError(t, err)
	var res services.ClassifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Created)
	assert.Equal(t, 0.8, res.Record.AwardTotalPoints)

	out, err = run(t, "classify", "1001", "0", "School")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 0.3, res.Record.AwardTotalPoints, 1e-9)
	assert.Equal(t, 1, res.Record.RecordedAwardCount)

	out, err = run(t, "show", "1001")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Li"`)
	assert.Contains(t, out, `"progress"`)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "STUDENT_ID")
	assert.Contains(t, out, "1001")
}

func TestClassifyRejectsBadInput(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "classify", "1", "50", "Cert")
	assert.Error(t, err)
	_, err = run(t, "classify", "1", "0", "Gold")
	assert.Error(t, err)
	_, err = run(t, "classify", "x", "0", "Cert")
	assert.Error(t, err)

	_, err = run(t, "show", "1")
	assert.Error(t, err)
}

func TestExportImportRebuild(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, "classify", "1", "0", "Cert")
	require.NoError(t, err)
	_, err = run(t, "classify", "2", "3", "ProvinceCity")
	require.NoError(t, err)

	path := filepath.Join(dir, "backup.json")
	out, err := run(t, "export", path, "--compressed")
	require.NoError(t, err)
	assert.Contains(t, out, path+snapshot.CompressedSuffix)

	_, err = run(t, "classify", "3", "0", "College")
	require.NoError(t, err)

	_, err = run(t, "import", path+".gz", "--rebuild")
	assert.ErrorIs(t, err, errConfirmRebuild)

	_, err = run(t, "import", path+".gz", "--rebuild", "--overwrite", "--yes")
	assert.Error(t, err)

	out, err = run(t, "import", path+".gz", "--rebuild", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, `"records": 2`)

	out, err = run(t, "list", "--json")
	require.NoError(t, err)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)
}

func TestCheck(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, `"indexSize": 0`)
}

func TestConfigInit(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "config.yaml")
	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "config", "init", path)
	assert.Error(t, err)

	_, err = run(t, "--config", path, "check")
	require.NoError(t, err)
}
