package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "neurochart")
}

func TestExtract_RequiresArgs(t *testing.T) {
	_, err := runCommand(t, "", "extract")
	assert.Error(t, err)
}

func TestExtract_UnreadableFile(t *testing.T) {
	_, err := runCommand(t, "", "extract", "/nonexistent/note.txt")
	assert.Error(t, err)
}

func TestExtract_FromFileProducesSession(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(note, []byte(
		"Admitted 2025-01-14 with subarachnoid hemorrhage, Hunt-Hess grade 3. "+
			"POD2 (2025-01-16): vasospasm on transcranial doppler. Started nimodipine."), 0o644))

	out, err := runCommand(t, "", "extract", note)
	require.NoError(t, err)

	var session clinical.ExtractionSession
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Equal(t, clinical.PathologySAH, session.PrimaryPathology)
	assert.NotEmpty(t, session.Entities)
	assert.NotEmpty(t, session.Timeline)
}

func TestExtract_FromStdinSummary(t *testing.T) {
	out, err := runCommand(t,
		"Admitted 2025-01-14 with subarachnoid hemorrhage. Started nimodipine.",
		"extract", "--summary", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Pathology:")
	assert.Contains(t, out, "SUBARACHNOID_HEMORRHAGE")
}

func TestExtract_PathologyHintFlag(t *testing.T) {
	// an uncorroborated hint never fabricates a detection
	out, err := runCommand(t,
		"Patient stable. Continue current management.",
		"extract", "--pathology", "glioblastoma", "-")
	require.NoError(t, err)

	var session clinical.ExtractionSession
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Equal(t, clinical.PathologyGeneric, session.PrimaryPathology)

	// corroborated by text, the hinted pathology wins
	out, err = runCommand(t,
		"Glioblastoma resection cavity stable on MRI. Continue temozolomide.",
		"extract", "--pathology", "glioblastoma", "-")
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Equal(t, clinical.PathologyGlioblastoma, session.PrimaryPathology)
}
