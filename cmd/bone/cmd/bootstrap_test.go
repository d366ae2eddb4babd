package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

func TestResolveFormat(t *testing.T) {
	for _, f := range []string{formatJSON, formatMarkdown, formatHTML} {
		got, err := resolveFormat(f)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := resolveFormat("pdf")
	assert.Error(t, err)
}

func TestWriteSOP(t *testing.T) {
	sop := &types.SOP{ID: "sop-1", Title: "Haunted Cache", Category: types.CategoryIncident}

	var buf bytes.Buffer
	require.NoError(t, writeSOP(&buf, formatJSON, sop, sop))
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
	assert.Contains(t, buf.String(), `"id": "sop-1"`)

	buf.Reset()
	require.NoError(t, writeSOP(&buf, formatMarkdown, sop, sop))
	assert.Contains(t, buf.String(), "# Haunted Cache")

	buf.Reset()
	require.NoError(t, writeSOP(&buf, formatHTML, sop, sop))
	assert.Contains(t, buf.String(), "<h1>Haunted Cache</h1>")

	assert.Error(t, writeSOP(&buf, "pdf", sop, sop))
}

func TestReadIncidentText(t *testing.T) {
	t.Cleanup(func() { incidentText, incidentFile = "", "" })

	incidentText = "db on fire"
	raw, err := readIncidentText(strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "db on fire", raw)

	path := filepath.Join(t.TempDir(), "incident.txt")
	require.NoError(t, os.WriteFile(path, []byte("disk full"), 0o600))

	incidentFile = path
	_, err = readIncidentText(strings.NewReader(""))
	assert.Error(t, err, "text and file together")

	incidentText = ""
	raw, err = readIncidentText(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "disk full", raw)

	incidentFile = ""
	raw, err = readIncidentText(strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", raw)

	_, err = readIncidentText(strings.NewReader("  \n"))
	assert.Error(t, err)
}

func TestBuildServiceOffline(t *testing.T) {
	svc, err := buildService(config.Default(), true)
	require.NoError(t, err)

	resp := svc.GenerateIncidentSOP(t.Context(), "Users report 5s page loads")
	assert.Equal(t, types.SourceStub, resp.SOP.Source)
}
