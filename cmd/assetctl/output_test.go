package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/slidedeck-backend/internal/realtime/bus"
	"github.com/yungbote/slidedeck-backend/internal/services"
)

func TestPrintReportText(t *testing.T) {
	var buf bytes.Buffer
	r := &services.ReconcileReport{
		Records:      2,
		Files:        2,
		MissingFiles: []string{"p1/materials/gone_1.png"},
		OrphanFiles:  []string{"materials/stray_2.png"},
		RecentFiles:  []string{"materials/fresh_3.png"},
		RemovedFiles: 1,
	}
	require.NoError(t, printReport(&buf, r, false))

	out := buf.String()
	assert.Contains(t, out, "missing files (1):\n  p1/materials/gone_1.png\n")
	assert.Contains(t, out, "orphan files (1):\n  materials/stray_2.png\n")
	assert.Contains(t, out, "skipped recent files (1):\n  materials/fresh_3.png\n")
	assert.Contains(t, out, "dropped=0 removed=1 adopted=0")
}

func TestPrintReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, &services.ReconcileReport{MissingFiles: []string{}, OrphanFiles: []string{}}, true))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []any{}, got["missing_files"])
}

func TestPrintEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	printEvent(&buf, bus.AssetEvent{Type: bus.EventProjectDeleted, ProjectID: "p1", Count: 3, At: at}, false)
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "03:04:05.000 project.deleted"))
	assert.True(t, strings.HasSuffix(line, "p1 count=3\n"))

	buf.Reset()
	printEvent(&buf, bus.AssetEvent{Type: bus.EventTemplateSaved, RelativePath: "p1/template.png", At: at}, true)
	var ev bus.AssetEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, bus.EventTemplateSaved, ev.Type)
	assert.Equal(t, "p1/template.png", ev.RelativePath)
}
