package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"tracking_id", "title", "status"},
		Rows: []map[string]string{
			{"tracking_id": "GRV-2025-000001", "title": "WiFi, broken", "status": "submitted"},
			{"tracking_id": "GRV-2025-000002", "title": "Leaking roof", "status": "resolved"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))

	lines := strings.Split(strings.TrimSpace(string(out[len(utf8BOM):])), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tracking_id,title,status", lines[0])
	assert.Equal(t, `GRV-2025-000001,"WiFi, broken",submitted`, lines[1])

	_, err = NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Grievances")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "a b", shorten("a \n b", 10))
	got := shorten(strings.Repeat("x", 100), 10)
	assert.Equal(t, "xxxxxxx...", got)
}
