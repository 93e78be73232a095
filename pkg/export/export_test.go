package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsaabbasian/unispot-sync/internal/models"
)

func sampleEvents() []models.Event {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return []models.Event{
		{
			ID:            1,
			Title:         "free pizza",
			Category:      "food",
			Latitude:      43.7735,
			Longitude:     -79.5019,
			StartTime:     start,
			EndTime:       start.Add(2 * time.Hour),
			VerifiedCount: 3,
			IsApproved:    true,
		},
		{ID: 2, Title: "study group", Category: "academic"},
	}
}

func TestEventsDataset(t *testing.T) {
	data := EventsDataset(sampleEvents())

	assert.Equal(t, []string{"ID", "Title", "Category", "Lat", "Lng", "Starts", "Ends", "Verified", "Approved"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "free pizza", data.Rows[0]["Title"])
	assert.Equal(t, "43.77350", data.Rows[0]["Lat"])
	assert.Equal(t, "3", data.Rows[0]["Verified"])
	assert.Equal(t, "true", data.Rows[0]["Approved"])
}

func TestCSVRender(t *testing.T) {
	raw, err := NewCSVExporter().Render(EventsDataset(sampleEvents()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Title,Category"))
	assert.Contains(t, lines[1], "free pizza")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths([]string{"ID", "Title", "Category", "Lat", "Lng", "Starts", "Ends", "Verified", "Approved"})
	require.Len(t, widths, 9)

	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, 277.0, total, 0.001, "columns fill the printable width")
	assert.Greater(t, widths[1], widths[0], "titles get more room than ids")
	assert.Greater(t, widths[1], widths[8], "titles get more room than flags")

	// Unknown headers fall back to an even split.
	even := columnWidths([]string{"A", "B"})
	assert.InDelta(t, even[0], even[1], 0.001)
}

func TestPDFRender(t *testing.T) {
	events := sampleEvents()
	events[0].Title = strings.Repeat("annual robotics showcase ", 8)

	raw, err := NewPDFExporter().Render(EventsDataset(events), "Campus Events Snapshot")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
}
