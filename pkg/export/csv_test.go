package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV(Report{
		Title: "Time by category",
		Rows: []Row{
			{Category: "Work", Minutes: 90},
			{Category: "Uncategorized", Minutes: 45},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Category,Minutes,Hours\nWork,90,1.50\nUncategorized,45,0.75\n", string(data))
}

func TestRenderCSVEmptyReport(t *testing.T) {
	data, err := RenderCSV(Report{})
	require.NoError(t, err)
	assert.Equal(t, "Category,Minutes,Hours\n", string(data))
}

func TestRenderCSVQuotesSpecialCharacters(t *testing.T) {
	data, err := RenderCSV(Report{Rows: []Row{{Category: `Work, "deep"`, Minutes: 30}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Work, ""deep"""`)
}

func TestRenderPDFProducesDocument(t *testing.T) {
	data, err := RenderPDF(Report{
		Title:  "Time by category",
		Period: "2026-03-01 to 2026-03-07",
		Rows:   []Row{{Category: "Work", Minutes: 90}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}
