package spreadsheet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"snake case", "control_id", "controlid"},
		{"title with space", "Control ID", "controlid"},
		{"double space", "Control  ID", "controlid"},
		{"mixed punctuation", "Control-Description!", "controldescription"},
		{"already normalized", "controlid", "controlid"},
		{"digits kept", "Q3 2024", "q32024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHeader(tt.input))
		})
	}
}

func TestParseCSV(t *testing.T) {
	input := "Control ID,Control Description,Test Applied\n" +
		"A.5.1,Policies for information security,Inspection\n" +
		"A.5.2,Information security roles,\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "A.5.1", rows[0].Get("control_id"))
	assert.Equal(t, "Policies for information security", rows[0].Get("Control Description"))
	assert.Equal(t, "Inspection", rows[0].Get("testapplied"))

	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, "", rows[1].Get("test_applied"))
}

func TestParseCSV_SkipsBlankRows(t *testing.T) {
	input := "control_id,control_description\n" +
		"A.1,First\n" +
		",\n" +
		"A.2,Second\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A.2", rows[1].Get("control_id"))
	assert.Equal(t, 2, rows[1].Number)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseCSV_ShortRecord(t *testing.T) {
	input := "control_id,control_description\nA.1\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A.1", rows[0].Get("control_id"))
	assert.Equal(t, "", rows[0].Get("control_description"))
}
