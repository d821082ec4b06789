package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = []Field{
	{Key: "id", Label: "ID"},
	{Key: "device_code", Label: "Device Code"},
	{Key: "note", Label: "Note"},
}

func TestWriteRead_RoundTrip(t *testing.T) {
	records := []Record{
		{"id": "1", "device_code": "THR-A1B2C3", "note": "plain"},
		{"id": "2", "device_code": "THR-X9Y8Z7", "note": "has, comma"},
		{"id": "3", "device_code": "THR-QQQQQQ", "note": `has "quotes"`},
		{"id": "4", "device_code": "THR-NL0001", "note": "line\nbreak"},
		{"id": "5", "device_code": "THR-EMPTY1", "note": ""},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testFields, records))

	parsed, err := Read(&buf, testFields)
	require.NoError(t, err)
	assert.Equal(t, records, parsed)
}

func TestWrite_Quoting(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, testFields, []Record{
		{"id": "1", "device_code": "THR-A1B2C3", "note": "a, b"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Device Code,Note", lines[0])
	assert.Equal(t, `1,THR-A1B2C3,"a, b"`, lines[1])
}

func TestWrite_MissingKeysRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, testFields, []Record{{"id": "1"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1,,")
}

func TestRead_HeaderMismatch(t *testing.T) {
	_, err := Read(strings.NewReader("Wrong,Header,Here\n"), testFields)
	assert.Error(t, err)

	_, err = Read(strings.NewReader("ID,Device Code\n"), testFields)
	assert.Error(t, err)
}

func TestWrite_NoRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testFields, nil))
	assert.Equal(t, "ID,Device Code,Note\n", buf.String())

	parsed, err := Read(&buf, testFields)
	require.NoError(t, err)
	assert.Empty(t, parsed)
}
