package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:   testTime,
		ID:          "gen-1",
		SessionID:   "sess-1",
		Items:       3,
		TotalActual: 12850,
		FileName:    "20240305農會匯款單.xlsx",
		DownloadURL: "https://files.example.com/a.xlsx",
	}
}

func TestAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, testEntry()))

	e2 := testEntry()
	e2.ID = ""
	e2.Items = 1
	require.NoError(t, Append(dir, e2))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, testEntry(), entries[0])
	assert.Equal(t, 1, entries[1].Items)
	_, err = uuid.Parse(entries[1].ID)
	assert.NoError(t, err)
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, testEntry()))
	require.NoError(t, Append(dir, testEntry()))

	data, err := os.ReadFile(filepath.Join(dir, historyFile))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header))
}

func TestReadMissing(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestReadBadRow(t *testing.T) {
	_, err := readEntries(strings.NewReader(Header + "\nnot-a-time,a,b,1,2,c,d\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	_, err = readEntries(strings.NewReader(Header + "\n2024-03-05T10:30:00Z,a,b,x,2,c,d\n"))
	assert.Error(t, err)
}

func TestUnmarshalEntryFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"too", "short"})
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	r := Recorder{StateDir: dir, SessionID: "sess-9", Now: func() time.Time { return testTime }}

	got, err := r.Record(Entry{Items: 2, TotalActual: 100, FileName: "f.xlsx", DownloadURL: "https://x/y"})
	require.NoError(t, err)
	assert.Equal(t, testTime, got.Timestamp)
	assert.Equal(t, "sess-9", got.SessionID)
	assert.NotEmpty(t, got.ID)

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, []Entry{got}, entries)
}
