package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-while/go-moodtracker/internal/models"
)

func sampleEntries(t *testing.T) []*models.MoodEntry {
	t.Helper()
	a, err := models.NewMoodEntry("a", models.MoodHappy, `said "hello", then left`, time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	b, err := models.NewMoodEntry("b", models.MoodVerySad, "", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	c, err := models.NewMoodEntry("c", models.MoodNeutral, "good day", time.Date(2024, 3, 3, 20, 15, 0, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	return []*models.MoodEntry{a, b, c}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntries(t)))

	want := "Date,Time,Mood,Mood Value,Note\n" +
		`5/3/2024,2:07:09 pm,Happy,6,"said ""hello"", then left"` + "\n" +
		"4/3/2024,9:00:00 am,Very Sad,1,\n" +
		`3/3/2024,8:15:00 pm,Neutral,5,"good day"` + "\n"
	assert.Equal(t, want, buf.String())

	// standard readers decode the forced quoting
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, `said "hello", then left`, rows[1][4])
	assert.Equal(t, "good day", rows[3][4])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleEntries(t)))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "a", decoded[0]["id"])
	assert.Equal(t, "2024-03-05", decoded[0]["date"])
	assert.Equal(t, "happy", decoded[0]["mood"])
	assert.Equal(t, float64(6), decoded[0]["moodValue"])
	assert.Equal(t, float64(2), decoded[0]["weekday"])
	assert.NotContains(t, decoded[0], "VisitorID")
	assert.Contains(t, buf.String(), "\n  {")

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestFilenameAndFormat(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "mood_tracker_data_5-3-2024.csv", Filename(FormatCSV, now))
	assert.Equal(t, "mood_tracker_data_5-3-2024.json", Filename(FormatJSON, now))

	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", f.ContentType())
	_, err = ParseFormat("xml")
	assert.Error(t, err)
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), nil))
}
