// Package models defines core data structures for go-moodtracker
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxNoteLength is the maximum number of characters kept in a mood note
const MaxNoteLength = 200

var (
	ErrInvalidMood = errors.New("invalid mood")
	ErrNoteTooLong = fmt.Errorf("note exceeds %d characters", MaxNoteLength)
)

// Mood is the key of one level on the seven point mood scale
type Mood string

const (
	MoodVeryHappy  Mood = "very_happy"
	MoodHappy      Mood = "happy"
	MoodNeutral    Mood = "neutral"
	MoodFrustrated Mood = "frustrated"
	MoodAngry      Mood = "angry"
	MoodSad        Mood = "sad"
	MoodVerySad    Mood = "very_sad"
)

// MoodLevel describes one point of the mood scale
type MoodLevel struct {
	Mood  Mood   `json:"mood"`
	Value int    `json:"value"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

// scale is ordered from best to worst, matching the selector on the page
var scale = []MoodLevel{
	{Mood: MoodVeryHappy, Value: 7, Emoji: "😊", Color: "#4caf50"},
	{Mood: MoodHappy, Value: 6, Emoji: "🙂", Color: "#8bc34a"},
	{Mood: MoodNeutral, Value: 5, Emoji: "😐", Color: "#ffeb3b"},
	{Mood: MoodFrustrated, Value: 4, Emoji: "😤", Color: "#ff5722"},
	{Mood: MoodAngry, Value: 3, Emoji: "😠", Color: "#e53935"},
	{Mood: MoodSad, Value: 2, Emoji: "😔", Color: "#ff9800"},
	{Mood: MoodVerySad, Value: 1, Emoji: "😢", Color: "#f44336"},
}

var titleCaser = cases.Title(language.English)

func init() {
	for i := range scale {
		scale[i].Label = titleCaser.String(strings.ReplaceAll(string(scale[i].Mood), "_", " "))
	}
}

// Scale returns a copy of the mood scale, best mood first
func Scale() []MoodLevel {
	out := make([]MoodLevel, len(scale))
	copy(out, scale)
	return out
}

func (m Mood) level() (MoodLevel, bool) {
	for _, lvl := range scale {
		if lvl.Mood == m {
			return lvl, true
		}
	}
	return MoodLevel{}, false
}

// Valid reports whether m is a known mood
func (m Mood) Valid() bool {
	_, ok := m.level()
	return ok
}

// Value returns the numeric value of the mood, 0 if unknown
func (m Mood) Value() int {
	lvl, _ := m.level()
	return lvl.Value
}

// Label returns the display text of the mood
func (m Mood) Label() string {
	if lvl, ok := m.level(); ok {
		return lvl.Label
	}
	return "Unknown"
}

// Emoji returns the emoji shown in the history list
func (m Mood) Emoji() string {
	if lvl, ok := m.level(); ok {
		return lvl.Emoji
	}
	return "😐"
}

// Color returns the chart color of the mood
func (m Mood) Color() string {
	lvl, _ := m.level()
	return lvl.Color
}

// ParseMood validates a mood key
func ParseMood(key string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(key)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMood, key)
	}
	return m, nil
}

// MoodFromValue maps a scale value 1..7 to its mood
func MoodFromValue(value int) (Mood, error) {
	for _, lvl := range scale {
		if lvl.Value == value {
			return lvl.Mood, nil
		}
	}
	return "", fmt.Errorf("%w: value %d", ErrInvalidMood, value)
}

// MoodTextFromValue names the mood closest to an average value
func MoodTextFromValue(value float64) string {
	switch {
	case value >= 6.5:
		return MoodVeryHappy.Label()
	case value >= 5.5:
		return MoodHappy.Label()
	case value >= 4.5:
		return MoodNeutral.Label()
	case value >= 3.5:
		return MoodFrustrated.Label()
	case value >= 2.5:
		return MoodAngry.Label()
	case value >= 1.5:
		return MoodSad.Label()
	}
	return MoodVerySad.Label()
}

// MoodEntry is one recorded mood. Field names follow the JSON export format.
type MoodEntry struct {
	ID        string `json:"id" db:"id"`
	Date      string `json:"date" db:"date"`            // YYYY-MM-DD in the configured location
	ExactTime string `json:"exactTime" db:"exact_time"` // h:mm:ss am/pm
	Timestamp int64  `json:"timestamp" db:"timestamp"`  // unix milliseconds
	Mood      Mood   `json:"mood" db:"mood"`
	MoodValue int    `json:"moodValue" db:"mood_value"`
	Note      string `json:"note" db:"note"`
	Weekday   int    `json:"weekday" db:"weekday"` // 0 = Sunday
	VisitorID string `json:"-" db:"visitor_id"`
}

// DateLayout is the layout of MoodEntry.Date
const DateLayout = "2006-01-02"

// TimeLayout is the layout of MoodEntry.ExactTime
const TimeLayout = "3:04:05 pm"

// NewMoodEntry builds an entry for mood recorded at the given instant.
// Date, time and weekday are derived in loc.
func NewMoodEntry(id string, mood Mood, note string, at time.Time, loc *time.Location) (*MoodEntry, error) {
	if !mood.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMood, mood)
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, ErrNoteTooLong
	}
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	return &MoodEntry{
		ID:        id,
		Date:      local.Format(DateLayout),
		ExactTime: local.Format(TimeLayout),
		Timestamp: at.UnixMilli(),
		Mood:      mood,
		MoodValue: mood.Value(),
		Note:      note,
		Weekday:   int(local.Weekday()),
	}, nil
}

// Time returns the instant the entry was recorded
func (e *MoodEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}
