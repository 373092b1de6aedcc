package web

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/go-while/go-moodtracker/internal/export"
	"github.com/go-while/go-moodtracker/internal/insights"
	"github.com/go-while/go-moodtracker/internal/models"
)

var (
	// DefaultHistoryLimit is the number of entries returned by /api/v1/moods without ?limit
	DefaultHistoryLimit = 7
	MaxHistoryLimit     = 1000

	// maxFutureSkew bounds how far ahead a client supplied timestamp may be
	maxFutureSkew = 24 * time.Hour
)

// createMoodRequest is the body of POST /api/v1/moods. Either Mood or MoodValue selects the mood.
type createMoodRequest struct {
	Mood      string `json:"mood"`
	MoodValue int    `json:"moodValue"`
	Note      string `json:"note"`
	Timestamp int64  `json:"timestamp"` // unix ms; zero means now
}

// ChartPoint is one entry plotted on the mood chart
type ChartPoint struct {
	Label string      `json:"label"`
	Value int         `json:"value"`
	Color string      `json:"color"`
	Mood  models.Mood `json:"mood"`
	Note  string      `json:"note"`
	Date  string      `json:"date"`
}

func (s *WebServer) getMoodScale(c *gin.Context) {
	c.JSON(http.StatusOK, models.Scale())
}

func (s *WebServer) listMoods(c *gin.Context) {
	limit := DefaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative number"})
			return
		}
		limit = parsed
	}
	if limit == 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries, err := s.DB.GetMoodEntries(c.Request.Context(), visitorID(c), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to list moods")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load mood history"})
		return
	}
	if entries == nil {
		entries = []*models.MoodEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *WebServer) createMood(c *gin.Context) {
	var req createMoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mood, err := resolveMood(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := s.now()
	at := now
	if req.Timestamp != 0 {
		at = time.UnixMilli(req.Timestamp)
		if req.Timestamp < 0 || at.After(now.Add(maxFutureSkew)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp out of range"})
			return
		}
	}

	entry, err := models.NewMoodEntry(uuid.NewString(), mood, req.Note, at, s.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry.VisitorID = visitorID(c)

	if err := s.DB.InsertMoodEntry(c.Request.Context(), entry); err != nil {
		s.log.WithError(err).Error("Failed to save mood")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save mood"})
		return
	}
	s.log.WithField("visitor", entry.VisitorID).Debugf("Saved mood %s for %s", entry.Mood, entry.Date)
	c.JSON(http.StatusCreated, entry)
}

// resolveMood picks the mood from the key or the numeric value; when both are sent they must agree
func resolveMood(req createMoodRequest) (models.Mood, error) {
	switch {
	case req.Mood == "" && req.MoodValue == 0:
		return "", errors.New("Please select a mood before saving.")
	case req.Mood == "":
		return models.MoodFromValue(req.MoodValue)
	}
	mood, err := models.ParseMood(req.Mood)
	if err != nil {
		return "", err
	}
	if req.MoodValue != 0 && req.MoodValue != mood.Value() {
		return "", errors.New("mood and moodValue disagree")
	}
	return mood, nil
}

func (s *WebServer) clearMoods(c *gin.Context) {
	n, err := s.DB.DeleteMoodEntries(c.Request.Context(), visitorID(c))
	if err != nil {
		s.log.WithError(err).Error("Failed to clear moods")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear mood data"})
		return
	}
	s.log.WithField("visitor", visitorID(c)).Infof("Cleared %d mood entries", n)
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *WebServer) moodChart(c *gin.Context) {
	period, err := insights.ParsePeriod(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := s.now()
	start := period.Start(now, s.loc)
	entries, err := s.DB.GetMoodEntriesSince(c.Request.Context(), visitorID(c), start.UnixMilli())
	if err != nil {
		s.log.WithError(err).Error("Failed to load chart data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chart data"})
		return
	}
	entries = insights.FilterByPeriod(entries, period, now, s.loc)

	points := make([]ChartPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, ChartPoint{
			Label: e.Time().In(s.loc).Format("02 Jan") + " " + e.ExactTime,
			Value: e.MoodValue,
			Color: e.Mood.Color(),
			Mood:  e.Mood,
			Note:  e.Note,
			Date:  e.Date,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"period": period,
		"start":  start.Format(models.DateLayout),
		"points": points,
	})
}

func (s *WebServer) getInsights(c *gin.Context) {
	entries, err := s.DB.GetMoodEntries(c.Request.Context(), visitorID(c), 0)
	if err != nil {
		s.log.WithError(err).Error("Failed to load moods for insights")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load mood data"})
		return
	}

	patterns := insights.Analyze(entries, s.insights)
	resp := gin.H{
		"patterns":    patterns,
		"insights":    []insights.Message{},
		"suggestions": []insights.Message{},
	}
	if patterns.Available {
		resp["insights"] = insights.Insights(patterns)
		resp["suggestions"] = insights.Suggestions(patterns, s.insights, s.rnd)
		if insights.BroadenBuild(patterns, s.insights) {
			resp["broadenBuild"] = insights.BroadenBuildTheory
		}
	}
	c.JSON(http.StatusOK, resp)
}

// exportMoods serves /export.csv and /export.json as attachments
func (s *WebServer) exportMoods(c *gin.Context) {
	format := export.FormatCSV
	if c.FullPath() == "/api/v1/export.json" {
		format = export.FormatJSON
	}

	entries, err := s.DB.GetMoodEntries(c.Request.Context(), visitorID(c), 0)
	if err != nil {
		s.log.WithError(err).Error("Failed to load moods for export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load mood data"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No mood data to export. Please add some mood entries first."})
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, entries); err != nil {
		s.log.WithError(err).Error("Failed to encode export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not export mood data"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(format, s.now().In(s.loc))+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
