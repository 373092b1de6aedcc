package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/go-while/go-moodtracker/internal/config"
	"github.com/go-while/go-moodtracker/internal/database"
	"github.com/go-while/go-moodtracker/internal/models"
)

// Wednesday
var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate ...func(*config.MainConfig)) *WebServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dbcfg := database.DefaultDBConfig()
	dbcfg.DataDir = t.TempDir()
	db, err := database.OpenDatabase(dbcfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Shutdown() })

	cfg := config.NewDefaultConfig()
	cfg.Web.Debug = false
	cfg.Web.TimeZone = "UTC"
	for _, fn := range mutate {
		fn(cfg)
	}

	s, err := NewServer(db, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	s.now = func() time.Time { return testNow }
	s.rnd = rand.New(rand.NewPCG(1, 2))
	return s
}

func do(s *WebServer, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func visitorCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == VisitorCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", VisitorCookieName)
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// newVisitor returns the cookie of a fresh visitor session
func newVisitor(t *testing.T, s *WebServer) *http.Cookie {
	t.Helper()
	w := do(s, http.MethodGet, "/api/v1/moods", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return visitorCookie(t, w)
}

func postMood(t *testing.T, s *WebServer, cookie *http.Cookie, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return do(s, http.MethodPost, "/api/v1/moods", body, cookie)
}

func TestHomePageRendersIndex(t *testing.T) {
	s := newTestServer(t)

	tmpl, err := template.ParseFS(EmbeddedFS, "templates/*.html")
	require.NoError(t, err)
	var want bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&want, "index.html", nil))

	w := do(s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, want.String(), w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Result().Cookies())

	// rendering is stateless
	w2 := do(s, http.MethodGet, "/", nil)
	assert.Equal(t, w.Body.String(), w2.Body.String())
}

func TestUnknownPathsAre404(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/nope", "/index.html", "/api/v2/moods", "/static/", "/static/missing.js"} {
		w := do(s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := do(s, http.MethodPost, "/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaticAndPing(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodGet, "/static/js/main.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1")
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))

	w = do(s, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	files, err := ListEmbeddedFiles()
	require.NoError(t, err)
	assert.Contains(t, files, "templates/index.html")
	assert.Contains(t, files, "static/css/style.css")
}

func TestMoodScale(t *testing.T) {
	s := newTestServer(t)
	w := do(s, http.MethodGet, "/api/v1/moods/scale", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())

	var levels []models.MoodLevel
	decode(t, w, &levels)
	require.Len(t, levels, 7)
	assert.Equal(t, models.MoodVeryHappy, levels[0].Mood)
	assert.Equal(t, 1, levels[6].Value)
}

func TestVisitorCookie(t *testing.T) {
	s := newTestServer(t)

	w := do(s, http.MethodGet, "/api/v1/moods", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	cookie := visitorCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	id, err := s.verifyVisitorCookie(cookie.Value)
	require.NoError(t, err)

	// known visitor keeps the ID
	w = do(s, http.MethodGet, "/api/v1/moods", nil, cookie)
	again, err := s.verifyVisitorCookie(visitorCookie(t, w).Value)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	// tampered signature gets a fresh visitor
	forged := &http.Cookie{Name: VisitorCookieName, Value: id + ".AAAA"}
	w = do(s, http.MethodGet, "/api/v1/moods", nil, forged)
	require.Equal(t, http.StatusOK, w.Code)
	fresh, err := s.verifyVisitorCookie(visitorCookie(t, w).Value)
	require.NoError(t, err)
	assert.NotEqual(t, id, fresh)
}

func TestCookieSigning(t *testing.T) {
	k1, err := deriveCookieKey("one")
	require.NoError(t, err)
	k1b, err := deriveCookieKey("one")
	require.NoError(t, err)
	k2, err := deriveCookieKey("two")
	require.NoError(t, err)
	assert.Equal(t, k1, k1b)
	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, 32)

	_, err = deriveCookieKey("")
	assert.Error(t, err)

	s := &WebServer{cookieKey: k1}
	other := &WebServer{cookieKey: k2}
	signed := s.signVisitorID("visitor-1")
	id, err := s.verifyVisitorCookie(signed)
	require.NoError(t, err)
	assert.Equal(t, "visitor-1", id)

	_, err = other.verifyVisitorCookie(signed)
	assert.ErrorIs(t, err, errBadCookie)
	for _, bad := range []string{"", "visitor-1", "visitor-1.", ".sig"} {
		_, err = s.verifyVisitorCookie(bad)
		assert.ErrorIs(t, err, errBadCookie, bad)
	}
}

func TestCreateAndListMoods(t *testing.T) {
	s := newTestServer(t)
	cookie := newVisitor(t, s)

	back := time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC)
	w := postMood(t, s, cookie, map[string]interface{}{"mood": "happy", "note": "  good day  ", "timestamp": back.UnixMilli()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.MoodEntry
	decode(t, w, &first)
	assert.Equal(t, "2024-01-08", first.Date)
	assert.Equal(t, "9:30:00 am", first.ExactTime)
	assert.Equal(t, 6, first.MoodValue)
	assert.Equal(t, "good day", first.Note)
	assert.Equal(t, 1, first.Weekday)
	assert.NotEmpty(t, first.ID)

	w = postMood(t, s, cookie, map[string]interface{}{"moodValue": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second models.MoodEntry
	decode(t, w, &second)
	assert.Equal(t, models.MoodAngry, second.Mood)
	assert.Equal(t, "2024-01-10", second.Date)
	assert.Equal(t, "12:00:00 pm", second.ExactTime)

	w = do(s, http.MethodGet, "/api/v1/moods", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.MoodEntry
	decode(t, w, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)

	w = do(s, http.MethodGet, "/api/v1/moods?limit=1", nil, cookie)
	decode(t, w, &entries)
	assert.Len(t, entries, 1)

	w = do(s, http.MethodGet, "/api/v1/moods?limit=x", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// another visitor sees nothing
	w = do(s, http.MethodGet, "/api/v1/moods", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCreateMoodValidation(t *testing.T) {
	s := newTestServer(t)
	s.limiter = newVisitorLimiter(rate.Inf, 1)
	cookie := newVisitor(t, s)

	cases := []map[string]interface{}{
		{},
		{"note": "no mood"},
		{"mood": "meh"},
		{"moodValue": 9},
		{"mood": "happy", "moodValue": 2},
		{"mood": "happy", "note": strings.Repeat("x", models.MaxNoteLength+1)},
		{"mood": "happy", "timestamp": testNow.Add(48 * time.Hour).UnixMilli()},
		{"mood": "happy", "timestamp": -5},
	}
	for _, body := range cases {
		w := postMood(t, s, cookie, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/moods", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postMood(t, s, cookie, map[string]interface{}{"mood": "happy", "note": strings.Repeat("é", models.MaxNoteLength)})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestClearMoods(t *testing.T) {
	s := newTestServer(t)
	cookie := newVisitor(t, s)
	other := newVisitor(t, s)

	require.Equal(t, http.StatusCreated, postMood(t, s, cookie, map[string]interface{}{"mood": "sad"}).Code)
	require.Equal(t, http.StatusCreated, postMood(t, s, cookie, map[string]interface{}{"mood": "neutral"}).Code)
	require.Equal(t, http.StatusCreated, postMood(t, s, other, map[string]interface{}{"mood": "neutral"}).Code)

	w := do(s, http.MethodDelete, "/api/v1/moods", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":2}`, w.Body.String())

	w = do(s, http.MethodGet, "/api/v1/moods", nil, other)
	var entries []models.MoodEntry
	decode(t, w, &entries)
	assert.Len(t, entries, 1)
}

func TestMoodChart(t *testing.T) {
	s := newTestServer(t)
	cookie := newVisitor(t, s)
	for _, day := range []int{1, 5, 10} {
		at := time.Date(2024, 1, day, 12, 0, 0, 0, time.UTC)
		w := postMood(t, s, cookie, map[string]interface{}{"moodValue": 5, "timestamp": at.UnixMilli()})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	var chart struct {
		Period string       `json:"period"`
		Start  string       `json:"start"`
		Points []ChartPoint `json:"points"`
	}
	w := do(s, http.MethodGet, "/api/v1/moods/chart", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &chart)
	assert.Equal(t, "week", chart.Period)
	assert.Equal(t, "2024-01-04", chart.Start)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, "05 Jan 12:00:00 pm", chart.Points[0].Label)
	assert.Equal(t, "#ffeb3b", chart.Points[0].Color)

	w = do(s, http.MethodGet, "/api/v1/moods/chart?period=month", nil, cookie)
	decode(t, w, &chart)
	assert.Len(t, chart.Points, 3)

	w = do(s, http.MethodGet, "/api/v1/moods/chart?period=year", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsightsEndpoint(t *testing.T) {
	s := newTestServer(t)
	cookie := newVisitor(t, s)

	type response struct {
		Patterns struct {
			Available  bool    `json:"available"`
			UniqueDays int     `json:"uniqueDays"`
			Average    float64 `json:"overallAverage"`
		} `json:"patterns"`
		Insights     []map[string]string `json:"insights"`
		Suggestions  []map[string]string `json:"suggestions"`
		BroadenBuild string              `json:"broadenBuild"`
	}

	require.Equal(t, http.StatusCreated, postMood(t, s, cookie, map[string]interface{}{"moodValue": 7}).Code)
	var resp response
	w := do(s, http.MethodGet, "/api/v1/insights", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.False(t, resp.Patterns.Available)
	assert.NotNil(t, resp.Insights)
	assert.Empty(t, resp.Insights)

	for _, day := range []int{8, 9} {
		at := time.Date(2024, 1, day, 12, 0, 0, 0, time.UTC)
		require.Equal(t, http.StatusCreated, postMood(t, s, cookie, map[string]interface{}{"moodValue": 7, "timestamp": at.UnixMilli()}).Code)
	}
	w = do(s, http.MethodGet, "/api/v1/insights", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	resp = response{}
	decode(t, w, &resp)
	assert.True(t, resp.Patterns.Available)
	assert.Equal(t, 3, resp.Patterns.UniqueDays)
	assert.Equal(t, 7.0, resp.Patterns.Average)
	assert.NotEmpty(t, resp.Insights)
	assert.NotEmpty(t, resp.Suggestions)
	assert.NotEmpty(t, resp.BroadenBuild)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	cookie := newVisitor(t, s)

	w := do(s, http.MethodGet, "/api/v1/export.csv", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, postMood(t, s, cookie, map[string]interface{}{"mood": "happy", "note": "hello, world"}).Code)

	w = do(s, http.MethodGet, "/api/v1/export.csv", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, `attachment; filename="mood_tracker_data_10-1-2024.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date,Time,Mood,Mood Value,Note\n10/1/2024,12:00:00 pm,Happy,6,\"hello, world\"\n", w.Body.String())

	w = do(s, http.MethodGet, "/api/v1/export.json", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "mood_tracker_data_10-1-2024.json")
	var entries []models.MoodEntry
	decode(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello, world", entries[0].Note)
}

func TestWriteRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.limiter = newVisitorLimiter(rate.Limit(0.001), 2)
	cookie := newVisitor(t, s)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, postMood(t, s, cookie, map[string]interface{}{"mood": "happy"}).Code)
	}
	w := postMood(t, s, cookie, map[string]interface{}{"mood": "happy"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads are not limited
	w = do(s, http.MethodGet, "/api/v1/moods", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	// other visitors have their own bucket
	assert.Equal(t, http.StatusCreated, postMood(t, s, newVisitor(t, s), map[string]interface{}{"mood": "happy"}).Code)
}

func TestCookielessWritesAreLimitedPerIP(t *testing.T) {
	s := newTestServer(t)

	var first *http.Cookie
	accepted := 0
	for i := 0; i < SessionCreateBurst+WriteRateBurst; i++ {
		w := postMood(t, s, nil, map[string]interface{}{"moodValue": 5})
		if w.Code != http.StatusCreated {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			continue
		}
		accepted++
		if first == nil {
			first = visitorCookie(t, w)
		}
	}
	assert.Equal(t, SessionCreateBurst, accepted)

	sessions, err := s.DB.CountActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionCreateBurst, sessions)

	// known visitors from the same IP keep writing
	require.NotNil(t, first)
	assert.Equal(t, http.StatusCreated, postMood(t, s, first, map[string]interface{}{"moodValue": 5}).Code)

	// other addresses get their own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/v1/moods", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimiterPrune(t *testing.T) {
	vl := newVisitorLimiter(1, 1)
	assert.True(t, vl.Allow("a"))
	assert.False(t, vl.Allow("a"))
	assert.True(t, vl.Allow("b"))

	vl.visitors["a"].lastSeen = time.Now().Add(-2 * time.Hour)
	assert.Equal(t, 1, vl.Prune(time.Hour))
	assert.Len(t, vl.visitors, 1)
	assert.True(t, vl.Allow("a"))
}

func TestSessionCleanupJob(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.StartSessionCleanup())
	assert.Len(t, s.cron.Entries(), 1)
	s.cleanupSessions()

	// a tick after the database closed is a no-op
	require.NoError(t, s.DB.Shutdown())
	s.cleanupSessions()
}

func TestTemplateDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>from disk</p>"), 0o644))

	s := newTestServer(t, func(cfg *config.MainConfig) { cfg.Web.TemplateDir = dir })
	w := do(s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>from disk</p>", w.Body.String())

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.NewDefaultConfig()
	cfg.Web.Debug = false
	cfg.Web.TemplateDir = filepath.Join(dir, "missing")
	_, err := NewServer(s.DB, cfg, logger)
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Mood Tracker")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.True(t, errors.Is(<-done, http.ErrServerClosed))
}

func TestStartFailsWhenPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	s := newTestServer(t, func(cfg *config.MainConfig) {
		cfg.Web.ListenHost = "127.0.0.1"
		cfg.Web.ListenPort = port
	})
	err = s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
