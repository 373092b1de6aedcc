// Command-line maintenance tool for the go-moodtracker database
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/go-while/go-moodtracker/internal/config"
	"github.com/go-while/go-moodtracker/internal/database"
	"github.com/go-while/go-moodtracker/internal/export"
	"github.com/go-while/go-moodtracker/internal/logging"
	"github.com/go-while/go-moodtracker/internal/models"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	var (
		listMoods       = flag.Bool("list", false, "List visitors, or the moods of -visitor")
		addMood         = flag.Bool("add", false, "Add a mood entry for -visitor")
		clearMoods      = flag.Bool("clear", false, "Delete all moods of -visitor")
		cleanupSessions = flag.Bool("cleanup-sessions", false, "Remove expired visitor sessions")
		exportFormat    = flag.String("export", "", "Write the moods of -visitor to stdout as csv or json")
		visitor         = flag.String("visitor", "", "Visitor (session) ID for mood operations")
		value           = flag.Int("value", 0, "Mood value 1 (very sad) to 7 (very happy) for -add")
		date            = flag.String("date", "", "Date YYYY-MM-DD for -add (default: today)")
		note            = flag.String("note", "", "Note for -add")
		yes             = flag.Bool("yes", false, "Do not ask for confirmation")
		dataDir         = flag.String("data", "", "Directory of the mood database (default: ./data)")
		verbose         = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	level := logrus.WarnLevel
	if *verbose {
		level = logrus.DebugLevel
	}
	logger := logging.Setup(level, os.Stderr)
	logger.Debugf("go-moodtracker Mood Manager (version: %s)", config.AppVersion)

	if !*listMoods && !*addMood && !*clearMoods && !*cleanupSessions && *exportFormat == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list -visitor <id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -add -visitor <id> -value 6 -date 2024-03-01 -note \"good day\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -export csv -visitor <id> > moods.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -clear -visitor <id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -cleanup-sessions\n", os.Args[0])
		os.Exit(1)
	}

	mainConfig, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if *dataDir != "" {
		mainConfig.Database.DataDir = *dataDir
	}
	loc, err := mainConfig.Location()
	if err != nil {
		logger.Fatal(err)
	}

	dbConfig := database.DefaultDBConfig()
	dbConfig.DataDir = mainConfig.Database.DataDir
	dbConfig.SessionTimeout = mainConfig.Database.SessionTimeout
	db, err := database.OpenDatabase(dbConfig, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Shutdown()

	ctx := context.Background()
	requireVisitor := func(op string) {
		if *visitor == "" {
			db.Shutdown()
			logger.Fatalf("-visitor is required for %s", op)
		}
	}

	switch {
	case *listMoods:
		if *visitor == "" {
			err = listAllVisitors(ctx, db, os.Stdout)
		} else {
			err = listVisitorMoods(ctx, db, *visitor, os.Stdout)
		}

	case *addMood:
		requireVisitor("-add")
		var entry *models.MoodEntry
		entry, err = addEntry(ctx, db, *visitor, *value, *date, *note, time.Now(), loc)
		if err == nil {
			fmt.Printf("Added %s (%d) on %s at %s\n", entry.Mood.Label(), entry.MoodValue, entry.Date, entry.ExactTime)
		}

	case *exportFormat != "":
		requireVisitor("-export")
		err = exportVisitorMoods(ctx, db, *visitor, *exportFormat, os.Stdout)

	case *clearMoods:
		requireVisitor("-clear")
		if !*yes {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				db.Shutdown()
				logger.Fatal("stdin is not a terminal; pass -yes to clear without confirmation")
			}
			if !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete ALL moods of visitor %s?", *visitor)) {
				fmt.Println("Aborted")
				return
			}
		}
		var n int64
		n, err = db.DeleteMoodEntries(ctx, *visitor)
		if err == nil {
			fmt.Printf("Deleted %d mood entries\n", n)
		}

	case *cleanupSessions:
		var n int64
		n, err = db.CleanupExpiredSessions(ctx)
		if err == nil {
			fmt.Printf("Removed %d expired sessions\n", n)
		}
	}

	if err != nil {
		db.Shutdown()
		logger.Fatal(err)
	}
}

func listAllVisitors(ctx context.Context, db *database.Database, w io.Writer) error {
	visitors, err := db.ListVisitors(ctx)
	if err != nil {
		return err
	}
	if len(visitors) == 0 {
		fmt.Fprintln(w, "No moods recorded")
		return nil
	}
	fmt.Fprintf(w, "%-36s %7s %5s\n", "Visitor", "Entries", "Days")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 50))
	for _, v := range visitors {
		entries, err := db.GetMoodEntries(ctx, v, 0)
		if err != nil {
			return err
		}
		days, err := db.CountMoodDays(ctx, v)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-36s %7d %5d\n", v, len(entries), days)
	}
	sessions, err := db.CountActiveSessions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Active sessions: %d\n", sessions)
	return nil
}

func listVisitorMoods(ctx context.Context, db *database.Database, visitor string, w io.Writer) error {
	entries, err := db.GetMoodEntries(ctx, visitor, 0)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "No moods recorded for %s\n", visitor)
		return nil
	}
	fmt.Fprintf(w, "%-10s %-11s %-3s %-12s %s\n", "Date", "Time", "Day", "Mood", "Note")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 60))
	for _, e := range entries {
		fmt.Fprintf(w, "%-10s %-11s %-3s %-12s %s\n", e.Date, e.ExactTime, time.Weekday(e.Weekday).String()[:3], e.Mood.Label(), e.Note)
	}
	return nil
}

// addEntry records a mood for visitor. An empty date means today; the entry
// keeps the current time of day so back-dated entries sort like real ones.
func addEntry(ctx context.Context, db *database.Database, visitor string, value int, date, note string, now time.Time, loc *time.Location) (*models.MoodEntry, error) {
	mood, err := models.MoodFromValue(value)
	if err != nil {
		return nil, err
	}
	at := now
	if date != "" {
		day, err := time.ParseInLocation(models.DateLayout, date, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid -date %q (want YYYY-MM-DD): %w", date, err)
		}
		local := now.In(loc)
		at = time.Date(day.Year(), day.Month(), day.Day(), local.Hour(), local.Minute(), local.Second(), 0, loc)
	}
	entry, err := models.NewMoodEntry("", mood, note, at, loc)
	if err != nil {
		return nil, err
	}
	entry.VisitorID = visitor
	if err := db.InsertMoodEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func exportVisitorMoods(ctx context.Context, db *database.Database, visitor, format string, w io.Writer) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	entries, err := db.GetMoodEntries(ctx, visitor, 0)
	if err != nil {
		return err
	}
	return export.Write(w, f, entries)
}

// confirm asks a yes/no question and reads the answer from in
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
