package store

import "time"

// timeLayout is fixed-width so that lexicographic comparison of stored
// timestamps matches chronological order. SQLite's datetime() functions
// parse it as well.
const timeLayout = "2006-01-02 15:04:05.000000000"

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
