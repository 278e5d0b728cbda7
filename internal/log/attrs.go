package log

import (
	"log/slog"
	"time"
)

// Err returns the error message under key. A nil error yields an empty Attr,
// which handlers omit.
func Err(key string, err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(key, err.Error())
}

// Space returns the space index attribute used throughout the daemon.
func Space(index int) slog.Attr {
	return slog.Int("space", index)
}

// Since returns an Attr with the elapsed time from t to now.
func Since(key string, t, now time.Time) slog.Attr {
	return slog.Duration(key, now.Sub(t))
}

// Count returns an integer Attr for a tally such as connected clients.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
