// Package debug provides category-based debug logging for arena.
//
// Categories pick which subsystems emit debug records (ARENA_DEBUG or
// logging.debug); the level picks how verbose slog is overall
// (ARENA_LOG_LEVEL or logging.level). Environment values win over config.
//
//	debug.Log("engine", "run transition", "from", from, "to", to)
//	debug.Trace("engine", "reasoning chunk", "text", text)
//
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"unicode/utf8"
)

// LevelTrace is below slog.LevelDebug. Chunk-level output such as model
// reasoning text is only logged at this level.
const LevelTrace = slog.LevelDebug - 4

// Known lists the categories the code logs under. "all" enables every one.
var Known = []string{"auth", "config", "engine", "processors", "providers", "storage"}

// categories is replaced wholesale by Init and read without locking.
var categories = parseCategories(os.Getenv("ARENA_DEBUG"))

// Init installs the default slog logger and the enabled categories.
// format is "json" or "text".
func Init(configCategories, configLevel, format string) {
	cats := firstNonEmpty(os.Getenv("ARENA_DEBUG"), configCategories)
	categories = parseCategories(cats)

	level := firstNonEmpty(os.Getenv("ARENA_LOG_LEVEL"), configLevel, "INFO")
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, ParseLevel(level))))

	for cat := range categories {
		if cat != "all" && !slices.Contains(Known, cat) {
			slog.Warn("unknown debug category", "category", cat, "known", strings.Join(Known, ","))
		}
	}
}

// NewHandler builds the slog handler for the given output format.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Enabled reports whether debug output is active for category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a DEBUG record tagged with category when it is enabled.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with category when it is enabled.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level name to a slog.Level. Unknown names are INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories in sorted order.
func Categories() []string {
	out := make([]string, 0, len(categories))
	for k := range categories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Truncate shortens s to at most maxLen bytes without splitting a rune and
// marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
