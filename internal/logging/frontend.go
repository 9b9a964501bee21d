package logging

import (
	"context"
	"log/slog"
	"strings"
)

// LogEntry is a log line sent by the frontend
type LogEntry struct {
	Level   string                 `json:"level"`
	Module  string                 `json:"module"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// LogFromFrontend routes a frontend entry through the backend logger
func LogFromFrontend(entry LogEntry) {
	lvl := parseLevel(entry.Level)

	logger := Logger().With("source", "frontend", "module", entry.Module)
	if data := sanitizeData(entry.Data); len(data) > 0 {
		logger = logger.With("data", data)
	}
	logger.Log(context.Background(), lvl, truncate(entry.Message, MaxMessageLength))
}

// parseLevel normalises a frontend level, defaulting to info
func parseLevel(s string) slog.Level {
	if l, ok := ValidLogLevels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	Logger().Warn("Invalid log level from frontend, defaulting to info",
		"providedLevel", s,
		"validLevels", []string{"debug", "info", "warn", "error"})
	return slog.LevelInfo
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range SensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// sanitizeData redacts secrets, truncates long strings and caps the key count
func sanitizeData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}

	result := make(map[string]interface{}, min(len(data), MaxDataSize+1))
	for key, value := range data {
		if len(result) >= MaxDataSize {
			result["_truncated"] = true
			break
		}
		if isSensitive(key) {
			result[key] = "[REDACTED]"
			continue
		}
		if s, ok := value.(string); ok {
			result[key] = truncate(s, MaxDataValueLength)
			continue
		}
		result[key] = value
	}
	return result
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit] + "...[truncated]"
	}
	return s
}
