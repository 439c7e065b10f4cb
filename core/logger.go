package core

// Logger is any leveled logger used across the app.
// Implementations may interpret extra args as structured context
// (error, map[string]interface{}, acting user).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
