package formula

import "log/slog"

var pkgLogger *slog.Logger

// SetLogger routes engine logging to l. A nil logger restores slog.Default.
func SetLogger(l *slog.Logger) {
	pkgLogger = l
}

func logger() *slog.Logger {
	if pkgLogger != nil {
		return pkgLogger
	}
	return slog.Default()
}
