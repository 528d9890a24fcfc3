package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services receive it at
// construction; nothing logs through a package-level default.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
