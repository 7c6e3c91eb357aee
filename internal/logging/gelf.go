package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler returns a JSON slog handler whose records are shipped to a
// Graylog input over UDP. Close the returned closer on shutdown.
func NewGELFHandler(addr, facility, level string) (slog.Handler, io.Closer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to graylog at %s: %w", addr, err)
	}
	w.Facility = facility

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return h, w, nil
}
