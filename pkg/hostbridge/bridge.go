// Package hostbridge connects the game server to the dispatcher over a line
// protocol. Each input line is one call, "command|arg|arg", answered by one
// JSON array line: ["ok", command, result] or ["error", command, message].
// Calls the extension makes on its own are written as ["callback", name, args...].
package hostbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/warfare-dev/extension/internal/dispatcher"
)

const (
	// CommandTimestamp is answered by the bridge itself.
	CommandTimestamp = ":TIMESTAMP:"
	// CommandVersion is answered by the bridge itself.
	CommandVersion = ":VERSION:"

	maxLineSize = 1 << 20
)

// Bridge reads host calls and writes responses and callbacks.
type Bridge struct {
	dispatcher *dispatcher.Dispatcher
	version    string

	out   io.Writer
	outMu sync.Mutex
	now   func() time.Time
}

// New creates a bridge that answers on out.
func New(d *dispatcher.Dispatcher, out io.Writer, version string) *Bridge {
	return &Bridge{
		dispatcher: d,
		version:    version,
		out:        out,
		now:        time.Now,
	}
}

// ParseCall splits a raw host line into command and arguments.
func ParseCall(line string) (string, []string) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), "|")
	command := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return command, nil
	}
	return command, parts[1:]
}

// Call handles one raw host line and returns the response line.
func (b *Bridge) Call(line string) string {
	command, args := ParseCall(line)

	switch command {
	case "":
		return FormatResponse(command, nil, fmt.Errorf("empty command"))
	case CommandTimestamp:
		return FormatResponse(command, strconv.FormatInt(b.now().UTC().UnixNano(), 10), nil)
	case CommandVersion:
		return FormatResponse(command, b.version, nil)
	}

	result, err := b.dispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: b.now(),
	})
	return FormatResponse(command, result, err)
}

// Serve answers every line of in until it is exhausted or ctx is done.
func (b *Bridge) Serve(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := b.write(b.Call(line)); err != nil {
				return err
			}
		}
	}
}

// Callback sends an unsolicited message to the host.
func (b *Bridge) Callback(name string, args ...any) error {
	msg := append([]any{"callback", name}, args...)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding callback %s: %w", name, err)
	}
	return b.write(string(data))
}

func (b *Bridge) write(line string) error {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	_, err := io.WriteString(b.out, line+"\n")
	return err
}

// FormatResponse encodes a dispatch outcome for the host.
func FormatResponse(command string, result any, err error) string {
	var msg []any
	switch {
	case err != nil:
		msg = []any{"error", command, err.Error()}
	case result == nil:
		msg = []any{"ok", command}
	default:
		msg = []any{"ok", command, result}
	}
	data, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		data, _ = json.Marshal([]any{"error", command, marshalErr.Error()})
	}
	return string(data)
}
