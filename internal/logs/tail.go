package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"mpdgrab/internal/logging"
)

const maxLineBytes = 1024 * 1024

// Entry is one record of the JSON job log.
type Entry struct {
	Time      string
	Level     string
	Message   string
	Component string
	JobID     string
	EventType string
	Fields    map[string]string
}

// Filter narrows which entries Tail and Follow return. Zero values match everything.
type Filter struct {
	JobID    string
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Match reports whether the entry passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.JobID != "" && e.JobID != f.JobID {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		if ok && levelRank[e.Level] < want {
			return false
		}
	}
	return true
}

// ParseLine decodes one JSON log line. Lines that are not JSON objects are rejected.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Entry{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	entry := Entry{Fields: make(map[string]string)}
	for key, value := range raw {
		text := fmt.Sprint(value)
		switch key {
		case "ts":
			entry.Time = text
		case "level":
			entry.Level = strings.ToLower(text)
		case "msg":
			entry.Message = text
		case logging.FieldComponent:
			entry.Component = text
		case logging.FieldJobID:
			entry.JobID = text
		case logging.FieldEventType:
			entry.EventType = text
		default:
			entry.Fields[key] = text
		}
	}
	return entry, true
}

// Format renders the entry as a single console line.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString(e.Time)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(e.Level))
	b.WriteByte(' ')
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.JobID != "" {
		b.WriteString(" job_id=")
		b.WriteString(e.JobID)
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(e.Fields[key])
	}
	return b.String()
}

// Tail returns up to limit of the newest matching entries and the file offset
// just past them. A missing log file yields nothing at offset zero.
func Tail(path string, limit int, filter Filter) ([]Entry, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []Entry
	offset, err := scanEntries(file, filter, func(e Entry) {
		if limit <= 0 {
			return
		}
		ring = append(ring, e)
		if len(ring) > limit {
			ring = ring[1:]
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return ring, offset, nil
}

// Follow polls the log from offset and hands every new matching entry to fn
// until ctx ends. A truncated file is re-read from the start.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, fn func(Entry)) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, fn)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, fn func(Entry)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scanEntries(file, filter, fn)
	if err != nil {
		return offset, err
	}
	return offset + read, nil
}

// scanEntries consumes complete lines only, so a record still being written is
// picked up whole on the next pass. It returns the number of bytes consumed.
func scanEntries(r io.Reader, filter Filter, fn func(Entry)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			continue
		}
		if entry, ok := ParseLine(line); ok && filter.Match(entry) {
			fn(entry)
		}
	}
}
