package recording

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const maxLineBytes = 1 << 20

var (
	datePattern = regexp.MustCompile(`^\d+/\d+/\d+`)
	// plain decimal notation with an optional exponent; no hex, NaN or Inf
	samplePattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// ParseBytes parses an in-memory export.
func ParseBytes(content []byte) (*Recording, error) {
	return Parse(bytes.NewReader(content))
}

// Parse reads an ADS1298 style text export: a metadata header block, a
// channel header row (CH1 CH2 ...), then one row of samples per instant.
// Any malformed data row fails the whole parse.
func Parse(r io.Reader) (*Recording, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	rec := &Recording{samples: make(map[string][]float64)}
	lineNo := 0
	notesPending := false

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if notesPending {
			notesPending = false
			if !isHeaderKey(line) && !isChannelRow(line) {
				rec.Notes = line
				continue
			}
		}

		if isChannelRow(line) {
			if err := rec.setChannels(strings.Fields(line), lineNo); err != nil {
				return nil, err
			}
			break
		}

		key, value, ok := splitHeader(line)
		switch {
		case ok && key == "record #":
			rec.RecordID = value
		case ok && key == "date":
			rec.Timestamp = value
		case ok && key == "notes":
			rec.Notes = value
			notesPending = value == ""
		case ok && key == "gain":
			rec.Gain = value
		case datePattern.MatchString(line) && rec.Timestamp == "":
			rec.Timestamp = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if len(rec.channels) == 0 {
		return nil, &MalformedRecordingError{Reason: "missing channel header row"}
	}

	columns := make([][]float64, len(rec.channels))
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(rec.channels) {
			return nil, &MalformedRecordingError{
				Line:   lineNo,
				Reason: fmt.Sprintf("expected %d columns, found %d", len(rec.channels), len(fields)),
				Text:   raw,
			}
		}
		for i, field := range fields {
			v, ok := parseSample(field)
			if !ok {
				return nil, &MalformedRecordingError{
					Line:   lineNo,
					Reason: fmt.Sprintf("non-numeric sample %q in column %s", field, rec.channels[i]),
					Text:   raw,
				}
			}
			columns[i] = append(columns[i], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	if len(columns[0]) == 0 {
		return nil, &MalformedRecordingError{Line: lineNo, Reason: "no samples after channel header"}
	}

	for i, name := range rec.channels {
		rec.samples[name] = columns[i]
	}
	rec.length = len(columns[0])
	return rec, nil
}

// parseSample accepts only finite decimal values.
func parseSample(field string) (float64, bool) {
	if !samplePattern.MatchString(field) {
		return 0, false
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (r *Recording) setChannels(names []string, lineNo int) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return &MalformedRecordingError{Line: lineNo, Reason: fmt.Sprintf("duplicate channel %q", name)}
		}
		seen[name] = struct{}{}
	}
	r.channels = names
	return nil
}

// isChannelRow matches the channel header, e.g. "CH1\tCH2\t...\tCH8".
func isChannelRow(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	if !strings.HasPrefix(strings.ToUpper(fields[0]), "CH") {
		return false
	}
	for _, f := range fields {
		if strings.Contains(f, ":") {
			return false
		}
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			return false
		}
	}
	return true
}

func splitHeader(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.TrimSpace(line[:idx]))
	return key, strings.TrimSpace(line[idx+1:]), true
}

func isHeaderKey(line string) bool {
	key, _, ok := splitHeader(line)
	if !ok {
		return false
	}
	switch key {
	case "record #", "date", "notes", "gain":
		return true
	}
	return false
}
