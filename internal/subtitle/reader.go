package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// DefaultReader parses SRT tracks cue by cue. Malformed cues are skipped
// with a warning instead of failing the whole track; subtitle files in the
// wild routinely carry a few broken blocks.
type DefaultReader struct {
	path string
}

// NewReader creates a reader for one subtitle file
func NewReader(path string) Reader {
	return &DefaultReader{path: path}
}

// Read parses the SRT file into timed lines. Cues are renumbered
// sequentially; source counters are unreliable once broken cues are
// dropped.
func (r *DefaultReader) Read() (*File, error) {
	if !strings.EqualFold(filepath.Ext(r.path), ".srt") {
		return nil, fmt.Errorf("only SRT subtitle files are supported: %s", r.path)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []Line
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		cue, ok := parseCue(block)
		if !ok {
			log.Warn("skipping malformed subtitle cue in %s: %.40q", filepath.Base(r.path), strings.TrimSpace(block))
			continue
		}
		cue.Index = len(lines) + 1
		lines = append(lines, cue)
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("no readable cues in %s", r.path)
	}

	return &File{
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   "SRT",
	}, nil
}

// parseCue reads one blank-line separated SRT block: an optional numeric
// counter, a timing line, then the text.
func parseCue(block string) (Line, bool) {
	rows := strings.Split(strings.TrimSpace(block), "\n")

	i := 0
	if _, err := strconv.Atoi(strings.TrimSpace(rows[0])); err == nil {
		i++
	}
	if i >= len(rows) {
		return Line{}, false
	}

	start, end, err := parseTiming(rows[i])
	if err != nil || end <= start {
		return Line{}, false
	}

	body := strings.TrimSpace(strings.Join(rows[i+1:], "\n"))
	if body == "" {
		return Line{}, false
	}

	return Line{StartTime: start, EndTime: end, Text: body}, true
}

// parseTiming reads "00:02:16,612 --> 00:02:19,376". A dot millisecond
// separator is accepted too.
func parseTiming(row string) (time.Duration, time.Duration, error) {
	parts := strings.Split(row, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("not a timing line: %q", row)
	}

	start, err := parseTimecode(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimecode(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimecode(s string) (time.Duration, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid timecode: %q", s)
	}

	h, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q", s)
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}
	sec, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("invalid seconds in %q", s)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}

// detectLanguage tallies per-cue detection and returns the dominant tag
func detectLanguage(lines []Line) language.Tag {
	tally := make(map[string]int)
	best := ""
	for _, line := range lines {
		code := whatlanggo.DetectLang(line.Text).Iso6391()
		tally[code]++
		if best == "" || tally[code] > tally[best] {
			best = code
		}
	}
	if best == "" {
		return language.Und
	}
	return language.All.Make(best)
}
