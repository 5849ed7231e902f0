package events

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoLogFile is returned by ParseLogFile when the log does not exist yet,
// which is the normal state of a task that has not started.
var ErrNoLogFile = errors.New("log file does not exist")

const (
	// docStart introduces an event document: "--- !TAG".
	docStart = "--- !"

	// docEnd terminates an event document on a line of its own.
	docEnd = "..."

	// completionMarker is the plain-text line the engine writes at the very
	// end of a successful run. Recent engine versions additionally emit a
	// FinalSummary document; either is accepted.
	completionMarker = "Calculation completed."

	// maxDocLines bounds a single document so that a corrupted log cannot
	// buffer unbounded text. Real events are tens of lines at most.
	maxDocLines = 2000

	// maxLineBytes is the scanner buffer limit. Engine log lines are short,
	// but a generous cap costs nothing.
	maxLineBytes = 1 << 20
)

// eventBody is the YAML shape shared by every event document.
type eventBody struct {
	Message string `yaml:"message"`
	SrcFile string `yaml:"src_file"`
	SrcLine int    `yaml:"src_line"`
}

// finalSummaryBody is the YAML shape of the FinalSummary document.
// Only the timing fields are used; the rest is ignored.
type finalSummaryBody struct {
	OverallCPUTime  float64 `yaml:"overall_cpu_time"`
	OverallWallTime float64 `yaml:"overall_wall_time"`
}

// ParseLog reads an engine log stream and returns the ordered events found
// in it together with the completion facts.
//
// The scanner tolerates arbitrary non-YAML noise between documents, which is
// how the engine interleaves its iteration output with events. A document
// truncated by a killed run, or one blowing past the per-document line cap,
// yields the text collected so far; the scan then resumes, so a corrupted
// document never swallows the rest of the log. Malformed YAML inside a
// document degrades to a raw-text event of the tag's severity; it never
// aborts the parse.
func ParseLog(r io.Reader) (*Report, error) {
	report := &Report{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := sc.Text()

		if strings.Contains(line, completionMarker) {
			report.Completed = true
			continue
		}

		tag, ok := docTag(line)
		if !ok {
			continue
		}

		body := collectBody(sc)
		if tag == "FinalSummary" {
			applyFinalSummary(report, body)
			continue
		}

		report.Events = append(report.Events, buildEvent(tag, body))
	}
	if err := sc.Err(); err != nil {
		return report, fmt.Errorf("failed to scan log: %w", err)
	}
	return report, nil
}

// ParseLogFile opens and parses a log file. A missing file returns an empty
// report and ErrNoLogFile so that callers can distinguish "not started yet"
// from a malformed log.
func ParseLogFile(path string) (*Report, error) {
	f, err := os.Open(path) //nolint:gosec // Task-directory path built by the flow layer
	if err != nil {
		if os.IsNotExist(err) {
			return &Report{}, ErrNoLogFile
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	report, err := ParseLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// docTag recognizes a document-start line and extracts its tag.
// The engine writes event documents at column zero.
func docTag(line string) (string, bool) {
	if !strings.HasPrefix(line, docStart) {
		return "", false
	}
	tag := strings.TrimSpace(line[len(docStart):])
	if tag == "" {
		return "", false
	}
	return tag, true
}

// collectBody gathers document lines until the terminator, the line cap
// or the end of the stream. A document over the cap degrades to the text
// collected so far; the outer scan resumes at the next document start,
// the straggling lines reading as ordinary noise.
func collectBody(sc *bufio.Scanner) string {
	var sb strings.Builder
	for i := 0; i < maxDocLines; i++ {
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if strings.HasPrefix(line, docEnd) && strings.TrimSpace(line) == docEnd {
			break
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// buildEvent turns a tag and its YAML body into an Event. Unparseable bodies
// keep their raw text as the message.
func buildEvent(tag, body string) Event {
	ev := Event{
		Tag:      tag,
		Severity: ClassifyTag(tag),
	}

	var parsed eventBody
	if err := yaml.Unmarshal([]byte(body), &parsed); err == nil && parsed.Message != "" {
		ev.Message = strings.TrimRight(parsed.Message, "\n")
		ev.SrcFile = parsed.SrcFile
		ev.SrcLine = parsed.SrcLine
		return ev
	}

	ev.Message = strings.TrimSpace(body)
	return ev
}

// applyFinalSummary marks the report completed and records the overall
// timings when the summary parses. The first summary wins; the engine writes
// at most one, so a duplicate means the log was concatenated.
func applyFinalSummary(report *Report, body string) {
	alreadySeen := report.Completed && (report.OverallCPUTime != 0 || report.OverallWallTime != 0)
	report.Completed = true
	if alreadySeen {
		return
	}

	var parsed finalSummaryBody
	if err := yaml.Unmarshal([]byte(body), &parsed); err != nil {
		return
	}
	report.OverallCPUTime = secondsToDuration(parsed.OverallCPUTime)
	report.OverallWallTime = secondsToDuration(parsed.OverallWallTime)
}

// secondsToDuration converts a float seconds value, clamping negatives to zero.
func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
