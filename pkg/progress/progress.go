// Package progress keeps a timestamped journal of pipeline runs on stdout and in a file, with color support.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/umputun/t3xtart/pkg/config"
)

// Stage of a pipeline run, used for color coding.
type Stage string

// stage constants.
const (
	StageGenerate Stage = "generate" // backend calls (green)
	StageShape    Stage = "shape"    // parse, sanitize, normalize, validate (cyan)
	StageDeliver  Stage = "deliver"  // delivery and credential refresh (magenta)
)

// palette holds the colors of one journal.
type palette struct {
	stages    map[Stage]*color.Color
	warn      *color.Color
	err       *color.Color
	timestamp *color.Color
}

// defaultPalette uses basic terminal colors, for journals without configured colors.
var defaultPalette = palette{
	stages: map[Stage]*color.Color{
		StageGenerate: color.New(color.FgGreen),
		StageShape:    color.New(color.FgCyan),
		StageDeliver:  color.New(color.FgMagenta),
	},
	warn:      color.New(color.FgYellow),
	err:       color.New(color.FgRed),
	timestamp: color.New(color.FgWhite),
}

// newPalette makes a palette from configured "r,g,b" colors, unset or malformed values
// keep the default color.
func newPalette(cc *config.ColorConfig) palette {
	if cc == nil {
		return defaultPalette
	}
	return palette{
		stages: map[Stage]*color.Color{
			StageGenerate: rgbOr(cc.Generate, defaultPalette.stages[StageGenerate]),
			StageShape:    rgbOr(cc.Shape, defaultPalette.stages[StageShape]),
			StageDeliver:  rgbOr(cc.Deliver, defaultPalette.stages[StageDeliver]),
		},
		warn:      rgbOr(cc.Warn, defaultPalette.warn),
		err:       rgbOr(cc.Error, defaultPalette.err),
		timestamp: rgbOr(cc.Timestamp, defaultPalette.timestamp),
	}
}

func rgbOr(rgb string, def *color.Color) *color.Color {
	parts := strings.Split(rgb, ",")
	if len(parts) != 3 {
		return def
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return def
		}
		vals[i] = v
	}
	return color.RGB(vals[0], vals[1], vals[2])
}

// Config holds journal configuration.
type Config struct {
	Path    string              // journal file, empty disables the file
	NoColor bool                // disable color output (sets color.NoColor globally)
	Stdout  io.Writer           // nil uses os.Stdout
	Colors  *config.ColorConfig // nil uses basic terminal colors
}

// Journal writes timestamped run records to stdout and an append-only file.
// safe for concurrent runs, each line is written under a lock.
type Journal struct {
	mu     sync.Mutex
	file   *os.File
	stdout io.Writer
	colors *palette
}

// New makes a Journal. the file is opened in append mode and its directory created if needed.
func New(cfg Config) (*Journal, error) {
	if cfg.NoColor {
		color.NoColor = true
	}
	p := newPalette(cfg.Colors)
	j := &Journal{stdout: cfg.Stdout, colors: &p}
	if j.stdout == nil {
		j.stdout = os.Stdout
	}
	if cfg.Path == "" {
		return j, nil
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	j.file = f
	return j, nil
}

// Path returns the journal file path, empty if there is no file.
func (j *Journal) Path() string {
	if j == nil || j.file == nil {
		return ""
	}
	return j.file.Name()
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("close journal file: %w", err)
	}
	return nil
}

// Start begins a run record for request. nil journal returns a run that writes nothing.
func (j *Journal) Start(request string) *Run {
	r := &Run{j: j, ID: uuid.NewString()[:8], start: time.Now(), stage: StageGenerate}
	r.Print("run started: %s", oneLine(request))
	return r
}

// Run is one pipeline run in the journal.
type Run struct {
	ID    string
	j     *Journal
	start time.Time
	stage Stage
}

// SetStage sets the current stage for color coding.
func (r *Run) SetStage(s Stage) { r.stage = s }

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message in the stage color.
func (r *Run) Print(format string, args ...any) {
	r.emit(fmt.Sprintf(format, args...), r.colors().stages[r.stage])
}

// Warn writes a warning.
func (r *Run) Warn(format string, args ...any) {
	r.emit("WARN: "+fmt.Sprintf(format, args...), r.colors().warn)
}

// Error writes an error.
func (r *Run) Error(format string, args ...any) {
	r.emit("ERROR: "+fmt.Sprintf(format, args...), r.colors().err)
}

func (r *Run) emit(msg string, c *color.Color) {
	ts := time.Now().Format(timestampFormat)
	r.write(fmt.Sprintf("[%s] %s %s\n", ts, r.ID, msg),
		fmt.Sprintf("%s %s %s\n", r.colors().timestamp.Sprintf("[%s]", ts), r.ID, c.Sprint(msg)))
}

// Block writes a titled multi-line block, continuation lines indented under the first.
// rows are written as is, art must not be re-wrapped.
func (r *Run) Block(title, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	ts := time.Now().Format(timestampFormat)
	indent := strings.Repeat(" ", len(ts)+4+len(r.ID))
	c := r.colors().stages[r.stage]

	var plain, colored strings.Builder
	fmt.Fprintf(&plain, "[%s] %s %s:\n", ts, r.ID, title)
	fmt.Fprintf(&colored, "%s %s %s\n", r.colors().timestamp.Sprintf("[%s]", ts), r.ID, c.Sprint(title+":"))
	for line := range strings.SplitSeq(text, "\n") {
		fmt.Fprintf(&plain, "%s%s\n", indent, line)
		fmt.Fprintf(&colored, "%s%s\n", indent, c.Sprint(line))
	}
	r.write(plain.String(), colored.String())
}

// Text writes long prose wrapped to the terminal width.
func (r *Run) Text(title, text string) {
	r.Block(title, wrapText(oneLine(text), terminalWidth()))
}

// Elapsed returns formatted elapsed time since the run started.
func (r *Run) Elapsed() string {
	return humanize.RelTime(r.start, time.Now(), "", "")
}

// Duration returns the time since the run started.
func (r *Run) Duration() time.Duration { return time.Since(r.start) }

// Finish writes the terminal status line.
func (r *Run) Finish(status, reason string) {
	if status == "delivered" {
		r.Print("run %s in %s: %s", status, r.Elapsed(), reason)
		return
	}
	r.Error("run %s in %s: %s", status, r.Elapsed(), reason)
}

func (r *Run) colors() *palette {
	if r.j == nil || r.j.colors == nil {
		return &defaultPalette
	}
	return r.j.colors
}

func (r *Run) write(plain, colored string) {
	if r == nil || r.j == nil {
		return
	}
	r.j.mu.Lock()
	defer r.j.mu.Unlock()
	if r.j.file != nil {
		_, _ = io.WriteString(r.j.file, plain)
	}
	_, _ = io.WriteString(r.j.stdout, colored)
}

// oneLine collapses whitespace runs, requests are logged on a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// terminalWidth returns content width from COLUMNS or the terminal, 60 if unknown.
func terminalWidth() int {
	const minWidth, prefix = 40, 30
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			return max(w-prefix, minWidth)
		}
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return max(w-prefix, minWidth)
	}
	return 60
}

// wrapText wraps text to width, breaking on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := len(word)
		switch {
		case i == 0:
			lineLen = wordLen
		case lineLen+1+wordLen <= width:
			result.WriteString(" ")
			lineLen += 1 + wordLen
		default:
			result.WriteString("\n")
			lineLen = wordLen
		}
		result.WriteString(word)
	}
	return result.String()
}
