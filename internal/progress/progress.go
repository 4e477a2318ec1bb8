// Package progress reports transfer progress to the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// IsTerminalFunc is the function used to check if a file descriptor is a terminal.
// It can be overridden for testing.
var IsTerminalFunc = term.IsTerminal

// Sink receives progress for one transfer at a time.
type Sink interface {
	// Start begins a transfer. A total <= 0 means the size is unknown.
	Start(label string, total int64)
	Add(n int64)
	Finish()
}

// Noop discards all progress.
type Noop struct{}

func (Noop) Start(string, int64) {}
func (Noop) Add(int64)           {}
func (Noop) Finish()             {}

// Bar renders progress as a terminal bar.
type Bar struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewBar returns a Bar writing to out.
func NewBar(out io.Writer) *Bar {
	return &Bar{out: out}
}

func (b *Bar) Start(label string, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if total <= 0 {
		total = -1
	}
	b.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (b *Bar) Add(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Add(int(n))
	}
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
		b.bar = nil
	}
}

// New returns a terminal bar on stderr, or Noop when quiet or when stdout
// is not a terminal.
func New(quiet bool) Sink {
	if quiet || !ShouldShowProgress() {
		return Noop{}
	}
	return NewBar(os.Stderr)
}

// Reader reports bytes read through it to a Sink.
type Reader struct {
	r    io.Reader
	sink Sink
}

// NewReader wraps r so reads are reported to sink.
func NewReader(r io.Reader, sink Sink) *Reader {
	if sink == nil {
		sink = Noop{}
	}
	return &Reader{r: r, sink: sink}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.sink.Add(int64(n))
	}
	return n, err
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.1fGB", float64(b)/GB)
	case b >= MB:
		return fmt.Sprintf("%.1fMB", float64(b)/MB)
	case b >= KB:
		return fmt.Sprintf("%.1fKB", float64(b)/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// ShouldShowProgress returns true if progress should be displayed.
// Progress is shown when stdout is a terminal.
func ShouldShowProgress() bool {
	return IsTerminalFunc(int(os.Stdout.Fd()))
}
