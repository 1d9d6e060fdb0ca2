// Package console renders user-facing output: the in-place progress line of
// a download, and the Markdown tables printed by the report and database
// tools.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
	"github.com/keatumal/yandex-metrika-logs/internal/report"
)

const lineWidth = 100

// Progress prints lifecycle progress on a single, rewritten line. It
// implements report.Observer.
type Progress struct {
	report.NopObserver

	mu    sync.Mutex
	w     io.Writer
	dirty bool
}

var _ report.Observer = (*Progress)(nil)

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress { return &Progress{w: w} }

// overwrite replaces the current line with s.
func (p *Progress) overwrite(s string) {
	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", lineWidth), s)
	p.dirty = true
}

// println ends a pending progress line before printing s.
func (p *Progress) println(s string) {
	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
	fmt.Fprintln(p.w, s)
}

// Println prints a full line, ending any progress line first.
func (p *Progress) Println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.println(fmt.Sprint(a...))
}

// Printf is Println with a format.
func (p *Progress) Printf(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.println(fmt.Sprintf(format, a...))
}

// Finish ends a pending progress line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}

func (p *Progress) Waiting(_ int64, status logsapi.Status, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overwrite(fmt.Sprintf("Waiting for report (%s). It's been %s…", status, Elapsed(elapsed)))
}

func (p *Progress) PartsListed(_ int64, parts []logsapi.PartInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.println(fmt.Sprintf("Number of parts in the report: %d", len(parts)))
}

func (p *Progress) PartStage(index, total int, _ logsapi.PartInfo, stage report.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overwrite(fmt.Sprintf("Part %d/%d: %s", index, total, stage))
}

// Elapsed spells a wait duration the way a person would ("30 seconds",
// "2 minutes").
func Elapsed(d time.Duration) string {
	if d < time.Second {
		return "a moment"
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

// Size spells a byte count with binary units.
func Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
