package downloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"rangefetch/internal"
	"rangefetch/utils"
)

// Aggregator periodically renders a live heatmap grid plus aggregate
// percentage/speed/ETA stats by polling on-disk segment file sizes. It never
// mutates state; it is a pure, read-only observer of the staging directory
// and the shared status table.
type Aggregator struct {
	table    *StatusTable
	segments []internal.Segment
	total    int64
	tick     time.Duration
	columns  int
	quiet    bool
	fileOps  *utils.FileOperations

	lastSample time.Time
	lastBytes  int64
	smoothed   float64
}

// NewAggregator builds an Aggregator for one run. tick and columns default
// to the engine config's values when zero.
func NewAggregator(table *StatusTable, segments []internal.Segment, total int64, tick time.Duration, columns int, quiet bool) *Aggregator {
	if tick <= 0 {
		tick = internal.DefaultConfig().AggregatorTick
	}
	if columns <= 0 {
		columns = internal.DefaultConfig().HeatmapColumns
	}
	return &Aggregator{
		table:      table,
		segments:   segments,
		total:      total,
		tick:       tick,
		columns:    columns,
		quiet:      quiet,
		fileOps:    utils.NewFileOperations(),
		lastSample: time.Now(),
	}
}

// Run polls and redraws until ctx is cancelled. The engine runs it in its own
// goroutine beside the fetchers' errgroup and cancels ctx once every fetcher
// has returned.
func (a *Aggregator) Run(ctx context.Context, statuses func() []internal.SegmentStatus, total int64) {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.render(statuses())
		}
	}
}

// render computes current progress and draws one frame. Output is
// suppressed entirely in quiet mode.
func (a *Aggregator) render(rows []internal.SegmentStatus) {
	if a.quiet {
		return
	}

	current := a.currentBytes()
	percentage := float64(0)
	if a.total > 0 {
		percentage = float64(current) / float64(a.total) * 100
	}

	speed := a.updateSpeed(current)

	// One write per frame: clear the line, then the whole redraw. Building
	// the frame first keeps a concurrent writer from tearing it mid-line.
	var frame strings.Builder
	frame.WriteString("\033[2K\r")
	fmt.Fprintf(&frame, "%s  %.1f%%  %s / %s", a.heatmap(rows), percentage, utils.FormatBytes(current), utils.FormatBytes(a.total))

	if speed >= 1024 {
		fmt.Fprintf(&frame, "  %s/s", utils.FormatBytes(int64(speed)))
		if eta := a.eta(current, speed); eta > 0 {
			fmt.Fprintf(&frame, "  ETA %s", eta.Round(time.Second))
		}
	}

	fmt.Print(frame.String())
}

// currentBytes sums on-disk segment sizes, clamped to the known total.
// Missing files and stat errors both read as zero; segments appearing,
// growing, or disappearing mid-tick are tolerated without error.
func (a *Aggregator) currentBytes() int64 {
	var sum int64
	for _, seg := range a.segments {
		size, err := a.fileOps.GetFileSize(seg.LocalPath)
		if err != nil {
			continue
		}
		sum += size
	}
	if sum > a.total {
		sum = a.total
	}
	return sum
}

func (a *Aggregator) updateSpeed(current int64) float64 {
	now := time.Now()
	elapsed := now.Sub(a.lastSample).Seconds()
	if elapsed <= 0 {
		return a.smoothed
	}
	instant := float64(current-a.lastBytes) / elapsed
	if instant < 0 {
		instant = 0
	}
	if a.smoothed == 0 {
		a.smoothed = instant
	} else {
		a.smoothed = a.smoothed*0.7 + instant*0.3
	}
	a.lastSample = now
	a.lastBytes = current
	return a.smoothed
}

func (a *Aggregator) eta(current int64, speed float64) time.Duration {
	if speed < 1024 || current >= a.total {
		return 0
	}
	remaining := float64(a.total - current)
	return time.Duration(remaining/speed) * time.Second
}

// heatmap renders one cell per column, each representing an equal share of
// the segment index space, colored by the worst state among the segments it
// covers.
func (a *Aggregator) heatmap(rows []internal.SegmentStatus) string {
	n := len(rows)
	if n == 0 {
		return ""
	}
	cols := a.columns
	if cols > n {
		cols = n
	}

	var b strings.Builder
	b.WriteString("[")
	perCol := float64(n) / float64(cols)
	for c := 0; c < cols; c++ {
		start := int(float64(c) * perCol)
		end := int(float64(c+1) * perCol)
		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}
		b.WriteString(colorForCell(rows[start:end]))
	}
	b.WriteString("]")
	return b.String()
}

// colorForCell renders one cell for a span of segments: the glyph is the
// highest retry count in the span, colored by the most urgent state. A
// failure anywhere in the span outranks a retry, which outranks pending,
// which outranks success.
func colorForCell(span []internal.SegmentStatus) string {
	worst := internal.StateSucceeded
	worstRank := severityRank(worst)
	retries := 0
	for _, s := range span {
		if r := severityRank(s.State); r > worstRank {
			worst = s.State
			worstRank = r
		}
		if s.Retries > retries {
			retries = s.Retries
		}
	}

	glyph := "+"
	if retries <= 9 {
		glyph = string(rune('0' + retries))
	}

	switch worst {
	case internal.StateFailed:
		return color.New(color.BgRed, color.FgWhite).Sprint(glyph)
	case internal.StateRetrying:
		return color.New(color.BgYellow, color.FgBlack).Sprint(glyph)
	case internal.StatePending:
		return color.New(color.BgWhite, color.FgBlack).Sprint(glyph)
	default:
		return color.New(color.BgGreen, color.FgBlack).Sprint(glyph)
	}
}

// severityRank orders states by urgency for heatmap display, independent of
// SegmentState's declaration order (which reflects lifecycle, not urgency).
func severityRank(s internal.SegmentState) int {
	switch s {
	case internal.StateFailed:
		return 3
	case internal.StateRetrying:
		return 2
	case internal.StatePending:
		return 1
	default: // StateSucceeded
		return 0
	}
}
