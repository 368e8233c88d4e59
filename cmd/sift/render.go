package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"sift/internal/executor"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// shouldColorize reports whether w is a terminal. Buffers and pipes get
// plain text.
func shouldColorize(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type statusKind int

const (
	statusOK statusKind = iota
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := "[OK]"
	color := ansiGreen
	if kind == statusError {
		statusText = "[ERROR]"
		color = ansiRed
	}
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(base, color, colorize)
}

func renderSectionHeader(title string, colorize bool) string {
	return paint(fmt.Sprintf("== %s ==", strings.TrimSpace(title)), ansiBlue, colorize)
}

func colorFor(method executor.Method) string {
	switch method {
	case executor.MethodAutomatic:
		return ansiGreen
	case executor.MethodManualReview:
		return ansiYellow
	default:
		return ansiBlue
	}
}

func paint(value, color string, colorize bool) string {
	if !colorize || color == "" {
		return value
	}
	return color + value + ansiReset
}

func formatConfidence(value float64) string {
	return fmt.Sprintf("%.0f%%", value*100)
}

func formatBytes(size int64) string {
	if size < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(size))
}

func resultStatus(result executor.Result) string {
	switch {
	case result.Err != nil:
		return "failed"
	case result.Executed:
		return "executed"
	case result.Method == executor.MethodManualReview:
		return "review"
	case result.Method == executor.MethodSkipped:
		return "skipped"
	default:
		return "no-op"
	}
}

func resultColor(result executor.Result) string {
	switch {
	case result.Err != nil:
		return ansiRed
	case result.Executed:
		return ansiGreen
	case result.Method == executor.MethodManualReview:
		return ansiYellow
	default:
		return ""
	}
}

// shortenPath keeps the tail of long paths so tables stay readable.
func shortenPath(path string, width int) string {
	if width <= 3 || len(path) <= width {
		return path
	}
	return "..." + path[len(path)-(width-3):]
}
