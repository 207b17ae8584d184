package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return "\x1b[32m"
	case statusWarn:
		return "\x1b[33m"
	case statusError:
		return "\x1b[31m"
	default:
		return "\x1b[34m"
	}
}

const ansiReset = "\x1b[0m"

// renderStatusLine formats one "  Label:  [KIND] message" status row with
// a fixed label column so stacked rows align.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(fmt.Sprintf("%-18s", label+":"))
	b.WriteString(" [")
	b.WriteString(kind.label())
	b.WriteString("]")
	if message != "" {
		b.WriteString(" ")
		b.WriteString(message)
	}
	if colorize {
		return kind.color() + b.String() + ansiReset
	}
	return b.String()
}

// renderSectionHeader returns a titled section header with an underline.
func renderSectionHeader(title string, colorize bool) []string {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	underline := strings.Repeat("-", len(heading))
	if colorize {
		blue := statusInfo.color()
		return []string{blue + heading + ansiReset, blue + underline + ansiReset}
	}
	return []string{heading, underline}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
