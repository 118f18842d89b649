package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/casualjim/weave"
	"github.com/casualjim/weave/content"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/tidwall/gjson"
)

var (
	reasoningColor = color.New(color.Faint, color.Italic)
	toolColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	imageColor     = color.New(color.FgCyan)
)

func disableColor() {
	color.NoColor = true
}

type entryProgress struct {
	written int
	done    bool
	result  bool
}

// streamPrinter writes the part of every snapshot that has not been written
// yet. Entries only grow, so a byte offset per entry is enough.
type streamPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	progress []entryProgress
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

func (p *streamPrinter) Update(u weave.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, entry := range u.Entries {
		if i >= len(p.progress) {
			p.progress = append(p.progress, entryProgress{})
		}
		pr := &p.progress[i]
		switch e := entry.(type) {
		case *content.Text:
			fmt.Fprint(p.w, e.Text[pr.written:])
			pr.written = len(e.Text)
		case *content.Reasoning:
			reasoningColor.Fprint(p.w, e.Text[pr.written:])
			pr.written = len(e.Text)
			if e.Closed() && !pr.done {
				pr.done = true
				reasoningColor.Fprintf(p.w, "\n(thought for %s)\n\n", *e.Duration)
			}
		case *content.ToolCall:
			if !pr.done {
				pr.done = true
				fmt.Fprintf(p.w, "\n%s%s\n", toolColor.Sprint(e.Name), e.Args)
			}
			if e.State != content.ToolStateCall && !pr.result {
				pr.result = true
				writeToolResult(p.w, e)
			}
		case *content.Image:
			if !pr.done {
				pr.done = true
				fmt.Fprintf(p.w, "\n%s %s\n", imageColor.Sprint("image"), e.StorageKey)
			}
		}
	}
}

func writeToolResult(w io.Writer, tc *content.ToolCall) {
	if tc.State == content.ToolStateError {
		msg := gjson.GetBytes(tc.Result, "error.message").String()
		fmt.Fprintf(w, "  %s %s\n", errorColor.Sprint("error:"), msg)
		return
	}
	fmt.Fprintf(w, "  %s %s\n", toolColor.Sprint("=>"), tc.Result)
}

// renderEntries writes a finished list, with text rendered as markdown.
func renderEntries(w io.Writer, entries content.List, glam *glamour.TermRenderer) error {
	var text strings.Builder
	flush := func() error {
		if text.Len() == 0 {
			return nil
		}
		out, err := glam.Render(text.String())
		if err != nil {
			return err
		}
		text.Reset()
		_, err = fmt.Fprint(w, out)
		return err
	}

	for _, entry := range entries {
		if t, ok := entry.(*content.Text); ok {
			text.WriteString(t.Text)
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		switch e := entry.(type) {
		case *content.Reasoning:
			reasoningColor.Fprintln(w, e.Text)
			if e.Duration != nil {
				reasoningColor.Fprintf(w, "(thought for %s)\n", *e.Duration)
			}
		case *content.ToolCall:
			fmt.Fprintf(w, "%s%s\n", toolColor.Sprint(e.Name), e.Args)
			if e.State != content.ToolStateCall {
				writeToolResult(w, e)
			}
		case *content.Image:
			fmt.Fprintf(w, "%s %s\n", imageColor.Sprint("image"), e.StorageKey)
		}
	}
	return flush()
}

func newMarkdownRenderer() (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
}
