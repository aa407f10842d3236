package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// RunChat starts the full-screen chat program and blocks until the user
// quits or ctx is cancelled.
func RunChat(ctx context.Context, asker Asker, model string) error {
	p := tea.NewProgram(NewChatModel(ctx, asker, model), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// RunLines is the line-oriented loop used when stdin is not a terminal.
// It reads one question per line until exit, quit, EOF, or cancellation.
func RunLines(ctx context.Context, asker Asker, model string, in io.Reader, out io.Writer) error {
	s := DefaultStyles()
	fmt.Fprintln(out, s.Title.Render(Banner))
	if model != "" {
		fmt.Fprintln(out, s.Subtitle.Render("Using model: "+model))
	}
	fmt.Fprintln(out, s.Help.Render(ExitHint))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "\n"+s.Prompt.Render("Ask your question: "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		q := strings.TrimSpace(sc.Text())
		switch {
		case IsExit(q):
			fmt.Fprintln(out, s.Subtitle.Render(Farewell))
			return nil
		case q == "":
			fmt.Fprintln(out, s.Notice.Render(EmptyQuestionNotice))
			continue
		}

		fmt.Fprintln(out, s.Progress.Render(FetchingNotice))
		ans, err := asker.Answer(ctx, q)
		fmt.Fprintln(out, renderExchange(s, exchange{question: q, answer: ans, err: err}, 0))
	}
}
