package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/realestate-assistant/internal/chat"
	"github.com/ashureev/realestate-assistant/internal/conversation"
	"github.com/ashureev/realestate-assistant/internal/domain"
)

// terminalPresenter renders a transcript as it grows. Messages already shown
// are not printed again, so repeated renders read like a chat log.
type terminalPresenter struct {
	in      *bufio.Reader
	out     io.Writer
	tty     bool
	ui      chat.UIConfig
	phase   domain.Phase
	printed int
	started bool
}

func newTerminalPresenter(in io.Reader, out io.Writer, tty bool) *terminalPresenter {
	return &terminalPresenter{
		in:    bufio.NewReader(in),
		out:   out,
		tty:   tty,
		ui:    chat.DefaultUIConfig(),
		phase: domain.PhaseNotStarted,
	}
}

func (p *terminalPresenter) CollectUserText() (string, error) {
	text := p.ui.Phases[p.phase]
	if p.tty {
		fmt.Fprintf(p.out, "%s\n(%s)\n> ", text.Label, text.Placeholder)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSpace(line)

	if line != "" && p.tty {
		fmt.Fprintln(p.out, text.Spinner)
	}
	return line, nil
}

func (p *terminalPresenter) Render(snap conversation.Snapshot) {
	if !p.started {
		p.started = true
		if p.tty {
			fmt.Fprintf(p.out, "%s\n%s\n\n", p.ui.Title, p.ui.Tagline)
		}
	}

	history := snap.History()
	for _, m := range history[min(p.printed, len(history)):] {
		label := p.ui.UserLabel
		if m.Role == domain.RoleAssistant {
			label = p.ui.AssistantLabel
		}
		fmt.Fprintf(p.out, "%s:\n%s\n\n", label, m.Content)
	}
	p.printed = len(history)
	p.phase = snap.Phase
}
