package chat

import (
	"testing"

	"github.com/ashureev/realestate-assistant/internal/domain"
)

func TestDefaultUIConfigCoversEveryPhase(t *testing.T) {
	ui := DefaultUIConfig()

	for _, phase := range []domain.Phase{domain.PhaseNotStarted, domain.PhaseActive} {
		text, ok := ui.Phases[phase]
		if !ok {
			t.Fatalf("missing text for phase %q", phase)
		}
		if text.Label == "" || text.Placeholder == "" || text.Spinner == "" {
			t.Errorf("incomplete text for phase %q: %+v", phase, text)
		}
	}
	if ui.UserLabel != "🧑 You" || ui.AssistantLabel != "🤖 Assistant" {
		t.Errorf("unexpected role labels %q / %q", ui.UserLabel, ui.AssistantLabel)
	}
}
