package chat

import "github.com/ashureev/realestate-assistant/internal/domain"

// PhaseText holds the input prompt shown in one session phase.
type PhaseText struct {
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Spinner     string `json:"spinner"`
}

// UIConfig is the presentation text served to the frontend.
type UIConfig struct {
	Title          string                     `json:"title"`
	Tagline        string                     `json:"tagline"`
	UserLabel      string                     `json:"user_label"`
	AssistantLabel string                     `json:"assistant_label"`
	Phases         map[domain.Phase]PhaseText `json:"phases"`
}

// DefaultUIConfig returns the stock page text.
func DefaultUIConfig() UIConfig {
	return UIConfig{
		Title:          "🏠 Real Estate Assistant",
		Tagline:        "Ask about property investment, pricing, and market trends.",
		UserLabel:      "🧑 You",
		AssistantLabel: "🤖 Assistant",
		Phases: map[domain.Phase]PhaseText{
			domain.PhaseNotStarted: {
				Label:       "💬 Ask your first question about real estate:",
				Placeholder: "e.g., What are the best cities to invest in property in 2025?",
				Spinner:     "Analyzing market trends...",
			},
			domain.PhaseActive: {
				Label:       "💬 Ask another question:",
				Placeholder: "e.g., How can I evaluate a property's ROI?",
				Spinner:     "Thinking...",
			},
		},
	}
}
