// Package domain defines the core debate entities.
package domain

// Agent is one debate participant, backed by one provider model.
// The lineup is fixed when a session is created and never changes mid-debate.
type Agent struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Position string `json:"position"`
	Color    string `json:"color"`
}

// DefaultLineup returns the standard two-debater lineup: GPT argues FOR,
// Claude argues AGAINST.
func DefaultLineup(gptModel, claudeModel string) []Agent {
	return []Agent{
		{
			Key:      "gpt",
			Name:     "GPT-4o Mini",
			Provider: "OpenAI",
			Model:    gptModel,
			Position: "FOR",
			Color:    "#3B82F6",
		},
		{
			Key:      "claude",
			Name:     "Claude Sonnet 4",
			Provider: "Anthropic",
			Model:    claudeModel,
			Position: "AGAINST",
			Color:    "#06B6D4",
		},
	}
}
