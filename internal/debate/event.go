package debate

import "unicode/utf8"

// EventType discriminates the stream event union.
type EventType string

const (
	EventRoundStart      EventType = "round_start"
	EventToken           EventType = "token"
	EventDone            EventType = "done"
	EventSecurityBlocked EventType = "security_blocked"
	EventRoundEnd        EventType = "round_end"
)

// Event is one entry in a round's ordered feed. It is a tagged union: Type
// decides which fields are populated. Control events (round_start, round_end,
// security_blocked) are O(1) in size; only token and done carry model output.
type Event struct {
	Type EventType `json:"type"`

	// round_start and round_end
	Round      int    `json:"round,omitempty"`
	Label      string `json:"label,omitempty"`
	IsAttack   bool   `json:"is_attack,omitempty"`
	AttackType string `json:"attack_type,omitempty"`

	// token, done, security_blocked
	Agent   string `json:"agent,omitempty"`
	Content string `json:"content,omitempty"`

	// done
	Blocked   bool    `json:"blocked,omitempty"`
	Errored   bool    `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	TTFTMS    float64 `json:"ttft_ms,omitempty"`
	Tokens    int     `json:"tokens,omitempty"`

	// security_blocked
	ThreatLevel string  `json:"threat_level,omitempty"`
	ThreatScore float64 `json:"threat_score,omitempty"`

	// round_end: bounded per-agent excerpts, never full content
	Previews map[string]string `json:"previews,omitempty"`
}

func roundStartEvent(def RoundDefinition) Event {
	return Event{
		Type:       EventRoundStart,
		Round:      def.Number,
		Label:      def.Label,
		IsAttack:   def.IsAttack,
		AttackType: string(def.AttackType),
	}
}

func tokenEvent(agentKey, delta string) Event {
	return Event{Type: EventToken, Agent: agentKey, Content: delta}
}

func securityBlockedEvent(agentKey, threatLevel string, threatScore float64) Event {
	return Event{
		Type:        EventSecurityBlocked,
		Agent:       agentKey,
		ThreatLevel: threatLevel,
		ThreatScore: threatScore,
	}
}

func roundEndEvent(roundNum int, previews map[string]string) Event {
	return Event{Type: EventRoundEnd, Round: roundNum, Previews: previews}
}

const previewMarker = "…"

// preview truncates content to at most maxRunes runes, appending a marker
// when anything was cut. Rune-safe so multi-byte output never splits.
func preview(content string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(content) <= maxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxRunes-1]) + previewMarker
}
