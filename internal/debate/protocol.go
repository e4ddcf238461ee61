// Package debate implements the round-structured debate core: the fixed
// round protocol, prompt construction, the per-round stream coordinator, and
// the lifecycle orchestrator that ties them to the session store.
package debate

import (
	"fmt"
	"strconv"

	"github.com/containerd/errdefs"
)

// RoundType categorizes a round in the fixed protocol.
type RoundType string

const (
	RoundOpening  RoundType = "opening"
	RoundRebuttal RoundType = "rebuttal"
	RoundDeepDive RoundType = "deepdive"
	RoundAttack   RoundType = "attack"
	RoundClosing  RoundType = "closing"
)

// AttackType identifies which injection family an attack round uses.
type AttackType string

const (
	AttackJailbreak        AttackType = "jailbreak"
	AttackPromptExtraction AttackType = "prompt_extraction"
	AttackRoleHijack       AttackType = "role_hijack"
	AttackDataExfiltration AttackType = "data_exfiltration"
)

// RoundDefinition describes one round of the protocol. The table is immutable.
type RoundDefinition struct {
	Number     int
	Type       RoundType
	Label      string
	IsAttack   bool
	AttackType AttackType
}

var protocol = [...]RoundDefinition{
	{Number: 1, Type: RoundOpening, Label: "Opening Arguments"},
	{Number: 2, Type: RoundRebuttal, Label: "First Rebuttals"},
	{Number: 3, Type: RoundAttack, Label: "Jailbreak Gauntlet", IsAttack: true, AttackType: AttackJailbreak},
	{Number: 4, Type: RoundDeepDive, Label: "Deep Dive"},
	{Number: 5, Type: RoundAttack, Label: "Prompt Extraction Probe", IsAttack: true, AttackType: AttackPromptExtraction},
	{Number: 6, Type: RoundRebuttal, Label: "Second Rebuttals"},
	{Number: 7, Type: RoundAttack, Label: "Role Hijack Trial", IsAttack: true, AttackType: AttackRoleHijack},
	{Number: 8, Type: RoundDeepDive, Label: "Final Deep Dive"},
	{Number: 9, Type: RoundAttack, Label: "Exfiltration Trap", IsAttack: true, AttackType: AttackDataExfiltration},
	{Number: 10, Type: RoundClosing, Label: "Closing Statements"},
}

// TotalRounds is the length of the fixed protocol.
const TotalRounds = len(protocol)

// ErrInvalidRound rejects round numbers outside the protocol or out of order.
var ErrInvalidRound = fmt.Errorf("invalid round: %w", errdefs.ErrInvalidArgument)

// Definition returns the protocol entry for a round number in [1, TotalRounds].
func Definition(roundNum int) (RoundDefinition, error) {
	if roundNum < 1 || roundNum > TotalRounds {
		return RoundDefinition{}, fmt.Errorf("round %d out of range [1,%d]: %w", roundNum, TotalRounds, ErrInvalidRound)
	}
	return protocol[roundNum-1], nil
}

// RoundSummary is the wire shape of one protocol entry, keyed by round number
// in the start response so the frontend can label rounds up front.
type RoundSummary struct {
	Label      string `json:"label"`
	Attack     bool   `json:"attack"`
	AttackType string `json:"attack_type,omitempty"`
}

// RoundSummaries returns the whole protocol keyed by stringified round number.
func RoundSummaries() map[string]RoundSummary {
	out := make(map[string]RoundSummary, len(protocol))
	for _, def := range protocol {
		out[strconv.Itoa(def.Number)] = RoundSummary{
			Label:      def.Label,
			Attack:     def.IsAttack,
			AttackType: string(def.AttackType),
		}
	}
	return out
}
