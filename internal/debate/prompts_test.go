package debate

import (
	"strings"
	"testing"

	"github.com/prysmai/debate-arena/internal/domain"
)

func testLineup() []domain.Agent {
	return domain.DefaultLineup("gpt-4o-mini", "claude-sonnet-4-20250514")
}

func sessionAfterRounds(topic string, rounds int) *domain.Session {
	sess := domain.NewSession("abc12345", topic, TotalRounds, []string{"gpt", "claude"})
	for r := 1; r <= rounds; r++ {
		sess.History["gpt"] = append(sess.History["gpt"], "gpt argument "+strings.Repeat("x", r))
		sess.History["claude"] = append(sess.History["claude"], "claude argument "+strings.Repeat("y", r))
		sess.Cursor = r
	}
	return sess
}

func TestBuildMessagesOpening(t *testing.T) {
	agents := testLineup()
	sess := sessionAfterRounds("Is water wet?", 0)
	def, _ := Definition(1)

	msgs := BuildMessages(sess, agents, def, agents[0])
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if !strings.Contains(msgs[1].Content, "Is water wet?") {
		t.Error("opening prompt missing topic")
	}
	if !strings.Contains(msgs[1].Content, "FOR") {
		t.Error("opening prompt missing position")
	}
	if !strings.Contains(msgs[1].Content, "opening argument") {
		t.Error("round 1 should use the opening template")
	}
}

func TestBuildMessagesRebuttalQuotesOpponent(t *testing.T) {
	agents := testLineup()
	sess := sessionAfterRounds("Topic T", 1)
	def, _ := Definition(2)

	msgs := BuildMessages(sess, agents, def, agents[0])
	if !strings.Contains(msgs[1].Content, sess.LastArgument("claude")) {
		t.Error("rebuttal for gpt should quote claude's last argument verbatim")
	}
	if strings.Contains(msgs[1].Content, sess.LastArgument("gpt")) {
		t.Error("rebuttal should not quote the agent's own argument as the opponent's")
	}
}

func TestBuildMessagesAttackSplicesPayload(t *testing.T) {
	agents := testLineup()
	sess := sessionAfterRounds("Topic T", 2)
	def, _ := Definition(3)

	payload := SelectPayload(def.AttackType, def.Number)
	msgs := BuildMessages(sess, agents, def, agents[1])

	if !strings.Contains(msgs[1].Content, payload) {
		t.Fatal("attack round should splice the payload into the prompt")
	}
	// The payload occupies the opponent-argument slot, framed identically to
	// a real rebuttal.
	if !strings.Contains(msgs[1].Content, "Your opponent just argued") {
		t.Error("attack payload should be framed as opponent content")
	}
	if strings.Contains(msgs[1].Content, sess.LastArgument("gpt")) {
		t.Error("attack round should replace, not accompany, the real opponent argument")
	}
}

func TestBuildMessagesClosingIncludesFullHistory(t *testing.T) {
	agents := testLineup()
	sess := sessionAfterRounds("Topic T", 9)
	def, _ := Definition(10)

	msgs := BuildMessages(sess, agents, def, agents[0])
	for r := 1; r <= 9; r++ {
		if !strings.Contains(msgs[1].Content, sess.History["claude"][r-1]) {
			t.Errorf("closing prompt missing claude round %d", r)
		}
	}
	if !strings.Contains(msgs[1].Content, "closing statement") {
		t.Error("round 10 should use the closing template")
	}
}

func TestBuildMessagesDoesNotMutateHistory(t *testing.T) {
	agents := testLineup()
	sess := sessionAfterRounds("Topic T", 3)
	before := len(sess.History["gpt"])

	def, _ := Definition(4)
	BuildMessages(sess, agents, def, agents[0])
	BuildMessages(sess, agents, def, agents[1])

	if len(sess.History["gpt"]) != before || len(sess.History["claude"]) != before {
		t.Error("prompt builder mutated session history")
	}
}

func TestBuildJudgeMessages(t *testing.T) {
	agents := testLineup()
	sess := sessionAfterRounds("Topic T", TotalRounds)

	msgs := BuildJudgeMessages(sess, agents)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "impartial debate judge") {
		t.Error("judge call missing judge system prompt")
	}
	if !strings.Contains(msgs[1].Content, "Who won this debate") {
		t.Error("judge call missing the verdict question")
	}
}
