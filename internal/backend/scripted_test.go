package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func drainStream(ctx context.Context, b Backend, req Request) (string, int, error) {
	var sb strings.Builder
	var tokens int
	for chunk, err := range b.StreamComplete(ctx, req) {
		if err != nil {
			return sb.String(), tokens, err
		}
		if chunk.Done {
			tokens = chunk.Tokens
			break
		}
		sb.WriteString(chunk.Delta)
	}
	return sb.String(), tokens, nil
}

func TestScriptedStreamsTokensInOrder(t *testing.T) {
	b := NewScripted("gpt", func(Request) ([]string, *Failure) {
		return []string{"one ", "two ", "three"}, nil
	})

	got, tokens, err := drainStream(context.Background(), b, Request{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "one two three" {
		t.Errorf("tokens out of order: %q", got)
	}
	if tokens != 3 {
		t.Errorf("expected usage 3, got %d", tokens)
	}
}

func TestScriptedYieldsFailure(t *testing.T) {
	want := SecurityFailure("nope", "high", 0.9)
	b := NewScripted("gpt", func(Request) ([]string, *Failure) {
		return nil, want
	})

	_, _, err := drainStream(context.Background(), b, Request{})
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if f.Kind != FailureSecurityBlocked || f.ThreatLevel != "high" {
		t.Errorf("failure not preserved: %+v", f)
	}
}

func TestScriptedDeadlineBecomesTransient(t *testing.T) {
	b := NewScripted("gpt", func(Request) ([]string, *Failure) {
		return []string{"a", "b", "c"}, nil
	}).WithTokenDelay(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := drainStream(ctx, b, Request{})
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureTransient {
		t.Errorf("deadline should surface as a transient failure, got %v", err)
	}
}

func TestScriptedCancellationPassesThrough(t *testing.T) {
	b := NewScripted("gpt", func(Request) ([]string, *Failure) {
		return []string{"a", "b", "c"}, nil
	}).WithTokenDelay(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := drainStream(ctx, b, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation should pass through unclassified, got %v", err)
	}
	if _, ok := AsFailure(err); ok {
		t.Error("cancellation must not be wrapped in a Failure")
	}
}

func TestScriptedComplete(t *testing.T) {
	b := NewScripted("judge", func(Request) ([]string, *Failure) {
		return []string{"the ", "verdict"}, nil
	})

	out, err := b.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != "the verdict" || out.Tokens != 2 {
		t.Errorf("unexpected completion: %+v", out)
	}
}

func TestDefaultScriptVariesByCall(t *testing.T) {
	script := DefaultScript()

	agentReq := Request{Meta: CallMeta{AgentKey: "gpt", Round: 2, RoundType: "rebuttal"}}
	judgeReq := Request{Meta: CallMeta{Role: "judge"}}

	agentTokens, failure := script(agentReq)
	if failure != nil {
		t.Fatal(failure)
	}
	judgeTokens, failure := script(judgeReq)
	if failure != nil {
		t.Fatal(failure)
	}

	agentText := strings.Join(agentTokens, "")
	if !strings.Contains(agentText, "round 2") || !strings.Contains(agentText, "rebuttal") {
		t.Errorf("agent script should reflect call metadata: %q", agentText)
	}
	if strings.Join(judgeTokens, "") == agentText {
		t.Error("judge script should differ from agent script")
	}

	// Same request, same output.
	again, _ := script(agentReq)
	if strings.Join(again, "") != agentText {
		t.Error("script output must be deterministic")
	}
}
