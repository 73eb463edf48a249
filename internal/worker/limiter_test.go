package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := NewLimiter(1, 3)

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("openai") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("expected burst of 3 to be admitted, got %d", allowed)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, 1)

	if !l.Allow("openai") {
		t.Error("expected first openai request admitted")
	}
	if !l.Allow("anthropic") {
		t.Error("expected first anthropic request admitted despite openai consumption")
	}
}

func TestLimiter_SetRateOverridesDefault(t *testing.T) {
	l := NewLimiter(1, 1)
	l.SetRate("bulk", 100, 50)

	allowed := 0
	for i := 0; i < 50; i++ {
		if l.Allow("bulk") {
			allowed++
		}
	}
	if allowed != 50 {
		t.Errorf("expected custom burst of 50, got %d", allowed)
	}
}

func TestLimiter_WaitHonorsCancellation(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.Allow("slow") // drain the burst

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "slow")
	if err == nil {
		t.Error("expected wait to fail once context expired")
	}
}
