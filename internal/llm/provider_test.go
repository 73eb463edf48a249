package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseThemeJSON(t *testing.T) {
	req := ExtractRequest{
		ConversationID: "conv_1",
		IntercomURL:    "https://app.intercom.com/conv_1",
		Email:          "user@example.com",
	}

	valid := `{
		"issue_signature": "pinterest_oauth_token_refresh",
		"product_area": "publishing",
		"component": "pinterest",
		"user_intent": "Reconnect their Pinterest account",
		"symptoms": ["oauth_error", "reconnect_loop"],
		"excerpt": "Every time I reconnect Pinterest it disconnects again within an hour."
	}`

	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{"plain JSON", valid, false},
		{"fenced JSON", "```json\n" + valid + "\n```", false},
		{"bare fence", "```\n" + valid + "\n```", false},
		{"prose wrapped", "Here is the classification:\n" + valid + "\nLet me know if you need more.", false},
		{"not JSON", "I could not classify this conversation.", true},
		{"missing signature", `{"product_area": "publishing", "excerpt": "some text here that is long enough"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := parseThemeJSON(req, tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseThemeJSON: %v", err)
			}
			if record.IssueSignature != "pinterest_oauth_token_refresh" {
				t.Errorf("signature = %q", record.IssueSignature)
			}
			if record.ConversationID != "conv_1" {
				t.Errorf("conversation ID not stamped: %q", record.ConversationID)
			}
			if record.IntercomURL != req.IntercomURL {
				t.Errorf("intercom URL not stamped: %q", record.IntercomURL)
			}
			if record.Email != req.Email {
				t.Errorf("email not stamped: %q", record.Email)
			}
		})
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	origSleep := retrySleep
	var slept []time.Duration
	retrySleep = func(d time.Duration) { slept = append(slept, d) }
	defer func() { retrySleep = origSleep }()

	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(slept) != 2 || slept[0] != 1*time.Second || slept[1] != 2*time.Second {
		t.Errorf("backoff = %v, want [1s 2s]", slept)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	origSleep := retrySleep
	retrySleep = func(time.Duration) {}
	defer func() { retrySleep = origSleep }()

	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != extractMaxRetries {
		t.Errorf("attempts = %d, want %d", attempts, extractMaxRetries)
	}
}

func TestWithRetryStopsOnCancellation(t *testing.T) {
	origSleep := retrySleep
	retrySleep = func(time.Duration) {}
	defer func() { retrySleep = origSleep }()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := withRetry(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
