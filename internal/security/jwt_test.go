package security

import (
	"testing"
	"time"
)

func newTestManager(ttl time.Duration) *JWTManager {
	return NewJWTManager("step-leaderboard-service", "step-leaderboard-service-api", "0123456789abcdef0123456789abcdef", ttl)
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	mgr := newTestManager(15 * time.Minute)

	token, expiresAt, err := mgr.Issue("walker@example.com", "Walker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 14*time.Minute || remaining > 15*time.Minute {
		t.Fatalf("expiry %v not near the configured TTL", remaining)
	}

	claims, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "walker@example.com" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Name != "Walker" {
		t.Fatalf("name = %q", claims.Name)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	mgr := newTestManager(15 * time.Minute)
	good, _, err := mgr.Issue("walker@example.com", "Walker")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	t.Run("garbage", func(t *testing.T) {
		if _, err := mgr.Parse("not.a.token"); err == nil {
			t.Fatal("expected parse failure")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("step-leaderboard-service", "step-leaderboard-service-api", "another-secret-another-secret-ab", 15*time.Minute)
		if _, err := other.Parse(good); err == nil {
			t.Fatal("expected signature mismatch")
		}
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewJWTManager("step-leaderboard-service", "some-other-audience", "0123456789abcdef0123456789abcdef", 15*time.Minute)
		if _, err := other.Parse(good); err == nil {
			t.Fatal("expected audience rejection")
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired := newTestManager(-time.Minute)
		token, _, err := expired.Issue("walker@example.com", "Walker")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := expired.Parse(token); err == nil {
			t.Fatal("expected expiry rejection")
		}
	})
}
