package credential_test

import (
	"context"
	"testing"
	"time"

	"github.com/campusapp/schedule-cache/credential"
)

func TestMemoryGate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	g := credential.NewMemoryGate(func() time.Time { return now })

	if g.HasValidCredential(ctx) {
		t.Fatal("empty gate has no credential")
	}

	g.Set(credential.Credential{Token: "t", Identity: "u1", ExpiresAt: now.Add(time.Hour)})
	c, ok := g.CurrentCredential(ctx)
	if !ok || c.Identity != "u1" {
		t.Fatalf("expected credential for u1, got %+v ok=%v", c, ok)
	}

	now = now.Add(2 * time.Hour)
	if g.HasValidCredential(ctx) {
		t.Fatal("expired credential must not count")
	}

	g.Set(credential.Credential{Token: "t2"})
	if !g.HasValidCredential(ctx) {
		t.Fatal("credential without expiry is trusted until the server says otherwise")
	}

	g.Clear()
	if g.HasValidCredential(ctx) {
		t.Fatal("expected no credential after Clear")
	}
}
