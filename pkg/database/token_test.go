package database

import (
	"strings"
	"testing"

	"github.com/sirrobot01/dbforge/pkg/storage"
)

func setupTokenService(t *testing.T) (*TokenService, *storage.BoltStorage) {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := storage.NewBoltStorage(tmpDir+"/test.db", tmpDir)
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewTokenService(store), store
}

func TestInstanceTokenLengthBand(t *testing.T) {
	svc, _ := setupTokenService(t)

	for i := 0; i < 20; i++ {
		token, err := svc.IssueInstanceToken()
		if err != nil {
			t.Fatalf("IssueInstanceToken failed: %v", err)
		}
		if len(token) < tokenMinLength || len(token) > tokenMinLength+tokenLengthJitter-1 {
			t.Errorf("token length %d outside [%d,%d]", len(token), tokenMinLength, tokenMinLength+tokenLengthJitter-1)
		}
		for j := 0; j < len(token); j++ {
			if !isAlphanumericChar(token[j]) {
				t.Errorf("token contains non-alphanumeric character %q", token[j])
			}
		}
	}
}

func TestInstanceTokenAvoidsTokensInUse(t *testing.T) {
	svc, store := setupTokenService(t)

	first, err := svc.IssueInstanceToken()
	if err != nil {
		t.Fatalf("IssueInstanceToken failed: %v", err)
	}
	inst := testInstance("postgresql")
	inst.APIToken = first
	if err := store.CreateInstance(inst); err != nil {
		t.Fatalf("failed to seed instance: %v", err)
	}

	second, err := svc.IssueInstanceToken()
	if err != nil {
		t.Fatalf("IssueInstanceToken failed: %v", err)
	}
	if second == first {
		t.Error("issued a token already held by a live instance")
	}
}

func TestAccountTokenIssueAndVerify(t *testing.T) {
	svc, _ := setupTokenService(t)

	token, raw, err := svc.IssueAccountToken(7, "ci")
	if err != nil {
		t.Fatalf("IssueAccountToken failed: %v", err)
	}
	if !strings.HasPrefix(raw, accountTokenPrefix) {
		t.Errorf("raw token %q missing %q prefix", raw, accountTokenPrefix)
	}
	if token.TokenHash == raw || strings.Contains(token.TokenHash, raw) {
		t.Error("stored hash must not contain the raw token")
	}

	if !svc.VerifyAccountToken(7, raw) {
		t.Error("verification of the issued token failed")
	}
	if svc.VerifyAccountToken(7, accountTokenPrefix+"wrong") {
		t.Error("verification succeeded for a bogus token")
	}
	if svc.VerifyAccountToken(8, raw) {
		t.Error("verification succeeded for the wrong owner")
	}
}

func TestAccountTokenRevocation(t *testing.T) {
	svc, store := setupTokenService(t)

	token, raw, err := svc.IssueAccountToken(7, "ci")
	if err != nil {
		t.Fatalf("IssueAccountToken failed: %v", err)
	}
	if err := svc.RevokeAccountToken(token.ID); err != nil {
		t.Fatalf("RevokeAccountToken failed: %v", err)
	}
	if svc.VerifyAccountToken(7, raw) {
		t.Error("revoked token still verifies")
	}

	stored, err := store.GetToken(token.ID)
	if err != nil {
		t.Fatalf("failed to fetch token: %v", err)
	}
	if stored.Active {
		t.Error("revoked token still marked active")
	}
}

func TestVerifyRecordsLastUse(t *testing.T) {
	svc, store := setupTokenService(t)

	token, raw, err := svc.IssueAccountToken(7, "ci")
	if err != nil {
		t.Fatalf("IssueAccountToken failed: %v", err)
	}
	if !svc.VerifyAccountToken(7, raw) {
		t.Fatal("verification failed")
	}

	stored, err := store.GetToken(token.ID)
	if err != nil {
		t.Fatalf("failed to fetch token: %v", err)
	}
	if stored.LastUsedAt == nil {
		t.Error("expected LastUsedAt to be recorded after verification")
	}
}
