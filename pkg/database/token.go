package database

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirrobot01/dbforge/pkg/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenMinLength         = 30
	tokenLengthJitter      = 11 // lengths land in [30, 40]
	accountTokenPrefix     = "dfg_live_"
	tokenUniquenessRetries = 10
)

// TokenService issues instance API tokens and account-level tokens.
// Instance tokens are stored raw on the instance row; account tokens keep
// only a bcrypt digest, the raw value is returned once.
type TokenService struct {
	store storage.Storage
}

// NewTokenService creates a new token service
func NewTokenService(store storage.Storage) *TokenService {
	return &TokenService{store: store}
}

// IssueInstanceToken returns a fresh alphanumeric token of random length in
// [30,40], unique among tokens held by non-deleted instances. After repeated
// collisions a timestamp suffix forces uniqueness.
func (t *TokenService) IssueInstanceToken() (string, error) {
	for attempt := 0; attempt < tokenUniquenessRetries; attempt++ {
		token, err := generateInstanceToken()
		if err != nil {
			return "", err
		}
		if !t.tokenInUse(token) {
			return token, nil
		}
	}

	token, err := generateInstanceToken()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", token, time.Now().UnixMilli()), nil
}

func (t *TokenService) tokenInUse(token string) bool {
	for _, inst := range t.store.ListInstances() {
		if !inst.Deleted() && inst.APIToken == token {
			return true
		}
	}
	return false
}

// IssueAccountToken creates an account-level API token. The returned string
// is the only copy of the raw token.
func (t *TokenService) IssueAccountToken(ownerID int64, name string) (*storage.ApiToken, string, error) {
	raw, err := randomAlphanumeric(tokenMinLength)
	if err != nil {
		return nil, "", err
	}
	rawToken := accountTokenPrefix + raw

	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash token: %w", err)
	}

	token := &storage.ApiToken{
		ID:        "tok-" + uuid.New().String()[:8],
		OwnerID:   ownerID,
		Name:      name,
		TokenHash: string(hash),
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := t.store.CreateToken(token); err != nil {
		return nil, "", fmt.Errorf("failed to save token: %w", err)
	}
	return token, rawToken, nil
}

// VerifyAccountToken checks a raw token against an owner's active tokens and
// records the use.
func (t *TokenService) VerifyAccountToken(ownerID int64, rawToken string) bool {
	for _, token := range t.store.ListTokens(ownerID) {
		if !token.Active {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(rawToken)) == nil {
			now := time.Now()
			token.LastUsedAt = &now
			t.store.UpdateToken(token)
			return true
		}
	}
	return false
}

// RevokeAccountToken deactivates an account token.
func (t *TokenService) RevokeAccountToken(id string) error {
	token, err := t.store.GetToken(id)
	if err != nil {
		return err
	}
	token.Active = false
	return t.store.UpdateToken(token)
}

// generateInstanceToken returns an alphanumeric token with randomized length.
func generateInstanceToken() (string, error) {
	jitter, err := rand.Int(rand.Reader, big.NewInt(tokenLengthJitter))
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return randomAlphanumeric(tokenMinLength + int(jitter.Int64()))
}
