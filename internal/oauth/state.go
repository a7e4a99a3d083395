package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/oauth2"
)

// DefaultRequestTTL is how long a user has to complete the provider login.
const DefaultRequestTTL = 10 * time.Minute

// ErrRequestNotFound is returned for unknown, expired or already used state.
var ErrRequestNotFound = errors.New("authorization request not found")

// AuthorizationRequest is what the callback needs to finish a login.
type AuthorizationRequest struct {
	State          string
	RegistrationID string
	CodeVerifier   string
	ReturnTo       string
	CreatedAt      time.Time
}

// NewAuthorizationRequest creates a request with a fresh state and PKCE verifier.
func NewAuthorizationRequest(registrationID, returnTo string) (*AuthorizationRequest, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	return &AuthorizationRequest{
		State:          state,
		RegistrationID: registrationID,
		CodeVerifier:   oauth2.GenerateVerifier(),
		ReturnTo:       returnTo,
		CreatedAt:      time.Now(),
	}, nil
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthorizationRequestRepository keeps pending authorization requests keyed
// by state. Each request can be removed exactly once.
type AuthorizationRequestRepository struct {
	cache *ristretto.Cache
	ttl   time.Duration

	// mu makes Remove's get-then-delete atomic so a state cannot be replayed.
	mu sync.Mutex
}

// NewAuthorizationRequestRepository creates a store whose entries expire after ttl.
func NewAuthorizationRequestRepository(ttl time.Duration) (*AuthorizationRequestRepository, error) {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     10000,
		BufferItems: 64,
		Cost: func(value interface{}) int64 {
			return 1
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create authorization request cache: %w", err)
	}

	return &AuthorizationRequestRepository{cache: cache, ttl: ttl}, nil
}

// Save stores req under its state.
func (r *AuthorizationRequestRepository) Save(req *AuthorizationRequest) error {
	if req == nil || req.State == "" {
		return fmt.Errorf("authorization request has no state")
	}
	if !r.cache.SetWithTTL(req.State, req, 1, r.ttl) {
		return fmt.Errorf("authorization request was dropped by the cache")
	}
	// Make the write visible to the callback, which may arrive immediately
	r.cache.Wait()
	return nil
}

// Remove returns and deletes the request for state.
func (r *AuthorizationRequestRepository) Remove(state string) (*AuthorizationRequest, error) {
	if state == "" {
		return nil, ErrRequestNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.cache.Get(state)
	if !ok {
		return nil, ErrRequestNotFound
	}
	r.cache.Del(state)
	r.cache.Wait()

	req, ok := value.(*AuthorizationRequest)
	if !ok {
		return nil, ErrRequestNotFound
	}
	if time.Since(req.CreatedAt) > r.ttl {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// Close releases the cache's background goroutines.
func (r *AuthorizationRequestRepository) Close() {
	r.cache.Close()
}
