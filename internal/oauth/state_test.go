package oauth

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, ttl time.Duration) *AuthorizationRequestRepository {
	t.Helper()
	repo, err := NewAuthorizationRequestRepository(ttl)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func TestNewAuthorizationRequest(t *testing.T) {
	a, err := NewAuthorizationRequest("google", "/notes")
	require.NoError(t, err)
	b, err := NewAuthorizationRequest("google", "/notes")
	require.NoError(t, err)

	assert.NotEqual(t, a.State, b.State)
	assert.NotEqual(t, a.CodeVerifier, b.CodeVerifier)
	assert.GreaterOrEqual(t, len(a.CodeVerifier), 43)
	assert.Equal(t, "/notes", a.ReturnTo)
}

func TestAuthorizationRequestRepository_SingleUse(t *testing.T) {
	repo := newTestRepository(t, time.Minute)

	req, err := NewAuthorizationRequest("github", "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(req))

	got, err := repo.Remove(req.State)
	require.NoError(t, err)
	assert.Equal(t, "github", got.RegistrationID)
	assert.Equal(t, req.CodeVerifier, got.CodeVerifier)

	_, err = repo.Remove(req.State)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestAuthorizationRequestRepository_UnknownState(t *testing.T) {
	repo := newTestRepository(t, time.Minute)

	_, err := repo.Remove("forged")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = repo.Remove("")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestAuthorizationRequestRepository_Expired(t *testing.T) {
	repo := newTestRepository(t, time.Minute)

	req, err := NewAuthorizationRequest("kakao", "")
	require.NoError(t, err)
	req.CreatedAt = time.Now().Add(-2 * time.Minute)
	require.NoError(t, repo.Save(req))

	_, err = repo.Remove(req.State)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestAuthorizationRequestRepository_ConcurrentRemove(t *testing.T) {
	repo := newTestRepository(t, time.Minute)

	req, err := NewAuthorizationRequest("naver", "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(req))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Remove(req.State); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestAuthorizationRequestRepository_SaveRequiresState(t *testing.T) {
	repo := newTestRepository(t, time.Minute)

	assert.Error(t, repo.Save(&AuthorizationRequest{}))
	assert.Error(t, repo.Save(nil))
}
