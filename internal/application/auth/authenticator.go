package auth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/infrastructure/keygen"
	"golang.org/x/crypto/blake2b"
)

// Defaults applied by NewAuthenticator when a Config field is left zero.
const (
	DefaultUpdateQueueSize  = 1000
	DefaultOperationTimeout = 5 * time.Second
)

// Config configures an Authenticator. A zero Config is valid: every field
// falls back to its Default constant except OperationTimeout, where zero
// means "no per-operation timeout" rather than "use the default": an
// explicit choice for callers backed by storage with its own deadlines.
type Config struct {
	// UpdateQueueSize bounds the buffered channel used to fan async
	// last_used_at updates out to the background worker. Zero uses
	// DefaultUpdateQueueSize.
	UpdateQueueSize int

	// OperationTimeout bounds each individual last_used_at storage write.
	// Negative values fall back to DefaultOperationTimeout; zero disables
	// the per-operation deadline entirely.
	OperationTimeout time.Duration
}

// hashSecret computes BLAKE2b-256 hash of the secret and returns hex-encoded string.
// BLAKE2b is faster than SHA-256 while maintaining security for high-entropy API keys.
func hashSecret(secret string) string {
	hash := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// maskAPIKey returns a safe-to-log version of an API key showing only the prefix.
func maskAPIKey(apiKey string) string {
	parts := strings.Split(apiKey, "-")
	if len(parts) >= 1 {
		return parts[0] + "-***"
	}
	return "***"
}

// lastUsedUpdate holds information for updating an API key's last_used_at timestamp.
type lastUsedUpdate struct {
	keyID     string
	timestamp time.Time
}

// Authenticator handles API key authentication and the asynchronous
// last_used_at bookkeeping that goes with it.
type Authenticator struct {
	repo             Repository
	lastUsedUpdates  chan lastUsedUpdate
	shutdownChan     chan struct{}
	wg               sync.WaitGroup
	operationTimeout time.Duration

	// opsCtx is the parent of every last_used_at write; Shutdown cancels
	// it once the worker has drained or the shutdown deadline has passed.
	opsCtx    context.Context
	opsCancel context.CancelFunc

	mu           sync.Mutex
	activeCancel context.CancelFunc
}

// NewAuthenticator creates a new authenticator and starts the background
// worker that processes last_used_at updates.
func NewAuthenticator(repo Repository, cfg Config) *Authenticator {
	queueSize := cfg.UpdateQueueSize
	if queueSize <= 0 {
		queueSize = DefaultUpdateQueueSize
	}

	operationTimeout := cfg.OperationTimeout
	if operationTimeout < 0 {
		operationTimeout = DefaultOperationTimeout
	}

	opsCtx, opsCancel := context.WithCancel(context.Background())
	a := &Authenticator{
		repo:             repo,
		lastUsedUpdates:  make(chan lastUsedUpdate, queueSize),
		shutdownChan:     make(chan struct{}),
		operationTimeout: operationTimeout,
		opsCtx:           opsCtx,
		opsCancel:        opsCancel,
	}

	a.wg.Add(1)
	go a.processLastUsedUpdates()

	return a
}

// ValidateAPIKey checks whether apiKey is well-formed, known, unexpired, and
// active, and returns the owning application's ID. Every failure is
// returned wrapped in domain.ErrUnauthorized; the specific cause (unknown
// short token, wrong secret, expired key, ...) is logged and kept in the
// error text, and the HTTP middleware answers all of them with the same
// 401 message, so an attacker probing the endpoint learns nothing about
// which case they hit.
func (a *Authenticator) ValidateAPIKey(ctx context.Context, apiKey string) (string, error) {
	applicationID, err := a.validateAPIKey(ctx, apiKey)
	if err != nil {
		slog.WarnContext(ctx, "authentication failed",
			slog.String("key_prefix", maskAPIKey(apiKey)),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return applicationID, nil
}

// processLastUsedUpdates drains lastUsedUpdates one at a time so writes to
// storage never outrun a single background worker's pace, then on shutdown
// drains whatever remains in the channel before returning.
func (a *Authenticator) processLastUsedUpdates() {
	defer a.wg.Done()

	for {
		select {
		case update := <-a.lastUsedUpdates:
			a.applyUpdate(a.opsCtx, update)
		case <-a.shutdownChan:
			for {
				select {
				case update := <-a.lastUsedUpdates:
					a.applyUpdate(a.opsCtx, update)
				default:
					return
				}
			}
		}
	}
}

// applyUpdate runs a single last_used_at write under operationTimeout (or
// unbounded if zero), recording the active cancel func so Shutdown can force
// the operation to give up early if its own deadline expires first.
func (a *Authenticator) applyUpdate(parent context.Context, update lastUsedUpdate) {
	var ctx context.Context
	var cancel context.CancelFunc
	if a.operationTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, a.operationTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	a.mu.Lock()
	a.activeCancel = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		if a.activeCancel != nil {
			a.activeCancel = nil
		}
		a.mu.Unlock()
		cancel()
	}()

	if err := a.repo.UpdateLastUsed(ctx, update.keyID, update.timestamp); err != nil {
		slog.WarnContext(ctx, "failed to update API key last_used_at",
			slog.String("key_id", update.keyID),
			slog.String("error", err.Error()))
	}
}

// Shutdown signals the background worker to stop accepting new work and
// drain whatever remains queued, returning once it finishes or ctx expires.
// On timeout it force-cancels whichever update is currently in flight, and
// opsCtx with it, so the worker goroutine is not left blocked forever on a
// hung storage call and any updates still queued give up at once.
func (a *Authenticator) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	alreadyClosed := false
	select {
	case <-a.shutdownChan:
		alreadyClosed = true
	default:
	}
	if !alreadyClosed {
		close(a.shutdownChan)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.opsCancel()
		return nil
	case <-ctx.Done():
		a.opsCancel()
		a.mu.Lock()
		if a.activeCancel != nil {
			a.activeCancel()
		}
		a.mu.Unlock()
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// validateAPIKey checks if the API key is valid and updates last_used_at.
// On success it returns the owning application's ID.
func (a *Authenticator) validateAPIKey(ctx context.Context, apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("empty API key")
	}

	keyParts, err := keygen.ParseAPIKey(apiKey)
	if err != nil {
		return "", fmt.Errorf("invalid API key format: %w", err)
	}

	key, err := a.repo.FindByShortToken(ctx, keyParts.ShortToken)
	if err != nil {
		return "", fmt.Errorf("API key not found")
	}

	if !key.IsActive {
		return "", fmt.Errorf("API key inactive")
	}

	providedHash := hashSecret(keyParts.LongSecret)
	if subtle.ConstantTimeCompare([]byte(key.LongSecretHash), []byte(providedHash)) != 1 {
		return "", fmt.Errorf("invalid API key")
	}

	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now().UTC()) {
		return "", fmt.Errorf("API key expired")
	}

	select {
	case a.lastUsedUpdates <- lastUsedUpdate{
		keyID:     key.ID,
		timestamp: time.Now().UTC(),
	}:
	default:
		slog.WarnContext(ctx, "dropped last_used_at update due to full queue",
			slog.String("key_id", key.ID))
	}

	return key.ApplicationID, nil
}

// CreateAPIKey creates a new API key for applicationID and returns the full
// plain-text key. This is the only time the plain key is ever available;
// only its short token and a BLAKE2b hash of its long secret are persisted.
func CreateAPIKey(ctx context.Context, repo Repository, applicationID, keyType, service, version, name string, expiresAt *time.Time) (string, error) {
	keyParts, err := keygen.GenerateAPIKey(keyType, service, version)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	longSecretHash := hashSecret(keyParts.LongSecret)

	keyID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key ID: %w", err)
	}

	err = repo.Create(ctx, &domain.APIKey{
		ID:             keyID.String(),
		ApplicationID:  applicationID,
		KeyType:        keyParts.KeyType,
		Service:        keyParts.Service,
		Version:        keyParts.Version,
		ShortToken:     keyParts.ShortToken,
		LongSecretHash: longSecretHash,
		Name:           name,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	return keyParts.FullKey, nil
}
