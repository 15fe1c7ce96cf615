// Package session stores API login sessions in Redis under opaque random tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is used when no session lifetime is configured.
	DefaultTimeout = 24 * time.Hour

	// SessionPrefix namespaces session keys. Keys are formatted as "session:{token}".
	SessionPrefix = "session:"

	// UserSessionsPrefix namespaces the per-user token sets used to revoke sessions.
	UserSessionsPrefix = "user_sessions:"
)

// Session is an authenticated API login.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	Role      enum.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Manager manages the session lifecycle using Redis as the backing store.
// Sessions are prefixed and stored with automatic expiration.
type Manager struct {
	client  rueidis.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewManager creates a new session manager.
func NewManager(client rueidis.Client, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Manager{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("session"),
	}
}

// Create starts a session for the user and returns it with a fresh token.
func (m *Manager) Create(ctx context.Context, user *types.User) (*Session, error) {
	now := time.Now()
	session := &Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.timeout),
	}

	data, err := sonic.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	userKey := userSessionsKey(user.ID)
	cmds := rueidis.Commands{
		m.client.B().Set().Key(SessionPrefix + session.Token).Value(string(data)).Ex(m.timeout).Build(),
		m.client.B().Sadd().Key(userKey).Member(session.Token).Build(),
		m.client.B().Expire().Key(userKey).Seconds(int64(m.timeout.Seconds())).Build(),
	}

	for _, resp := range m.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
	}

	m.logger.Debug("Created session", zap.Int64("userID", user.ID))

	return session, nil
}

// Get returns the session for a token, or types.ErrSessionNotFound when it is unknown or expired.
func (m *Manager) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, types.ErrSessionNotFound
	}

	data, err := m.client.Do(ctx, m.client.B().Get().Key(SessionPrefix+token).Build()).AsBytes()
	if err != nil {
		if errors.Is(err, rueidis.Nil) {
			return nil, types.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := sonic.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Delete ends a session. Deleting an unknown token is not an error.
func (m *Manager) Delete(ctx context.Context, token string) error {
	session, err := m.Get(ctx, token)
	if err != nil {
		if errors.Is(err, types.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	cmds := rueidis.Commands{
		m.client.B().Del().Key(SessionPrefix + token).Build(),
		m.client.B().Srem().Key(userSessionsKey(session.UserID)).Member(token).Build(),
	}

	for _, resp := range m.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	return nil
}

// RevokeUser ends every session of a user and returns how many were removed.
func (m *Manager) RevokeUser(ctx context.Context, userID int64) (int, error) {
	userKey := userSessionsKey(userID)

	tokens, err := m.client.Do(ctx, m.client.B().Smembers().Key(userKey).Build()).AsStrSlice()
	if err != nil {
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, SessionPrefix+token)
	}
	keys = append(keys, userKey)

	removed, err := m.client.Do(ctx, m.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	// The set key itself is not a session
	count := int(removed)
	if len(tokens) > 0 {
		count--
	}

	m.logger.Info("Revoked user sessions",
		zap.Int64("userID", userID),
		zap.Int("count", count))

	return max(count, 0), nil
}

func userSessionsKey(userID int64) string {
	return UserSessionsPrefix + strconv.FormatInt(userID, 10)
}
