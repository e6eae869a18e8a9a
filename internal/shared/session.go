package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues opaque bearer tokens backed by Redis. The point-of-sale
// frontend is a separate SPA, so sessions travel in the Authorization header
// rather than cookies.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// Session holds the authenticated operator for a request.
type Session struct {
	Token        string `json:"-"`
	OperatorID   int64  `json:"operator_id"`
	OperatorName string `json:"operator_name"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

// Create issues a new session token for an operator.
func (sm *SessionManager) Create(ctx context.Context, operatorID int64, operatorName string) (*Session, error) {
	sess := &Session{
		Token:        uuid.NewString(),
		OperatorID:   operatorID,
		OperatorName: operatorName,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.Token), data, sm.ttl).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load resolves the bearer token of a request to a session. The TTL slides on
// every successful load.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrSessionExpired
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, err
	}
	sess.Token = token
	_ = sm.client.Expire(ctx, sm.redisKey(token), sm.ttl).Err()
	return &sess, nil
}

// Destroy invalidates a session token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := sm.client.Del(ctx, sm.redisKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type sessionCtxKey struct{}

// ContextWithSession stores the session on the request context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// SessionFromContext retrieves the session, nil when unauthenticated.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return sess
}
