package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

const unavailableReply = "Media lookup isn't available right now, so I can't search for that. Ask me something else and I'll help."

// Backend performs the actual media lookup for a turn.
type Backend interface {
	Lookup(ctx context.Context, message *schema.Message, history []*schema.Message, userID string, session model.SessionContext) (*model.MediaResult, error)
}

// SessionTracker implements model.MediaRequestHandler. A user who just got a
// media answer keeps an active media context for ttl, so follow-up messages
// go straight back to the media backend.
type SessionTracker struct {
	rdb     redis.Cmdable
	backend Backend
	ttl     time.Duration
}

func NewSessionTracker(rdb redis.Cmdable, backend Backend, cfg model.MediaConfig) *SessionTracker {
	return &SessionTracker{rdb: rdb, backend: backend, ttl: cfg.SessionTTL}
}

func (t *SessionTracker) sessionKey(userID string) string {
	return fmt.Sprintf("media:session:%s", userID)
}

func (t *SessionTracker) HasActiveMediaContext(ctx context.Context, userID string, _ *schema.Message) (bool, error) {
	if t.rdb == nil || t.backend == nil || strings.TrimSpace(userID) == "" {
		return false, nil
	}
	n, err := t.rdb.Exists(ctx, t.sessionKey(userID)).Result()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	return n > 0, nil
}

func (t *SessionTracker) HandleRequest(ctx context.Context, message *schema.Message, history []*schema.Message, userID string, session model.SessionContext) (*model.MediaResult, error) {
	if message == nil {
		return nil, errors.New("media request without a message")
	}
	if t.backend == nil {
		return &model.MediaResult{
			Images:   []model.ImageRef{},
			Messages: []*schema.Message{model.Stamp(schema.AssistantMessage(unavailableReply, nil))},
		}, nil
	}

	res, err := t.backend.Lookup(ctx, message, history, userID, session)
	if err != nil {
		return nil, err
	}

	if err := t.touch(ctx, userID, session.ConversationID); err != nil {
		// the answer is still good; the follow-up just gets classified again
		logx.Warn().Err(err).Str("userID", userID).Msg("failed to mark media session")
	}
	return res, nil
}

// End drops the user's media context.
func (t *SessionTracker) End(ctx context.Context, userID string) error {
	if t.rdb == nil {
		return nil
	}
	if err := t.rdb.Del(ctx, t.sessionKey(userID)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (t *SessionTracker) touch(ctx context.Context, userID, conversationID string) error {
	if t.rdb == nil || strings.TrimSpace(userID) == "" || t.ttl <= 0 {
		return nil
	}
	if err := t.rdb.Set(ctx, t.sessionKey(userID), conversationID, t.ttl).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.MediaRequestHandler = (*SessionTracker)(nil)
