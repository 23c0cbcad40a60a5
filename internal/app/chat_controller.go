package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aria-chat/internal/model"
	"aria-chat/internal/notify"
	"aria-chat/internal/pkg/logger"
	"aria-chat/internal/pkg/metrics"
)

var ErrMessageEmpty = errors.New("message content is empty")

const (
	defaultChatTitle     = "New Chat"
	defaultTitleMaxRunes = 50
	notifyTimeout        = 2 * time.Second
)

type SessionStore interface {
	List(ctx context.Context) ([]model.ChatSession, error)
	Create(ctx context.Context, session *model.ChatSession) error
	Delete(ctx context.Context, sessionID string) error
}

type MessageStore interface {
	Create(ctx context.Context, message *model.ChatMessage) error
	ListBySessionID(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.ChatMessage) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID string) error
	MarkDirty(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

type ChatOptions struct {
	NewChatTitle  string
	TitleMaxRunes int
	ReplyDelay    time.Duration
}

type ChatDeps struct {
	Sessions  SessionStore
	Messages  MessageStore
	Publisher AsyncMessagePublisher
	// History is optional.
	History   HistoryCache
	Responder Responder
	Notifier  notify.Queue
	Logger    zerolog.Logger
	Options   ChatOptions
}

type ChatSnapshot struct {
	ViewID           string              `json:"view_id"`
	Sessions         []model.ChatSession `json:"sessions"`
	CurrentSessionID string              `json:"current_session_id,omitempty"`
	Messages         []model.ChatMessage `json:"messages"`
	IsLoading        bool                `json:"is_loading"`
	PendingReplies   int                 `json:"pending_replies"`
}

// ChatController owns the state of one chat view: the session list, the
// selected session and its messages. The mutex is never held across a
// remote call, so overlapping operations interleave.
type ChatController struct {
	viewID    string
	sessions  SessionStore
	messages  MessageStore
	publisher AsyncMessagePublisher
	history   HistoryCache
	responder Responder
	notifier  notify.Queue
	log       zerolog.Logger
	opts      ChatOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	closed         bool
	sessionList    []model.ChatSession
	messageList    []model.ChatMessage
	currentID      string
	pending        int
	sessionCancels map[string]sessionScope
}

type sessionScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewChatController(parent context.Context, viewID string, deps ChatDeps) *ChatController {
	opts := deps.Options
	if strings.TrimSpace(opts.NewChatTitle) == "" {
		opts.NewChatTitle = defaultChatTitle
	}
	if opts.TitleMaxRunes <= 0 {
		opts.TitleMaxRunes = defaultTitleMaxRunes
	}
	if opts.ReplyDelay < 0 {
		opts.ReplyDelay = 0
	}
	responder := deps.Responder
	if responder == nil {
		responder = SimulatedResponder{}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = NewDirectMessagePublisher(deps.Messages)
	}

	ctx, cancel := context.WithCancel(parent)
	return &ChatController{
		viewID:         viewID,
		sessions:       deps.Sessions,
		messages:       deps.Messages,
		publisher:      publisher,
		history:        deps.History,
		responder:      responder,
		notifier:       deps.Notifier,
		log:            deps.Logger.With().Str(logger.FieldViewID, viewID).Logger(),
		opts:           opts,
		ctx:            ctx,
		cancel:         cancel,
		sessionCancels: make(map[string]sessionScope),
	}
}

func (c *ChatController) ViewID() string { return c.viewID }

// ListSessions reloads the session list, newest first. A failed load
// empties the list.
func (c *ChatController) ListSessions(ctx context.Context) []model.ChatSession {
	sessions, err := c.sessions.List(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("load chat sessions failed")
		sessions = []model.ChatSession{}
	}

	c.mu.Lock()
	c.sessionList = sessions
	c.mu.Unlock()
	return cloneSessions(sessions)
}

// SelectSession makes sessionID current and loads its messages oldest
// first. When the load fails the message list is left as it was.
func (c *ChatController) SelectSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.currentID = sessionID
	c.mu.Unlock()

	messages, err := c.loadMessages(ctx, sessionID)
	if err != nil {
		c.log.Error().Err(err).Str(logger.FieldSessionID, sessionID).Msg("load chat messages failed")
		return err
	}

	c.mu.Lock()
	if c.currentID == sessionID {
		c.messageList = messages
	}
	c.mu.Unlock()
	return nil
}

func (c *ChatController) CreateSession(ctx context.Context, title string) (*model.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = c.opts.NewChatTitle
	}

	session := &model.ChatSession{Title: title, CreatedAt: time.Now()}
	if err := c.sessions.Create(ctx, session); err != nil {
		c.log.Error().Err(err).Msg("create chat session failed")
		c.notify(notify.Destructive("Error", "Failed to create new chat session"))
		return nil, err
	}

	c.mu.Lock()
	c.currentID = session.ID
	c.messageList = nil
	c.mu.Unlock()

	c.ListSessions(ctx)
	return session, nil
}

// SendMessage persists a user message, echoes it locally and schedules the
// assistant reply. Without a current session one is created first, titled
// after the message.
func (c *ChatController) SendMessage(ctx context.Context, text string) (*model.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrMessageEmpty
	}
	content := text

	c.mu.Lock()
	sessionID := c.currentID
	c.mu.Unlock()

	if sessionID == "" {
		session := &model.ChatSession{
			Title:     sessionTitle(content, c.opts.TitleMaxRunes),
			CreatedAt: time.Now(),
		}
		if err := c.sessions.Create(ctx, session); err != nil {
			c.log.Error().Err(err).Msg("create chat session failed")
			c.notify(notify.Destructive("Error", "Failed to create chat session"))
			return nil, err
		}
		sessionID = session.ID

		c.mu.Lock()
		c.currentID = sessionID
		c.mu.Unlock()

		c.ListSessions(ctx)
	}

	now := time.Now()
	userMessage := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: now,
	}
	if err := c.messages.Create(ctx, userMessage); err != nil {
		c.log.Error().Err(err).Str(logger.FieldSessionID, sessionID).Msg("save user message failed")
		c.notify(notify.Destructive("Error", "Failed to save message"))
		return nil, err
	}
	metrics.MessagesSent.Inc()
	c.invalidateHistory(ctx, sessionID, false)

	echo := model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: now,
	}
	c.mu.Lock()
	if c.currentID == sessionID {
		c.messageList = append(c.messageList, echo)
	}
	c.mu.Unlock()

	c.scheduleReply(sessionID, content)
	return &echo, nil
}

// DeleteSession removes a session with its messages. Pending replies for
// it are cancelled and the session list is always reloaded.
func (c *ChatController) DeleteSession(ctx context.Context, sessionID string) error {
	err := c.sessions.Delete(ctx, sessionID)
	if err != nil {
		c.log.Error().Err(err).Str(logger.FieldSessionID, sessionID).Msg("delete chat session failed")
		c.notify(notify.Destructive("Error", "Failed to delete chat session"))
	} else {
		c.cancelSession(sessionID)
		c.invalidateHistory(ctx, sessionID, false)

		c.mu.Lock()
		if c.currentID == sessionID {
			c.currentID = ""
			c.messageList = nil
		}
		c.mu.Unlock()

		c.notify(notify.Info("Success", "Chat session deleted"))
	}

	c.ListSessions(ctx)
	return err
}

func (c *ChatController) Snapshot() ChatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChatSnapshot{
		ViewID:           c.viewID,
		Sessions:         cloneSessions(c.sessionList),
		CurrentSessionID: c.currentID,
		Messages:         cloneMessages(c.messageList),
		IsLoading:        c.pending > 0,
		PendingReplies:   c.pending,
	}
}

func (c *ChatController) Notifications(ctx context.Context) ([]notify.Notification, error) {
	if c.notifier == nil {
		return nil, nil
	}
	return c.notifier.Drain(ctx)
}

// Close cancels every pending reply and waits for them to return.
func (c *ChatController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	discardNotifications(c.notifier, c.log)
}

func (c *ChatController) scheduleReply(sessionID, content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	scope, ok := c.sessionCancels[sessionID]
	if !ok {
		scope.ctx, scope.cancel = context.WithCancel(c.ctx)
		c.sessionCancels[sessionID] = scope
	}
	c.pending++
	c.wg.Add(1)
	c.mu.Unlock()

	go c.reply(scope.ctx, sessionID, content)
}

func (c *ChatController) reply(ctx context.Context, sessionID, content string) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.pending--
		c.mu.Unlock()
	}()

	log := c.log.With().Str(logger.FieldSessionID, sessionID).Logger()

	timer := time.NewTimer(c.opts.ReplyDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		metrics.RepliesTotal.WithLabelValues("canceled").Inc()
		return
	case <-timer.C:
	}

	text, err := c.responder.Respond(ctx, sessionID, content)
	if ctx.Err() != nil {
		metrics.RepliesTotal.WithLabelValues("canceled").Inc()
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("generate reply failed")
		c.notify(notify.Destructive("Error", "Failed to get a response"))
		metrics.RepliesTotal.WithLabelValues("failed").Inc()
		return
	}

	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   text,
		CreatedAt: time.Now(),
	}
	c.invalidateHistory(ctx, sessionID, true)
	if err := c.publisher.Publish(ctx, msg); err != nil {
		if ctx.Err() != nil {
			metrics.RepliesTotal.WithLabelValues("canceled").Inc()
			return
		}
		log.Error().Err(err).Msg("save assistant reply failed")
		c.notify(notify.Destructive("Error", "Failed to save assistant reply"))
		metrics.RepliesTotal.WithLabelValues("failed").Inc()
		return
	}

	c.mu.Lock()
	if c.currentID == sessionID && !c.closed {
		c.messageList = append(c.messageList, msg)
	}
	c.mu.Unlock()
	metrics.RepliesTotal.WithLabelValues("ok").Inc()
}

func (c *ChatController) cancelSession(sessionID string) {
	c.mu.Lock()
	scope, ok := c.sessionCancels[sessionID]
	delete(c.sessionCancels, sessionID)
	c.mu.Unlock()
	if ok {
		scope.cancel()
	}
}

func (c *ChatController) loadMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if c.history != nil {
		if dirty, err := c.history.IsDirty(ctx, sessionID); err == nil && !dirty {
			if cached, hit, cacheErr := c.history.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := c.messages.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.history != nil {
		if dirty, err := c.history.IsDirty(ctx, sessionID); err == nil && !dirty {
			if err := c.history.SetHistory(ctx, sessionID, messages); err != nil {
				c.log.Warn().Err(err).Str(logger.FieldSessionID, sessionID).Msg("cache chat history failed")
			}
		}
	}
	return messages, nil
}

// invalidateHistory drops the cached history. With async set, the session
// is also marked dirty until the queued write lands.
func (c *ChatController) invalidateHistory(ctx context.Context, sessionID string, async bool) {
	if c.history == nil {
		return
	}
	if async {
		if _, direct := c.publisher.(*DirectMessagePublisher); !direct {
			_ = c.history.MarkDirty(ctx, sessionID)
		}
	}
	if err := c.history.DeleteHistory(ctx, sessionID); err != nil {
		c.log.Warn().Err(err).Str(logger.FieldSessionID, sessionID).Msg("drop cached history failed")
	}
}

func (c *ChatController) notify(n notify.Notification) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := c.notifier.Push(ctx, n); err != nil {
		c.log.Warn().Err(err).Str("title", n.Title).Msg("push notification failed")
	}
}

// sessionTitle is the first maxRunes runes of text.
func sessionTitle(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimRight(string(runes[:maxRunes]), " \t\r\n")
}

func cloneSessions(in []model.ChatSession) []model.ChatSession {
	out := make([]model.ChatSession, len(in))
	copy(out, in)
	return out
}

func cloneMessages(in []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, len(in))
	copy(out, in)
	return out
}

// discardNotifications removes a view's queue from shared backends.
func discardNotifications(q notify.Queue, log zerolog.Logger) {
	d, ok := q.(interface{ Delete(ctx context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := d.Delete(ctx); err != nil {
		log.Warn().Err(err).Msg("discard notifications failed")
	}
}
