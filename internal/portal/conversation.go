package portal

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"pyqportal/internal/models"
)

const (
	Greeting = "Hello! I can help you with questions about previous year papers and exams. What would you like to know?"
	Apology  = "Sorry, I encountered an error while processing your request. Please try again later."

	msgChatFailed   = "Failed to get a response. Please try again."
	msgStatusFailed = "Failed to fetch system status"
	msgScanStarted  = "PDF scan initiated successfully"
	msgScanFailed   = "Failed to trigger PDF scan"

	DefaultStatusRefreshDelay = 2 * time.Second
)

var ErrEmptyQuery = errors.New("empty query")

// ChatBackend is the external Q&A service.
type ChatBackend interface {
	SendChatQuery(ctx context.Context, messages []models.ChatTurn) (*models.ChatReply, error)
	TriggerScan(ctx context.Context) (*models.ScanReply, error)
	GetSystemStatus(ctx context.Context) (*models.SystemStatus, error)
}

// Conversation is an append-only Q&A transcript for one session. Status and
// scan requests run independently of Send and never touch the transcript.
type Conversation struct {
	backend ChatBackend
	notes   *Notifier
	now     func() time.Time

	refreshDelay time.Duration

	// sendMu keeps turns whole: one question and its answer before the next question
	sendMu sync.Mutex

	mu       sync.Mutex
	messages []models.Message
	status   *models.SystemStatus
	timers   []*time.Timer
	closed   bool
}

func NewConversation(backend ChatBackend, notes *Notifier) *Conversation {
	c := &Conversation{
		backend:      backend,
		notes:        notes,
		now:          time.Now,
		refreshDelay: DefaultStatusRefreshDelay,
	}
	c.messages = []models.Message{{Role: models.RoleAssistant, Content: Greeting, Timestamp: c.now()}}
	return c
}

// Transcript returns a copy of the messages so far.
func (c *Conversation) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// Send appends the user's message, sends the whole history and appends exactly
// one assistant message: the reply, or an apology when the request fails.
// Blank input returns ErrEmptyQuery and changes nothing. Concurrent calls are
// served one at a time, so each request carries every earlier answer.
func (c *Conversation) Send(ctx context.Context, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyQuery
	}
	answer, err := c.exchange(ctx, text)
	if err != nil {
		return answer, err
	}
	c.RefreshStatus(ctx)
	return answer, nil
}

func (c *Conversation) exchange(ctx context.Context, text string) (models.Message, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	c.messages = append(c.messages, models.Message{Role: models.RoleUser, Content: text, Timestamp: c.now()})
	history := make([]models.ChatTurn, len(c.messages))
	for i, m := range c.messages {
		history[i] = models.ChatTurn{Role: m.Role, Content: m.Content}
	}
	c.mu.Unlock()

	reply, err := c.backend.SendChatQuery(ctx, history)

	var answer models.Message
	if err != nil {
		c.notes.Add(KindError, msgChatFailed)
		answer = models.Message{Role: models.RoleAssistant, Content: Apology, Timestamp: c.now()}
	} else {
		answer = models.Message{Role: models.RoleAssistant, Content: reply.Message, Timestamp: c.now(), Sources: reply.Sources}
	}
	c.mu.Lock()
	c.messages = append(c.messages, answer)
	c.mu.Unlock()
	return answer, err
}

// RefreshStatus fetches the chat service status and keeps the latest answer.
func (c *Conversation) RefreshStatus(ctx context.Context) (*models.SystemStatus, error) {
	status, err := c.backend.GetSystemStatus(ctx)
	if err != nil {
		c.notes.Add(KindError, msgStatusFailed)
		return nil, err
	}
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	return status, nil
}

// Status returns the last fetched status, or nil.
func (c *Conversation) Status() *models.SystemStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Scan asks the chat service to rescan its PDFs and refreshes the status shortly after.
func (c *Conversation) Scan(ctx context.Context) error {
	if _, err := c.backend.TriggerScan(ctx); err != nil {
		c.notes.Add(KindError, msgScanFailed)
		return err
	}
	c.notes.Add(KindSuccess, msgScanStarted)

	refreshCtx := context.WithoutCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.timers = append(c.timers, time.AfterFunc(c.refreshDelay, func() { c.RefreshStatus(refreshCtx) }))
	}
	return nil
}

// Close cancels pending status refreshes.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.closed = true
}
