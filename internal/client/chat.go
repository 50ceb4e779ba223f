package client

import (
	"context"
	"net/http"

	"pyqportal/internal/models"
)

// SendChatQuery posts the whole transcript; the chat service answers the last user turn.
func (c *Client) SendChatQuery(ctx context.Context, messages []models.ChatTurn) (*models.ChatReply, error) {
	var reply models.ChatReply
	if err := c.doJSON(ctx, chatService, http.MethodPost, "/chat", nil, models.ChatRequest{Messages: messages}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// TriggerScan asks the chat service to re-index the PDF corpus.
func (c *Client) TriggerScan(ctx context.Context) (*models.ScanReply, error) {
	var reply models.ScanReply
	if err := c.doJSON(ctx, chatService, http.MethodPost, "/scan", nil, nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	var status models.SystemStatus
	if err := c.doJSON(ctx, chatService, http.MethodGet, "/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
