package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"fleetpilot-backend/internal/models"
)

// SlackClient posts escalation notices to an incoming webhook. With no
// webhook configured it degrades to a log line so escalation timing still
// works in development.
type SlackClient struct {
	webhookURL string
	client     *http.Client
}

type SlackMessage struct {
	Blocks []Block `json:"blocks"`
}

type Block struct {
	Type     string        `json:"type"`
	Text     *Text         `json:"text,omitempty"`
	Elements []interface{} `json:"elements,omitempty"`
}

type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func NewSlackClient(webhookURL string) *SlackClient {
	return &SlackClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SlackClient) Notify(ctx context.Context, notice models.EscalationNotice) error {
	if c.webhookURL == "" {
		log.Printf("INFO No Slack webhook configured, escalation notice for alert %s (%s) dropped",
			notice.Alert.ID, notice.Tier.Label)
		return nil
	}

	message := buildEscalationMessage(notice)
	return c.sendMessage(ctx, message)
}

func buildEscalationMessage(notice models.EscalationNotice) SlackMessage {
	emoji := "⚠️"
	if notice.Alert.Severity == models.SeverityCritical {
		emoji = "🚨"
	}

	header := fmt.Sprintf("%s %s escalation: %s (%s)",
		emoji, notice.Tier.Label, notice.Alert.Title, notice.Hostname)

	body := notice.Alert.Message
	if body == "" {
		body = "(no detail)"
	}
	if notice.Exhausted {
		body += "\n*All escalation tiers exhausted.*"
	}

	return SlackMessage{
		Blocks: []Block{
			{
				Type: "header",
				Text: &Text{Type: "plain_text", Text: header, Emoji: true},
			},
			{
				Type: "section",
				Text: &Text{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Severity:* %s\n*Device:* %s\n%s",
						notice.Alert.Severity, notice.Hostname, body),
				},
			},
			{
				Type: "section",
				Text: &Text{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Notify:* %s via %s",
						strings.Join(notice.Tier.Contacts, ", "),
						strings.Join(notice.Tier.Channels, ", ")),
				},
			},
		},
	}
}

func (c *SlackClient) sendMessage(ctx context.Context, message SlackMessage) error {
	reqBody, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack error: %s", string(body))
	}

	return nil
}
