package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metal-pricer/internal/config"
)

const telegramAPIBase = "https://api.telegram.org"

type telegramRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	iconError   = "❌"
	iconSuccess = "✅"
)

// TelegramNotifier forwards errors and success summaries to a Telegram chat.
// Info and warning messages are dropped to keep the chat readable.
type TelegramNotifier struct {
	creds      config.TelegramBotConfig
	apiBase    string
	httpClient *http.Client
}

// NewTelegramNotifier returns nil when credentials are missing.
func NewTelegramNotifier(cfg config.TelegramBotConfig, httpClient *http.Client) *TelegramNotifier {
	if cfg.ChatId == "" || cfg.Token == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelegramNotifier{creds: cfg, apiBase: telegramAPIBase, httpClient: httpClient}
}

func (c *TelegramNotifier) Log(value string) {}

func (c *TelegramNotifier) LogWarning(value string) {}

func (c *TelegramNotifier) LogError(value string, err error) {
	if c == nil {
		return
	}
	if err != nil {
		value = fmt.Sprintf("%s: %v", value, err)
	}
	_ = c.sendRequest(formatMessage(iconError, "ERROR", value))
}

func (c *TelegramNotifier) LogSuccess(value string) {
	if c == nil {
		return
	}
	_ = c.sendRequest(formatMessage(iconSuccess, "SUCCESS", value))
}

func formatMessage(icon, level, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		v = "-"
	}
	return fmt.Sprintf("%s %s: %s", icon, level, v)
}

func (c *TelegramNotifier) sendRequest(value string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.apiBase, "/"), c.creds.Token)

	bodyBytes, err := json.Marshal(telegramRequest{
		ChatId: c.creds.ChatId,
		Text:   value,
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram send failed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}
