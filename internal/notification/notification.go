package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"solarpunk-alphabot/config"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyTrade        NotificationType = "trade"
	NotifyDistribution NotificationType = "distribution"
	NotifyCycle        NotificationType = "cycle"
	NotifyError        NotificationType = "error"
	NotifyInfo         NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Amount    string
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a manager with the configured providers attached.
func NewManager(cfg config.NotificationConfig) *Manager {
	m := &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   cfg.Enabled,
	}
	m.AddNotifier(NewTelegramNotifier(cfg.Telegram))
	m.AddNotifier(NewDiscordNotifier(cfg.Discord))
	return m
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendTrade sends a trade executed notification
func (m *Manager) SendTrade(symbol, status string, price float64, quantity, value string, confidence float64) error {
	return m.Send(&Notification{
		Type:      NotifyTrade,
		Title:     fmt.Sprintf("Trade Executed: %s", symbol),
		Message:   fmt.Sprintf("BUY %s @ %.4f\nQuantity: %s | Value: %s\nConfidence: %.1f/10\nStatus: %s", symbol, price, quantity, value, confidence, status),
		Symbol:    symbol,
		Amount:    value,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"confidence": confidence,
			"status":     status,
		},
	})
}

// SendDistribution sends a profit distribution notification
func (m *Manager) SendDistribution(distributionID, totalProfit, crisisAmount string, allocations int) error {
	return m.Send(&Notification{
		Type:      NotifyDistribution,
		Title:     "Profit Distributed",
		Message:   fmt.Sprintf("Profit: %s\nCrisis relief: %s across %d allocations\nID: %s", totalProfit, crisisAmount, allocations, distributionID),
		Amount:    totalProfit,
		Timestamp: time.Now(),
	})
}

// SendCycleSummary sends an end-of-cycle notification
func (m *Manager) SendCycleSummary(cycleID string, opportunities, trades int, profit string) error {
	return m.Send(&Notification{
		Type:      NotifyCycle,
		Title:     "Cycle Completed",
		Message:   fmt.Sprintf("Opportunities: %d | Trades: %d\nProfit: %s\nCycle: %s", opportunities, trades, profit, cycleID),
		Amount:    profit,
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("Error: %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(cfg config.DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	if notification.Type == NotifyError {
		color = 0xFF0000 // Red
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" || notification.Amount != "" {
		fields := make([]map[string]interface{}, 0, 2)
		if notification.Symbol != "" {
			fields = append(fields, map[string]interface{}{
				"name": "Symbol", "value": notification.Symbol, "inline": true,
			})
		}
		if notification.Amount != "" {
			fields = append(fields, map[string]interface{}{
				"name": "Amount", "value": notification.Amount, "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
