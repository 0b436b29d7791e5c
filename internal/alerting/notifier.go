package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification 封装一次质量告警的上下文。
type Notification struct {
	AnalyzedAt     time.Time
	Source         string
	RecordID       string
	Channel        string
	Duration       decimal.Decimal
	GoodPercentage decimal.Decimal
	MinGoodPct     decimal.Decimal
	Overall        string
	TotalWindows   int
	Rejected       int
	BadRanges      []string
	AdditionalMsg  string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("source", note.Source).
		Str("record", note.RecordID).
		Str("overall", note.Overall).
		Msg("quality alert sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[ECG Quality Alert]\n")
	builder.WriteString(fmt.Sprintf("Analyzed: %s UTC\n", note.AnalyzedAt.UTC().Format(time.RFC3339)))
	if note.Source != "" {
		builder.WriteString(fmt.Sprintf("File: %s\n", note.Source))
	}
	if note.RecordID != "" {
		builder.WriteString(fmt.Sprintf("Record: %s\n", note.RecordID))
	}
	builder.WriteString(fmt.Sprintf("Channel: %s, %ss\n", note.Channel, note.Duration.StringFixed(1)))
	builder.WriteString(fmt.Sprintf("Overall: %s\n", note.Overall))
	builder.WriteString(fmt.Sprintf("Good windows: %s%% (minimum %s%%)\n", note.GoodPercentage.StringFixed(1), note.MinGoodPct.StringFixed(1)))
	builder.WriteString(fmt.Sprintf("Rejected: %d of %d windows\n", note.Rejected, note.TotalWindows))
	if len(note.BadRanges) > 0 {
		builder.WriteString(fmt.Sprintf("Poor quality: %s\n", strings.Join(note.BadRanges, ", ")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
