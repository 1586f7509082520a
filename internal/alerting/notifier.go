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

// Notification 封装一次预言机健康告警。
type Notification struct {
	Bucket          time.Time
	OverallStatus   string
	HealthyChains   int
	TotalChains     int
	AveragePrice    *decimal.Decimal
	MaxDeviationPct *decimal.Decimal
	ThresholdPct    decimal.Decimal
	Alerts          []string
	Channels        []string
	AdditionalMsg   string
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
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	})
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
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram 返回 ok=false")
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Str("overall_status", note.OverallStatus).
		Int("alerts", len(note.Alerts)).
		Msg("告警已发送 (Telegram)")
	return nil
}

// RenderMessage 生成告警正文。
func RenderMessage(note Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[DRAGON Oracle %s]\n", strings.ToUpper(note.OverallStatus))
	fmt.Fprintf(&b, "Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Healthy chains: %d/%d\n", note.HealthyChains, note.TotalChains)
	if note.AveragePrice != nil {
		fmt.Fprintf(&b, "Average price: $%s\n", note.AveragePrice.StringFixed(6))
	}
	if note.MaxDeviationPct != nil {
		fmt.Fprintf(&b, "Max deviation: %s%% (threshold %s%%)\n", note.MaxDeviationPct.StringFixed(2), note.ThresholdPct.StringFixed(2))
	}
	for _, a := range note.Alerts {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	if len(note.Channels) > 0 {
		fmt.Fprintf(&b, "Channels: %s\n", strings.Join(note.Channels, ","))
	}
	if note.AdditionalMsg != "" {
		b.WriteString(note.AdditionalMsg)
	}
	return b.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
