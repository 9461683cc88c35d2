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

	"p2p-price-tracker/internal/history"
	"p2p-price-tracker/internal/offers"
)

// Update is the regular status message pushed after each successful cycle.
type Update struct {
	Time          time.Time
	Asset         string
	Fiat          string
	Buy           *decimal.Decimal
	Sell          *decimal.Decimal
	Changes       []history.Change
	BestBuy       *offers.Offer
	BestSell      *offers.Offer
	ReferenceRate *decimal.Decimal
}

// Notifier delivers rendered alert and status messages. The tracking loop
// decides when to send; the notifier decides how the text looks.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
	SendUpdate(ctx context.Context, update Update) error
}

// TelegramNotifier pushes messages through the Telegram Bot API. It keeps
// the chat tidy: the status update edits the previous message in place, and
// a new alert for a side deletes the previous alert for that side first.
// Message-id state is only touched by the tracking loop goroutine.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger

	updateMsgID  int64
	alertMsgIDs  map[offers.Side]int64
	thresholdPct decimal.Decimal
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, threshold decimal.Decimal, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken:     botToken,
		chatID:       chatID,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		logger:       logger.With().Str("component", "telegram_notifier").Logger(),
		alertMsgIDs:  make(map[offers.Side]int64),
		thresholdPct: threshold,
	}
}

// SendAlert delivers a threshold-crossing alert, replacing the previous
// alert message for the same side.
func (n *TelegramNotifier) SendAlert(ctx context.Context, alert Alert) error {
	if prev := n.alertMsgIDs[alert.Side]; prev != 0 {
		// Best effort; a vanished message is not a failure.
		if err := n.deleteMessage(ctx, prev); err != nil {
			n.logger.Debug().Err(err).Int64("message_id", prev).Msg("delete previous alert failed")
		}
	}

	msgID, err := n.sendMessage(ctx, renderAlert(alert, n.thresholdPct))
	if err != nil {
		return fmt.Errorf("send %s alert: %w", alert.Side, err)
	}
	n.alertMsgIDs[alert.Side] = msgID

	n.logger.Info().
		Str("side", string(alert.Side)).
		Str("change_pct", alert.ChangePct.StringFixed(2)).
		Int64("message_id", msgID).
		Msg("alert dispatched")
	return nil
}

// SendUpdate edits the standing status message, or sends a fresh one when
// none exists yet (or the edit is rejected, e.g. after a bot restart).
func (n *TelegramNotifier) SendUpdate(ctx context.Context, update Update) error {
	text := renderUpdate(update)

	if n.updateMsgID != 0 {
		err := n.editMessage(ctx, n.updateMsgID, text)
		if err == nil {
			return nil
		}
		n.logger.Debug().Err(err).Int64("message_id", n.updateMsgID).Msg("edit failed, sending new message")
	}

	msgID, err := n.sendMessage(ctx, text)
	if err != nil {
		return fmt.Errorf("send status update: %w", err)
	}
	n.updateMsgID = msgID
	return nil
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) (int64, error) {
	payload := map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	var result struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := n.call(ctx, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	if !result.OK {
		return 0, fmt.Errorf("telegram returned ok=false")
	}
	return result.Result.MessageID, nil
}

func (n *TelegramNotifier) editMessage(ctx context.Context, messageID int64, text string) error {
	payload := map[string]any{
		"chat_id":                  n.chatID,
		"message_id":               messageID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := n.call(ctx, "editMessageText", payload, &result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}
	return nil
}

func (n *TelegramNotifier) deleteMessage(ctx context.Context, messageID int64) error {
	payload := map[string]any{
		"chat_id":    n.chatID,
		"message_id": messageID,
	}
	var result struct {
		OK bool `json:"ok"`
	}
	return n.call(ctx, "deleteMessage", payload, &result)
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
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
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode telegram response: %w", err)
		}
	}
	return nil
}

func renderAlert(alert Alert, threshold decimal.Decimal) string {
	arrow := "📈 UP"
	if alert.ChangePct.Sign() < 0 {
		arrow = "📉 DOWN"
	}

	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("🚨 <b>%s PRICE ALERT</b> %s\n", alert.Side, arrow))
	b.WriteString(fmt.Sprintf("Change: <b>%s%%</b> (threshold %s%%)\n", alert.ChangePct.StringFixed(2), threshold.StringFixed(1)))
	b.WriteString(fmt.Sprintf("Price: %s → <b>%s</b>\n", alert.OldPrice.StringFixed(2), alert.NewPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Time: %s UTC\n", alert.Time.UTC().Format(time.RFC3339)))

	if t := alert.Trader; t != nil {
		b.WriteString(fmt.Sprintf("Trader: %s (%d orders)\n", t.Nickname, t.MonthOrders))
		b.WriteString(fmt.Sprintf("Available: %s\n", t.Available.StringFixed(2)))
		if len(t.PaymentMethods) > 0 {
			b.WriteString(fmt.Sprintf("Methods: %s\n", strings.Join(t.PaymentMethods, ", ")))
		}
	}
	return b.String()
}

func renderUpdate(u Update) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("📊 <b>%s/%s Price Update</b>\n", u.Fiat, u.Asset))
	b.WriteString(fmt.Sprintf("⏰ %s UTC\n\n", u.Time.UTC().Format("2006-01-02 15:04:05")))

	if u.ReferenceRate != nil {
		b.WriteString(fmt.Sprintf("🏛 Official rate: <b>%s %s</b>\n\n", u.ReferenceRate.StringFixed(2), u.Fiat))
	}

	writeSide(&b, "💵 Best BUY", u.Buy, u.BestBuy, u.ReferenceRate, u.Fiat)
	writeSide(&b, "💰 Best SELL", u.Sell, u.BestSell, u.ReferenceRate, u.Fiat)

	if u.Buy != nil && u.Sell != nil && u.Sell.Sign() > 0 {
		spread := u.Buy.Sub(*u.Sell).Abs()
		spreadPct := spread.Div(*u.Sell).Mul(hundred)
		b.WriteString(fmt.Sprintf("↔️ Spread: %s (%s%%)\n", spread.StringFixed(2), spreadPct.StringFixed(2)))
	}

	if len(u.Changes) > 0 {
		b.WriteString("\n<b>Changes</b>\n")
		for _, c := range u.Changes {
			b.WriteString(fmt.Sprintf("%s: buy %s%%, sell %s%%\n",
				c.Window.Label, signed(c.BuyChange), signed(c.SellChange)))
		}
	}
	return b.String()
}

func writeSide(b *strings.Builder, label string, price *decimal.Decimal, best *offers.Offer, ref *decimal.Decimal, fiat string) {
	if price == nil {
		b.WriteString(fmt.Sprintf("%s: no offers\n", label))
		return
	}

	b.WriteString(fmt.Sprintf("%s: <b>%s %s</b>", label, price.StringFixed(2), fiat))
	if ref != nil && ref.Sign() > 0 {
		diff := price.Sub(*ref).Div(*ref).Mul(hundred)
		b.WriteString(fmt.Sprintf(" (%s%% vs official)", signed(diff)))
	}
	b.WriteString("\n")

	if best != nil {
		methods := best.MethodNames()
		if len(methods) > 2 {
			methods = methods[:2]
		}
		b.WriteString(fmt.Sprintf("   %s · %d orders · %s\n",
			best.Trader.Nickname, best.Trader.MonthOrderCount, strings.Join(methods, ", ")))
	}
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Sign() >= 0 {
		return "+" + s
	}
	return s
}

var _ Notifier = (*TelegramNotifier)(nil)
