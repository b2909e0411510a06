package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkorlev/packshop/internal/domain/models"
)

// OrderNotifier отправляет уведомление о новом заказе.
// Вызывается после успешного коммита и не влияет на результат оформления.
type OrderNotifier interface {
	NotifyNewOrder(order *models.Order)
}

// telegramNotifier шлёт сообщение каждому админу через Bot API sendMessage.
type telegramNotifier struct {
	log      *slog.Logger
	botToken string
	endpoint string
	adminIDs []int64
	client   *http.Client
}

func NewTelegramNotifier(log *slog.Logger, botToken, endpoint string, adminIDs []int64) OrderNotifier {
	return &telegramNotifier{
		log:      log,
		botToken: botToken,
		endpoint: endpoint,
		adminIDs: adminIDs,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *telegramNotifier) NotifyNewOrder(order *models.Order) {
	const op = "service.TelegramNotifier.NotifyNewOrder"
	logger := n.log.With(slog.String("op", op), slog.Int64("orderID", order.ID))

	if n.botToken == "" || len(n.adminIDs) == 0 {
		logger.Warn("bot token or admin ids not configured, notification skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text := formatOrderMessage(order)
	for _, adminID := range n.adminIDs {
		if err := n.sendMessage(ctx, adminID, text); err != nil {
			logger.Error("failed to notify admin", slog.Int64("adminID", adminID), slog.Any("error", err))
		}
	}
}

func (n *telegramNotifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}

// formatOrderMessage собирает HTML-сводку заказа для админов
func formatOrderMessage(order *models.Order) string {
	var items bytes.Buffer
	for _, item := range order.Items {
		fmt.Fprintf(&items, "• %s: %d пач (%d шт) = %s₽\n",
			item.ProductName, item.QuantityPacks, item.QuantityPieces, item.Subtotal.StringFixed(2))
	}

	orgText := ""
	if order.CustomerOrganization != nil && *order.CustomerOrganization != "" {
		orgText = "\n🏢 " + *order.CustomerOrganization
	}

	return fmt.Sprintf(
		"🆕 <b>Новый заказ #%d</b>\n👤 %s%s\n📱 %s\n\n<b>Товары:</b>\n%s\n<b>💰 Итого: %s₽</b>",
		order.ID, order.CustomerName, orgText, order.CustomerPhone,
		items.String(), order.TotalAmount.StringFixed(2),
	)
}
