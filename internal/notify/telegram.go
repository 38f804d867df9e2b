// internal/notify/telegram.go
package notify

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier entrega uma notificação formatada (com imagem opcional) pra
// um destino. Devolve erro em caso de falha de entrega.
type Notifier interface {
	Send(chatID, caption string, image []byte, filename string) error
}

// TelegramNotifier manda a notificação via Bot API, caption em
// MarkdownV2. Sem imagem vira mensagem de texto.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramNotifier(botToken string) (*TelegramNotifier, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, fmt.Errorf("bot_token do telegram não configurado")
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("inicializando bot do telegram: %w", err)
	}
	log.Printf("[telegram] bot @%s inicializado", bot.Self.UserName)
	return &TelegramNotifier{bot: bot}, nil
}

func (t *TelegramNotifier) Send(chatID, caption string, image []byte, filename string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("chat_id inválido %q: %w", chatID, err)
	}

	escaped := tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, caption)

	if len(image) == 0 {
		log.Printf("[telegram] sem imagem pra %s, mandando só texto", chatID)
		msg := tgbotapi.NewMessage(id, escaped)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("enviando texto pro chat %s: %w", chatID, err)
		}
		return nil
	}

	photo := tgbotapi.NewPhoto(id, tgbotapi.FileBytes{Name: filename, Bytes: image})
	photo.Caption = escaped
	photo.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("enviando foto pro chat %s: %w", chatID, err)
	}
	return nil
}
