package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stock-alert-telegram-bot/internal/alert"
	"stock-alert-telegram-bot/internal/chart"
	"stock-alert-telegram-bot/internal/database"
	"stock-alert-telegram-bot/lib/helpers"
	"stock-alert-telegram-bot/lib/translation"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig, db *database.DB, fetcher alert.Fetcher) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:     bot,
		Config:  c,
		DB:      db,
		Fetcher: fetcher,
		pending: make(map[int64]*conversation),
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message: %v", m)
}

// Notify delivers a one-shot alert notification to an owner chat. Used
// by the alert checker; the error matters there, a failed delivery
// keeps the alert alive.
func (b *Bot) Notify(chatID int64, text string) error {
	return b.SendMessage(Message{ChatID: chatID, Text: text})
}

// HandleUpdate processes Telegram updates
func (b *Bot) HandleUpdate(u tgbotapi.Update) string {
	chatID := u.Message.Chat.ID

	if u.Message.IsCommand() {
		// A command always aborts whatever flow was in progress.
		b.clearConversation(chatID)
		return b.handleCommand(u)
	}

	if conv := b.conversation(chatID); conv != nil {
		return b.handleConversation(chatID, conv, strings.TrimSpace(u.Message.Text))
	}

	return ""
}

func (b *Bot) handleCommand(u tgbotapi.Update) string {
	log.Debugf("received command: %s", u.Message.Command())

	switch u.Message.Command() {
	case "start", "help":
		b.sendMenu(u.Message.Chat.ID)
		return ""
	case "alerts":
		return b.alertListText(u.Message.Chat.ID)
	case "chart":
		return b.handleChartCommand(u)
	case "cancel":
		return helpers.EscapeMarkdownV2(translation.Translate("Okay, nothing to do."))
	}

	return helpers.EscapeMarkdownV2(translation.Translate("Use /start to manage your price alerts."))
}

// sendMenu shows the three-way action menu.
func (b *Bot) sendMenu(chatID int64) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Add alert"), "cb_add"),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Delete alert"), "cb_delete"),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Show all alerts"), "cb_show"),
		),
	)

	msg := tgbotapi.NewMessage(chatID, translation.Translate("Select what you want to do:"))
	msg.ReplyMarkup = markup
	if _, err := b.Bot.Send(msg); err != nil {
		log.Errorf("failed to send menu: %v", err)
	}
}

func (b *Bot) HandleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	chatID := callbackQuery.Message.Chat.ID

	switch callbackQuery.Data {
	case "cb_add":
		b.setConversation(chatID, &conversation{step: stepAwaitTicker})
		b.reply(chatID, helpers.EscapeMarkdownV2(translation.Translate("Type the ticker symbol which you would like to add.")))
	case "cb_delete":
		b.reply(chatID, b.alertListText(chatID))
		b.setConversation(chatID, &conversation{step: stepAwaitDeleteRow})
		b.reply(chatID, helpers.EscapeMarkdownV2(translation.Translate("Type the alert number which you would like to delete.")))
	case "cb_show":
		b.reply(chatID, b.alertListText(chatID))
	default:
		b.reply(chatID, helpers.EscapeMarkdownV2(translation.Translate("Unknown action. Please try again.")))
	}

	if _, err := b.Bot.Request(tgbotapi.NewCallback(callbackQuery.ID, "")); err != nil {
		log.Errorf("failed to answer callback query: %v", err)
	}
}

func (b *Bot) handleConversation(chatID int64, conv *conversation, text string) string {
	switch conv.step {
	case stepAwaitTicker:
		return b.handleTickerInput(chatID, conv, text)
	case stepAwaitLevel:
		return b.handleLevelInput(chatID, conv, text)
	case stepAwaitDeleteRow:
		return b.handleDeleteRowInput(chatID, text)
	}
	return ""
}

// handleTickerInput validates the ticker and downloads its price data.
// On any validation failure the step stays pending so the next message
// is another attempt.
func (b *Bot) handleTickerInput(chatID int64, conv *conversation, text string) string {
	ticker, err := alert.ValidateTicker(text)
	if err != nil {
		return helpers.EscapeMarkdownV2(err.Error())
	}

	series, err := b.Fetcher.FetchDaily(context.Background(), ticker)
	if err != nil {
		log.Errorf("price fetch failed for %s: %v", ticker, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong fetching price data. Please try again."))
	}
	if series.Empty() {
		return helpers.EscapeMarkdownV2(alert.ErrNoPriceData.Error())
	}

	conv.ticker = ticker
	conv.series = series
	conv.step = stepAwaitLevel

	lastClose, _ := series.LastClose()
	lastDate, _ := series.LastDate()
	prompt := fmt.Sprintf(
		translation.Translate("The last close price for %s is %.2f on %s.\n\nAdd an alert level for %s. For example:\n130.02\nMA100 (100 daily moving average)\n10%%\n-5.5%%"),
		ticker, lastClose, lastDate, ticker,
	)
	return helpers.EscapeMarkdownV2(prompt)
}

func (b *Bot) handleLevelInput(chatID int64, conv *conversation, text string) string {
	lastClose, ok := conv.series.LastClose()
	if !ok {
		b.clearConversation(chatID)
		return helpers.EscapeMarkdownV2(alert.ErrNoPriceData.Error())
	}

	target, err := alert.ParseTarget(text, lastClose)
	if err != nil {
		return helpers.EscapeMarkdownV2(err.Error())
	}

	if _, err := b.DB.AddAlert(chatID, conv.ticker, target.Expression(), lastClose); err != nil {
		log.Errorf("failed to save alert for chat %d: %v", chatID, err)
		b.clearConversation(chatID)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not save the alert. Please try again later."))
	}

	b.clearConversation(chatID)
	return helpers.EscapeMarkdownV2(fmt.Sprintf(
		translation.Translate("Successfully added alert for %s at %s!"),
		conv.ticker, target.Expression(),
	))
}

func (b *Bot) handleDeleteRowInput(chatID int64, text string) string {
	row, err := strconv.Atoi(text)
	if err != nil || row < 1 {
		return helpers.EscapeMarkdownV2(translation.Translate("Please type the number of the alert to delete."))
	}

	if err := b.DB.DeleteAlertByRow(chatID, row); err != nil {
		log.Errorf("failed to delete alert row %d for chat %d: %v", row, chatID, err)
		b.clearConversation(chatID)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not delete the alert. Please try again later."))
	}

	b.clearConversation(chatID)
	return helpers.EscapeMarkdownV2(translation.Translate("Alert has been deleted."))
}

// alertListText renders the chat's alerts as a numbered list. The
// numbers are display rows, recomputed per listing, and are what the
// delete flow accepts.
func (b *Bot) alertListText(chatID int64) string {
	alerts, err := b.DB.AlertsByChatID(chatID)
	if err != nil {
		log.Errorf("failed to fetch alerts for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not fetch your alerts. Please try again later."))
	}

	if len(alerts) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no active alerts."))
	}

	var list strings.Builder
	list.WriteString(fmt.Sprintf("*%s*\n", helpers.EscapeMarkdownV2(translation.Translate("Your alerts:"))))
	for _, a := range alerts {
		list.WriteString(fmt.Sprintf("%d\\. *%s* %s \\(%s %s, %s\\)\n",
			a.DisplayRow,
			helpers.EscapeMarkdownV2(a.Ticker),
			helpers.EscapeMarkdownV2(a.Expression),
			helpers.EscapeMarkdownV2(translation.Translate("last close")),
			helpers.FormatPriceUS(a.ReferenceClose, true),
			helpers.EscapeMarkdownV2(helpers.FormatAge(a.CreatedAt)),
		))
	}
	return list.String()
}

func (b *Bot) handleChartCommand(u tgbotapi.Update) string {
	arg := strings.TrimSpace(u.Message.CommandArguments())
	ticker, err := alert.ValidateTicker(arg)
	if err != nil || ticker == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /chart TICKER"))
	}

	series, err := b.Fetcher.FetchDaily(context.Background(), ticker)
	if err != nil {
		log.Errorf("price fetch failed for %s: %v", ticker, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong fetching price data. Please try again."))
	}
	if series.Empty() {
		return helpers.EscapeMarkdownV2(alert.ErrNoPriceData.Error())
	}

	chartData, err := chart.RenderCloseSeries(series)
	if err != nil {
		log.Errorf("failed to render chart for %s: %v", ticker, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not render the chart."))
	}

	photo := tgbotapi.NewPhoto(u.Message.Chat.ID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: chartData,
	})
	lastClose, _ := series.LastClose()
	photo.Caption = fmt.Sprintf("%s: %s", helpers.EscapeMarkdownV2(ticker), helpers.FormatPriceUS(lastClose, true))
	photo.ParseMode = "MarkdownV2"
	photo.ReplyToMessageID = u.Message.MessageID
	if _, err := b.Bot.Send(photo); err != nil {
		log.Errorf("error sending chart: %v", err)
	}
	return ""
}

// reply sends already-escaped MarkdownV2 text to a chat.
func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if err := b.SendMessage(Message{ChatID: chatID, Text: text}); err != nil {
		log.Errorf("failed to send reply: %v", err)
	}
}

func (b *Bot) conversation(chatID int64) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[chatID]
}

func (b *Bot) setConversation(chatID int64, conv *conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[chatID] = conv
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, chatID)
}
