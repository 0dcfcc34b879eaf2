package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stock-alert-telegram-bot/internal/alert"
	"stock-alert-telegram-bot/internal/database"
	"stock-alert-telegram-bot/internal/types"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// Bot telegram interaction client
type Bot struct {
	Bot     *tgbotapi.BotAPI
	Config  BotConfig
	DB      *database.DB
	Fetcher alert.Fetcher

	mu      sync.Mutex
	pending map[int64]*conversation // per-chat multi-step input state
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}

type step int

const (
	stepAwaitTicker step = iota + 1
	stepAwaitLevel
	stepAwaitDeleteRow
)

// conversation tracks where a chat is inside the add or delete flow.
// A validation failure leaves the state in place so the next message
// retries the same step.
type conversation struct {
	step   step
	ticker string
	series types.PriceSeries
}
