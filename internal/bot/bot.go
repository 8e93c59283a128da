// Package bot exposes the listing feeds and bid ledgers as Telegram screens,
// one per chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"propfeed/internal/bids"
	"propfeed/internal/catalog"
	"propfeed/internal/config"
	"propfeed/internal/currency"
	"propfeed/internal/feed"
	"propfeed/internal/filter"
	"propfeed/internal/partition"
	"propfeed/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	cfg      *config.Config
	client   *catalog.Client
	listings feed.PageSource
	money    currency.Formatter
	log      *slog.Logger

	mu      sync.Mutex
	screens map[int64]*screen
}

// screen is the per-chat state: one aggregator and the last loaded book.
type screen struct {
	feed    *feed.Aggregator
	loaded  bool
	queries map[partition.Name]filter.Query
	shown   map[partition.Name]int

	book *bids.Book
	view bids.View
}

// New creates a Bot. Listings come from listings when it is not nil, and
// otherwise from client authenticated as the chat's session.
func New(cfg *config.Config, store storage.Storage, client *catalog.Client, listings feed.PageSource, log *slog.Logger) (*Bot, error) {
	if err := cfg.RequireBot(); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		client:   client,
		listings: listings,
		money:    currency.Formatter{ThousandLabel: cfg.ThousandLabel},
		log:      log,
	}, nil
}

// Money returns the formatter used for amounts.
func (b *Bot) Money() currency.Formatter {
	return b.money
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.closeScreens()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "login":
		b.handleLogin(ctx, chatID, args)
	case "logout":
		b.handleLogout(ctx, chatID)
	case string(partition.Sale), string(partition.Rent), string(partition.Featured):
		b.handleBucket(ctx, chatID, partition.Name(cmd), args)
	case cmdMore:
		b.handleMore(ctx, chatID, args)
	case cmdRefresh:
		b.handleRefresh(ctx, chatID, args)
	case "bids":
		b.handleBook(ctx, chatID, bids.ViewBids)
	case "enquiries":
		b.handleBook(ctx, chatID, bids.ViewEnquiries)
	case "bid":
		b.handleBid(ctx, chatID, args)
	case "history":
		b.handleHistory(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// screenFor returns the chat's screen, creating it on first use.
func (b *Bot) screenFor(ctx context.Context, chatID int64) *screen {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.screens == nil {
		b.screens = make(map[int64]*screen)
	}
	if sc, ok := b.screens[chatID]; ok {
		return sc
	}

	sc := &screen{
		feed: feed.New(b.pageSource(ctx, chatID), b.log.With("chat_id", chatID),
			feed.WithPageSize(b.cfg.PageSize),
			feed.WithDebounce(b.cfg.LoadMoreDebounce),
		),
		queries: make(map[partition.Name]filter.Query),
		shown:   make(map[partition.Name]int),
	}
	b.screens[chatID] = sc
	return sc
}

func (b *Bot) pageSource(ctx context.Context, chatID int64) feed.PageSource {
	if b.listings != nil {
		return b.listings
	}
	if sess, err := b.store.GetSession(ctx, chatID); err == nil {
		return b.client.WithToken(sess.Token)
	}
	return b.client
}

// dropScreen discards a chat's screen so the next command starts fresh.
func (b *Bot) dropScreen(chatID int64) {
	b.mu.Lock()
	sc, ok := b.screens[chatID]
	delete(b.screens, chatID)
	b.mu.Unlock()

	if ok {
		sc.feed.Close()
	}
}

func (b *Bot) closeScreens() {
	b.mu.Lock()
	screens := b.screens
	b.screens = nil
	b.mu.Unlock()

	for _, sc := range screens {
		sc.feed.Close()
	}
}
