package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/errbook/internal/config"
	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/internal/logger"
	"github.com/example/errbook/internal/practice"
	"github.com/example/errbook/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Service is the knowledge tracker as seen from the chat
type Service interface {
	SubmitGrading(ctx context.Context, sourceSentence, learnerAnswer string) (*knowledge.Submission, error)
	ConfirmPending(ctx context.Context, token string, candidateIDs []int) (*knowledge.CommitResult, error)
	DiscardPending(token string, candidateIDs []int) (int, error)
	ListActive(ctx context.Context, filter knowledge.Filter) ([]models.KnowledgePoint, error)
	ListDeleted(ctx context.Context) ([]models.KnowledgePoint, error)
	GetPoint(ctx context.Context, id int64) (*knowledge.PointDetails, error)
	DeletePoint(ctx context.Context, id int64, reason string) (*models.KnowledgePoint, error)
	RestorePoint(ctx context.Context, id int64) (*models.KnowledgePoint, error)
	PurgeOld(ctx context.Context, olderThanDays, maxBatch int) (int64, error)
	DueQueue(ctx context.Context, limit int) ([]models.PracticeQueueEntry, error)
	DailyLimitStatus(ctx context.Context) (*models.DailyLimitStatus, error)
	SetDailyLimitConfig(ctx context.Context, limit int, enabled bool) error
	Recommendations(ctx context.Context) (*models.Recommendation, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
	Import(ctx context.Context, items []knowledge.ImportItem) *knowledge.CommitResult
}

// Bot represents the Telegram bot application
type Bot struct {
	api      *tgbotapi.BotAPI
	token    string
	svc      Service
	practice *practice.Module
	config   *BotConfig
	loc      *time.Location
	log      *logger.Logger

	users  map[int64]bool
	admins map[int64]bool

	mu                 sync.Mutex
	questions          map[int64]*practice.Question // open practice question per chat
	awaitingFileUpload map[int64]bool
}

// New creates a new bot instance. Only the configured users and admins
// are served.
func New(cfg config.BotConfig, svc Service, pm *practice.Module, loc *time.Location, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if len(cfg.AdminUserIDs) == 0 && len(cfg.UserIDs) == 0 {
		return nil, errors.New("no ADMIN_USER_IDS or ALLOWED_USER_IDS configured")
	}
	if loc == nil {
		loc = time.UTC
	}

	b := &Bot{
		token:              cfg.Token,
		svc:                svc,
		practice:           pm,
		config:             DefaultConfig(),
		loc:                loc,
		log:                log.With("component", "bot"),
		users:              make(map[int64]bool),
		admins:             make(map[int64]bool),
		questions:          make(map[int64]*practice.Question),
		awaitingFileUpload: make(map[int64]bool),
	}
	for _, id := range cfg.AdminUserIDs {
		b.admins[id] = true
		b.users[id] = true
	}
	for _, id := range cfg.UserIDs {
		b.users[id] = true
	}
	return b, nil
}

// Run connects to Telegram and handles updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.mu.Lock()
	b.api = botAPI
	b.mu.Unlock()
	b.log.Info("authorized", "account", botAPI.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateConfig)
	defer botAPI.StopReceivingUpdates()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// SendReminder implements the scheduler.Notifier interface
func (b *Bot) SendReminder(ctx context.Context, dueCount int) error {
	b.mu.Lock()
	api := b.api
	b.mu.Unlock()
	if api == nil {
		return errors.New("bot is not connected")
	}

	text := fmt.Sprintf("⏰ %d %s waiting for review. Send /practice to start.",
		dueCount, pluralize(dueCount, "point is", "points are"))
	var errs []error
	for id := range b.users {
		// user ID and chat ID are the same in private chats
		msg := tgbotapi.NewMessage(id, text)
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		if _, err := api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("remind %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) isAllowed(userID int64) bool {
	return b.users[userID]
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.config.UpdateTimeout)
	defer cancel()

	var err error
	switch {
	case update.Message != nil && update.Message.From != nil:
		if !b.isAllowed(update.Message.From.ID) {
			b.log.Warn("ignoring message from unknown user", "user", update.Message.From.ID)
			return
		}
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		if !b.isAllowed(update.CallbackQuery.From.ID) {
			return
		}
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.log.Error("failed to handle update", "update", update.UpdateID, "error", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.IsCommand() {
		return b.HandleCommand(ctx, message)
	}

	chatID := message.Chat.ID
	b.mu.Lock()
	awaitingFile := b.awaitingFileUpload[chatID]
	question := b.questions[chatID]
	b.mu.Unlock()

	switch {
	case awaitingFile && message.Document != nil:
		return b.handleImportDocument(ctx, message)
	case question != nil && message.Text != "":
		return b.handlePracticeAnswer(ctx, message, question)
	}
	return b.reply(message.Chat.ID, "I don't understand. Use /help to see the commands.")
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Practice", CallbackData: "practice"},
			{Text: "📚 Due", CallbackData: "due"},
		},
		{
			{Text: "🧭 Recommend", CallbackData: "recommend"},
			{Text: "📊 Stats", CallbackData: "stats"},
		},
	}
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}
