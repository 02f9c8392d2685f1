package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/errbook/internal/ai"
	"github.com/example/errbook/internal/excel"
	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/internal/practice"
	"github.com/example/errbook/internal/storage"
	"github.com/example/errbook/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `📖 Commands

/check sentence || answer - grade a translation
/due [n] - what to review next
/practice - answer a question on your weakest point
/points [category] - list your points
/point id - show one point
/deleted - list deleted points
/delete id [reason] - delete a point
/restore id - restore a deleted point
/limit - today's limit usage
/recommend - where to focus
/stats - overview
/export - download your points as xlsx

Admin:
/setlimit n on|off - change the daily limit
/purge [days] [batch] - remove old deleted points for good (0 days: all deleted)
/import - upload an xlsx or csv file`

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := message.CommandArguments()
	chatID := message.Chat.ID

	var err error
	switch message.Command() {
	case "start", "help":
		msg := tgbotapi.NewMessage(chatID, helpText)
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		err = b.sendMessage(msg)
	case "check":
		err = b.handleCheck(ctx, chatID, args)
	case "due":
		err = b.handleDue(ctx, chatID, args)
	case "practice":
		err = b.handlePractice(ctx, chatID)
	case "points":
		err = b.handlePoints(ctx, chatID, args)
	case "point":
		err = b.handlePoint(ctx, chatID, args)
	case "deleted":
		err = b.handleDeleted(ctx, chatID)
	case "delete":
		err = b.handleDelete(ctx, chatID, args)
	case "restore":
		err = b.handleRestore(ctx, chatID, args)
	case "limit":
		err = b.handleLimit(ctx, chatID)
	case "recommend":
		err = b.handleRecommend(ctx, chatID)
	case "stats":
		err = b.handleStats(ctx, chatID)
	case "export":
		err = b.handleExport(ctx, chatID)
	case "setlimit", "purge", "import":
		if !b.isAdmin(message.From.ID) {
			return b.reply(chatID, "This command is only available for administrators.")
		}
		switch message.Command() {
		case "setlimit":
			err = b.handleSetLimit(ctx, chatID, args)
		case "purge":
			err = b.handlePurge(ctx, chatID, args)
		case "import":
			b.mu.Lock()
			b.awaitingFileUpload[chatID] = true
			b.mu.Unlock()
			err = b.reply(chatID, "Send the .xlsx or .csv file as a document. Columns: category, subtype, key_point, explanation, original_phrase, correction, sentence, answer.")
		}
	default:
		err = b.reply(chatID, "Unknown command. Use /help to see the commands.")
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errUsage):
		return b.reply(chatID, usage(message.Command()))
	}
	b.log.Warn("command failed", "command", message.Command(), "error", err)
	return b.reply(chatID, userMessage(err))
}

func usage(command string) string {
	switch command {
	case "check":
		return "Usage: /check Я вчера ходил в кино || I go to the cinema yesterday"
	case "delete":
		return "Usage: /delete id [reason]"
	case "restore", "point":
		return "Usage: /" + command + " id"
	case "setlimit":
		return "Usage: /setlimit n on|off"
	case "purge":
		return "Usage: /purge [days] [batch]\nOmitted values use the configured retention and batch size; 0 days purges every deleted point."
	case "due":
		return "Usage: /due [n]"
	case "points":
		return "Usage: /points [systematic|isolated|enhancement|other]"
	}
	return "Wrong arguments."
}

// userMessage turns an error into something the learner can act on
func userMessage(err error) string {
	var verr *knowledge.ValidationError
	var gerr *ai.GraderError
	switch {
	case errors.As(err, &verr):
		return "⚠️ " + verr.Error()
	case errors.Is(err, knowledge.ErrNotFound):
		return "⚠️ No such point."
	case errors.Is(err, knowledge.ErrPointDeleted):
		return "⚠️ That point is deleted. /restore it first."
	case errors.Is(err, knowledge.ErrDuplicate):
		return "⚠️ Another active point already covers the same mistake."
	case errors.Is(err, knowledge.ErrPendingNotFound):
		return "⌛ These suggestions have expired. Send /check again."
	case errors.Is(err, knowledge.ErrConcurrencyConflict):
		return "⚠️ The point was changing at the same time, please try again."
	case errors.Is(err, practice.ErrNothingDue):
		return "🎉 Nothing to practice right now."
	case errors.As(err, &gerr) && gerr.Transient:
		return "⏳ The grader is busy, please try again in a minute."
	case errors.As(err, &gerr):
		return "⚠️ The grader gave an answer I could not read. Please try again."
	}
	return "❌ Something went wrong. Please try again later."
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64, args string) error {
	sentence, answer, err := parseCheckArgs(args)
	if err != nil {
		return err
	}
	_, _ = b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	sub, err := b.svc.SubmitGrading(ctx, sentence, answer)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, formatSubmission(sub))
	if sub.PendingToken != "" {
		msg.ReplyMarkup = createKeyboard(candidateButtons(sub.PendingToken, sub.Candidates))
	}
	return b.sendMessage(msg)
}

func (b *Bot) handleDue(ctx context.Context, chatID int64, args string) error {
	n, err := parseOptionalInts(args, 1, 0)
	if err != nil {
		return err
	}
	limit := n[0]
	if limit == 0 {
		limit = b.config.DefaultQueueSize
	}
	queue, err := b.svc.DueQueue(ctx, limit)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatQueue(queue))
}

func (b *Bot) handlePractice(ctx context.Context, chatID int64) error {
	q, err := b.practice.NextQuestion(ctx, b.config.DefaultQueueSize, practice.MultipleChoice)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.questions[chatID] = q
	b.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("🎯 " + q.Prompt + "\n")
	if q.Hint != "" {
		sb.WriteString("💡 " + q.Hint + "\n")
	}
	for i, o := range q.Options {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, o)
	}
	sb.WriteString("\n\nReply with the number or type the phrase.")
	return b.reply(chatID, sb.String())
}

func (b *Bot) handlePracticeAnswer(ctx context.Context, message *tgbotapi.Message, q *practice.Question) error {
	chatID := message.Chat.ID
	res, err := b.practice.Check(ctx, q, message.Text)
	if err != nil {
		return b.reply(chatID, userMessage(err))
	}
	b.mu.Lock()
	delete(b.questions, chatID)
	b.mu.Unlock()

	text := fmt.Sprintf("❌ The answer is %q.", res.Expected)
	if res.Correct {
		text = "✅ Right!"
	}
	text += fmt.Sprintf(" Mastery now %.0f%%.", res.Point.MasteryLevel*100)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Next", CallbackData: "practice"}}})
	return b.sendMessage(msg)
}

func (b *Bot) handlePoints(ctx context.Context, chatID int64, args string) error {
	var filter knowledge.Filter
	if args = strings.TrimSpace(args); args != "" {
		c, err := models.ParseCategory(args)
		if err != nil {
			return errUsage
		}
		filter.Category = c
	}
	points, err := b.svc.ListActive(ctx, filter)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatPoints("📚 Your points", points, b.config.PointsPerMessage))
}

func (b *Bot) handlePoint(ctx context.Context, chatID int64, args string) error {
	id, _, err := parseIDArg(args)
	if err != nil {
		return err
	}
	details, err := b.svc.GetPoint(ctx, id)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatPointDetails(details, b.loc))
}

func (b *Bot) handleDeleted(ctx context.Context, chatID int64) error {
	points, err := b.svc.ListDeleted(ctx)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatPoints("🗑 Deleted points", points, b.config.PointsPerMessage))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) error {
	id, reason, err := parseIDArg(args)
	if err != nil {
		return err
	}
	kp, err := b.svc.DeletePoint(ctx, id, reason)
	if err != nil {
		return err
	}
	return b.reply(chatID, fmt.Sprintf("🗑 Deleted %s\nUse /restore %d to undo.", formatPoint(kp), kp.ID))
}

func (b *Bot) handleRestore(ctx context.Context, chatID int64, args string) error {
	id, _, err := parseIDArg(args)
	if err != nil {
		return err
	}
	kp, err := b.svc.RestorePoint(ctx, id)
	if err != nil {
		return err
	}
	return b.reply(chatID, "♻️ Restored "+formatPoint(kp))
}

func (b *Bot) handleLimit(ctx context.Context, chatID int64) error {
	status, err := b.svc.DailyLimitStatus(ctx)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatLimitStatus(status))
}

func (b *Bot) handleSetLimit(ctx context.Context, chatID int64, args string) error {
	limit, enabled, err := parseSetLimit(args)
	if err != nil {
		return err
	}
	if err := b.svc.SetDailyLimitConfig(ctx, limit, enabled); err != nil {
		return err
	}
	return b.handleLimit(ctx, chatID)
}

func (b *Bot) handlePurge(ctx context.Context, chatID int64, args string) error {
	n, err := parseOptionalInts(args, 2, knowledge.PurgeDefault)
	if err != nil {
		return err
	}
	purged, err := b.svc.PurgeOld(ctx, n[0], n[1])
	if err != nil {
		return err
	}
	return b.reply(chatID, fmt.Sprintf("🧹 Removed %d deleted %s for good.", purged, pluralize(int(purged), "point", "points")))
}

func (b *Bot) handleRecommend(ctx context.Context, chatID int64) error {
	rec, err := b.svc.Recommendations(ctx)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatRecommendation(rec))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	stats, err := b.svc.Statistics(ctx)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatStats(stats))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) error {
	points, err := b.svc.ListActive(ctx, knowledge.Filter{})
	if err != nil {
		return err
	}
	data, err := excel.ExportPoints(points)
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  storage.BackupName(time.Now()),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("%d %s", len(points), pluralize(len(points), "point", "points"))
	return b.sendMessage(doc)
}

func (b *Bot) handleImportDocument(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	b.mu.Lock()
	delete(b.awaitingFileUpload, chatID)
	b.mu.Unlock()

	doc := message.Document
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.FileName)), ".")
	if format != excel.FormatXLSX && format != excel.FormatCSV {
		return b.reply(chatID, "⚠️ Only .xlsx and .csv files can be imported.")
	}
	if int64(doc.FileSize) > b.config.MaxImportBytes {
		return b.reply(chatID, "⚠️ The file is too large.")
	}

	data, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.log.Error("failed to download import file", "error", err)
		return b.reply(chatID, userMessage(err))
	}

	cfg := excel.DefaultImportConfig()
	cfg.Reader = bytes.NewReader(data)
	cfg.Format = format
	result, err := excel.ImportPoints(ctx, b.svc, cfg)
	if err != nil {
		return b.reply(chatID, "⚠️ "+err.Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📥 Import finished: %d rows\n\n✅ Created: %d\n🔁 Merged: %d\n⏳ Over the daily limit: %d\n🚫 Skipped: %d",
		result.TotalProcessed, result.Created, result.Merged, result.QuotaRejected, result.Skipped)
	for i, e := range result.Errors {
		if i == 10 {
			fmt.Fprintf(&sb, "\n…and %d more", len(result.Errors)-10)
			break
		}
		sb.WriteString("\n" + e)
	}
	return b.reply(chatID, sb.String())
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, b.config.MaxImportBytes))
}

// HandleCallback handles the inline buttons
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil {
		return errors.New("invalid callback data: message is missing")
	}
	// Always answer the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}
	chatID := callback.Message.Chat.ID

	var err error
	switch callback.Data {
	case "practice":
		err = b.handlePractice(ctx, chatID)
	case "due":
		err = b.handleDue(ctx, chatID, "")
	case "recommend":
		err = b.handleRecommend(ctx, chatID)
	case "stats":
		err = b.handleStats(ctx, chatID)
	default:
		err = b.handleCandidateCallback(ctx, callback)
	}
	if err != nil {
		b.log.Warn("callback failed", "data", callback.Data, "error", err)
		return b.reply(chatID, userMessage(err))
	}
	return nil
}

func (b *Bot) handleCandidateCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	action, token, ids, err := decodeCallback(callback.Data)
	if err != nil {
		return err
	}
	chatID := callback.Message.Chat.ID

	if action == actionDiscard {
		n, err := b.svc.DiscardPending(token, ids)
		if err != nil {
			return err
		}
		return b.reply(chatID, fmt.Sprintf("Discarded %d %s.", n, pluralize(n, "suggestion", "suggestions")))
	}

	result, err := b.svc.ConfirmPending(ctx, token, ids)
	if err != nil {
		return err
	}
	return b.reply(chatID, formatCommitResult(result))
}
