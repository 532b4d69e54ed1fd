package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/render"
	"github.com/Freeeeeet/timetable/internal/service"
	"github.com/Freeeeeet/timetable/internal/timetable"
)

const timetableUsage = "Использование: /timetable class|teacher|room <id>\nНапример: /timetable teacher 5"

var errBadTimetableArgs = errors.New("bad /timetable arguments")

type BotController struct {
	bot             *bot.Bot
	scheduleService *service.ScheduleService
	logger          *zap.Logger
}

func NewBotController(botInstance *bot.Bot, scheduleService *service.ScheduleService, logger *zap.Logger) *BotController {
	return &BotController{
		bot:             botInstance,
		scheduleService: scheduleService,
		logger:          logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/timetable", bot.MatchTypePrefix, c.HandleTimetable)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "timetable", Description: "🗓 Расписание класса, учителя или аудитории"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

// HandleHelp обрабатывает команды /help и /start
func (c *BotController) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/timetable class <id> - расписание класса\n" +
		"/timetable teacher <id> - расписание учителя\n" +
		"/timetable room <id> - расписание аудитории\n" +
		"/help - Показать эту справку"

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   helpText,
	})
}

// HandleTimetable отправляет картинку недели и текстовый список занятий
func (c *BotController) HandleTimetable(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	filter, title, err := parseTimetableArgs(update.Message.Text)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ " + timetableUsage})
		return
	}

	entries, err := c.scheduleService.List(ctx, filter)
	if err != nil {
		c.logger.Error("Failed to list timetable", zap.Int64("chat_id", chatID), zap.Error(err))
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ Не удалось загрузить расписание. Попробуйте позже.",
		})
		return
	}

	if len(entries) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "📭 " + title + ": занятий нет"})
		return
	}

	imageData, err := render.GenerateTimetableImage(title, entries, c.scheduleService.MaxSlot())
	if err != nil {
		c.logger.Error("Failed to render timetable", zap.Error(err))
	} else {
		_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileUpload{Filename: "timetable.png", Data: bytes.NewReader(imageData)},
			Caption: "🗓 " + title,
		})
		if err != nil {
			c.logger.Warn("Failed to send timetable image", zap.Error(err))
		}
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   formatTimetable(title, entries),
	})
}

// parseTimetableArgs разбирает "/timetable teacher 5"
func parseTimetableArgs(text string) (model.ScheduleFilter, string, error) {
	var filter model.ScheduleFilter

	fields := strings.Fields(text)
	if len(fields) != 3 {
		return filter, "", errBadTimetableArgs
	}
	// /timetable@bot_name в группах
	if cmd := strings.SplitN(fields[0], "@", 2)[0]; cmd != "/timetable" {
		return filter, "", errBadTimetableArgs
	}

	id, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || id <= 0 {
		return filter, "", errBadTimetableArgs
	}

	kind := strings.ToLower(fields[1])
	switch timetable.ResourceKind(kind) {
	case timetable.ResourceClass:
		filter.ClassID = &id
	case timetable.ResourceTeacher:
		filter.TeacherID = &id
	case timetable.ResourceRoom:
		filter.RoomID = &id
	default:
		return filter, "", errBadTimetableArgs
	}

	return filter, fmt.Sprintf("%s %d", strings.ToUpper(kind[:1])+kind[1:], id), nil
}

// formatTimetable текстовый список по дням недели
func formatTimetable(title string, entries []*model.ScheduleEntry) string {
	var sb strings.Builder
	sb.WriteString("🗓 " + title + "\n")

	lastDay := 0
	for _, e := range entries {
		if e.Weekday != lastDay {
			sb.WriteString("\n" + timetable.Weekday(e.Weekday).String() + ":\n")
			lastDay = e.Weekday
		}
		sb.WriteString(fmt.Sprintf("  %s  course %d", e.SlotLabel(), e.CourseID))
		if e.TeacherID != nil {
			sb.WriteString(fmt.Sprintf(", teacher %d", *e.TeacherID))
		}
		if e.ClassID != nil {
			sb.WriteString(fmt.Sprintf(", class %d", *e.ClassID))
		}
		if e.RoomID != nil {
			sb.WriteString(fmt.Sprintf(", room %d", *e.RoomID))
		}
		if e.Location != nil {
			sb.WriteString(", " + *e.Location)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
