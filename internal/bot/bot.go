package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timetrace/internal/model"
	"timetrace/internal/service"
)

type conversationKind int

const (
	kindSchedule conversationKind = iota
	kindBirthday
	kindRoutine
)

type conversationStage int

const (
	stageTitle conversationStage = iota
	stageDate
	stageTime
	stagePriority
	stageLunar
	stageWeekdays
)

const (
	cbCompletePrefix      = "complete:"
	cbDeletePrefix        = "delete:"
	cbDeleteRoutinePrefix = "rmroutine:"
	cbRegeneratePrefix    = "regen:"
	cbDeleteAnchorPrefix  = "rmanchor:"
)

const (
	btnSkip   = "⏭ Skip"
	btnCancel = "⏪ Cancel"
	btnYes    = "Yes"
	btnNo     = "No"

	menuLabelAdd       = "➕ New event"
	menuLabelToday     = "📋 Agenda"
	menuLabelBirthdays = "🎂 Birthdays"
	menuLabelHelp      = "ℹ️ Help"
)

type conversationState struct {
	kind  conversationKind
	stage conversationStage

	title    string
	date     time.Time
	hour     int
	minute   int
	priority int
	weekdays []int
}

// Bot aggregates the Telegram API with the tracker services. It is both the
// interactive front end and the widget layer: /widget posts a summary message
// that the debounced refresh keeps edited in place.
type Bot struct {
	api         *tgbotapi.BotAPI
	scheduleSvc *service.ScheduleService
	routineSvc  *service.RoutineService
	summarySvc  *service.SummaryService
	diarySvc    *service.DiaryService

	mu            sync.Mutex
	conversations map[int64]*conversationState
	widgets       map[int64]int // chat id -> widget message id
}

func New(token string, scheduleSvc *service.ScheduleService, routineSvc *service.RoutineService, summarySvc *service.SummaryService, diarySvc *service.DiaryService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		scheduleSvc:   scheduleSvc,
		routineSvc:    routineSvc,
		summarySvc:    summarySvc,
		diarySvc:      diarySvc,
		conversations: make(map[int64]*conversationState),
		widgets:       make(map[int64]int),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

// RefreshWidgets re-renders every registered widget message with the current
// snapshot. It is the debounced refresh callback of the aggregator.
func (b *Bot) RefreshWidgets() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b.mu.Lock()
	targets := make(map[int64]int, len(b.widgets))
	for chatID, msgID := range b.widgets {
		targets[chatID] = msgID
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	text, err := b.summarySvc.WidgetSummary(ctx, time.Now())
	if err != nil {
		log.Printf("widget refresh: %v", err)
		return
	}
	for chatID, msgID := range targets {
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err != nil {
			log.Printf("widget refresh for %d: %v", chatID, err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Try /add to create an event, or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.startConversation(msg, kindSchedule, "🆕 New event.\n<b>Step 1:</b> what's it called?")
	case "birthday":
		return b.startConversation(msg, kindBirthday, "🎂 New birthday.\n<b>Step 1:</b> whose is it?")
	case "routine":
		return b.startConversation(msg, kindRoutine, "🔄 New routine.\n<b>Step 1:</b> what's it called?")
	case "upcoming":
		return b.handleUpcoming(ctx, msg)
	case "today":
		return b.handleAgenda(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "birthdays":
		return b.handleBirthdays(ctx, msg)
	case "routines":
		return b.handleRoutines(ctx, msg)
	case "diary":
		return b.handleDiary(ctx, msg)
	case "widget":
		return b.handleWidget(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep track of your schedule: events, routines and birthdays.</b>\n\nCommands:\n"+
			"• /add — add a one-off event\n"+
			"• /routine — add a weekly routine\n"+
			"• /birthday — add a birthday (solar or lunar)\n"+
			"• /upcoming — everything still ahead\n"+
			"• /today — agenda grouped by day\n"+
			"• /done — completed entries\n"+
			"• /birthdays — upcoming birthdays\n"+
			"• /routines — manage routines\n"+
			"• /diary [text] — today's journal entry\n"+
			"• /widget — pin a live summary message\n"+
			"• /cancel — abort the current dialog",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Hints</b>\n" +
		"• /add walks you through title, date, time and priority\n" +
		"• /routine takes weekdays like <code>mon,wed,fri</code> or <code>1,3,5</code>\n" +
		"• /birthday stores the anchor date; you'll see it re-projected every year\n" +
		"• Tap ✅ on a list entry to toggle completion, 🗑 to delete it\n" +
		"• /widget posts a summary that keeps itself up to date"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startConversation(msg *tgbotapi.Message, kind conversationKind, prompt string) error {
	b.setConversation(msg.From.ID, &conversationState{kind: kind, stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, prompt, cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "A name is required.", cancelKeyboard())
		}
		state.title = text
		if state.kind == kindRoutine {
			state.stage = stageWeekdays
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Which weekdays? e.g. <code>mon,wed,fri</code> or <code>1,3,5</code> (Mon=1 … Sun=7).", cancelKeyboard())
		}
		state.stage = stageDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "🗓 Date in the form <code>2026-09-15</code>.", cancelKeyboard())

	case stageDate:
		parsed, err := time.ParseInLocation("2006-01-02", text, time.Local)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "I can't read that date. Use <code>2026-09-15</code>.", cancelKeyboard())
		}
		state.date = parsed
		if state.kind == kindBirthday {
			state.stage = stageLunar
			return b.sendWithReplyMarkup(msg.Chat.ID, "🌙 Is this a lunar-calendar date?", yesNoKeyboard())
		}
		state.stage = stageTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Time as <code>HH:MM</code>, or Skip for 09:00.", skipKeyboard())

	case stageTime:
		hour, minute := 9, 0
		if !isSkipInput(text) {
			var err error
			hour, minute, err = parseClock(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Use <code>HH:MM</code>, e.g. <code>07:30</code>.", skipKeyboard())
			}
		}
		state.hour, state.minute = hour, minute
		if state.kind == kindRoutine {
			return b.finishRoutine(ctx, msg, state)
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "❗ Priority 1 (low) … 3 (high), or Skip.", skipKeyboard())

	case stagePriority:
		priority := 1
		if !isSkipInput(text) {
			p, err := strconv.Atoi(text)
			if err != nil || p < 1 || p > 3 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Priority must be 1, 2 or 3.", skipKeyboard())
			}
			priority = p
		}
		state.priority = priority
		return b.finishSchedule(ctx, msg, state)

	case stageLunar:
		switch strings.ToLower(text) {
		case strings.ToLower(btnYes), "yes", "y":
			return b.finishBirthday(ctx, msg, state, true)
		case strings.ToLower(btnNo), "no", "n":
			return b.finishBirthday(ctx, msg, state, false)
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Tap Yes or No.", yesNoKeyboard())
		}

	case stageWeekdays:
		weekdays, err := parseWeekdays(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Use weekday names or numbers, e.g. <code>mon,fri</code> or <code>1,5</code>.", cancelKeyboard())
		}
		state.weekdays = weekdays
		state.stage = stageTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ At what time? <code>HH:MM</code>, or Skip for 09:00.", skipKeyboard())

	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try again with /add.")
	}
}

func (b *Bot) finishSchedule(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	defer b.clearConversation(msg.From.ID)

	ts := time.Date(state.date.Year(), state.date.Month(), state.date.Day(), state.hour, state.minute, 0, 0, time.Local)
	schedule, err := b.scheduleSvc.AddSchedule(ctx, service.ScheduleInput{
		Title:     state.title,
		Timestamp: ts,
		Priority:  state.priority,
	})
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("Couldn't save the event: %s", escape(err.Error())))
	}

	log.Printf("[info] schedule created id=%d", schedule.ID)
	return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf(
		"✅ <b>Saved</b>\n• #%d %s\n• %s",
		schedule.ID, escape(schedule.Title), schedule.Timestamp.Format("2006-01-02 15:04")))
}

func (b *Bot) finishBirthday(ctx context.Context, msg *tgbotapi.Message, state *conversationState, isLunar bool) error {
	defer b.clearConversation(msg.From.ID)

	schedule, err := b.scheduleSvc.AddBirthday(ctx, state.title, state.date, isLunar)
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("Couldn't save the birthday: %s", escape(err.Error())))
	}

	calKind := "solar"
	if isLunar {
		calKind = "lunar"
	}
	log.Printf("[info] birthday created id=%d lunar=%t", schedule.ID, isLunar)
	return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf(
		"🎂 <b>Saved</b>\n• %s\n• %s (%s)",
		escape(schedule.Title), state.date.Format("2006-01-02"), calKind))
}

func (b *Bot) finishRoutine(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	defer b.clearConversation(msg.From.ID)

	routine, err := b.routineSvc.AddRoutine(ctx, service.RoutineInput{
		Title:    state.title,
		Weekdays: state.weekdays,
		Hour:     state.hour,
		Minute:   state.minute,
	}, time.Now())
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("Couldn't save the routine: %s", escape(err.Error())))
	}

	log.Printf("[info] routine created id=%d weekdays=%v", routine.ID, routine.Weekdays)
	return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf(
		"🔄 <b>Saved</b>\n• %s\n• %s at %02d:%02d\nOccurrences are planned for the next weeks.",
		escape(routine.Title), weekdayNames(routine.Weekdays), routine.Hour, routine.Minute))
}

func (b *Bot) handleUpcoming(ctx context.Context, msg *tgbotapi.Message) error {
	schedules, err := b.scheduleSvc.Upcoming(ctx, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't load schedules: %s", escape(err.Error())))
	}
	if len(schedules) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing ahead. Add something with /add.")
	}

	var builder strings.Builder
	builder.WriteString("⏳ <b>Upcoming</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, sc := range schedules {
		builder.WriteString(formatScheduleLine(sc))
		buttons = append(buttons, scheduleButtons(sc))
	}
	return b.sendWithInline(msg.Chat.ID, builder.String(), buttons)
}

func (b *Bot) handleAgenda(ctx context.Context, msg *tgbotapi.Message) error {
	groups, err := b.scheduleSvc.ByDate(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't load the agenda: %s", escape(err.Error())))
	}
	if len(groups) == 0 {
		return b.sendText(msg.Chat.ID, "The agenda is empty. Add something with /add.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Agenda</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, group := range groups {
		builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", group.Date.Format("Mon, 02 Jan")))
		for _, sc := range group.Schedules {
			builder.WriteString(formatScheduleLine(sc))
			buttons = append(buttons, scheduleButtons(sc))
		}
	}
	return b.sendWithInline(msg.Chat.ID, builder.String(), buttons)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	schedules, err := b.scheduleSvc.Completed(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't load completed entries: %s", escape(err.Error())))
	}
	if len(schedules) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing completed yet.")
	}

	var builder strings.Builder
	builder.WriteString("✅ <b>Completed</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, sc := range schedules {
		builder.WriteString(formatScheduleLine(sc))
		buttons = append(buttons, scheduleButtons(sc))
	}
	return b.sendWithInline(msg.Chat.ID, builder.String(), buttons)
}

func (b *Bot) handleBirthdays(ctx context.Context, msg *tgbotapi.Message) error {
	occurrences, err := b.scheduleSvc.BirthdaysUpcoming(ctx, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't load birthdays: %s", escape(err.Error())))
	}
	if len(occurrences) == 0 {
		return b.sendText(msg.Chat.ID, "No birthdays recorded. Add one with /birthday.")
	}

	var builder strings.Builder
	builder.WriteString("🎂 <b>Upcoming birthdays</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, occ := range occurrences {
		marker := ""
		if occ.Anchor.IsLunar {
			marker = " 🌙"
		}
		builder.WriteString(fmt.Sprintf("• %s — %s%s\n",
			escape(occ.Anchor.Title), occ.Time.Format("Mon, 02 Jan 2006"), marker))
		// Projections can only be removed through their anchor row.
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %s", shortTitle(occ.Anchor.Title, 20)),
				fmt.Sprintf("%s%d", cbDeleteAnchorPrefix, occ.Anchor.ID)),
		})
	}
	return b.sendWithInline(msg.Chat.ID, builder.String(), buttons)
}

func (b *Bot) handleRoutines(ctx context.Context, msg *tgbotapi.Message) error {
	routines, err := b.routineSvc.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't load routines: %s", escape(err.Error())))
	}
	if len(routines) == 0 {
		return b.sendText(msg.Chat.ID, "No routines yet. Add one with /routine.")
	}

	var builder strings.Builder
	builder.WriteString("🔄 <b>Routines</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, r := range routines {
		builder.WriteString(fmt.Sprintf("• <b>#%d</b> %s — %s at %02d:%02d\n",
			r.ID, escape(r.Title), weekdayNames(r.Weekdays), r.Hour, r.Minute))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("↻ #%d extend", r.ID), fmt.Sprintf("%s%d", cbRegeneratePrefix, r.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbDeleteRoutinePrefix, r.ID)),
		})
	}
	return b.sendWithInline(msg.Chat.ID, builder.String(), buttons)
}

func (b *Bot) handleDiary(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	now := time.Now()

	if args == "" {
		diary, err := b.diarySvc.Get(ctx, now)
		if err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't load the diary: %s", escape(err.Error())))
		}
		if diary == nil {
			return b.sendText(msg.Chat.ID, "No entry for today. Write one with /diary your text.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("📔 <b>%s</b>\n%s",
			diary.Date.Format("Mon, 02 Jan"), escape(diary.Content)))
	}

	if _, err := b.diarySvc.Save(ctx, now, args, nil); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't save the entry: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, "📔 Saved today's entry.")
}

func (b *Bot) handleWidget(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.summarySvc.WidgetSummary(ctx, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Couldn't build the summary: %s", escape(err.Error())))
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	sent, err := b.api.Send(out)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.widgets[msg.Chat.ID] = sent.MessageID
	b.mu.Unlock()
	log.Printf("[info] widget registered chat=%d msg=%d", msg.Chat.ID, sent.MessageID)
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		id, err := parseID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		schedule, err := b.scheduleSvc.ToggleCompletion(ctx, id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return b.sendText(chatID, "That entry no longer exists.")
			}
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		if schedule.IsCompleted {
			return b.sendText(chatID, fmt.Sprintf("✅ «%s» done.", escape(schedule.Title)))
		}
		return b.sendText(chatID, fmt.Sprintf("↩️ «%s» reopened.", escape(schedule.Title)))

	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		if err := b.scheduleSvc.Delete(ctx, id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return b.sendText(chatID, "That entry no longer exists.")
			}
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		return b.sendText(chatID, "🗑 Deleted.")

	case strings.HasPrefix(data, cbDeleteAnchorPrefix):
		id, err := parseID(data, cbDeleteAnchorPrefix)
		if err != nil {
			return nil
		}
		if err := b.scheduleSvc.Delete(ctx, id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return b.sendText(chatID, "That birthday no longer exists.")
			}
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		return b.sendText(chatID, "🗑 Birthday removed.")

	case strings.HasPrefix(data, cbDeleteRoutinePrefix):
		id, err := parseID(data, cbDeleteRoutinePrefix)
		if err != nil {
			return nil
		}
		if err := b.routineSvc.DeleteRoutine(ctx, id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return b.sendText(chatID, "That routine no longer exists.")
			}
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		return b.sendText(chatID, "🗑 Routine and its occurrences deleted.")

	case strings.HasPrefix(data, cbRegeneratePrefix):
		id, err := parseID(data, cbRegeneratePrefix)
		if err != nil {
			return nil
		}
		if err := b.routineSvc.Regenerate(ctx, id, time.Now()); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return b.sendText(chatID, "That routine no longer exists.")
			}
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		return b.sendText(chatID, "↻ Occurrences re-planned for a fresh horizon.")

	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelAdd:
		return true, b.startConversation(msg, kindSchedule, "🆕 New event.\n<b>Step 1:</b> what's it called?")
	case menuLabelToday:
		return true, b.handleAgenda(ctx, msg)
	case menuLabelBirthdays:
		return true, b.handleBirthdays(ctx, msg)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithInline(chatID int64, text string, buttons [][]tgbotapi.InlineKeyboardButton) error {
	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(text))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func formatScheduleLine(sc model.Schedule) string {
	icon := "🟢"
	switch {
	case sc.IsFromRoutine:
		icon = "🔄"
	case sc.Priority == 3:
		icon = "🔴"
	case sc.Priority == 2:
		icon = "🟡"
	}
	line := fmt.Sprintf("%s <b>#%d</b> %s · %s\n",
		icon, sc.ID, escape(strings.TrimSpace(sc.Title)), sc.Timestamp.Local().Format("02 Jan 15:04"))
	if sc.Notes != "" {
		line += fmt.Sprintf("   📝 %s\n", escape(sc.Notes))
	}
	return line
}

func scheduleButtons(sc model.Schedule) []tgbotapi.InlineKeyboardButton {
	return []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("✅ #%d · %s", sc.ID, shortTitle(sc.Title, 18)),
			fmt.Sprintf("%s%d", cbCompletePrefix, sc.ID)),
		tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, sc.ID)),
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAdd),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelBirthdays),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel"
}

func parseID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseClock(text string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", text)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", text)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", text)
	}
	return hour, minute, nil
}

var weekdayAliases = map[string]int{
	"mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6, "sun": 7,
}

func parseWeekdays(text string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(text, ",") {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		if wd, ok := weekdayAliases[token]; ok {
			out = append(out, wd)
			continue
		}
		if len(token) > 3 {
			if wd, ok := weekdayAliases[token[:3]]; ok {
				out = append(out, wd)
				continue
			}
		}
		wd, err := strconv.Atoi(token)
		if err != nil || wd < 1 || wd > 7 {
			return nil, fmt.Errorf("bad weekday %q", part)
		}
		out = append(out, wd)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weekdays in %q", text)
	}
	sort.Ints(out)
	return out, nil
}

var weekdayShort = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func weekdayNames(weekdays []int) string {
	names := make([]string, 0, len(weekdays))
	for _, wd := range weekdays {
		if wd >= 1 && wd <= 7 {
			names = append(names, weekdayShort[wd-1])
		}
	}
	return strings.Join(names, ", ")
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
