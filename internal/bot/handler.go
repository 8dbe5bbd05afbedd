package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eliseohh/tagstickerbot/internal/dialogue"
	"github.com/eliseohh/tagstickerbot/internal/store"
	tele "gopkg.in/telebot.v3"
)

type Bot struct {
	api     *tele.Bot
	db      *store.DB
	dlg     *dialogue.Controller
	cfg     Config
	log     *slog.Logger
	limiter *keyedLimiter

	// base is the context store calls derive from; cancelled on shutdown.
	base context.Context
	// answer sends an inline answer. Replaced in tests.
	answer func(c tele.Context, a inlineAnswer) error
}

type Config struct {
	Token       string
	PollTimeout time.Duration
	PageSize    int
	InlineRate  float64
	InlineBurst int
}

func New(cfg Config, db *store.DB, log *slog.Logger) (*Bot, error) {
	bot := newBot(cfg, db, log)

	pref := tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: bot.onError,
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot.api = b
	bot.answer = bot.answerRaw
	bot.register()
	return bot, nil
}

func newBot(cfg Config, db *store.DB, log *slog.Logger) *Bot {
	return &Bot{
		db:      db,
		dlg:     dialogue.New(db),
		cfg:     cfg,
		log:     log,
		limiter: newKeyedLimiter(cfg.InlineRate, cfg.InlineBurst),
		base:    context.Background(),
	}
}

// Start polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.base = ctx
	go func() {
		<-ctx.Done()
		b.api.Stop()
	}()

	b.log.Info("bot_started", slog.String("username", b.api.Me.Username))
	b.api.Start()
}

func (b *Bot) register() {
	b.api.Handle("/start", b.handleStart)
	b.api.Handle("/cancel", b.handleCancel)
	b.api.Handle("/status", b.handleStatus)

	b.api.Handle(tele.OnSticker, b.handleSticker)
	b.api.Handle(tele.OnText, b.handleText)
	b.api.Handle(tele.OnQuery, b.handleQuery)
}

func (b *Bot) handleStart(c tele.Context) error {
	return b.reply(c, b.dlg.Start(b.base, c.Sender().ID), nil)
}

func (b *Bot) handleCancel(c tele.Context) error {
	return b.reply(c, b.dlg.Cancel(b.base, c.Sender().ID), nil)
}

func (b *Bot) handleSticker(c tele.Context) error {
	st := c.Message().Sticker
	if st == nil {
		return nil
	}
	replies, err := b.dlg.Sticker(b.base, c.Sender().ID, store.Sticker{
		FileID: st.FileID,
		Emoji:  st.Emoji,
	})
	return b.reply(c, replies, err)
}

func (b *Bot) handleText(c tele.Context) error {
	replies, err := b.dlg.Text(b.base, c.Sender().ID, c.Message().Text)
	return b.reply(c, replies, err)
}

// /status: the sender's collection size
func (b *Bot) handleStatus(c tele.Context) error {
	st, err := b.db.Stats(b.base, c.Sender().ID)
	if err != nil {
		b.log.Error("status_failed", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
		return c.Send("Sorry, something went wrong. Please try again later.")
	}
	return c.Send(fmt.Sprintf("Stickers: %d\nTags: %d", st.Stickers, st.Tags))
}

// reply sends the dialogue replies in order. err is logged, never shown:
// the controller already swapped in a generic notice.
func (b *Bot) reply(c tele.Context, replies []dialogue.Reply, err error) error {
	if err != nil {
		b.log.Error("dialogue_failed", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}
	for _, r := range replies {
		if err := c.Send(r.Text, sendOptions(r)); err != nil {
			return err
		}
	}
	return nil
}

func sendOptions(r dialogue.Reply) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if r.HTML {
		opts.ParseMode = tele.ModeHTML
	}

	switch {
	case len(r.Keyboard) > 0:
		markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
		row := make([]tele.Btn, len(r.Keyboard))
		for i, label := range r.Keyboard {
			row[i] = markup.Text(label)
		}
		markup.Reply(markup.Row(row...))
		opts.ReplyMarkup = markup
	case r.RemoveKeyboard:
		opts.ReplyMarkup = &tele.ReplyMarkup{RemoveKeyboard: true}
	}
	return opts
}

// onError logs transport and handler errors with the update that caused them.
func (b *Bot) onError(err error, c tele.Context) {
	attrs := []any{slog.Any("error", err)}
	if c != nil {
		attrs = append(attrs, slog.Int("update_id", c.Update().ID))
		if u := c.Sender(); u != nil {
			attrs = append(attrs, slog.Int64("user_id", u.ID))
		}
	}
	b.log.Error("update_failed", attrs...)
}
