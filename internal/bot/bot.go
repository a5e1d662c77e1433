package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/config"
	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/service"
)

const webhookPath = "/bot"

// telegramAPI is the part of tgbotapi.BotAPI the handlers use.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services are the collaborators the transport dispatches into.
type Services struct {
	Session  *service.Session
	Roster   *service.RosterService
	Stats    *service.StatsService
	Workflow *service.Workflow
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Bot struct {
	api    telegramAPI
	botAPI *tgbotapi.BotAPI
	cfg    *config.Config
	svc    Services
	log    zerolog.Logger
	now    func() time.Time
	server *http.Server

	commands  map[string]command
	callbacks map[domain.CallbackAction]callbackHandler
}

func New(cfg *config.Config, svc Services, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(api, cfg, svc, log)
	b.botAPI = api
	b.log.Info().Str("username", api.Self.UserName).Msg("Authorized")

	b.setCommands()
	return b, nil
}

func newBot(api telegramAPI, cfg *config.Config, svc Services, log zerolog.Logger) *Bot {
	b := &Bot{
		api: api,
		cfg: cfg,
		svc: svc,
		log: log.With().Str("component", "bot").Logger(),
		now: time.Now,
	}
	b.commands = b.commandTable()
	b.callbacks = b.callbackTable()
	return b
}

// Admin commands stay out of the public menu.
func (b *Bot) setCommands() {
	cfg := tgbotapi.NewSetMyCommands(tgbotapi.BotCommand{Command: "start", Description: "Start"})
	if _, err := b.api.Request(cfg); err != nil {
		b.log.Warn().Err(err).Msg("Failed to set commands")
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.botAPI.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		b.log.Warn().Str("error", info.LastErrorMessage).Msg("Webhook last error")
	}

	b.log.Info().Str("url", webhookURL).Msg("Webhook set")
	return nil
}

// Handler serves health, metrics and the REST API. In webhook mode it
// also accepts updates and forwards them to updates.
func (b *Bot) Handler(updates chan<- tgbotapi.Update) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if b.svc.Metrics != nil {
		mux.Handle("/metrics", b.svc.Metrics)
	}

	b.setupAPI(mux)

	if updates != nil {
		mux.HandleFunc(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			update, err := b.botAPI.HandleUpdate(r)
			if err != nil {
				b.log.Warn().Err(err).Msg("Bad webhook update")
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			select {
			case updates <- *update:
			case <-r.Context().Done():
				b.log.Warn().Int("update_id", update.UpdateID).Msg("Dropped webhook update")
			}
		})
	}
	return mux
}

// Start serves HTTP and dispatches updates until ctx is done. Each update
// is handled on its own goroutine.
func (b *Bot) Start(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel
	var webhookUpdates chan tgbotapi.Update

	if b.cfg.UsesWebhook() {
		if err := b.SetupWebhook(); err != nil {
			return err
		}
		webhookUpdates = make(chan tgbotapi.Update, b.botAPI.Buffer)
		updates = webhookUpdates
	} else {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			b.log.Warn().Err(err).Msg("Failed to delete webhook")
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.botAPI.GetUpdatesChan(u)
	}

	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.Handler(webhookUpdates),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		b.log.Info().Str("port", b.cfg.ServerPort).Bool("webhook", b.cfg.UsesWebhook()).Msg("Starting HTTP server")
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.botAPI != nil && !b.cfg.UsesWebhook() {
		b.botAPI.StopReceivingUpdates()
	}
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// SendQuestion sends the daily yes/no prompt.
func (b *Bot) SendQuestion(chatID int64) error {
	return b.SendMessageWithKeyboard(chatID, textQuestion, questionKeyboard())
}
