package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gopkg.in/telebot.v4"

	"github.com/IT-Nick/assessbot/internal/app/handlers/http/active_sessions_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/http/generate_test_link_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/http/result_report_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/http/update_user_token_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/answer_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/conflict_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/details_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/finish_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/flow"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/middleware"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/nav_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/render"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/start_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/start_test_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/text_handler"
	"github.com/IT-Nick/assessbot/internal/app/handlers/telegram/token_handler"
	"github.com/IT-Nick/assessbot/internal/domain/assessment/registry"
	assessmentService "github.com/IT-Nick/assessbot/internal/domain/assessment/service"
	"github.com/IT-Nick/assessbot/internal/domain/model"
	resultsRepo "github.com/IT-Nick/assessbot/internal/domain/results/repository"
	"github.com/IT-Nick/assessbot/internal/domain/users/repository"
	"github.com/IT-Nick/assessbot/internal/domain/users/service"
	"github.com/IT-Nick/assessbot/internal/infra/backend"
	"github.com/IT-Nick/assessbot/internal/infra/config"
	"github.com/IT-Nick/assessbot/internal/infra/logger"
	"github.com/IT-Nick/assessbot/internal/infra/poller"
	"github.com/IT-Nick/assessbot/internal/infra/report"
	httpResponse "github.com/IT-Nick/assessbot/pkg/http"
)

const textHelp = "Команды:\n" +
	"/tests - список доступных тестов\n" +
	"/token ТОКЕН - привязать аккаунт платформы\n\n" +
	"Во время теста отвечайте кнопками или сообщением. Таймер идет на сервере, " +
	"по его истечении тест будет отправлен автоматически."

type Services struct {
	userService       *service.UserService
	assessmentService *assessmentService.AssessmentService
	results           *resultsRepo.ResultRepository
	reports           *report.Generator
}

type App struct {
	config   *config.Config
	logger   *zap.Logger
	bot      *telebot.Bot
	db       *pgxpool.Pool
	server   *http.Server
	registry *registry.Registry
	flow     *flow.Flow

	Services
}

func NewApp(configPath string) (*App, error) {
	configImpl, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config.LoadConfig: %w", err)
	}

	log, err := logger.New(configImpl.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger.New: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := InitDatabase(ctx, configImpl, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		config:   configImpl,
		logger:   log,
		db:       db,
		registry: registry.New(),
	}

	app.initServices()

	return app, nil
}

// Функция для инициализации сервисов и репозиториев
func (app *App) initServices() {
	// Инициализация репозиториев
	userRepo := repository.NewUserRepository(app.db)
	app.results = resultsRepo.NewResultRepository(app.db)
	app.reports = report.NewGenerator(app.config.Report.FontDir)

	client := backend.NewClient(app.config.Backend.BaseURL, app.config.Backend.Timeout, app.logger)

	// Инициализация сервисов
	app.userService = service.NewUserService(userRepo)
	app.assessmentService = assessmentService.NewAssessmentService(client, app.results, app.logger)
}

// ListenAndServeTelegram запускает Telegram бота
func (app *App) ListenAndServeTelegram() error {
	p, err := poller.New(poller.Settings{
		Mode:        app.config.TelegramBot.Mode,
		PollTimeout: app.config.TelegramBot.PollTimeout,
		WebhookURL:  app.config.TelegramBot.WebhookURL,
		ListenAddr:  app.config.TelegramBot.ListenAddr,
	})
	if err != nil {
		return fmt.Errorf("poller.New: %w", err)
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  app.config.TelegramBot.Token,
		Poller: p,
		OnError: func(err error, c telebot.Context) {
			app.logger.Error("telegram handler failed", zap.Error(err))
		},
	})
	if err != nil {
		return fmt.Errorf("telebot.NewBot: %w", err)
	}
	app.bot = bot

	app.flow = flow.New(bot, app.assessmentService, app.userService, app.registry, flow.Options{
		TickInterval: app.config.Assessment.TickInterval,
		ResyncEvery:  app.config.Assessment.ResyncEvery,
		TimerRefresh: app.config.TelegramBot.TimerRefresh,
	}, app.logger)

	app.bootstrapHandlersTelegram()

	go app.bot.Start()

	app.logger.Info("telegram bot started",
		zap.String("username", bot.Me.Username),
		zap.String("mode", app.config.TelegramBot.Mode))
	return nil
}

// bootstrapHandlersTelegram - регистрирует обработчики для бота
func (app *App) bootstrapHandlersTelegram() {
	app.bot.Use(
		middleware.Recover(app.logger, func(err error, c telebot.Context) {
			app.logger.Error("recovered from panic", zap.Error(err), zap.String("action", middleware.Action(c)))
			_ = c.Send(render.TextTemporary)
		}),
		middleware.Logger(app.logger, app.config.TelegramBot.Debug),
	)
	if app.config.TelegramBot.Debug {
		app.bot.Use(middleware.DebugUserActions(true, app.registry))
	}

	app.bot.Handle("/start", start_handler.NewStartHandler(app.userService, app.flow, app.logger).GetHandlerFunc())
	app.bot.Handle("/token", token_handler.NewTokenHandler(app.userService, app.flow, app.logger).GetHandlerFunc())
	app.bot.Handle("/tests", func(c telebot.Context) error {
		userCtx, err := app.flow.UserContext(context.Background(), c.Sender().ID)
		if err != nil {
			return c.Send(flow.UserMessage(err), telebot.ModeHTML)
		}
		return app.flow.SendMenu(userCtx, c.Sender().ID)
	})
	app.bot.Handle("/help", func(c telebot.Context) error {
		return c.Send(textHelp)
	})

	// Inline-кнопки. Ключи в model/buttons.go, данные формирует пакет render.
	app.bot.Handle(&telebot.Btn{Unique: model.StartTestKey}, start_test_handler.NewStartTestHandler(app.flow).GetHandlerFunc())
	app.bot.Handle(&telebot.Btn{Unique: model.ConflictKey}, conflict_handler.NewConflictHandler(app.flow, app.logger).GetHandlerFunc())
	app.bot.Handle(&telebot.Btn{Unique: model.AnswerKey}, answer_handler.NewAnswerHandler(app.flow).GetHandlerFunc())
	app.bot.Handle(&telebot.Btn{Unique: model.NavigationKey}, nav_handler.NewNavHandler(app.flow).GetHandlerFunc())
	app.bot.Handle(&telebot.Btn{Unique: model.FinishKey}, finish_handler.NewFinishHandler(app.flow, app.logger).GetHandlerFunc())
	app.bot.Handle(&telebot.Btn{Unique: model.DetailsKey}, details_handler.NewDetailsHandler(app.flow, app.reports, app.logger).GetHandlerFunc())

	// Текстовые ответы: multi_choice, free_text, code
	app.bot.Handle(telebot.OnText, text_handler.NewTextHandler(app.flow).GetHandlerFunc())
}

// Router маршруты служебного HTTP API
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", app.health).Methods(http.MethodGet)
	r.Handle("/sessions/active", active_sessions_handler.NewActiveSessionsHandler(app.registry)).Methods(http.MethodGet)
	r.Handle("/results/{assessment_id}", result_report_handler.NewResultReportHandler(app.results, app.logger)).Methods(http.MethodGet)
	r.Handle("/results/{assessment_id}/report.pdf", result_report_handler.NewResultPDFHandler(app.results, app.reports, app.logger)).Methods(http.MethodGet)
	r.Handle("/users/token", update_user_token_handler.NewUpdateUserTokenHandler(app.userService, app.logger)).Methods(http.MethodPost)
	r.Handle("/tests/link", generate_test_link_handler.NewGenerateTestLinkHandler(app.config.TelegramBot.Username, app.logger)).Methods(http.MethodPost)
	r.Handle("/tests/{id:[0-9]+}/qr.png", generate_test_link_handler.NewQRCodeHandler(app.config.TelegramBot.Username)).Methods(http.MethodGet)

	return r
}

func (app *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := app.db.Ping(ctx); err != nil {
		httpResponse.ErrorResponse(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	httpResponse.JSONResponse(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": app.registry.Len(),
	})
}

// ListenAndServeHTTP запускает HTTP сервер
func (app *App) ListenAndServeHTTP() error {
	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", app.config.Server.Host, app.config.Server.Port),
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	app.logger.Info("http server started", zap.String("addr", app.server.Addr))
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe запускает оба сервера (Telegram и HTTP)
func (app *App) ListenAndServe() error {
	// Запускаем Telegram бота
	if err := app.ListenAndServeTelegram(); err != nil {
		return fmt.Errorf("failed to start Telegram bot: %w", err)
	}

	// Запускаем HTTP сервер
	if err := app.ListenAndServeHTTP(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown останавливает прием обновлений и таймеры. Незавершенные сессии
// остаются на сервере и продолжаются при следующем старте теста.
func (app *App) Shutdown(ctx context.Context) error {
	if app.bot != nil {
		app.bot.Stop()
	}
	app.registry.StopAll()

	var err error
	if app.server != nil {
		err = app.server.Shutdown(ctx)
	}
	app.db.Close()
	_ = app.logger.Sync()
	return err
}
