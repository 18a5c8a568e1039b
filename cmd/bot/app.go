package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zenorz/zenorz/cmd/bot/config"
	"github.com/zenorz/zenorz/cmd/bot/monitoring"
	"github.com/zenorz/zenorz/pkg/dataaccess"
	"github.com/zenorz/zenorz/pkg/guildfiles"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/request"
	"github.com/zenorz/zenorz/pkg/ticketing"
	"golang.org/x/time/rate"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for the health check.
	PathHealth = "/health"

	// PathLogin is the path that starts the OAuth flow.
	PathLogin = "/login"

	// PathOAuthCallback is the OAuth redirect path.
	PathOAuthCallback = "/oauth/callback"
)

// Free-text intake flood guard, per user across guilds.
const (
	intakeInterval = 20 * time.Second
	intakeBurst    = 3
)

// IApp is the interface for the application.
type IApp interface {
	// Log returns the logger.
	Log() *slog.Logger

	// Session returns the discord session.
	Session() *discordgo.Session

	// Lifecycle returns the ticket lifecycle.
	Lifecycle() *ticketing.Lifecycle

	// GuildDal returns the guild data access layer.
	GuildDal() dataaccess.GuildDal

	// TicketDal returns the ticket data access layer.
	TicketDal() dataaccess.TicketDal

	// Files returns the guild knowledge file store.
	Files() *guildfiles.Store

	// IntakeAllowed reports whether the user is within the free-text intake
	// rate limit, consuming one slot when they are.
	IntakeAllowed(userID string) bool

	// RegisterGuildCommands registers the slash commands for one guild.
	RegisterGuildCommands(guildID string) error
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan any

	// lifecycle is the ticket lifecycle.
	lifecycle *ticketing.Lifecycle

	// guildDal is the guild data access layer.
	guildDal dataaccess.GuildDal

	// ticketDal is the ticket data access layer.
	ticketDal dataaccess.TicketDal

	// files is the guild knowledge file store.
	files *guildfiles.Store

	// intakeMu guards intake.
	intakeMu sync.Mutex

	// intake is the per-user free-text intake limiter.
	intake map[string]*rate.Limiter
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		Logger: l,
		r:      r,
		intake: make(map[string]*rate.Limiter),
	}
}

func (a *App) Run() error {
	// The config is parsed by now, so the data access layer and the
	// lifecycle can be wired up.
	a.guildDal = dataaccess.NewGuildDal()
	a.ticketDal = dataaccess.NewTicketDal()
	a.files = guildfiles.NewStore(config.GuildDataDir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.ticketDal.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("error ensuring ticket indexes: %w", err)
	}

	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	a.lifecycle = ticketing.NewLifecycle(a.Log(), a.guildDal, a.ticketDal,
		newChannelProvisioner(a), newNotificationSink(a), ticketing.DefaultDeleteDelay)

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
	})

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	if err := a.RegisterDiscordHandlers(); err != nil {
		return fmt.Errorf("error registering discord handlers: %w", err)
	}

	// Start event listener.
	go a.eventListener()

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	a.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Process shutdown signal.
	for sig := range c {
		a.Info("Received shutdown signal", slog.String("signal", sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsAll)

	if a.eventNotifier == nil {
		// Create event notifier. This is used to runServer events. It is buffered to prevent blocking.
		a.eventNotifier = make(chan any, 100)
	}

	dg.SetEventNotifier(a.eventNotifier)

	a.s = dg
	return nil
}

func (a *App) runServer() {
	go func() {
		a.Info("Starting monitoring server")
		if err := a.svr.ListenAndServe(); err != nil {
			a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	// PathMetrics is the path for metrics.
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)

	// PathHealth is the path for health check.
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	// The OAuth boundary.
	a.r.HandleFunc(PathLogin, middlewareHttp(a.loginHandler(), a)).Methods(http.MethodGet)
	a.r.HandleFunc(PathOAuthCallback, middlewareHttp(a.oauthCallbackHandler(), a)).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Log())

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Log())
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:    ":" + config.MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "")
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() error {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Free-text ticket intake.
	a.s.AddHandler(messageIntakeHandler(a))

	// Interaction create handler.
	a.s.AddHandler(interactionHandler(a,
		// Slash commands
		map[string]commandHandler{
			setupCmd.Name:      setupCmdHandler,
			ticketCmd.Name:     ticketCmdHandler,
			uploadInfoCmd.Name: uploadInfoCmdHandler,
		},
		// Buttons
		map[string]commandHandler{
			CreateTicketButtonID:   createTicketHandler,
			AcceptTicketButtonID:   acceptTicketHandler,
			RejectTicketButtonID:   rejectTicketHandler,
			CloseTicketButtonID:    closeTicketHandler,
			EscalateTicketButtonID: escalateTicketHandler,
		},
		// Modals
		map[string]commandHandler{
			TicketQueryModalID:  ticketQueryModalHandler,
			RejectReasonModalID: rejectReasonModalHandler,
		}))
	return nil
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		switch t := e.(type) {
		case *discordgo.Event:
			if t.Type != "" {
				monitoring.TotalDiscordEvents.WithLabelValues(t.Type).Inc()
			} else {
				// If there is no type, then use the operation name.
				monitoring.TotalDiscordEvents.WithLabelValues(strings.ToUpper(t.Operation.String())).Inc()
			}
		default:
			a.Error("Unknown event type", slog.String("type", fmt.Sprintf("%T", e)))
			monitoring.TotalDiscordEvents.WithLabelValues("UNKNOWN").Inc()
		}
	}
}

// commands is the full slash command set registered per guild.
func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		setupCmd,
		ticketCmd,
		uploadInfoCmd,
	}
}

func (a *App) RegisterGuildCommands(guildID string) error {
	for _, cmd := range commands() {
		if _, err := a.Session().ApplicationCommandCreate(config.ApplicationId, guildID, cmd); err != nil {
			return fmt.Errorf("error creating %s command for guild %s: %w", cmd.Name, guildID, err)
		}
	}
	return nil
}

func (a *App) registerSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Register slash commands for each guild.
	for _, g := range guilds {
		if err := a.RegisterGuildCommands(g.ID); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Delete slash commands for each guild.
	for _, guild := range guilds {
		registered, err := a.s.ApplicationCommands(config.ApplicationId, guild.ID)
		if err != nil {
			return fmt.Errorf("error getting commands for guild %s: %w", guild.ID, err)
		}

		for _, cmd := range registered {
			if err := a.s.ApplicationCommandDelete(config.ApplicationId, guild.ID, cmd.ID); err != nil {
				return fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, guild.ID, err)
			}
		}
	}
	return nil
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Lifecycle() *ticketing.Lifecycle {
	return a.lifecycle
}

func (a *App) GuildDal() dataaccess.GuildDal {
	return a.guildDal
}

func (a *App) TicketDal() dataaccess.TicketDal {
	return a.ticketDal
}

func (a *App) Files() *guildfiles.Store {
	return a.files
}

func (a *App) IntakeAllowed(userID string) bool {
	a.intakeMu.Lock()
	defer a.intakeMu.Unlock()

	limiter, ok := a.intake[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(intakeInterval), intakeBurst)
		a.intake[userID] = limiter
	}
	return limiter.Allow()
}
