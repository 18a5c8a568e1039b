package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/gorilla/mux"
	"github.com/zenorz/zenorz/cmd/bot/monitoring"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/request"
)

// commandHandler processes one interaction. Returned errors are logged and
// answered with the generic error response; user-facing refusals are the
// handler's own responsibility.
type commandHandler func(a IApp, i *discordgo.InteractionCreate) error

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(handler Controller, a IApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
				)
				cw.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(cw).Encode(request.NewMessage(request.ErrInternalServer.Error())); err != nil {
					a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Log().Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		defer func() {
			// Run the deferred function after the request has been handled, as the status code will not be available until then.
			monitoring.HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			monitoring.HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// customIDTag returns the dispatch key of a component or modal custom ID.
// Custom IDs are "action" or "action:targetUserId"; the tag is the action.
func customIDTag(customID string) string {
	if idx := strings.Index(customID, ":"); idx >= 0 {
		return customID[:idx]
	}
	return customID
}

// customIDTarget returns the target user ID carried in a component or modal
// custom ID, or "" when there is none.
func customIDTarget(customID string) string {
	if idx := strings.Index(customID, ":"); idx >= 0 {
		return customID[idx+1:]
	}
	return ""
}

// interactionHandler routes interactions to their handler by slash command
// name, button custom ID tag, or modal custom ID tag.
func interactionHandler(a IApp, slash, buttons, modals map[string]commandHandler) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		var (
			name    string
			handler commandHandler
		)

		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			name = i.ApplicationCommandData().Name
			handler = slash[name]
		case discordgo.InteractionMessageComponent:
			name = customIDTag(i.MessageComponentData().CustomID)
			handler = buttons[name]
		case discordgo.InteractionModalSubmit:
			name = customIDTag(i.ModalSubmitData().CustomID)
			handler = modals[name]
		default:
			return
		}

		if handler == nil {
			a.Log().Error("No handler found for interaction", slog.String("interaction", name))
			if err := respondSlashError(a, i); err != nil {
				a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
			}
			return
		}

		a.Log().Debug("Handling interaction " + name)

		t := time.Now().UTC()
		defer func() {
			monitoring.DiscordCommandDuration.WithLabelValues(name).Observe(time.Since(t).Seconds())
		}()

		if err := handler(a, i); err != nil {
			a.Log().Error(fmt.Sprintf("Error processing interaction %s", name),
				slog.String(logging.KeyError, err.Error()))

			if err := respondSlashError(a, i); err != nil {
				a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
			}
		}
	}
}
