package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zenorz/zenorz/cmd/bot/config"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/request"
	"golang.org/x/oauth2"
)

const (
	// discordAPIBase is the base URL for the Discord HTTP API.
	discordAPIBase = "https://discord.com/api"

	// oauthStateCookie carries the OAuth state between login and callback.
	oauthStateCookie = "oauth_state"
)

// discordEndpoint is the Discord OAuth2 endpoint.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: discordAPIBase + "/oauth2/token",
}

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.ApplicationId,
		ClientSecret: config.ClientSecret,
		Endpoint:     discordEndpoint,
		RedirectURL:  config.RedirectUri,
		Scopes:       []string{"identify"},
	}
}

// loginHandler redirects the browser into the Discord OAuth flow.
func (a *App) loginHandler() Controller {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := randomState()
		if err != nil {
			a.Log().Error("Error generating OAuth state", slog.String(logging.KeyError, err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(request.NewMessage(request.ErrInternalServer.Error()))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   300,
			HttpOnly: true,
		})

		http.Redirect(w, r, oauthConfig().AuthCodeURL(state), http.StatusTemporaryRedirect)
	}
}

// oauthCallbackHandler completes the OAuth flow and reports the
// authenticated Discord user.
func (a *App) oauthCallbackHandler() Controller {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(oauthStateCookie)
		if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(request.NewMessage("Invalid OAuth state"))
			return
		}

		token, err := oauthConfig().Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			a.Log().Error("Error exchanging OAuth code", slog.String(logging.KeyError, err.Error()))
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(request.NewMessage("OAuth exchange failed"))
			return
		}

		user, err := fetchOAuthUser(r, token)
		if err != nil {
			a.Log().Error("Error fetching authenticated user", slog.String(logging.KeyError, err.Error()))
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(request.NewMessage("Error fetching authenticated user"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(user); err != nil {
			a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
		}
	}
}

// oauthUser is the subset of the Discord user object the callback reports.
type oauthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func fetchOAuthUser(r *http.Request, token *oauth2.Token) (*oauthUser, error) {
	client := oauthConfig().Client(r.Context(), token)

	resp, err := client.Get(discordAPIBase + "/users/@me")
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d getting user", resp.StatusCode)
	}

	user := new(oauthUser)
	if err := json.NewDecoder(resp.Body).Decode(user); err != nil {
		return nil, fmt.Errorf("error decoding user: %w", err)
	}
	return user, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
