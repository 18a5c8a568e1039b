package main

import (
	"errors"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/zenorz/zenorz/cmd/bot/monitoring"
	"github.com/zenorz/zenorz/pkg/messages"
	"github.com/zenorz/zenorz/pkg/ticketing"
)

func respondSlashError(a IApp, i *discordgo.InteractionCreate) error {
	return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
}

func respondEphemeral(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// actorFrom builds the acting member's identity for lifecycle authorization.
func actorFrom(i *discordgo.InteractionCreate) ticketing.Actor {
	actor := ticketing.Actor{}
	if i.Member != nil && i.Member.User != nil {
		actor.ID = i.Member.User.ID
		actor.RoleIDs = i.Member.Roles
		actor.Administrator = i.Member.Permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator
	}
	return actor
}

// userMessageFor maps a lifecycle error onto the message shown to the
// interacting user. Unknown errors get the generic response.
func userMessageFor(err error) string {
	dupErr := new(ticketing.DuplicateTicketError)
	quotaErr := new(ticketing.QuotaExceededError)

	switch {
	case errors.Is(err, ticketing.ErrSetupIncomplete):
		return messages.ErrUserNotSetup
	case errors.Is(err, ticketing.ErrNotAuthorized):
		return messages.ErrUserNotAuthorized
	case errors.Is(err, ticketing.ErrTicketNotFound):
		return messages.ErrUserNoPendingTicket
	case errors.As(err, &dupErr):
		return messages.ErrUserDuplicateTicket
	case errors.As(err, &quotaErr):
		return fmt.Sprintf("You have reached the limit of %d active tickets for this server. Please wait for one to be resolved.", quotaErr.Limit)
	default:
		return messages.ErrUserErrorProcessing
	}
}

// recordTransition tracks a lifecycle operation outcome in prometheus.
func recordTransition(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	monitoring.TicketTransitions.WithLabelValues(operation, outcome).Inc()
}
