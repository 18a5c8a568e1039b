package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/messages"
	"github.com/zenorz/zenorz/pkg/ticketing"
)

const (
	// CreateTicketButtonID is the ID for the create ticket button.
	CreateTicketButtonID = "create_ticket"

	// AcceptTicketButtonID is the ID tag for the accept ticket button. The
	// full custom ID carries the target user, "accept_ticket:<userId>".
	AcceptTicketButtonID = "accept_ticket"

	// RejectTicketButtonID is the ID tag for the reject ticket button.
	RejectTicketButtonID = "reject_ticket"

	// CloseTicketButtonID is the ID for the close ticket button.
	CloseTicketButtonID = "close_ticket"

	// EscalateTicketButtonID is the ID for the escalate ticket button.
	EscalateTicketButtonID = "escalate_ticket"
)

const (
	// TicketQueryModalID is the ID for the ticket query modal.
	TicketQueryModalID = "ticket_query_modal"

	// RejectReasonModalID is the ID tag for the rejection reason modal. The
	// full custom ID carries the target user, "reject_reason_modal:<userId>".
	RejectReasonModalID = "reject_reason_modal"
)

const (
	// TicketCmdName is the command for raising tickets and controlling
	// ticket channel membership.
	TicketCmdName = "ticket"

	// OpenCmdName is the sub command for raising a ticket.
	OpenCmdName = "open"

	// queryOptionName is the free-text query option on the open sub command.
	queryOptionName = "query"

	// AddCmdName is the sub command for adding a user to a ticket channel.
	AddCmdName = "add"

	// RemoveCmdName is the sub command for removing a user from a ticket channel.
	RemoveCmdName = "remove"

	// userOptionName is the user option on the add and remove sub commands.
	userOptionName = "user"
)

var (
	// ticketCmd is the command for controlling ticket channel membership.
	ticketCmd = &discordgo.ApplicationCommand{
		Name:        TicketCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for controlling tickets.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        OpenCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This raises a new ticket request.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        queryOptionName,
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "This is a description of your issue.",
						Required:    false,
					},
				},
			},
			{
				Name:        AddCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This adds a user to the ticket channel that the command was executed in.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        userOptionName,
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "This is the user to add to the ticket.",
						Required:    true,
					},
				},
			},
			{
				Name:        RemoveCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This removes a user from the ticket channel that the command was executed in.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        userOptionName,
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "This is the user to remove from the ticket.",
						Required:    true,
					},
				},
			},
		},
	}
)

// createTicketHandler opens the query modal for the create ticket button.
func createTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	err := a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: TicketQueryModalID,
			Title:    "Open a ticket",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "ticket_query",
							Label:       "How can we help?",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "Describe your issue.",
							Required:    false,
							MaxLength:   1000,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error responding with query modal: %w", err)
	}
	return nil
}

// ticketQueryModalHandler submits the ticket request collected by the query
// modal.
func ticketQueryModalHandler(a IApp, i *discordgo.InteractionCreate) error {
	data := i.ModalSubmitData()

	query := ""
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range row.Components {
			if input, ok := component.(*discordgo.TextInput); ok && input.CustomID == "ticket_query" {
				query = input.Value
			}
		}
	}

	return submitTicket(a, i, query)
}

func submitTicket(a IApp, i *discordgo.InteractionCreate, query string) error {
	_, err := a.Lifecycle().CreatePending(context.Background(), i.GuildID, i.Member.User.ID, i.Member.User.Username, query)
	recordTransition("create", err)
	if err != nil {
		a.Log().Warn("Ticket request refused",
			slog.String(logging.KeyGuild, i.GuildID),
			slog.String(logging.KeyUser, i.Member.User.ID),
			slog.String(logging.KeyError, err.Error()),
		)
		return respondEphemeral(a, i, userMessageFor(err))
	}

	return respondEphemeral(a, i, messages.UserTicketSubmitted)
}

// messageIntakeHandler turns free-text messages in the configured ticket
// channel into ticket requests for guilds that do not use the button.
func messageIntakeHandler(a IApp) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}

		guild, err := a.GuildDal().GetGuildByID(context.Background(), m.GuildID)
		if err != nil {
			a.Log().Error("Error getting guild for message intake",
				slog.String(logging.KeyGuild, m.GuildID),
				slog.String(logging.KeyError, err.Error()),
			)
			return
		}
		if guild == nil || !guild.SetupCompleted || guild.UseButton {
			return
		}
		if m.ChannelID != guild.Channels.TicketChannel {
			return
		}

		// The intake channel is kept clean regardless of the outcome.
		defer func() {
			if err := a.Session().ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
				a.Log().Error("Error deleting intake message",
					slog.String(logging.KeyChannel, m.ChannelID),
					slog.String(logging.KeyError, err.Error()),
				)
			}
		}()

		if !a.IntakeAllowed(m.Author.ID) {
			a.Log().Warn("Intake rate limit hit",
				slog.String(logging.KeyGuild, m.GuildID),
				slog.String(logging.KeyUser, m.Author.ID),
			)
			return
		}

		_, err = a.Lifecycle().CreatePending(context.Background(), m.GuildID, m.Author.ID, m.Author.Username, m.Content)
		recordTransition("create", err)
		if err != nil {
			a.Log().Warn("Ticket request refused",
				slog.String(logging.KeyGuild, m.GuildID),
				slog.String(logging.KeyUser, m.Author.ID),
				slog.String(logging.KeyError, err.Error()),
			)

			// The intake message is already deleted, so refusals go by DM.
			if dmErr := newNotificationSink(a).NotifyUser(context.Background(), m.Author.ID, userMessageFor(err)); dmErr != nil {
				a.Log().Error("Error sending refusal DM", slog.String(logging.KeyError, dmErr.Error()))
			}
		}
	}
}

// acceptTicketHandler handles the staff accept button.
func acceptTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	targetUserID := customIDTarget(i.MessageComponentData().CustomID)
	if targetUserID == "" {
		return errors.New("accept button carried no target user")
	}

	ticket, err := a.Lifecycle().Accept(context.Background(), i.GuildID, actorFrom(i), targetUserID)
	recordTransition("accept", err)
	if err != nil {
		partialErr := new(ticketing.PartialProvisionError)
		if errors.As(err, &partialErr) {
			a.Log().Error("Ticket accept left a channel without an open ticket",
				slog.String(logging.KeyGuild, i.GuildID),
				slog.String(logging.KeyUser, targetUserID),
				slog.String(logging.KeyChannel, partialErr.ChannelID),
				slog.String(logging.KeyError, err.Error()),
			)
			return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
		}
		return respondEphemeral(a, i, userMessageFor(err))
	}

	return respondEphemeral(a, i, fmt.Sprintf("Ticket accepted. The channel <#%s> has been created.", ticket.ChannelID))
}

// rejectTicketHandler handles the staff reject button. On tiers requiring a
// rejection reason it opens the reason modal instead of rejecting directly.
func rejectTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	targetUserID := customIDTarget(i.MessageComponentData().CustomID)
	if targetUserID == "" {
		return errors.New("reject button carried no target user")
	}

	reasonRequired, err := a.Lifecycle().BeginReject(context.Background(), i.GuildID, actorFrom(i), targetUserID)
	if err != nil {
		recordTransition("reject", err)
		return respondEphemeral(a, i, userMessageFor(err))
	}

	if reasonRequired {
		err := a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: fmt.Sprintf("%s:%s", RejectReasonModalID, targetUserID),
				Title:    "Reject ticket request",
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.TextInput{
								CustomID:  "reject_reason",
								Label:     "Reason for rejection",
								Style:     discordgo.TextInputParagraph,
								Required:  true,
								MaxLength: 500,
							},
						},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("error responding with reason modal: %w", err)
		}
		return nil
	}

	err = a.Lifecycle().Reject(context.Background(), i.GuildID, actorFrom(i), targetUserID, "")
	recordTransition("reject", err)
	if err != nil {
		return respondEphemeral(a, i, userMessageFor(err))
	}

	return respondEphemeral(a, i, "Ticket request rejected.")
}

// rejectReasonModalHandler completes a rejection with the collected reason.
func rejectReasonModalHandler(a IApp, i *discordgo.InteractionCreate) error {
	data := i.ModalSubmitData()

	targetUserID := customIDTarget(data.CustomID)
	if targetUserID == "" {
		return errors.New("reason modal carried no target user")
	}

	reason := ""
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range row.Components {
			if input, ok := component.(*discordgo.TextInput); ok && input.CustomID == "reject_reason" {
				reason = input.Value
			}
		}
	}

	err := a.Lifecycle().Reject(context.Background(), i.GuildID, actorFrom(i), targetUserID, reason)
	recordTransition("reject", err)
	if err != nil {
		return respondEphemeral(a, i, userMessageFor(err))
	}

	return respondEphemeral(a, i, "Ticket request rejected.")
}

// closeTicketHandler handles the close button inside a ticket channel. The
// requester may close their own ticket; anyone else needs a support role.
func closeTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	actor := actorFrom(i)

	ticket, err := a.TicketDal().GetTicketByChannelID(context.Background(), i.ChannelID)
	if err != nil {
		return fmt.Errorf("error getting ticket: %w", err)
	}

	authorized := actor.Administrator
	if ticket != nil {
		guild, err := a.GuildDal().GetGuildByID(context.Background(), ticket.GuildID)
		if err != nil {
			return fmt.Errorf("error getting guild: %w", err)
		}
		authorized = authorized ||
			actor.ID == ticket.UserID ||
			(guild != nil && guild.HasSupportRole(actor.RoleIDs))
	}
	if !authorized {
		return respondEphemeral(a, i, messages.ErrUserNotAuthorized)
	}

	_, err = a.Lifecycle().Close(context.Background(), i.ChannelID, actor)
	recordTransition("close", err)
	if err != nil {
		return respondEphemeral(a, i, userMessageFor(err))
	}

	return respondEphemeral(a, i, messages.UserTicketClosed)
}

// escalateTicketHandler hands the ticket in the channel off to staff.
func escalateTicketHandler(a IApp, i *discordgo.InteractionCreate) error {
	_, err := a.Lifecycle().Escalate(context.Background(), i.ChannelID, actorFrom(i))
	recordTransition("escalate", err)
	if err != nil {
		return respondEphemeral(a, i, userMessageFor(err))
	}

	return respondEphemeral(a, i, "This ticket has been escalated to the staff team.")
}

// ticketCmdHandler handles the /ticket add and remove sub commands, editing
// a user's visibility on the ticket channel the command ran in.
func ticketCmdHandler(a IApp, i *discordgo.InteractionCreate) error {
	subCmd := i.ApplicationCommandData().Options[0]

	// Raising a ticket needs no ticket channel and no support role.
	if subCmd.Name == OpenCmdName {
		query := ""
		if len(subCmd.Options) > 0 {
			query = subCmd.Options[0].StringValue()
		}
		return submitTicket(a, i, query)
	}

	ticket, err := a.TicketDal().GetTicketByChannelID(context.Background(), i.ChannelID)
	if err != nil {
		return fmt.Errorf("error getting ticket: %w", err)
	}
	if ticket == nil {
		return respondEphemeral(a, i, "This command can only be used inside a ticket channel.")
	}

	guild, err := a.GuildDal().GetGuildByID(context.Background(), ticket.GuildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}

	actor := actorFrom(i)
	if !actor.Administrator && (guild == nil || !guild.HasSupportRole(actor.RoleIDs)) {
		return respondEphemeral(a, i, messages.ErrUserNotAuthorized)
	}

	user := subCmd.Options[0].UserValue(a.Session())

	switch subCmd.Name {
	case AddCmdName:
		if err := a.Session().ChannelPermissionSet(i.ChannelID, user.ID, discordgo.PermissionOverwriteTypeMember,
			discordgo.PermissionAllText, discordgo.PermissionMentionEveryone); err != nil {
			return fmt.Errorf("error adding user to ticket: %w", err)
		}
		return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been added to this ticket.", user.ID))
	case RemoveCmdName:
		if err := a.Session().ChannelPermissionDelete(i.ChannelID, user.ID); err != nil {
			return fmt.Errorf("error removing user from ticket: %w", err)
		}
		return respondEphemeral(a, i, fmt.Sprintf("<@%s> has been removed from this ticket.", user.ID))
	default:
		return fmt.Errorf("unhandled sub command %s", subCmd.Name)
	}
}
