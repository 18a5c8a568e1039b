package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/zenorz/zenorz/pkg/entities"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/ticketing"
)

// channelProvisioner is the Discord implementation of the lifecycle's
// channel provider.
type channelProvisioner struct {
	a IApp
}

func newChannelProvisioner(a IApp) ticketing.ChannelProvisioner {
	return &channelProvisioner{a: a}
}

func (p *channelProvisioner) Create(_ context.Context, req ticketing.ProvisionRequest) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// Deny @everyone from seeing the ticket.
		{
			ID:    req.GuildID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: 0,
			Deny:  discordgo.PermissionAll,
		},
		// The creator of the ticket can see the ticket.
		{
			ID:    req.RequesterID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionAllText,
			Deny:  discordgo.PermissionMentionEveryone,
		},
	}

	// Add the support team roles.
	for _, roleID := range req.SupportRoles {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    roleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionAllText,
			Deny:  discordgo.PermissionMentionEveryone,
		})
	}

	channel, err := p.a.Session().GuildChannelCreateComplex(req.GuildID, discordgo.GuildChannelCreateData{
		Name:                 req.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                req.Topic,
		PermissionOverwrites: overwrites,
		ParentID:             req.ParentCategory,
	})
	if err != nil {
		return "", fmt.Errorf("error creating ticket channel: %w", err)
	}
	return channel.ID, nil
}

func (p *channelProvisioner) SetUserVisibility(_ context.Context, channelID, userID string, visible bool) error {
	if visible {
		if err := p.a.Session().ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
			discordgo.PermissionAllText, discordgo.PermissionMentionEveryone); err != nil {
			return fmt.Errorf("error granting channel visibility: %w", err)
		}
		return nil
	}

	if err := p.a.Session().ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		0, discordgo.PermissionAllText); err != nil {
		return fmt.Errorf("error revoking channel visibility: %w", err)
	}
	return nil
}

func (p *channelProvisioner) ScheduleDelete(channelID, reason string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if _, err := p.a.Session().ChannelDelete(channelID); err != nil {
			restErr := new(discordgo.RESTError)
			if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
				// The channel is already gone. That is what we wanted.
				return
			}
			p.a.Log().Error("Error deleting ticket channel",
				slog.String(logging.KeyChannel, channelID),
				slog.String("reason", reason),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	})
}

// notificationSink is the Discord implementation of the lifecycle's
// best-effort notifications.
type notificationSink struct {
	a IApp
}

func newNotificationSink(a IApp) ticketing.NotificationSink {
	return &notificationSink{a: a}
}

func (n *notificationSink) NotifyUser(_ context.Context, userID, content string) error {
	dm, err := n.a.Session().UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("error creating DM channel: %w", err)
	}

	if _, err := n.a.Session().ChannelMessageSend(dm.ID, content); err != nil {
		return fmt.Errorf("error sending DM: %w", err)
	}
	return nil
}

func (n *notificationSink) NotifyApproval(_ context.Context, guild *entities.Guild, ticket *entities.Ticket) error {
	if guild.Channels.TicketRequests == "" {
		return errors.New("guild has no ticket requests channel")
	}

	query := ticket.Query
	if query == "" {
		query = "No message provided."
	}

	message := &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> has requested a ticket.\n>>> %s", ticket.UserID, query),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Accept",
						Style:    discordgo.SuccessButton,
						Disabled: false,
						Emoji:    discordgo.ComponentEmoji{},
						URL:      "",
						CustomID: fmt.Sprintf("%s:%s", AcceptTicketButtonID, ticket.UserID),
					},
					discordgo.Button{
						Label:    "Reject",
						Style:    discordgo.DangerButton,
						Disabled: false,
						Emoji:    discordgo.ComponentEmoji{},
						URL:      "",
						CustomID: fmt.Sprintf("%s:%s", RejectTicketButtonID, ticket.UserID),
					},
				},
			},
		},
	}

	if _, err := n.a.Session().ChannelMessageSendComplex(guild.Channels.TicketRequests, message); err != nil {
		return fmt.Errorf("error sending approval prompt: %w", err)
	}
	return nil
}

func (n *notificationSink) NotifyAuditLog(_ context.Context, guild *entities.Guild, content string) error {
	// Audit logging is optional per guild.
	if guild.Channels.TicketLogs == "" {
		return nil
	}

	if _, err := n.a.Session().ChannelMessageSend(guild.Channels.TicketLogs, content); err != nil {
		return fmt.Errorf("error sending audit log message: %w", err)
	}
	return nil
}

func (n *notificationSink) PostTicketMessage(_ context.Context, channelID, content string) error {
	if _, err := n.a.Session().ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("error posting ticket message: %w", err)
	}
	return nil
}
