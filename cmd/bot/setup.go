package main

import (
	"context"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/zenorz/zenorz/pkg/custom"
	"github.com/zenorz/zenorz/pkg/entities"
)

const (
	// SetupCmdName is the command for configuring the ticket system.
	SetupCmdName = "setup"

	// channelOptionName is the option for the ticket intake channel.
	channelOptionName = "channel"

	// supportRoleOptionName is the option for the support team role.
	supportRoleOptionName = "support_role"

	// categoryOptionName is the option for the ticket channel category.
	categoryOptionName = "category"

	// logChannelOptionName is the option for the audit log channel.
	logChannelOptionName = "log_channel"

	// autoCloseOptionName is the option for the idle auto-close window.
	autoCloseOptionName = "auto_close_days"

	// preventDuplicatesOptionName is the option for the one-active-ticket rule.
	preventDuplicatesOptionName = "prevent_duplicates"

	// useButtonOptionName is the option for button versus free-text intake.
	useButtonOptionName = "use_button"
)

var (
	// setupCmd is the command for configuring the ticket system.
	setupCmd = &discordgo.ApplicationCommand{
		Name:        SetupCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This sets up the ticket system for your server.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        channelOptionName,
				Type:        discordgo.ApplicationCommandOptionChannel,
				Description: "This is the channel users open tickets from. Created if not provided.",
				Required:    false,
			},
			{
				Name:        supportRoleOptionName,
				Type:        discordgo.ApplicationCommandOptionRole,
				Description: "This is the role that handles tickets. Created if not provided.",
				Required:    false,
			},
			{
				Name:        categoryOptionName,
				Type:        discordgo.ApplicationCommandOptionChannel,
				Description: "This is the category ticket channels are created under. Created if not provided.",
				Required:    false,
			},
			{
				Name:        logChannelOptionName,
				Type:        discordgo.ApplicationCommandOptionChannel,
				Description: "This is the channel ticket activity is logged to.",
				Required:    false,
			},
			{
				Name:        autoCloseOptionName,
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "This is the number of days after which idle tickets close automatically.",
				Required:    false,
			},
			{
				Name:        preventDuplicatesOptionName,
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Description: "This limits each user to one active ticket at a time.",
				Required:    false,
			},
			{
				Name:        useButtonOptionName,
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Description: "This switches ticket intake to a button instead of free-text messages.",
				Required:    false,
			},
		},
	}
)

// setupCmdHandler handles the /setup command.
func setupCmdHandler(a IApp, i *discordgo.InteractionCreate) error {
	// Ensure the user is an administrator.
	if i.Member.Permissions&discordgo.PermissionAdministrator != discordgo.PermissionAdministrator {
		return respondEphemeral(a, i, "You must be an administrator to use this command")
	}

	guild, err := a.GuildDal().GetGuildByID(context.Background(), i.GuildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}

	// Free tier guilds get one setup run. Paid tiers can reconfigure.
	if guild != nil && guild.SetupCompleted && guild.Tier() == entities.TierFree {
		return respondEphemeral(a, i, "Setup has already been run for this server. Reconfiguration requires a premium subscription.")
	}

	if guild == nil {
		guild = &entities.Guild{
			ID: i.GuildID,
		}
	}

	dg, err := a.Session().Guild(i.GuildID)
	if err != nil {
		return fmt.Errorf("error getting discord guild: %w", err)
	}
	guild.Name = dg.Name

	options := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		options[opt.Name] = opt
	}

	// Support role, created when not provided.
	if opt, ok := options[supportRoleOptionName]; ok {
		role := opt.RoleValue(a.Session(), i.GuildID)
		guild.SupportTeamRoles = []string{role.ID}
	} else if len(guild.SupportTeamRoles) == 0 {
		role, err := a.Session().GuildRoleCreate(i.GuildID, &discordgo.RoleParams{
			Name: "Support Team",
		})
		if err != nil {
			return fmt.Errorf("error creating support role: %w", err)
		}
		guild.SupportTeamRoles = []string{role.ID}
	}

	// Ticket category, created when not provided.
	if opt, ok := options[categoryOptionName]; ok {
		category := opt.ChannelValue(a.Session())
		if category.Type != discordgo.ChannelTypeGuildCategory {
			return respondEphemeral(a, i, "You must provide a category channel for tickets.")
		}
		guild.Channels.TicketCategory = category.ID
	} else if guild.Channels.TicketCategory == "" {
		category, err := a.Session().GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
			Name: "Tickets",
			Type: discordgo.ChannelTypeGuildCategory,
		})
		if err != nil {
			return fmt.Errorf("error creating ticket category: %w", err)
		}
		guild.Channels.TicketCategory = category.ID
	}

	// Intake channel, created when not provided.
	if opt, ok := options[channelOptionName]; ok {
		channel := opt.ChannelValue(a.Session())
		if channel.Type != discordgo.ChannelTypeGuildText {
			return respondEphemeral(a, i, "You must provide a text channel for ticket intake.")
		}
		guild.Channels.TicketChannel = channel.ID
	} else if guild.Channels.TicketChannel == "" {
		channel, err := a.Session().GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
			Name:     "create-a-ticket",
			Type:     discordgo.ChannelTypeGuildText,
			ParentID: guild.Channels.TicketCategory,
		})
		if err != nil {
			return fmt.Errorf("error creating intake channel: %w", err)
		}
		guild.Channels.TicketChannel = channel.ID
	}

	// The staff approval channel is always provisioned, visible only to the
	// support team.
	if guild.Channels.TicketRequests == "" {
		overwrites := []*discordgo.PermissionOverwrite{
			{
				ID:    i.GuildID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: 0,
				Deny:  discordgo.PermissionAll,
			},
		}
		for _, roleID := range guild.SupportTeamRoles {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID:    roleID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionAllText,
				Deny:  discordgo.PermissionMentionEveryone,
			})
		}

		requests, err := a.Session().GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
			Name:                 "ticket-requests",
			Type:                 discordgo.ChannelTypeGuildText,
			ParentID:             guild.Channels.TicketCategory,
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			return fmt.Errorf("error creating ticket requests channel: %w", err)
		}
		guild.Channels.TicketRequests = requests.ID
	}

	if opt, ok := options[logChannelOptionName]; ok {
		channel := opt.ChannelValue(a.Session())
		if channel.Type != discordgo.ChannelTypeGuildText {
			return respondEphemeral(a, i, "You must provide a text channel for the ticket log.")
		}
		guild.Channels.TicketLogs = channel.ID
	}

	if opt, ok := options[autoCloseOptionName]; ok {
		guild.AutoCloseAfterDays = int(opt.IntValue())
	}

	if opt, ok := options[preventDuplicatesOptionName]; ok {
		guild.PreventDuplicateTickets = opt.BoolValue()
	}

	if opt, ok := options[useButtonOptionName]; ok {
		guild.UseButton = opt.BoolValue()
	}

	if err := sendIntakeMessage(a, guild); err != nil {
		return fmt.Errorf("error sending intake message: %w", err)
	}

	guild.SetupCompleted = true
	guild.UpdatedAt = custom.Now()

	if err := a.GuildDal().SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("The ticket system is now set up. Users can open tickets in <#%s>.", guild.Channels.TicketChannel))
}

// sendIntakeMessage posts the message users open tickets from, either a
// button or the free-text instructions.
func sendIntakeMessage(a IApp, guild *entities.Guild) error {
	const messageText = `How can we help?
Welcome to our tickets channel. If you have any questions or inquiries, open a ticket to contact the staff team!`

	if !guild.UseButton {
		content := messageText + "\n\nDescribe your issue in a message in this channel and it will be turned into a ticket request."
		if _, err := a.Session().ChannelMessageSend(guild.Channels.TicketChannel, content); err != nil {
			return fmt.Errorf("error sending message: %w", err)
		}
		return nil
	}

	message := &discordgo.MessageSend{
		Content: messageText,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Open Ticket",
						Style:    discordgo.PrimaryButton,
						Disabled: false,
						Emoji:    discordgo.ComponentEmoji{},
						URL:      "",
						CustomID: CreateTicketButtonID,
					},
				},
			},
		},
	}

	if _, err := a.Session().ChannelMessageSendComplex(guild.Channels.TicketChannel, message); err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}
