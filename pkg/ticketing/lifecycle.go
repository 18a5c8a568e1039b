package ticketing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zenorz/zenorz/pkg/custom"
	"github.com/zenorz/zenorz/pkg/entities"
	"github.com/zenorz/zenorz/pkg/logging"
	"github.com/zenorz/zenorz/pkg/messages"
)

// DefaultDeleteDelay is how long a closed ticket channel stays readable
// before deletion.
const DefaultDeleteDelay = 10 * time.Second

// Lifecycle orchestrates ticket state transitions. All ticket state lives
// in the TicketStore; the only process-local state here is configuration.
type Lifecycle struct {
	// l is the logger.
	l *slog.Logger

	// guilds reads guild configuration.
	guilds GuildStore

	// tickets is the durable ticket state.
	tickets TicketStore

	// channels is the external channel provider.
	channels ChannelProvisioner

	// notify is the best-effort notification sink.
	notify NotificationSink

	// deleteDelay is how long closed channels linger before deletion.
	deleteDelay time.Duration

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewLifecycle creates a new ticket lifecycle. A non-positive deleteDelay
// falls back to DefaultDeleteDelay.
func NewLifecycle(l *slog.Logger, guilds GuildStore, tickets TicketStore, channels ChannelProvisioner, notify NotificationSink, deleteDelay time.Duration) *Lifecycle {
	if deleteDelay <= 0 {
		deleteDelay = DefaultDeleteDelay
	}
	return &Lifecycle{
		l:           l,
		guilds:      guilds,
		tickets:     tickets,
		channels:    channels,
		notify:      notify,
		deleteDelay: deleteDelay,
		now:         time.Now,
	}
}

// guildConfig loads the guild and enforces the setup gate.
func (c *Lifecycle) guildConfig(ctx context.Context, guildID string) (*entities.Guild, error) {
	guild, err := c.guilds.GetGuildByID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error getting guild configuration: %w", err)
	}
	if guild == nil || !guild.SetupCompleted {
		return nil, ErrSetupIncomplete
	}
	return guild, nil
}

// authorize checks that the actor holds a support role or administrator
// permission in the guild.
func (c *Lifecycle) authorize(guild *entities.Guild, actor Actor) error {
	if actor.Administrator {
		return nil
	}
	if guild.HasSupportRole(actor.RoleIDs) {
		return nil
	}
	return ErrNotAuthorized
}

// swallow logs a notification failure and drops it. DMs and log posts are
// genuinely optional; they never affect the outcome of a transition.
func (c *Lifecycle) swallow(op string, err error) {
	if err == nil {
		return
	}
	c.l.Warn("Notification failed", slog.String("op", op), slog.String(logging.KeyError, err.Error()))
}

// CreatePending performs intake: it records a new pending ticket and prompts
// staff for approval. The returned ticket carries the sentinel channel ID.
func (c *Lifecycle) CreatePending(ctx context.Context, guildID, userID, username, query string) (*entities.Ticket, error) {
	guild, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}

	// Read-side duplicate check first for a friendly failure; the store's
	// unique active index is what actually enforces the invariant at write
	// time below.
	if guild.PreventDuplicateTickets {
		existing, err := c.tickets.FindActiveTicket(ctx, guildID, userID)
		if err != nil {
			return nil, fmt.Errorf("error checking for active ticket: %w", err)
		}
		if existing != nil {
			return nil, &DuplicateTicketError{GuildID: guildID, UserID: userID}
		}
	}

	count, err := c.tickets.CountActiveTickets(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting active tickets: %w", err)
	}
	if err := EvaluateQuota(int(count), guild.Tier()); err != nil {
		return nil, err
	}

	now := c.now().UTC()

	// The active key is what the store's unique index bites on: collapse it
	// to the (guild, user) pair only when the guild prevents duplicates.
	activeKey := fmt.Sprintf("%s:%s", guildID, userID)
	if !guild.PreventDuplicateTickets {
		activeKey = fmt.Sprintf("%s:%s:%d", guildID, userID, now.UnixNano())
	}

	ticket := &entities.Ticket{
		GuildID:   guildID,
		UserID:    userID,
		Username:  username,
		TicketID:  entities.ChannelIDNone,
		ChannelID: entities.ChannelIDNone,
		Status:    entities.TicketPending,
		Active:    true,
		ActiveKey: activeKey,
		Query:     query,
		CreatedAt: custom.Datetime(now),
	}

	if err := c.tickets.CreateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	c.swallow("approval_prompt", c.notify.NotifyApproval(ctx, guild, ticket))
	c.swallow("requester_dm", c.notify.NotifyUser(ctx, userID, messages.UserTicketSubmitted))

	return ticket, nil
}

// Accept moves the target user's pending ticket to open, provisioning its
// private channel. The pending -> claimed -> open ladder means a retried or
// concurrent Accept can never provision a second channel: only the caller
// whose conditional claim write matched proceeds to create one.
func (c *Lifecycle) Accept(ctx context.Context, guildID string, actor Actor, targetUserID string) (*entities.Ticket, error) {
	guild, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(guild, actor); err != nil {
		return nil, err
	}

	ticket, err := c.tickets.FindPendingTicket(ctx, guildID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("error getting pending ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}

	// Re-check the quota; time has passed since intake and the count may
	// have moved.
	count, err := c.tickets.CountActiveTickets(ctx, guildID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("error counting active tickets: %w", err)
	}
	if err := EvaluateQuota(int(count), guild.Tier()); err != nil {
		return nil, err
	}

	// Claim the ticket before touching the channel provider. If this write
	// does not match, a concurrent Accept got there first.
	claimed, err := c.tickets.TransitionStatus(ctx, guildID, targetUserID, entities.TicketPending, entities.TicketClaimed, nil)
	if err != nil {
		return nil, fmt.Errorf("error claiming ticket: %w", err)
	}
	if !claimed {
		return nil, ErrTicketNotFound
	}

	channelID, err := c.channels.Create(ctx, ProvisionRequest{
		GuildID:        guildID,
		Name:           ticket.ChannelName(),
		ParentCategory: guild.Channels.TicketCategory,
		Topic:          fmt.Sprintf("Ticket created by %s", ticket.Username),
		RequesterID:    targetUserID,
		SupportRoles:   guild.SupportTeamRoles,
	})
	if err != nil {
		// Put the ticket back so the request can be retried or rejected.
		reverted, revertErr := c.tickets.TransitionStatus(ctx, guildID, targetUserID, entities.TicketClaimed, entities.TicketPending, nil)
		if revertErr != nil || !reverted {
			c.l.Error("Failed to revert claimed ticket after provisioning failure",
				slog.String(logging.KeyGuild, guildID),
				slog.String(logging.KeyUser, targetUserID),
			)
		}
		return nil, &ProvisioningError{Err: err}
	}

	opened, err := c.tickets.TransitionStatus(ctx, guildID, targetUserID, entities.TicketClaimed, entities.TicketOpen, map[string]any{
		"channel_id": channelID,
		"ticket_id":  channelID,
	})
	if err != nil || !opened {
		if err == nil {
			err = ErrTicketNotFound
		}
		// The channel exists but the record is stuck in claimed. Surface a
		// distinct error so staff see this is a partial failure.
		c.l.Error("Orphaned ticket channel: record update failed after channel creation",
			slog.String(logging.KeyGuild, guildID),
			slog.String(logging.KeyUser, targetUserID),
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()),
		)
		return nil, &PartialProvisionError{ChannelID: channelID, Err: err}
	}

	ticket.Status = entities.TicketOpen
	ticket.ChannelID = channelID
	ticket.TicketID = channelID

	query := ticket.Query
	if query == "" {
		query = "No message provided."
	}
	c.swallow("acceptance_post", c.notify.PostTicketMessage(ctx, channelID, fmt.Sprintf("Ticket accepted for <@%s>.", targetUserID)))
	c.swallow("query_post", c.notify.PostTicketMessage(ctx, channelID, query))
	c.swallow("target_dm", c.notify.NotifyUser(ctx, targetUserID, fmt.Sprintf("Your ticket request was accepted by <@%s>.", actor.ID)))
	c.swallow("audit_log", c.notify.NotifyAuditLog(ctx, guild, fmt.Sprintf("Ticket `%s` accepted by <@%s>.", ticket.ChannelName(), actor.ID)))

	return ticket, nil
}

// BeginReject authorizes the rejection and reports whether this guild's
// tier requires a reason. When it does, the caller collects the reason (a
// modal round-trip) and calls Reject afterwards; the ticket stays pending
// in between. When it does not, the caller may call Reject immediately.
func (c *Lifecycle) BeginReject(ctx context.Context, guildID string, actor Actor, targetUserID string) (reasonRequired bool, err error) {
	guild, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return false, err
	}
	if err := c.authorize(guild, actor); err != nil {
		return false, err
	}

	ticket, err := c.tickets.FindPendingTicket(ctx, guildID, targetUserID)
	if err != nil {
		return false, fmt.Errorf("error getting pending ticket: %w", err)
	}
	if ticket == nil {
		return false, ErrTicketNotFound
	}

	return guild.Tier().RequiresRejectReason(), nil
}

// Reject closes the target user's pending ticket without ever provisioning
// a channel. reason may be empty on tiers that do not require one.
func (c *Lifecycle) Reject(ctx context.Context, guildID string, actor Actor, targetUserID, reason string) error {
	guild, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return err
	}
	if err := c.authorize(guild, actor); err != nil {
		return err
	}

	rejected, err := c.tickets.TransitionStatus(ctx, guildID, targetUserID, entities.TicketPending, entities.TicketClosed, map[string]any{
		"resolved_at": custom.Datetime(c.now().UTC()),
	})
	if err != nil {
		return fmt.Errorf("error rejecting ticket: %w", err)
	}
	if !rejected {
		return ErrTicketNotFound
	}

	dm := fmt.Sprintf("Your ticket request was rejected by <@%s>.", actor.ID)
	logLine := fmt.Sprintf("Ticket request from <@%s> was rejected by <@%s>.", targetUserID, actor.ID)
	if reason != "" {
		dm += fmt.Sprintf("\n**Reason:** %s", reason)
		logLine += fmt.Sprintf(" Reason: %s", reason)
	}
	c.swallow("target_dm", c.notify.NotifyUser(ctx, targetUserID, dm))
	c.swallow("audit_log", c.notify.NotifyAuditLog(ctx, guild, logLine))

	return nil
}

// Close resolves the ticket owning the channel, revokes the requester's
// view permission and schedules the channel for deletion. A channel with no
// ticket record is closed anyway; the data model is untouched and the
// operation still succeeds.
func (c *Lifecycle) Close(ctx context.Context, channelID string, actor Actor) (*entities.Ticket, error) {
	ticket, err := c.tickets.TransitionStatusByChannel(ctx, channelID,
		[]entities.TicketStatus{entities.TicketOpen, entities.TicketEscalated},
		entities.TicketClosed,
		map[string]any{
			"resolved_at": custom.Datetime(c.now().UTC()),
		})
	if err != nil {
		return nil, fmt.Errorf("error closing ticket: %w", err)
	}

	if ticket == nil {
		c.l.Info("Close requested for channel with no ticket record",
			slog.String(logging.KeyChannel, channelID),
		)
	} else {
		// Revoke immediately so the requester cannot keep posting while the
		// channel waits for deletion.
		if err := c.channels.SetUserVisibility(ctx, channelID, ticket.UserID, false); err != nil {
			c.l.Error("Error revoking requester visibility on closed ticket",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyUser, ticket.UserID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	}

	c.channels.ScheduleDelete(channelID, "Ticket closed.", c.deleteDelay)

	if ticket != nil {
		guild, err := c.guilds.GetGuildByID(ctx, ticket.GuildID)
		if err == nil && guild != nil {
			c.swallow("audit_log", c.notify.NotifyAuditLog(ctx, guild, fmt.Sprintf("Ticket `%s` closed by <@%s>.", ticket.ChannelName(), actor.ID)))
		}
	}

	return ticket, nil
}

// Escalate hands an open ticket off to staff. Reserved for manual and
// future automatic escalation; the authorization contract matches Accept.
func (c *Lifecycle) Escalate(ctx context.Context, channelID string, actor Actor) (*entities.Ticket, error) {
	existing, err := c.tickets.GetTicketByChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	if existing == nil {
		return nil, ErrTicketNotFound
	}

	guild, err := c.guildConfig(ctx, existing.GuildID)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(guild, actor); err != nil {
		return nil, err
	}

	ticket, err := c.tickets.TransitionStatusByChannel(ctx, channelID,
		[]entities.TicketStatus{entities.TicketOpen},
		entities.TicketEscalated,
		map[string]any{
			"escalated_to_staff": true,
		})
	if err != nil {
		return nil, fmt.Errorf("error escalating ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}

	c.swallow("audit_log", c.notify.NotifyAuditLog(ctx, guild, fmt.Sprintf("Ticket `%s` escalated to staff by <@%s>.", ticket.ChannelName(), actor.ID)))

	ticket.Status = entities.TicketEscalated
	ticket.EscalatedToStaff = true
	return ticket, nil
}
