package ticketing

import (
	"context"
	"time"

	"github.com/zenorz/zenorz/pkg/entities"
)

// GuildStore reads per-guild configuration.
type GuildStore interface {
	// GetGuildByID gets a guild configuration by ID. Returns nil with no
	// error when the guild has no configuration yet.
	GetGuildByID(ctx context.Context, id string) (*entities.Guild, error)
}

// TicketStore is the durable state of the ticket state machine. All status
// mutations are conditional on the expected prior status so concurrent
// actors cannot both win a transition.
type TicketStore interface {
	// CreateTicket inserts a new ticket. Implementations must enforce the
	// one-active-ticket invariant at write time and return a
	// DuplicateTicketError when it would be violated.
	CreateTicket(ctx context.Context, ticket *entities.Ticket) error

	// FindActiveTicket returns the user's pending, claimed or open ticket in
	// the guild, or nil when there is none.
	FindActiveTicket(ctx context.Context, guildID, userID string) (*entities.Ticket, error)

	// CountActiveTickets counts the user's pending, claimed and open
	// tickets in the guild.
	CountActiveTickets(ctx context.Context, guildID, userID string) (int64, error)

	// FindPendingTicket returns the user's pending ticket in the guild, or
	// nil when there is none.
	FindPendingTicket(ctx context.Context, guildID, userID string) (*entities.Ticket, error)

	// GetTicketByChannelID returns the ticket owning the channel, or nil
	// when no ticket is recorded for it.
	GetTicketByChannelID(ctx context.Context, channelID string) (*entities.Ticket, error)

	// TransitionStatus conditionally moves the user's ticket from one
	// status to another, applying any extra field updates in the same
	// write. It reports false when no ticket matched the expected status.
	TransitionStatus(ctx context.Context, guildID, userID string, from, to entities.TicketStatus, set map[string]any) (bool, error)

	// TransitionStatusByChannel is TransitionStatus keyed by channel ID,
	// accepting any of the given prior statuses. It returns the ticket as
	// it was before the update, or nil when nothing matched.
	TransitionStatusByChannel(ctx context.Context, channelID string, from []entities.TicketStatus, to entities.TicketStatus, set map[string]any) (*entities.Ticket, error)
}

// ProvisionRequest describes the private channel a ticket needs.
type ProvisionRequest struct {
	// GuildID is the guild the channel is created in.
	GuildID string

	// Name is the channel name. Duplicate names are the provider's problem.
	Name string

	// ParentCategory is the configured parent category ID, possibly empty.
	ParentCategory string

	// Topic is the channel topic.
	Topic string

	// RequesterID is the ticket owner, granted visibility.
	RequesterID string

	// SupportRoles are the role IDs granted visibility.
	SupportRoles []string
}

// ChannelProvisioner creates and tears down private ticket channels. The
// lifecycle consumes it; the Discord adapter implements it.
type ChannelProvisioner interface {
	// Create creates the private channel with default visibility denied and
	// the requester plus support roles allowed. Returns the channel ID.
	Create(ctx context.Context, req ProvisionRequest) (string, error)

	// SetUserVisibility grants or revokes a user's view permission on an
	// existing ticket channel.
	SetUserVisibility(ctx context.Context, channelID, userID string, visible bool) error

	// ScheduleDelete deletes the channel after the delay. A channel that is
	// already gone counts as success; other failures are logged, not
	// retried.
	ScheduleDelete(channelID, reason string, delay time.Duration)
}

// NotificationSink delivers best-effort user and staff notifications. The
// lifecycle swallows every error it returns; a failed DM never fails a
// transition.
type NotificationSink interface {
	// NotifyUser direct-messages a user.
	NotifyUser(ctx context.Context, userID, content string) error

	// NotifyApproval posts the accept/reject prompt for a new ticket
	// request to the guild's staff channel.
	NotifyApproval(ctx context.Context, guild *entities.Guild, ticket *entities.Ticket) error

	// NotifyAuditLog posts to the guild's ticket log channel, if set.
	NotifyAuditLog(ctx context.Context, guild *entities.Guild, content string) error

	// PostTicketMessage posts into a ticket channel.
	PostTicketMessage(ctx context.Context, channelID, content string) error
}

// Actor identifies who is performing a staff transition, with enough of
// their guild membership to authorize it.
type Actor struct {
	// ID is the acting user's ID.
	ID string

	// RoleIDs are the acting member's role IDs in the guild.
	RoleIDs []string

	// Administrator is whether the member holds administrator permission.
	Administrator bool
}
