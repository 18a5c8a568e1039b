package entities

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zenorz/zenorz/pkg/custom"
)

// TicketStatus is the state-machine value of a ticket.
type TicketStatus string

const (
	// TicketPending is a ticket awaiting staff approval. No channel exists.
	TicketPending TicketStatus = "pending"

	// TicketClaimed is a ticket a staff member has won the right to accept
	// but whose channel has not been provisioned yet. This intermediate
	// state closes the window where two accepts could both provision.
	TicketClaimed TicketStatus = "claimed"

	// TicketOpen is an accepted ticket with a live private channel.
	TicketOpen TicketStatus = "open"

	// TicketClosed is a terminally resolved ticket.
	TicketClosed TicketStatus = "closed"

	// TicketEscalated is an open ticket handed off to staff.
	TicketEscalated TicketStatus = "escalated"
)

// Active reports whether the status counts against the one-active-ticket
// invariant and the tier quota.
func (s TicketStatus) Active() bool {
	switch s {
	case TicketPending, TicketClaimed, TicketOpen:
		return true
	default:
		return false
	}
}

// ChannelIDNone is the explicit sentinel for a ticket whose channel has not
// been provisioned yet. Never empty, to keep uniqueness queries simple.
const ChannelIDNone = "0"

// Ticket is one support request and its processing record. Tickets are
// never deleted; the associated channel may be removed independently.
type Ticket struct {
	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// UserID is the ID of the user that raised the ticket.
	UserID string `json:"user_id" bson:"user_id"`

	// Username is the username of the user that raised the ticket.
	Username string `json:"username" bson:"username"`

	// TicketID is the ticket identifier. ChannelIDNone until the ticket is
	// accepted, then the ID of the provisioned channel.
	TicketID string `json:"ticket_id" bson:"ticket_id"`

	// ChannelID is the ID of the provisioned ticket channel, or
	// ChannelIDNone while the ticket is pending.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// Status is the state-machine value.
	Status TicketStatus `json:"status" bson:"status"`

	// Active mirrors Status.Active(). Together with ActiveKey it backs the
	// store's unique partial index enforcing the one-active-ticket
	// invariant at write time.
	Active bool `json:"active" bson:"active"`

	// ActiveKey is the uniqueness key for the active index. For guilds that
	// prevent duplicate tickets it is guildID:userID, so a second active
	// ticket for the pair fails the insert; otherwise it is unique per
	// ticket and the index never bites.
	ActiveKey string `json:"active_key" bson:"active_key"`

	// Query is the free-text issue description. Immutable after creation.
	Query string `json:"query" bson:"query"`

	// Response is the assistant's reply to the query, if one was produced.
	Response string `json:"response" bson:"response"`

	// EscalatedToStaff is whether the ticket was handed off to staff.
	EscalatedToStaff bool `json:"escalated_to_staff" bson:"escalated_to_staff"`

	// UsedContent tracks which guild knowledge files informed the response.
	UsedContent UploadedFiles `json:"used_content" bson:"used_content"`

	// CreatedAt is the time the ticket was raised.
	CreatedAt custom.Datetime `json:"created_at" bson:"created_at"`

	// ResolvedAt is the time of the terminal transition. Zero until then.
	ResolvedAt custom.Datetime `json:"resolved_at" bson:"resolved_at"`
}

var channelNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// ChannelName derives the name for the ticket's private channel from the
// requester's username. The provider allows duplicate names, so no further
// de-duplication happens here.
func (t *Ticket) ChannelName() string {
	safe := channelNameSanitizer.ReplaceAllString(strings.ToLower(t.Username), "")
	if safe == "" {
		safe = t.UserID
	}
	return fmt.Sprintf("%s-ticket", safe)
}

// Provisioned reports whether the ticket has a live channel.
func (t *Ticket) Provisioned() bool {
	return t.ChannelID != "" && t.ChannelID != ChannelIDNone
}
