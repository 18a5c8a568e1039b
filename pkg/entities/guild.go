package entities

import "github.com/zenorz/zenorz/pkg/custom"

// Guild is the per-guild ticketing configuration. There is at most one
// document per guild ID; channel IDs may be empty before setup completes.
type Guild struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// Name is the name of the guild.
	Name string `json:"name" bson:"name"`

	// SupportTeamRoles is the set of role IDs authorized to act on tickets.
	SupportTeamRoles []string `json:"support_team_roles" bson:"support_team_roles"`

	// Channels is the set of designated ticketing channels.
	Channels GuildChannels `json:"channels" bson:"channels"`

	// Premium is the premium state of the guild.
	Premium Premium `json:"premium" bson:"premium"`

	// UseButton is whether ticket intake is via button rather than free-text
	// messages in the ticket channel.
	UseButton bool `json:"use_button" bson:"use_button"`

	// PreventDuplicateTickets is whether a user may only hold one pending or
	// open ticket at a time.
	PreventDuplicateTickets bool `json:"prevent_duplicate_tickets" bson:"prevent_duplicate_tickets"`

	// AutoCloseAfterDays is the number of days after which an idle ticket is
	// eligible for automatic closure.
	AutoCloseAfterDays int `json:"auto_close_after_days" bson:"auto_close_after_days"`

	// UploadedFiles tracks which guild knowledge files have been uploaded.
	UploadedFiles UploadedFiles `json:"uploaded_files" bson:"uploaded_files"`

	// SetupCompleted is whether the one-time setup has run. Free-tier guilds
	// may only complete setup once.
	SetupCompleted bool `json:"setup_completed" bson:"setup_completed"`

	// UpdatedAt is the time the configuration was last saved.
	UpdatedAt custom.Datetime `json:"updated_at" bson:"updated_at"`
}

// GuildChannels is the set of channels the ticket system routes through.
type GuildChannels struct {
	// TicketChannel is the ID of the intake channel users post in.
	TicketChannel string `json:"ticket_channel" bson:"ticket_channel"`

	// TicketRequests is the ID of the staff approval channel.
	TicketRequests string `json:"ticket_requests" bson:"ticket_requests"`

	// TicketLogs is the ID of the audit log channel.
	TicketLogs string `json:"ticket_logs" bson:"ticket_logs"`

	// TicketCategory is the ID of the parent category for ticket channels.
	TicketCategory string `json:"ticket_category" bson:"ticket_category"`
}

// UploadedFiles tracks which knowledge files a guild has uploaded.
type UploadedFiles struct {
	Rules      bool `json:"rules" bson:"rules"`
	Faqs       bool `json:"faqs" bson:"faqs"`
	LevelRoles bool `json:"level_roles" bson:"level_roles"`
}

// Tier returns the guild's effective premium tier.
func (g *Guild) Tier() Tier {
	if g == nil {
		return TierFree
	}
	return ParseTier(string(g.Premium.Tier))
}

// HasSupportRole reports whether any of the given role IDs is one of the
// guild's support team roles.
func (g *Guild) HasSupportRole(roleIDs []string) bool {
	for _, have := range roleIDs {
		for _, want := range g.SupportTeamRoles {
			if have == want {
				return true
			}
		}
	}
	return false
}
