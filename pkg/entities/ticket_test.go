package entities

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTicketStatusActive(t *testing.T) {
	tests := []struct {
		status TicketStatus
		want   bool
	}{
		{TicketPending, true},
		{TicketClaimed, true},
		{TicketOpen, true},
		{TicketClosed, false},
		{TicketEscalated, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			require.Equal(t, tt.want, tt.status.Active())
		})
	}
}

func TestTicketChannelName(t *testing.T) {
	tests := []struct {
		name   string
		ticket Ticket
		want   string
	}{
		{
			name:   "Plain",
			ticket: Ticket{UserID: "1", Username: "marcy"},
			want:   "marcy-ticket",
		},
		{
			name:   "Sanitized",
			ticket: Ticket{UserID: "1", Username: "Ma rcy!#"},
			want:   "marcy-ticket",
		},
		{
			name:   "AllStripped",
			ticket: Ticket{UserID: "42", Username: "🦊🦊"},
			want:   "42-ticket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.ticket.ChannelName())
		})
	}
}

func TestParseTier(t *testing.T) {
	require.Equal(t, TierFree, ParseTier(""))
	require.Equal(t, TierFree, ParseTier("gold"))
	require.Equal(t, TierBasic, ParseTier("basic"))
	require.Equal(t, TierPro, ParseTier("pro"))
	require.Equal(t, TierElite, ParseTier("elite"))

	require.False(t, TierFree.RequiresRejectReason())
	require.False(t, TierBasic.RequiresRejectReason())
	require.True(t, TierPro.RequiresRejectReason())
	require.True(t, TierElite.RequiresRejectReason())
}

func TestGuildHasSupportRole(t *testing.T) {
	g := &Guild{SupportTeamRoles: []string{"r1", "r2"}}
	require.True(t, g.HasSupportRole([]string{"r0", "r2"}))
	require.False(t, g.HasSupportRole([]string{"r3"}))
	require.False(t, g.HasSupportRole(nil))
}
