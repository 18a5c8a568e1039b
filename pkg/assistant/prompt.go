package assistant

import (
	"fmt"
	"strings"

	"github.com/zenorz/zenorz/pkg/entities"
	"github.com/zenorz/zenorz/pkg/guildfiles"
)

// GuildFileReader is the slice of the guild file store that prompt
// assembly needs.
type GuildFileReader interface {
	Read(guildID string, fileType guildfiles.FileType) (string, error)
}

const promptTemplate = `You are a helpful Discord support assistant for the server: %q.

SERVER RULES:
%s

LEVEL ROLES:
%s

FAQS:
%s

User's Query:
%q

Task:
1. If the query can be answered using the server's information above, provide a helpful, accurate response based on that information.
2. If it's a general report (e.g. harassment, rule violation, technical issue), ask follow-up questions about what happened, who was involved, and when - then clearly indicate this needs staff attention.
3. If you don't have enough information in the provided server data, politely say so and suggest the user contact a staff member directly.
4. Format your response in a clean, readable way using Markdown.
5. Keep your response concise but comprehensive.
6. If you detect that this is a support ticket that requires escalation to staff, include the phrase "This requires staff attention" somewhere in your response.
7. Avoid quoting the server rules verbatim when answering.`

// BuildPrompt assembles the model prompt from the guild's uploaded files
// and the user's query. The returned flags record which files contributed
// content, for the ticket's used-content tracking.
func BuildPrompt(files GuildFileReader, guildID, guildName, query string) (string, entities.UploadedFiles, error) {
	var used entities.UploadedFiles

	rules, err := files.Read(guildID, guildfiles.FileRules)
	if err != nil {
		return "", used, fmt.Errorf("error reading rules: %w", err)
	}
	used.Rules = rules != ""
	if rules == "" {
		rules = "No rules have been uploaded for this server yet."
	}

	levelRoles, err := files.Read(guildID, guildfiles.FileLevelRoles)
	if err != nil {
		return "", used, fmt.Errorf("error reading level roles: %w", err)
	}
	used.LevelRoles = levelRoles != ""
	if levelRoles == "" {
		levelRoles = "No level roles information has been uploaded for this server yet."
	}

	faqs, err := files.Read(guildID, guildfiles.FileFaqs)
	if err != nil {
		return "", used, fmt.Errorf("error reading faqs: %w", err)
	}
	used.Faqs = faqs != ""
	if faqs == "" {
		faqs = "No FAQs have been uploaded for this server yet."
	}

	return fmt.Sprintf(promptTemplate, guildName, rules, levelRoles, faqs, query), used, nil
}

// escalationIndicators are the phrases in a model reply that suggest the
// ticket should be handed off to staff.
var escalationIndicators = []string{
	"staff has been notified",
	"escalating to staff",
	"support team",
	"moderator",
	"administrator",
	"report",
	"harassment",
	"bullying",
	"inappropriate",
	"violation",
	"escalated",
	"require staff attention",
}

// ShouldEscalateToStaff reports whether a model reply indicates the ticket
// needs staff attention.
func ShouldEscalateToStaff(response string) bool {
	lower := strings.ToLower(response)
	for _, indicator := range escalationIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
