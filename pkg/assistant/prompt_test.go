package assistant

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zenorz/zenorz/pkg/guildfiles"
)

func TestBuildPrompt(t *testing.T) {
	files := guildfiles.NewStore(t.TempDir())
	require.NoError(t, files.Write("g1", guildfiles.FileRules, []byte("no spamming")))
	require.NoError(t, files.Write("g1", guildfiles.FileFaqs, []byte("Q: how do I rank up?")))

	prompt, used, err := BuildPrompt(files, "g1", "Test Guild", "how do I rank up?")
	require.NoError(t, err)

	require.True(t, used.Rules)
	require.True(t, used.Faqs)
	require.False(t, used.LevelRoles)

	require.Contains(t, prompt, "no spamming")
	require.Contains(t, prompt, "Q: how do I rank up?")
	require.Contains(t, prompt, `"how do I rank up?"`)
	require.Contains(t, prompt, "No level roles information has been uploaded")
}

func TestBuildPromptNoFiles(t *testing.T) {
	files := guildfiles.NewStore(t.TempDir())

	prompt, used, err := BuildPrompt(files, "g1", "Test Guild", "hello")
	require.NoError(t, err)
	require.False(t, used.Rules)
	require.False(t, used.Faqs)
	require.False(t, used.LevelRoles)
	require.Contains(t, prompt, "No rules have been uploaded")
}

func TestShouldEscalateToStaff(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{name: "ExplicitPhrase", response: "This requires staff attention.", want: true},
		{name: "Harassment", response: "That sounds like Harassment, I'm sorry.", want: true},
		{name: "Benign", response: "You can change your nickname in settings.", want: false},
		{name: "Empty", response: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ShouldEscalateToStaff(tt.response))
		})
	}
}
