package guildfiles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Write("guild-1", FileRules, []byte("  be nice\n")))

	got, err := s.Read("guild-1", FileRules)
	require.NoError(t, err)
	require.Equal(t, "be nice", got)

	// Other guilds and other file types stay empty.
	got, err = s.Read("guild-1", FileFaqs)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = s.Read("guild-2", FileRules)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStoreRejectsUnknownType(t *testing.T) {
	s := NewStore(t.TempDir())

	require.ErrorIs(t, s.Write("guild-1", "secrets", []byte("x")), ErrInvalidFileType)

	_, err := s.Read("guild-1", "secrets")
	require.ErrorIs(t, err, ErrInvalidFileType)
}

func TestStoreRejectsOversizedContent(t *testing.T) {
	s := NewStore(t.TempDir())

	big := []byte(strings.Repeat("a", MaxFileSize+1))
	require.ErrorIs(t, s.Write("guild-1", FileRules, big), ErrFileTooLarge)
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		fileType FileType
		filename string
		size     int64
		wantErr  error
	}{
		{name: "TxtOK", fileType: FileRules, filename: "rules.txt", size: 100},
		{name: "MdOK", fileType: FileFaqs, filename: "FAQS.MD", size: 100},
		{name: "BadType", fileType: "secrets", filename: "a.txt", size: 1, wantErr: ErrInvalidFileType},
		{name: "BadExtension", fileType: FileRules, filename: "rules.pdf", size: 1, wantErr: ErrInvalidExtension},
		{name: "NoExtension", fileType: FileRules, filename: "rules", size: 1, wantErr: ErrInvalidExtension},
		{name: "TooLarge", fileType: FileLevelRoles, filename: "roles.md", size: MaxFileSize + 1, wantErr: ErrFileTooLarge},
		{name: "AtLimit", fileType: FileLevelRoles, filename: "roles.md", size: MaxFileSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.fileType, tt.filename, tt.size)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
