package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/zenorz/zenorz/pkg/custom"
	"github.com/zenorz/zenorz/pkg/guildfiles"
	"github.com/zenorz/zenorz/pkg/messages"
)

const (
	// UploadInfoCmdName is the command for uploading guild knowledge files.
	UploadInfoCmdName = "upload-info"

	// fileTypeOptionName is the option naming which knowledge file is uploaded.
	fileTypeOptionName = "file_type"

	// fileOptionName is the attachment option.
	fileOptionName = "file"
)

var (
	// uploadInfoCmd is the command for uploading guild knowledge files.
	uploadInfoCmd = &discordgo.ApplicationCommand{
		Name:        UploadInfoCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This uploads server information used to answer tickets.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        fileTypeOptionName,
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "This is the type of information being uploaded.",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Rules", Value: string(guildfiles.FileRules)},
					{Name: "FAQs", Value: string(guildfiles.FileFaqs)},
					{Name: "Level Roles", Value: string(guildfiles.FileLevelRoles)},
				},
			},
			{
				Name:        fileOptionName,
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Description: "This is the file to upload. Only .txt and .md files up to 1MB.",
				Required:    true,
			},
		},
	}
)

// uploadInfoCmdHandler handles the /upload-info command.
func uploadInfoCmdHandler(a IApp, i *discordgo.InteractionCreate) error {
	// Ensure the user is an administrator.
	if i.Member.Permissions&discordgo.PermissionAdministrator != discordgo.PermissionAdministrator {
		return respondEphemeral(a, i, "You must be an administrator to use this command")
	}

	guild, err := a.GuildDal().GetGuildByID(context.Background(), i.GuildID)
	if err != nil {
		return fmt.Errorf("error getting guild: %w", err)
	}
	if guild == nil || !guild.SetupCompleted {
		return respondEphemeral(a, i, messages.ErrUserNotSetup)
	}

	data := i.ApplicationCommandData()

	var (
		fileType     guildfiles.FileType
		attachmentID string
	)
	for _, opt := range data.Options {
		switch opt.Name {
		case fileTypeOptionName:
			fileType = guildfiles.FileType(opt.StringValue())
		case fileOptionName:
			attachmentID = opt.Value.(string)
		}
	}

	attachment, ok := data.Resolved.Attachments[attachmentID]
	if !ok {
		return errors.New("upload interaction carried no resolved attachment")
	}

	if err := guildfiles.ValidateUpload(fileType, attachment.Filename, int64(attachment.Size)); err != nil {
		switch {
		case errors.Is(err, guildfiles.ErrInvalidExtension),
			errors.Is(err, guildfiles.ErrFileTooLarge):
			return respondEphemeral(a, i, err.Error())
		default:
			return fmt.Errorf("error validating upload: %w", err)
		}
	}

	content, err := downloadAttachment(attachment.URL)
	if err != nil {
		return fmt.Errorf("error downloading attachment: %w", err)
	}

	if err := a.Files().Write(i.GuildID, fileType, content); err != nil {
		return fmt.Errorf("error storing guild file: %w", err)
	}

	switch fileType {
	case guildfiles.FileRules:
		guild.UploadedFiles.Rules = true
	case guildfiles.FileFaqs:
		guild.UploadedFiles.Faqs = true
	case guildfiles.FileLevelRoles:
		guild.UploadedFiles.LevelRoles = true
	}
	guild.UpdatedAt = custom.Now()

	if err := a.GuildDal().SaveGuild(context.Background(), guild); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("The %s file has been uploaded.", fileType))
}

func downloadAttachment(url string) ([]byte, error) {
	resp, err := http.Get(url) //nolint:gosec // The URL comes from the Discord CDN.
	if err != nil {
		return nil, fmt.Errorf("error fetching attachment: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching attachment", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, guildfiles.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading attachment: %w", err)
	}
	if len(content) > guildfiles.MaxFileSize {
		return nil, guildfiles.ErrFileTooLarge
	}
	return content, nil
}
