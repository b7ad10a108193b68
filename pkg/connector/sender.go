// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	"github.com/aiku/satori-telegram/pkg/connector/satorifmt"
	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
)

// channelSender delivers outgoing operations to one Telegram peer. It
// implements the send interface the encoder drives.
type channelSender struct {
	tc   *TelegramConnector
	peer tg.InputPeerClass
}

var _ satorifmt.Sender = (*channelSender)(nil)

// parseHTML converts Telegram HTML into plain text plus format entities.
func parseHTML(content string) (string, []tg.MessageEntityClass, error) {
	if content == "" {
		return "", nil, nil
	}
	var b entity.Builder
	if err := html.HTML(strings.NewReader(content), &b, html.Options{}); err != nil {
		return "", nil, fmt.Errorf("failed to parse message HTML: %w", err)
	}
	text, entities := b.Complete()
	return text, entities, nil
}

func (s *channelSender) SendText(ctx context.Context, content string, replyTo int, rows [][]satorifmt.Button) (*telegramfmt.Message, error) {
	text, entities, err := parseHTML(content)
	if err != nil {
		return nil, err
	}

	req := &tg.MessagesSendMessageRequest{
		Peer:     s.peer,
		Message:  text,
		RandomID: rand.Int63(),
	}
	if len(entities) > 0 {
		req.SetEntities(entities)
	}
	if replyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyTo})
	}
	if markup := buttonMarkup(rows); markup != nil {
		req.SetReplyMarkup(markup)
	}

	updates, err := s.tc.client.API().MessagesSendMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	sent := s.tc.sentMessages(ctx, updates, text, entities)
	if len(sent) == 0 {
		return nil, fmt.Errorf("no message in send response")
	}
	return sent[0], nil
}

func (s *channelSender) SendMediaGroup(ctx context.Context, media []satorifmt.Media, replyTo int) ([]*telegramfmt.Message, error) {
	multi := make([]tg.InputSingleMedia, 0, len(media))
	for _, m := range media {
		materialized, err := s.uploadMedia(ctx, m)
		if err != nil {
			return nil, err
		}
		single := tg.InputSingleMedia{
			Media:    materialized,
			RandomID: rand.Int63(),
		}
		if m.Caption != "" {
			text, entities, err := parseHTML(m.Caption)
			if err != nil {
				return nil, err
			}
			single.Message = text
			if len(entities) > 0 {
				single.SetEntities(entities)
			}
		}
		multi = append(multi, single)
	}

	req := &tg.MessagesSendMultiMediaRequest{
		Peer:       s.peer,
		MultiMedia: multi,
	}
	if replyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyTo})
	}

	updates, err := s.tc.client.API().MessagesSendMultiMedia(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.tc.sentMessages(ctx, updates, "", nil), nil
}

func (s *channelSender) SendAnimation(ctx context.Context, m satorifmt.Media, replyTo int) (*telegramfmt.Message, error) {
	file, err := uploader.NewUploader(s.tc.client.API()).FromBytes(ctx, m.Filename, m.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload animation: %w", err)
	}

	req := &tg.MessagesSendMediaRequest{
		Peer: s.peer,
		Media: &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: m.MIME,
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: m.Filename},
				&tg.DocumentAttributeAnimated{},
			},
			Spoiler: m.Spoiler,
		},
		RandomID: rand.Int63(),
	}
	if m.Caption != "" {
		text, entities, err := parseHTML(m.Caption)
		if err != nil {
			return nil, err
		}
		req.Message = text
		if len(entities) > 0 {
			req.SetEntities(entities)
		}
	}
	if replyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyTo})
	}

	updates, err := s.tc.client.API().MessagesSendMedia(ctx, req)
	if err != nil {
		return nil, err
	}
	sent := s.tc.sentMessages(ctx, updates, req.Message, nil)
	if len(sent) == 0 {
		return nil, fmt.Errorf("no message in send response")
	}
	return sent[0], nil
}

func (s *channelSender) EditText(ctx context.Context, messageID int, content string, rows [][]satorifmt.Button) error {
	text, entities, err := parseHTML(content)
	if err != nil {
		return err
	}

	req := &tg.MessagesEditMessageRequest{
		Peer: s.peer,
		ID:   messageID,
	}
	req.SetMessage(text)
	if len(entities) > 0 {
		req.SetEntities(entities)
	}
	if markup := buttonMarkup(rows); markup != nil {
		req.SetReplyMarkup(markup)
	}

	if _, err := s.tc.client.API().MessagesEditMessage(ctx, req); err != nil {
		return err
	}
	return nil
}

// uploadMedia uploads one attachment and materializes it into a reusable
// input media reference. Album sends reject freshly uploaded media, so the
// upload goes through an explicit UploadMedia round trip first.
func (s *channelSender) uploadMedia(ctx context.Context, m satorifmt.Media) (tg.InputMediaClass, error) {
	file, err := uploader.NewUploader(s.tc.client.API()).FromBytes(ctx, m.Filename, m.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", m.Filename, err)
	}

	var uploaded tg.InputMediaClass
	if m.Kind == satorifmt.MediaPhoto {
		uploaded = &tg.InputMediaUploadedPhoto{File: file, Spoiler: m.Spoiler}
	} else {
		attrs := []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: m.Filename},
		}
		switch m.Kind {
		case satorifmt.MediaAudio:
			attrs = append(attrs, &tg.DocumentAttributeAudio{})
		case satorifmt.MediaVideo:
			attrs = append(attrs, &tg.DocumentAttributeVideo{})
		}
		uploaded = &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   m.MIME,
			Attributes: attrs,
			Spoiler:    m.Spoiler,
		}
	}

	result, err := s.tc.client.API().MessagesUploadMedia(ctx, &tg.MessagesUploadMediaRequest{
		Peer:  s.peer,
		Media: uploaded,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to materialize %s: %w", m.Filename, err)
	}

	switch media := result.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok {
			return nil, fmt.Errorf("uploaded photo %s came back empty", m.Filename)
		}
		return &tg.InputMediaPhoto{ID: &tg.InputPhoto{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
		}}, nil
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return nil, fmt.Errorf("uploaded document %s came back empty", m.Filename)
		}
		return &tg.InputMediaDocument{ID: &tg.InputDocument{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}}, nil
	default:
		return nil, fmt.Errorf("unexpected uploaded media type %T for %s", result, m.Filename)
	}
}

// buttonMarkup converts button rows into an inline keyboard. Returns nil
// when there are no buttons.
func buttonMarkup(rows [][]satorifmt.Button) tg.ReplyMarkupClass {
	if len(rows) == 0 {
		return nil
	}
	markup := &tg.ReplyInlineMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		keyboardRow := tg.KeyboardButtonRow{}
		for _, button := range row {
			switch {
			case button.URL != "":
				keyboardRow.Buttons = append(keyboardRow.Buttons, &tg.KeyboardButtonURL{
					Text: button.Label,
					URL:  button.URL,
				})
			case button.Query != "":
				keyboardRow.Buttons = append(keyboardRow.Buttons, &tg.KeyboardButtonSwitchInline{
					Text:     button.Label,
					Query:    button.Query,
					SamePeer: true,
				})
			default:
				keyboardRow.Buttons = append(keyboardRow.Buttons, &tg.KeyboardButtonCallback{
					Text: button.Label,
					Data: []byte(button.Data),
				})
			}
		}
		markup.Rows = append(markup.Rows, keyboardRow)
	}
	if len(markup.Rows) == 0 {
		return nil
	}
	return markup
}

// sentMessages extracts the messages created by a send call in ID order and
// normalizes them. Short responses carry no message object, so the sent
// text is echoed back into a minimal one.
func (tc *TelegramConnector) sentMessages(ctx context.Context, updates tg.UpdatesClass, text string, entities []tg.MessageEntityClass) []*telegramfmt.Message {
	switch u := updates.(type) {
	case *tg.Updates:
		return tc.collectSent(ctx, u.Updates, u.Users, u.Chats)
	case *tg.UpdatesCombined:
		return tc.collectSent(ctx, u.Updates, u.Users, u.Chats)
	case *tg.UpdateShortSentMessage:
		return []*telegramfmt.Message{{
			ID:       u.ID,
			Text:     text,
			Entities: entities,
			From:     userInfo(tc.client.Self()),
		}}
	default:
		tc.log.Warn().Type("updates", updates).Msg("Unrecognized send response")
		return nil
	}
}

func (tc *TelegramConnector) collectSent(ctx context.Context, updates []tg.UpdateClass, users []tg.UserClass, chats []tg.ChatClass) []*telegramfmt.Message {
	entities := buildEntities(users, chats)
	tc.client.rememberEntities(entities)

	var raw []*tg.Message
	for _, update := range updates {
		var msg tg.MessageClass
		switch u := update.(type) {
		case *tg.UpdateNewMessage:
			msg = u.Message
		case *tg.UpdateNewChannelMessage:
			msg = u.Message
		default:
			continue
		}
		if m, ok := msg.(*tg.Message); ok {
			raw = append(raw, m)
		}
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].ID < raw[j].ID })

	out := make([]*telegramfmt.Message, 0, len(raw))
	for _, m := range raw {
		out = append(out, tc.normalizeMessage(ctx, m, entities, false))
	}
	return out
}

// buildEntities indexes the users and chats attached to an update batch.
func buildEntities(users []tg.UserClass, chats []tg.ChatClass) tg.Entities {
	entities := tg.Entities{
		Users:    make(map[int64]*tg.User, len(users)),
		Chats:    make(map[int64]*tg.Chat),
		Channels: make(map[int64]*tg.Channel),
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			entities.Users[user.ID] = user
		}
	}
	for _, c := range chats {
		switch chat := c.(type) {
		case *tg.Chat:
			entities.Chats[chat.ID] = chat
		case *tg.Channel:
			entities.Channels[chat.ID] = chat
		}
	}
	return entities
}
