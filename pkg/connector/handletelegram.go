// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
	"github.com/aiku/satori-telegram/pkg/satori"
)

// errMessageNotFound is returned when a message lookup comes back empty.
var errMessageNotFound = errors.New("message not found")

// registerHandlers wires the update dispatcher. Must run before the client
// connects.
func (tc *TelegramConnector) registerHandlers() {
	dispatcher := tc.client.Dispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		tc.handleMessage(ctx, e, update.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		tc.handleMessage(ctx, e, update.Message)
		return nil
	})
	dispatcher.OnBotCallbackQuery(func(ctx context.Context, e tg.Entities, update *tg.UpdateBotCallbackQuery) error {
		tc.handleCallbackQuery(ctx, e, update)
		return nil
	})
}

// handleMessage converts one incoming message into a message-created event.
// Messages sent by the logged-in account are skipped to prevent echo.
func (tc *TelegramConnector) handleMessage(ctx context.Context, entities tg.Entities, raw tg.MessageClass) {
	msg, ok := raw.(*tg.Message)
	if !ok || msg.Out {
		return
	}
	tc.client.rememberEntities(entities)

	normalized := tc.normalizeMessage(ctx, msg, entities, true)
	decoded := tc.decoder.Decode(normalized)

	channel, guild := chatInfo(msg.PeerID, entities)
	event := &satori.Event{
		Type:      satori.EventMessageCreated,
		Platform:  telegramfmt.Platform,
		SelfID:    MakeUserID(tc.client.Self().ID),
		Timestamp: time.Now().UnixMilli(),
		Channel:   channel,
		Guild:     guild,
		User:      normalized.From,
		Message:   decoded,
	}

	tc.log.Debug().
		Int("message_id", msg.ID).
		Str("channel_id", channelID(channel)).
		Msg("Relaying incoming message")
	tc.server.Publish(event)
}

// handleCallbackQuery converts a pressed inline button into an
// interaction/button event and acknowledges the press.
func (tc *TelegramConnector) handleCallbackQuery(ctx context.Context, entities tg.Entities, update *tg.UpdateBotCallbackQuery) {
	tc.server.Publish(tc.buttonEvent(ctx, entities, update))

	_, err := tc.client.API().MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: update.QueryID,
	})
	if err != nil {
		tc.log.Warn().Err(err).Int64("query_id", update.QueryID).Msg("Failed to answer callback query")
	}
}

// buttonEvent builds the interaction/button event for a callback query,
// resolving the message the pressed keyboard hangs off so consumers see the
// press in context.
func (tc *TelegramConnector) buttonEvent(ctx context.Context, entities tg.Entities, update *tg.UpdateBotCallbackQuery) *satori.Event {
	tc.client.rememberEntities(entities)

	var user *satori.User
	if u, ok := entities.Users[update.UserID]; ok {
		user = userInfo(u)
	} else {
		user = &satori.User{ID: MakeUserID(update.UserID)}
	}
	channel, guild := chatInfo(update.Peer, entities)
	data, _ := update.GetData()

	var message *satori.MessageObject
	if raw, err := tc.fetchMessage(ctx, update.Peer, update.MsgID); err != nil {
		tc.log.Warn().Err(err).
			Int("message_id", update.MsgID).
			Msg("Failed to fetch message behind callback query")
	} else {
		message = tc.decoder.Decode(raw)
	}

	return &satori.Event{
		Type:      satori.EventInteractionButton,
		Platform:  telegramfmt.Platform,
		SelfID:    MakeUserID(tc.client.Self().ID),
		Timestamp: time.Now().UnixMilli(),
		Channel:   channel,
		Guild:     guild,
		User:      user,
		Message:   message,
		Button:    &satori.ButtonInteraction{ID: string(data)},
	}
}

// normalizeMessage flattens a raw message into the decoder's input form:
// text with entities, sender identity, classified media, and optionally the
// resolved replied-to message.
func (tc *TelegramConnector) normalizeMessage(ctx context.Context, msg *tg.Message, entities tg.Entities, resolveReply bool) *telegramfmt.Message {
	normalized := &telegramfmt.Message{
		ID:       msg.ID,
		Text:     msg.Message,
		Entities: msg.Entities,
		From:     tc.messageSender(msg, entities),
	}

	for _, ent := range msg.Entities {
		mention, ok := ent.(*tg.MessageEntityMentionName)
		if !ok {
			continue
		}
		if normalized.MentionUsers == nil {
			normalized.MentionUsers = make(map[int64]*satori.User)
		}
		if user, ok := entities.Users[mention.UserID]; ok {
			normalized.MentionUsers[mention.UserID] = userInfo(user)
		}
	}

	tc.normalizeMedia(msg, normalized)

	if header, ok := msg.GetReplyTo(); ok {
		if reply, ok := header.(*tg.MessageReplyHeader); ok {
			normalized.IsTopicMessage = reply.ForumTopic
			if resolveReply && reply.ReplyToMsgID != 0 {
				replied, err := tc.fetchMessage(ctx, msg.PeerID, reply.ReplyToMsgID)
				if err != nil {
					tc.log.Warn().Err(err).
						Int("message_id", msg.ID).
						Int("reply_to", reply.ReplyToMsgID).
						Msg("Failed to fetch replied-to message")
				} else {
					normalized.ReplyTo = replied
				}
			}
		}
	}

	return normalized
}

func (tc *TelegramConnector) messageSender(msg *tg.Message, entities tg.Entities) *satori.User {
	var userID int64
	if from, ok := msg.GetFromID(); ok {
		if peer, ok := from.(*tg.PeerUser); ok {
			userID = peer.UserID
		}
	} else if peer, ok := msg.PeerID.(*tg.PeerUser); ok {
		// Private chats omit from_id; the peer is the other party.
		userID = peer.UserID
	}
	if userID == 0 {
		return nil
	}
	if user, ok := entities.Users[userID]; ok {
		return userInfo(user)
	}
	return &satori.User{ID: MakeUserID(userID)}
}

// normalizeMedia classifies the message's media into exactly one attachment
// slot and caches its download location.
func (tc *TelegramConnector) normalizeMedia(msg *tg.Message, normalized *telegramfmt.Message) {
	media, ok := msg.GetMedia()
	if !ok {
		return
	}
	switch m := media.(type) {
	case *tg.MessageMediaGeo:
		if point, ok := m.Geo.(*tg.GeoPoint); ok {
			normalized.Location = &telegramfmt.GeoPoint{Lat: point.Lat, Long: point.Long}
		}
	case *tg.MessageMediaPhoto:
		if photo, ok := m.Photo.(*tg.Photo); ok {
			normalized.Photo = &telegramfmt.FileRef{FileID: tc.client.registerPhoto(photo)}
		}
	case *tg.MessageMediaDocument:
		if doc, ok := m.Document.(*tg.Document); ok {
			tc.classifyDocument(doc, normalized)
		}
	}
}

func (tc *TelegramConnector) classifyDocument(doc *tg.Document, normalized *telegramfmt.Message) {
	ref := &telegramfmt.FileRef{FileID: tc.client.registerDocument(doc)}

	var sticker, voice, animation, video, audio bool
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			ref.FileName = a.FileName
		case *tg.DocumentAttributeSticker:
			sticker = true
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				voice = true
			} else {
				audio = true
			}
		case *tg.DocumentAttributeAnimated:
			animation = true
		case *tg.DocumentAttributeVideo:
			video = true
		}
	}

	switch {
	case sticker:
		normalized.Sticker = ref
	case voice:
		normalized.Voice = ref
	case animation:
		normalized.Animation = ref
	case video:
		normalized.Video = ref
	case audio:
		normalized.Audio = ref
	default:
		normalized.Document = ref
	}
}

// getRawMessage fetches one message by ID in the given peer and normalizes
// it without resolving its own reply, so quotes stay one level deep.
func (tc *TelegramConnector) getRawMessage(ctx context.Context, peer tg.PeerClass, id int) (*telegramfmt.Message, error) {
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: id}}

	var result tg.MessagesMessagesClass
	var err error
	if channel, ok := peer.(*tg.PeerChannel); ok {
		input, peerErr := tc.client.InputPeer(channel.ChannelID)
		if peerErr != nil {
			return nil, peerErr
		}
		inputChannel, ok := input.(*tg.InputPeerChannel)
		if !ok {
			return nil, fmt.Errorf("peer for channel %d is not a channel", channel.ChannelID)
		}
		result, err = tc.client.API().ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{
				ChannelID:  inputChannel.ChannelID,
				AccessHash: inputChannel.AccessHash,
			},
			ID: ids,
		})
	} else {
		result, err = tc.client.API().MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	var messages []tg.MessageClass
	var users []tg.UserClass
	var chats []tg.ChatClass
	switch res := result.(type) {
	case *tg.MessagesMessages:
		messages, users, chats = res.Messages, res.Users, res.Chats
	case *tg.MessagesMessagesSlice:
		messages, users, chats = res.Messages, res.Users, res.Chats
	case *tg.MessagesChannelMessages:
		messages, users, chats = res.Messages, res.Users, res.Chats
	}
	entities := buildEntities(users, chats)
	tc.client.rememberEntities(entities)

	for _, raw := range messages {
		switch m := raw.(type) {
		case *tg.Message:
			if m.ID == id {
				return tc.normalizeMessage(ctx, m, entities, false), nil
			}
		case *tg.MessageService:
			if m.ID != id {
				continue
			}
			normalized := &telegramfmt.Message{ID: m.ID}
			if _, ok := m.Action.(*tg.MessageActionTopicCreate); ok {
				normalized.TopicCreated = true
			}
			return normalized, nil
		}
	}
	return nil, errMessageNotFound
}

func channelID(channel *satori.Channel) string {
	if channel == nil {
		return ""
	}
	return channel.ID
}
