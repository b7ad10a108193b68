// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gotd/td/tg"

	"github.com/aiku/satori-telegram/pkg/connector/satorifmt"
	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
	"github.com/aiku/satori-telegram/pkg/satori"
)

var _ satori.Handler = (*TelegramConnector)(nil)

func (tc *TelegramConnector) Platform() string {
	return telegramfmt.Platform
}

func (tc *TelegramConnector) Logins(ctx context.Context) []*satori.Login {
	return []*satori.Login{tc.login()}
}

func (tc *TelegramConnector) LoginGet(ctx context.Context) (*satori.Login, error) {
	return tc.login(), nil
}

func (tc *TelegramConnector) login() *satori.Login {
	self := tc.client.Self()
	login := &satori.Login{
		Status:   satori.LoginOffline,
		Adapter:  "telegram",
		Platform: telegramfmt.Platform,
	}
	if self != nil {
		login.ID = self.ID
		login.Status = satori.LoginOnline
		login.User = userInfo(self)
	}
	return login
}

func (tc *TelegramConnector) UserGet(ctx context.Context, userID string) (*satori.User, error) {
	id, err := ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	peer, err := tc.client.InputPeer(id)
	if err != nil {
		return nil, err
	}
	inputUser, ok := peer.(*tg.InputPeerUser)
	if !ok {
		return nil, fmt.Errorf("peer %s is not a user", userID)
	}

	users, err := tc.client.API().UsersGetUsers(ctx, []tg.InputUserClass{
		&tg.InputUser{UserID: inputUser.UserID, AccessHash: inputUser.AccessHash},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok && user.ID == id {
			return userInfo(user), nil
		}
	}
	return nil, fmt.Errorf("user %s not found", userID)
}

func (tc *TelegramConnector) MessageCreate(ctx context.Context, channelID, content string) ([]*satori.MessageObject, error) {
	sender, err := tc.senderFor(channelID)
	if err != nil {
		return nil, err
	}
	encoder := satorifmt.NewEncoder(sender, tc.fetcher, tc.decoder, tc.log)
	return encoder.Send(ctx, satori.Parse(content))
}

func (tc *TelegramConnector) MessageGet(ctx context.Context, channelID, messageID string) (*satori.MessageObject, error) {
	chatID, err := ParseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	msgID, err := ParseMessageID(messageID)
	if err != nil {
		return nil, err
	}
	peer, err := tc.peerClass(chatID)
	if err != nil {
		return nil, err
	}
	normalized, err := tc.getRawMessage(ctx, peer, msgID)
	if err != nil {
		return nil, err
	}
	return tc.decoder.Decode(normalized), nil
}

func (tc *TelegramConnector) MessageUpdate(ctx context.Context, channelID, messageID, content string) error {
	msgID, err := ParseMessageID(messageID)
	if err != nil {
		return err
	}
	sender, err := tc.senderFor(channelID)
	if err != nil {
		return err
	}
	encoder := satorifmt.NewEncoder(sender, tc.fetcher, tc.decoder, tc.log)
	return encoder.Update(ctx, msgID, satori.Parse(content))
}

// HandleInternal serves the bytes behind an internal locator, downloading
// the referenced file from Telegram on demand.
func (tc *TelegramConnector) HandleInternal(w http.ResponseWriter, r *http.Request, path string) {
	selfID, fileID, err := ParseLocatorPath(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	self := tc.client.Self()
	if self == nil || self.ID != selfID {
		http.Error(w, "unknown login", http.StatusNotFound)
		return
	}

	data, mimeType, err := tc.client.OpenFile(r.Context(), fileID)
	if err != nil {
		tc.log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to serve internal asset")
		http.Error(w, "file not available", http.StatusNotFound)
		return
	}
	if mimeType != "" {
		w.Header().Set("Content-Type", mimeType)
	}
	if _, err := w.Write(data); err != nil {
		tc.log.Debug().Err(err).Str("file_id", fileID).Msg("Internal asset write aborted")
	}
}

func (tc *TelegramConnector) senderFor(channelID string) (*channelSender, error) {
	chatID, err := ParseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	peer, err := tc.client.InputPeer(chatID)
	if err != nil {
		return nil, err
	}
	return &channelSender{tc: tc, peer: peer}, nil
}

// peerClass reconstructs the peer variant of a chat ID from the input peer
// cache.
func (tc *TelegramConnector) peerClass(chatID int64) (tg.PeerClass, error) {
	peer, err := tc.client.InputPeer(chatID)
	if err != nil {
		return nil, err
	}
	switch peer.(type) {
	case *tg.InputPeerUser:
		return &tg.PeerUser{UserID: chatID}, nil
	case *tg.InputPeerChat:
		return &tg.PeerChat{ChatID: chatID}, nil
	case *tg.InputPeerChannel:
		return &tg.PeerChannel{ChannelID: chatID}, nil
	default:
		return nil, fmt.Errorf("unsupported peer type for chat %d", chatID)
	}
}
