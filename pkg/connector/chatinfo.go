// Copyright 2024-2026 Aiku AI

package connector

import (
	"strings"

	"github.com/gotd/td/tg"

	"github.com/aiku/satori-telegram/pkg/satori"
)

// userInfo converts a Telegram user into generic form. The display name
// joins the first and last name; the username, when set, becomes the nick.
func userInfo(user *tg.User) *satori.User {
	if user == nil {
		return nil
	}
	return &satori.User{
		ID:    MakeUserID(user.ID),
		Name:  displayName(user),
		Nick:  user.Username,
		IsBot: user.Bot,
	}
}

// displayName joins the non-empty name parts with a single space.
func displayName(user *tg.User) string {
	parts := make([]string, 0, 2)
	if user.FirstName != "" {
		parts = append(parts, user.FirstName)
	}
	if user.LastName != "" {
		parts = append(parts, user.LastName)
	}
	return strings.Join(parts, " ")
}

// chatInfo resolves the peer a message arrived in. Private chats become a
// direct channel without a guild; groups and broadcast channels become a
// guild with a single text channel of the same ID.
func chatInfo(peer tg.PeerClass, entities tg.Entities) (*satori.Channel, *satori.Guild) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		channel := &satori.Channel{
			ID:   MakeChannelID(p.UserID),
			Type: satori.ChannelTypeDirect,
		}
		if user, ok := entities.Users[p.UserID]; ok {
			channel.Name = displayName(user)
		}
		return channel, nil
	case *tg.PeerChat:
		name := ""
		if chat, ok := entities.Chats[p.ChatID]; ok {
			name = chat.Title
		}
		return &satori.Channel{
				ID:   MakeChannelID(p.ChatID),
				Type: satori.ChannelTypeText,
				Name: name,
			}, &satori.Guild{
				ID:   MakeChannelID(p.ChatID),
				Name: name,
			}
	case *tg.PeerChannel:
		name := ""
		if channel, ok := entities.Channels[p.ChannelID]; ok {
			name = channel.Title
		}
		return &satori.Channel{
				ID:   MakeChannelID(p.ChannelID),
				Type: satori.ChannelTypeText,
				Name: name,
			}, &satori.Guild{
				ID:   MakeChannelID(p.ChannelID),
				Name: name,
			}
	default:
		return nil, nil
	}
}
