// Copyright 2024-2026 Aiku AI

package connector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
)

// MakeChannelID formats a Telegram chat ID as a Satori channel ID.
func MakeChannelID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// ParseChannelID extracts the Telegram chat ID from a channel ID.
func ParseChannelID(channelID string) (int64, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid channel ID %q: %w", channelID, err)
	}
	return id, nil
}

// MakeUserID formats a Telegram user ID as a Satori user ID.
func MakeUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// ParseUserID extracts the Telegram user ID from a user ID.
func ParseUserID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", userID, err)
	}
	return id, nil
}

// MakeMessageID formats a Telegram message ID as a Satori message ID.
func MakeMessageID(messageID int) string {
	return strconv.Itoa(messageID)
}

// ParseMessageID extracts the Telegram message ID from a message ID.
func ParseMessageID(messageID string) (int, error) {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return 0, fmt.Errorf("invalid message ID %q: %w", messageID, err)
	}
	return id, nil
}

// ParseLocatorPath splits the path of an internal locator
// (telegram/<selfID>/<fileID>, the "internal:" prefix already stripped)
// into its self ID and file ID.
func ParseLocatorPath(path string) (selfID int64, fileID string, err error) {
	parts := strings.SplitN(path, "/", 3)
	if len(parts) != 3 || parts[0] != telegramfmt.Platform {
		return 0, "", fmt.Errorf("invalid internal path %q", path)
	}
	selfID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid self ID in internal path %q: %w", path, err)
	}
	if parts[2] == "" {
		return 0, "", fmt.Errorf("empty file ID in internal path %q", path)
	}
	return selfID, parts[2], nil
}
