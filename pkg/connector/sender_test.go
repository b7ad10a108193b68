// Copyright 2024-2026 Aiku AI

package connector

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/aiku/satori-telegram/pkg/connector/satorifmt"
	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
)

func TestButtonMarkup(t *testing.T) {
	t.Parallel()
	rows := [][]satorifmt.Button{
		{
			{Label: "web", URL: "https://x"},
			{Label: "ask", Query: "q"},
			{Label: "go", Data: "cb"},
		},
		{
			{Label: "more", Data: "next"},
		},
	}
	markup := buttonMarkup(rows)
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		t.Fatalf("expected inline markup, got %T", markup)
	}
	if len(inline.Rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(inline.Rows))
	}
	first := inline.Rows[0].Buttons
	if len(first) != 3 {
		t.Fatalf("first row: got %d buttons, want 3", len(first))
	}
	if url, ok := first[0].(*tg.KeyboardButtonURL); !ok || url.URL != "https://x" {
		t.Errorf("url button: got %+v", first[0])
	}
	if sw, ok := first[1].(*tg.KeyboardButtonSwitchInline); !ok || sw.Query != "q" || !sw.SamePeer {
		t.Errorf("switch inline button: got %+v", first[1])
	}
	if cb, ok := first[2].(*tg.KeyboardButtonCallback); !ok || string(cb.Data) != "cb" {
		t.Errorf("callback button: got %+v", first[2])
	}
}

func TestButtonMarkupEmpty(t *testing.T) {
	t.Parallel()
	if got := buttonMarkup(nil); got != nil {
		t.Errorf("empty rows: got %+v, want nil", got)
	}
	if got := buttonMarkup([][]satorifmt.Button{{}}); got != nil {
		t.Errorf("blank row: got %+v, want nil", got)
	}
}

func TestBuildEntities(t *testing.T) {
	t.Parallel()
	entities := buildEntities(
		[]tg.UserClass{&tg.User{ID: 1, FirstName: "A"}},
		[]tg.ChatClass{
			&tg.Chat{ID: 2, Title: "group"},
			&tg.Channel{ID: 3, Title: "channel"},
		},
	)
	if entities.Users[1] == nil || entities.Users[1].FirstName != "A" {
		t.Errorf("users: got %+v", entities.Users)
	}
	if entities.Chats[2] == nil || entities.Chats[2].Title != "group" {
		t.Errorf("chats: got %+v", entities.Chats)
	}
	if entities.Channels[3] == nil || entities.Channels[3].Title != "channel" {
		t.Errorf("channels: got %+v", entities.Channels)
	}
}

func newTestConnector() *TelegramConnector {
	return &TelegramConnector{
		log: zerolog.Nop(),
		client: &Client{
			peers: make(map[int64]tg.InputPeerClass),
			files: make(map[string]fileLocation),
		},
	}
}

func TestClassifyDocumentVoice(t *testing.T) {
	t.Parallel()
	tc := newTestConnector()
	var normalized telegramfmt.Message
	tc.classifyDocument(&tg.Document{
		ID:       5,
		MimeType: "audio/ogg",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeAudio{Voice: true},
		},
	}, &normalized)
	if normalized.Voice == nil {
		t.Fatal("expected voice attachment")
	}
	if normalized.Audio != nil || normalized.Document != nil {
		t.Errorf("expected only voice slot set, got %+v", normalized)
	}
}

func TestClassifyDocumentStickerWins(t *testing.T) {
	t.Parallel()
	tc := newTestConnector()
	var normalized telegramfmt.Message
	tc.classifyDocument(&tg.Document{
		ID:       6,
		MimeType: "image/webp",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{},
			&tg.DocumentAttributeSticker{},
		},
	}, &normalized)
	if normalized.Sticker == nil {
		t.Fatal("expected sticker attachment")
	}
	if normalized.Video != nil {
		t.Error("video slot should be empty when sticker attribute present")
	}
}

func TestClassifyDocumentFilename(t *testing.T) {
	t.Parallel()
	tc := newTestConnector()
	var normalized telegramfmt.Message
	tc.classifyDocument(&tg.Document{
		ID:       7,
		MimeType: "application/pdf",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: "paper.pdf"},
		},
	}, &normalized)
	if normalized.Document == nil || normalized.Document.FileName != "paper.pdf" {
		t.Errorf("document: got %+v", normalized.Document)
	}
}

func TestClassifyDocumentCachesLocation(t *testing.T) {
	t.Parallel()
	tc := newTestConnector()
	var normalized telegramfmt.Message
	tc.classifyDocument(&tg.Document{ID: 8, MimeType: "text/plain"}, &normalized)
	if normalized.Document == nil {
		t.Fatal("expected document attachment")
	}
	if _, ok := tc.client.files[normalized.Document.FileID]; !ok {
		t.Error("expected download location to be cached")
	}
}
