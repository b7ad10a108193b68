// Copyright 2024-2026 Aiku AI

// Package satorifmt converts generic Satori element trees into
// Telegram-formatted text plus the outgoing send operations that deliver
// them: media uploads, grouped attachments, inline keyboards, and
// multi-message splits.
//
// The encoder is a visitor over the element tree. It accumulates a text
// buffer, a pending-asset queue, and a button grid; at defined boundary
// points it flushes the accumulator, deciding how many physical messages to
// emit and how to anchor replies and keyboards across them. Every message
// the platform returns is decoded back into generic form for the caller.
package satorifmt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
	"github.com/aiku/satori-telegram/pkg/satori"
)

var (
	// ErrEditTooComplex is returned when an update would need more than a
	// single outgoing message: edits cannot carry attachments.
	ErrEditTooComplex = errors.New("content cannot be applied as a single message edit")
	// ErrLinkMissingHref is returned for link elements without a target.
	ErrLinkMissingHref = errors.New("link element has no href attribute")
	// ErrButtonMissingTarget is returned when a button element carries none
	// of the three descriptor forms (href, text, or id).
	ErrButtonMissingTarget = errors.New("button element has no target attribute")
)

// maxButtonsPerRow is the platform limit on inline keyboard row width.
const maxButtonsPerRow = 5

// Button is one inline keyboard button. Exactly one of URL, Query, or Data
// is set.
type Button struct {
	Label string
	URL   string
	Query string
	Data  string
}

// MediaKind classifies an upload for the platform send operation.
type MediaKind int

const (
	MediaPhoto MediaKind = iota
	MediaAudio
	MediaVideo
	MediaDocument
	MediaAnimation
)

// Media is a fully resolved attachment ready for upload.
type Media struct {
	Kind     MediaKind
	Filename string
	Data     []byte
	MIME     string
	Spoiler  bool
	// Caption is Telegram-formatted text attached to this item. Set on at
	// most one item per flush.
	Caption string
}

// Sender issues the platform send operations. Content strings are
// Telegram HTML. A zero replyTo means unanchored.
type Sender interface {
	SendText(ctx context.Context, content string, replyTo int, rows [][]Button) (*telegramfmt.Message, error)
	SendMediaGroup(ctx context.Context, media []Media, replyTo int) ([]*telegramfmt.Message, error)
	SendAnimation(ctx context.Context, media Media, replyTo int) (*telegramfmt.Message, error)
	EditText(ctx context.Context, messageID int, content string, rows [][]Button) error
}

// DownloadedFile is the result of resolving an attachment source.
type DownloadedFile struct {
	Filename string
	Data     []byte
	MIME     string
}

// Fetcher resolves attachment bytes from data:, file:, or http(s): sources.
// timeoutSeconds of zero means the fetcher's default.
type Fetcher interface {
	Fetch(ctx context.Context, url, name string, timeoutSeconds int) (*DownloadedFile, error)
}

type mode int

const (
	modeDefault mode = iota
	modeFigure
)

// Encoder walks an element tree and delivers it to one channel. It is
// created fresh per send or update invocation; the accumulator state never
// outlives the call.
type Encoder struct {
	sender  Sender
	fetcher Fetcher
	decoder *telegramfmt.Decoder
	log     zerolog.Logger

	content string
	assets  []*satori.Element
	mode    mode
	replyTo string
	rows    [][]Button

	edit    bool
	results []*satori.MessageObject
}

// NewEncoder creates an encoder bound to one channel's sender.
func NewEncoder(sender Sender, fetcher Fetcher, decoder *telegramfmt.Decoder, log zerolog.Logger) *Encoder {
	return &Encoder{
		sender:  sender,
		fetcher: fetcher,
		decoder: decoder,
		log:     log.With().Str("component", "encoder").Logger(),
	}
}

// Send renders the elements and flushes whatever remains, returning every
// message created in send order. On failure the messages already produced
// are returned alongside the error.
func (e *Encoder) Send(ctx context.Context, elements []*satori.Element) ([]*satori.MessageObject, error) {
	if err := e.render(ctx, elements); err != nil {
		return e.results, err
	}
	if err := e.flush(ctx); err != nil {
		return e.results, err
	}
	return e.results, nil
}

// Update renders the elements and applies them as a single edit of an
// existing message. Attachments are a contract violation: an edit can only
// ever address one message.
func (e *Encoder) Update(ctx context.Context, messageID int, elements []*satori.Element) error {
	e.edit = true
	if err := e.render(ctx, elements); err != nil {
		return err
	}
	if len(e.assets) > 0 {
		return ErrEditTooComplex
	}
	return e.sender.EditText(ctx, messageID, e.content, compactRows(e.rows))
}

func (e *Encoder) render(ctx context.Context, elements []*satori.Element) error {
	for _, el := range elements {
		if err := e.visit(ctx, el); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) visit(ctx context.Context, el *satori.Element) error {
	switch el.Kind {
	case satori.KindText:
		e.content += satori.Escape(el.Attr("text"))

	case satori.KindLineBreak:
		e.content += "\n"

	case satori.KindParagraph:
		e.ensureBlankLine()
		if err := e.render(ctx, el.Children); err != nil {
			return err
		}
		e.ensureBlankLine()

	case satori.KindBold:
		return e.wrap(ctx, "b", el)
	case satori.KindItalic:
		return e.wrap(ctx, "i", el)
	case satori.KindUnderline:
		return e.wrap(ctx, "u", el)
	case satori.KindStrikethrough:
		return e.wrap(ctx, "s", el)
	case satori.KindSpoiler:
		return e.wrap(ctx, "tg-spoiler", el)

	case satori.KindLink:
		href := el.Attr("href")
		if href == "" {
			return ErrLinkMissingHref
		}
		e.content += `<a href="` + satori.Escape(href) + `">`
		if err := e.render(ctx, el.Children); err != nil {
			return err
		}
		e.content += "</a>"

	case satori.KindCode:
		e.content += "<code>"
		if el.HasAttr("content") {
			e.content += satori.Escape(el.Attr("content"))
		} else if err := e.render(ctx, el.Children); err != nil {
			return err
		}
		e.content += "</code>"

	case satori.KindCodeBlock:
		if lang := el.Attr("lang"); lang != "" {
			e.content += `<pre><code class="language-` + satori.Escape(lang) + `">`
		} else {
			e.content += "<pre><code>"
		}
		if err := e.render(ctx, el.Children); err != nil {
			return err
		}
		e.content += "</code></pre>"

	case satori.KindMention:
		// A mention without a target id cannot be addressed on Telegram
		// and is dropped.
		if id := el.Attr("id"); id != "" {
			name := el.Attr("name")
			if name == "" {
				name = id
			}
			e.content += `<a href="tg://user?id=` + id + `">@` + satori.Escape(name) + "</a>"
		}

	case satori.KindImage, satori.KindAudio, satori.KindVideo, satori.KindFile:
		e.assets = append(e.assets, el)

	case satori.KindFigure:
		// A figure's caption and media always form one outgoing unit,
		// never merged with surrounding content.
		if err := e.flush(ctx); err != nil {
			return err
		}
		e.mode = modeFigure
		if err := e.render(ctx, el.Children); err != nil {
			return err
		}
		if err := e.flush(ctx); err != nil {
			return err
		}
		e.mode = modeDefault

	case satori.KindQuote:
		if id := el.Attr("id"); id != "" {
			if err := e.flush(ctx); err != nil {
				return err
			}
			e.replyTo = id
		} else {
			e.content += "<blockquote>"
			if err := e.render(ctx, el.Children); err != nil {
				return err
			}
			e.content += "</blockquote>"
		}

	case satori.KindButton:
		return e.addButton(el)

	case satori.KindButtonGroup:
		// Fresh row boundaries on both sides keep grouped buttons from
		// sharing a row with outside buttons.
		e.rows = append(e.rows, nil)
		if err := e.render(ctx, el.Children); err != nil {
			return err
		}
		e.rows = append(e.rows, nil)

	case satori.KindMessage:
		if e.mode == modeFigure {
			if err := e.render(ctx, el.Children); err != nil {
				return err
			}
			e.content += "\n"
		} else {
			if err := e.flush(ctx); err != nil {
				return err
			}
			if err := e.render(ctx, el.Children); err != nil {
				return err
			}
			if err := e.flush(ctx); err != nil {
				return err
			}
		}

	default:
		// Unknown wrappers are transparent.
		return e.render(ctx, el.Children)
	}
	return nil
}

func (e *Encoder) wrap(ctx context.Context, tag string, el *satori.Element) error {
	e.content += "<" + tag + ">"
	if err := e.render(ctx, el.Children); err != nil {
		return err
	}
	e.content += "</" + tag + ">"
	return nil
}

// ensureBlankLine terminates the buffer with exactly one blank line, unless
// the buffer is empty or already ends with one.
func (e *Encoder) ensureBlankLine() {
	switch {
	case e.content == "" || strings.HasSuffix(e.content, "\n\n"):
	case strings.HasSuffix(e.content, "\n"):
		e.content += "\n"
	default:
		e.content += "\n\n"
	}
}

func (e *Encoder) addButton(el *satori.Element) error {
	if len(e.rows) == 0 {
		e.rows = append(e.rows, nil)
	}
	if len(e.rows[len(e.rows)-1]) >= maxButtonsPerRow {
		e.rows = append(e.rows, nil)
	}

	button := Button{Label: el.FlattenText()}
	switch el.Attr("type") {
	case "link":
		button.URL = el.Attr("href")
		if button.URL == "" {
			return ErrButtonMissingTarget
		}
	case "input":
		button.Query = el.Attr("text")
		if button.Query == "" {
			return ErrButtonMissingTarget
		}
	default:
		button.Data = el.Attr("id")
		if button.Data == "" {
			return ErrButtonMissingTarget
		}
	}

	last := len(e.rows) - 1
	e.rows[last] = append(e.rows[last], button)
	return nil
}

// flush drains the accumulator into zero or more send operations. In edit
// mode content accumulates across boundaries instead, since an update only
// ever addresses one existing message; pending assets are rejected there.
func (e *Encoder) flush(ctx context.Context) error {
	if e.edit {
		if len(e.assets) > 0 {
			return ErrEditTooComplex
		}
		return nil
	}
	if e.content == "" && len(e.assets) == 0 {
		return nil
	}
	defer e.reset()

	rows := compactRows(e.rows)
	hasButtons := len(rows) > 0

	replyTo, err := e.replyTarget()
	if err != nil {
		return err
	}

	e.log.Debug().
		Int("content_len", len(e.content)).
		Int("assets", len(e.assets)).
		Int("button_rows", len(rows)).
		Int("reply_to", replyTo).
		Msg("Flushing outgoing message")

	if len(e.assets) == 0 {
		sent, err := e.sender.SendText(ctx, e.content, replyTo, rows)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		e.addResult(sent)
		return nil
	}

	grouped, animations, err := e.resolveAssets(ctx)
	if err != nil {
		return err
	}

	// Without buttons the text rides along as the caption of the first
	// attachment; with buttons it moves to the trailing keyboard message.
	if !hasButtons {
		if len(grouped) > 0 {
			grouped[0].Caption = e.content
		} else if len(animations) > 0 {
			animations[0].Caption = e.content
		}
	}

	var sentMessages []*telegramfmt.Message

	if len(grouped) > 0 {
		sent, err := e.sender.SendMediaGroup(ctx, grouped, replyTo)
		if err != nil {
			return fmt.Errorf("failed to send media group: %w", err)
		}
		sentMessages = append(sentMessages, sent...)
	}

	for _, animation := range animations {
		anchor := replyTo
		if len(sentMessages) > 0 {
			anchor = sentMessages[0].ID
		}
		sent, err := e.sender.SendAnimation(ctx, animation, anchor)
		if err != nil {
			return fmt.Errorf("failed to send animation: %w", err)
		}
		sentMessages = append(sentMessages, sent)
	}

	if hasButtons {
		anchor := replyTo
		if len(sentMessages) > 0 {
			anchor = sentMessages[0].ID
		}
		sent, err := e.sender.SendText(ctx, e.content, anchor, rows)
		if err != nil {
			return fmt.Errorf("failed to send keyboard message: %w", err)
		}
		sentMessages = append(sentMessages, sent)
	}

	for _, sent := range sentMessages {
		e.addResult(sent)
	}
	return nil
}

// compactRows drops empty rows, which appear as boundary markers around
// button groups. Returns nil when no buttons remain.
func compactRows(rows [][]Button) [][]Button {
	var out [][]Button
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}

// resolveAssets fetches every pending asset and partitions the results
// into the grouped-upload batch and the individually sent animations,
// preserving relative order within each partition. Any fetch failure fails
// the whole flush.
func (e *Encoder) resolveAssets(ctx context.Context) (grouped, animations []Media, err error) {
	for i, el := range e.assets {
		src := el.Attr("src")
		if src == "" {
			src = el.Attr("url")
		}
		timeout := 0
		if t := el.Attr("timeout"); t != "" {
			timeout, _ = strconv.Atoi(t)
		}

		file, err := e.fetcher.Fetch(ctx, src, el.Attr("title"), timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch attachment %q: %w", src, err)
		}

		media := Media{
			Filename: strconv.Itoa(i) + file.Filename,
			Data:     file.Data,
			MIME:     file.MIME,
			Spoiler:  el.HasAttr("spoiler"),
		}

		switch {
		case file.MIME == "image/gif":
			media.Kind = MediaAnimation
			animations = append(animations, media)
		case el.Kind == satori.KindImage:
			media.Kind = MediaPhoto
			grouped = append(grouped, media)
		case el.Kind == satori.KindAudio:
			media.Kind = MediaAudio
			grouped = append(grouped, media)
		case el.Kind == satori.KindVideo:
			media.Kind = MediaVideo
			grouped = append(grouped, media)
		default:
			media.Kind = MediaDocument
			grouped = append(grouped, media)
		}
	}
	return grouped, animations, nil
}

func (e *Encoder) replyTarget() (int, error) {
	if e.replyTo == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(e.replyTo)
	if err != nil {
		return 0, fmt.Errorf("invalid reply target %q: %w", e.replyTo, err)
	}
	return id, nil
}

func (e *Encoder) addResult(sent *telegramfmt.Message) {
	e.results = append(e.results, e.decoder.Decode(sent))
}

// reset returns the accumulator to its initial state. Explicit so that no
// state leaks across flush boundaries.
func (e *Encoder) reset() {
	e.content = ""
	e.assets = nil
	e.replyTo = ""
	e.rows = nil
}
