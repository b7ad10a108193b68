// Copyright 2024-2026 Aiku AI

// Package telegramfmt converts Telegram entity-annotated messages into the
// generic Satori element tree.
//
// Telegram delivers formatting as a flat list of offset/length entities
// over the plain message text. The decoder turns that list into a properly
// nested tree by sweeping over format-change breakpoints: one start and one
// end event per entity, plus a synthetic event pair per literal line break.
package telegramfmt

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf16"

	"github.com/gotd/td/tg"

	"github.com/aiku/satori-telegram/pkg/satori"
)

// Platform is the platform name used in events and internal locators.
const Platform = "telegram"

// GeoPoint is a shared location attachment.
type GeoPoint struct {
	Lat  float64
	Long float64
}

// FileRef identifies a media object by its Telegram file ID.
type FileRef struct {
	FileID   string
	FileName string
}

// Message is the decoder's normalized view of a Telegram message. The
// connector builds it from raw MTProto objects, resolving identities and
// the replied-to message up front so that decoding stays a pure function.
type Message struct {
	ID       int
	Text     string // message text, or the media caption
	Entities []tg.MessageEntityClass

	From    *satori.User
	ReplyTo *Message
	// IsTopicMessage is set on messages inside a forum topic; TopicCreated
	// marks the synthetic topic-created service message. A reply to that
	// marker is how Telegram models "posted in topic" and must not become
	// a quote.
	IsTopicMessage bool
	TopicCreated   bool

	// MentionUsers resolves text-mention entities to their users.
	MentionUsers map[int64]*satori.User

	// At most one of these is rendered, in this precedence order.
	Location  *GeoPoint
	Photo     *FileRef
	Sticker   *FileRef
	Voice     *FileRef
	Animation *FileRef
	Video     *FileRef
	Document  *FileRef
	Audio     *FileRef
}

// HasMedia reports whether any attachment is present.
func (m *Message) HasMedia() bool {
	return m.Location != nil || m.Photo != nil || m.Sticker != nil || m.Voice != nil ||
		m.Animation != nil || m.Video != nil || m.Document != nil || m.Audio != nil
}

type edge int

const (
	edgeStart edge = iota
	edgeEnd
)

// breakpoint is a point event driving the sweep. ent is nil for the
// synthetic events generated from literal line breaks.
type breakpoint struct {
	pos  int
	edge edge
	ent  tg.MessageEntityClass
}

// styleState is the live formatting state of the sweep. The link and user
// slots are single-valued: starting a new one overwrites, ending one clears
// unconditionally.
type styleState struct {
	bold          bool
	italic        bool
	underline     bool
	strikethrough bool
	code          bool
	pre           bool
	spoiler       bool
	mention       bool
	link          string
	user          *satori.User
}

func (s *styleState) apply(bp breakpoint, users map[int64]*satori.User) {
	if bp.ent == nil {
		return
	}
	on := bp.edge == edgeStart
	switch ent := bp.ent.(type) {
	case *tg.MessageEntityBold:
		s.bold = on
	case *tg.MessageEntityItalic:
		s.italic = on
	case *tg.MessageEntityUnderline:
		s.underline = on
	case *tg.MessageEntityStrike:
		s.strikethrough = on
	case *tg.MessageEntityCode:
		s.code = on
	case *tg.MessageEntityPre:
		s.pre = on
	case *tg.MessageEntitySpoiler:
		s.spoiler = on
	case *tg.MessageEntityMention:
		s.mention = on
	case *tg.MessageEntityTextURL:
		if on {
			s.link = ent.URL
		} else {
			s.link = ""
		}
	case *tg.MessageEntityMentionName:
		if on {
			s.user = mentionUser(users, ent.UserID)
		} else {
			s.user = nil
		}
	}
}

func mentionUser(users map[int64]*satori.User, id int64) *satori.User {
	if user, ok := users[id]; ok {
		return user
	}
	return &satori.User{ID: strconv.FormatInt(id, 10)}
}

// sweepable reports whether the entity participates in the sweep. Other
// entity types (url, hashtag, bot command, …) carry no formatting the
// generic representation models and pass through as plain text.
func sweepable(ent tg.MessageEntityClass) bool {
	switch ent.(type) {
	case *tg.MessageEntityBold, *tg.MessageEntityItalic, *tg.MessageEntityUnderline,
		*tg.MessageEntityStrike, *tg.MessageEntityCode, *tg.MessageEntityPre,
		*tg.MessageEntitySpoiler, *tg.MessageEntityMention,
		*tg.MessageEntityTextURL, *tg.MessageEntityMentionName:
		return true
	default:
		return false
	}
}

// ParseText converts entity-annotated text into an ordered element
// sequence that reproduces the text with formatting applied.
//
// Entity offsets and lengths count UTF-16 code units, the unit Telegram
// uses on the wire; they are converted to rune indices before the sweep.
// Breakpoints are ordered by position; at equal positions all
// entity-derived events sort before line-break events, each entity's start
// before its own end, entities in source list order. This ordering is
// load-bearing: it decides the nesting of adjacent zero-width entities, so
// the sort must be stable.
func ParseText(text string, entities []tg.MessageEntityClass, users map[int64]*satori.User) []*satori.Element {
	runes := []rune(text)
	toRune := utf16Index(runes)

	bps := make([]breakpoint, 0, len(entities)*2)
	for _, ent := range entities {
		if !sweepable(ent) {
			continue
		}
		start := toRune.runeAt(ent.GetOffset())
		end := toRune.runeAt(ent.GetOffset() + ent.GetLength())
		bps = append(bps, breakpoint{pos: start, edge: edgeStart, ent: ent})
		bps = append(bps, breakpoint{pos: end, edge: edgeEnd, ent: ent})
	}
	for i, r := range runes {
		if r == '\n' {
			bps = append(bps, breakpoint{pos: i, edge: edgeStart})
			bps = append(bps, breakpoint{pos: i + 1, edge: edgeEnd})
		}
	}
	sort.SliceStable(bps, func(i, j int) bool { return bps[i].pos < bps[j].pos })

	var state styleState
	var elements []*satori.Element
	lastPos := 0
	for _, bp := range bps {
		if bp.pos > lastPos {
			if content := sliceRunes(runes, lastPos, bp.pos); content != "" {
				elements = append(elements, wrapRun(content, &state))
			}
		}
		state.apply(bp, users)
		lastPos = bp.pos
	}
	if lastPos < len(runes) {
		elements = append(elements, satori.Text(string(runes[lastPos:])))
	}
	return elements
}

// runeIndex maps UTF-16 code unit offsets to rune indices: entry k is the
// index of the rune containing code unit k, with one extra entry for the
// end-of-text position.
type runeIndex []int

func utf16Index(runes []rune) runeIndex {
	m := make([]int, 0, len(runes)+1)
	for i, r := range runes {
		m = append(m, i)
		if utf16.RuneLen(r) == 2 {
			m = append(m, i)
		}
	}
	return append(m, len(runes))
}

// runeAt resolves one UTF-16 offset, clamping out-of-range values.
func (m runeIndex) runeAt(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos >= len(m) {
		return m[len(m)-1]
	}
	return m[pos]
}

// wrapRun wraps one text run according to the fixed wrap order. Each active
// style wraps the previous result as its sole child, innermost first. Two
// overrides apply: an active mention discards all inner wrapping and builds
// a fresh mention from the raw run text, and a run that is exactly one line
// break discards everything in favor of a bare line-break element.
func wrapRun(content string, state *styleState) *satori.Element {
	el := satori.Text(content)
	if state.bold {
		el = satori.Bold(el)
	}
	if state.italic {
		el = satori.Italic(el)
	}
	if state.underline {
		el = satori.Underline(el)
	}
	if state.strikethrough {
		el = satori.Strikethrough(el)
	}
	if state.code {
		el = satori.Code(el)
	}
	if state.pre {
		el = satori.Custom("pre", nil, el)
	}
	if state.spoiler {
		el = satori.Spoiler(el)
	}
	if state.mention {
		el = satori.AtName(stripMarker(content))
	}
	if state.link != "" {
		el = satori.Link(state.link, el)
	}
	if state.user != nil {
		el = satori.AtUser(state.user.ID, state.user.Name, el)
	}
	if content == "\n" {
		el = satori.Br()
	}
	return el
}

// stripMarker drops the leading marker character of a mention run ("@name"
// becomes "name").
func stripMarker(content string) string {
	runes := []rune(content)
	if len(runes) == 0 {
		return content
	}
	return string(runes[1:])
}

func sliceRunes(runes []rune, from, to int) string {
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}
	if to > len(runes) {
		to = len(runes)
	}
	if to < from {
		to = from
	}
	return string(runes[from:to])
}

// Decoder converts normalized Telegram messages into generic message
// objects.
type Decoder struct {
	SelfID int64
}

// Locator builds the opaque internal reference for a Telegram file.
func (d *Decoder) Locator(fileID string) string {
	return fmt.Sprintf("internal:%s/%d/%s", Platform, d.SelfID, fileID)
}

// Decode converts one message. Reply chains are decoded recursively and
// prepended as a quote element carrying the replied-to author's identity
// descriptor and content.
func (d *Decoder) Decode(msg *Message) *satori.MessageObject {
	var elements []*satori.Element

	if msg.ReplyTo != nil && !(msg.IsTopicMessage && msg.ReplyTo.TopicCreated) {
		quoted := d.Decode(msg.ReplyTo)
		children := make([]*satori.Element, 0, len(quoted.Content)+1)
		children = append(children, identityDescriptor(msg.ReplyTo.From))
		children = append(children, quoted.Content...)
		elements = append(elements, satori.Quote(strconv.Itoa(msg.ReplyTo.ID), children...))
	}

	elements = append(elements, ParseText(msg.Text, msg.Entities, msg.MentionUsers)...)

	if msg.Text != "" && msg.HasMedia() {
		elements = append(elements, satori.Text(" "))
	}

	if att := d.attachmentElement(msg); att != nil {
		elements = append(elements, att)
	}

	return satori.NewMessageObject(strconv.Itoa(msg.ID), elements)
}

// attachmentElement renders the message's attachment, if any. The
// precedence order is fixed and at most one element is produced even when
// multiple kinds are set.
func (d *Decoder) attachmentElement(msg *Message) *satori.Element {
	switch {
	case msg.Location != nil:
		return satori.Custom("location", map[string]string{
			"lat": strconv.FormatFloat(msg.Location.Lat, 'f', -1, 64),
			"lon": strconv.FormatFloat(msg.Location.Long, 'f', -1, 64),
		})
	case msg.Photo != nil:
		return satori.Image(d.Locator(msg.Photo.FileID))
	case msg.Sticker != nil:
		return withTitle(satori.Image(d.Locator(msg.Sticker.FileID)), msg.Sticker.FileName)
	case msg.Voice != nil:
		return satori.Audio(d.Locator(msg.Voice.FileID))
	case msg.Animation != nil:
		return withTitle(satori.Image(d.Locator(msg.Animation.FileID)), msg.Animation.FileName)
	case msg.Video != nil:
		return withTitle(satori.Video(d.Locator(msg.Video.FileID)), msg.Video.FileName)
	case msg.Document != nil:
		return withTitle(satori.File(d.Locator(msg.Document.FileID)), msg.Document.FileName)
	case msg.Audio != nil:
		return withTitle(satori.Audio(d.Locator(msg.Audio.FileID)), msg.Audio.FileName)
	default:
		return nil
	}
}

func withTitle(el *satori.Element, title string) *satori.Element {
	if title != "" {
		el.SetAttr("title", title)
	}
	return el
}

// identityDescriptor renders a user as the inline identity element used
// inside reply quotes.
func identityDescriptor(user *satori.User) *satori.Element {
	if user == nil {
		user = &satori.User{}
	}
	return satori.Custom("user", map[string]string{
		"id":     user.ID,
		"name":   user.Name,
		"nick":   user.Nick,
		"avatar": user.Avatar,
		"is-bot": strconv.FormatBool(user.IsBot),
	})
}
