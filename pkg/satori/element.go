// Copyright 2024-2026 Aiku AI

// Package satori implements the platform-neutral message representation of
// the Satori protocol: the element tree, the markup codec, the resource
// model, and the server surface that adapters plug into.
package satori

import (
	"sort"
	"strings"
)

// Kind identifies an element variant. The set is closed except for
// KindCustom, which carries the original tag in Element.Tag.
type Kind string

const (
	KindText          Kind = "text"
	KindLineBreak     Kind = "br"
	KindParagraph     Kind = "p"
	KindBold          Kind = "bold"
	KindItalic        Kind = "italic"
	KindUnderline     Kind = "underline"
	KindStrikethrough Kind = "strikethrough"
	KindSpoiler       Kind = "spoiler"
	KindCode          Kind = "code"
	KindCodeBlock     Kind = "code-block"
	KindLink          Kind = "link"
	KindMention       Kind = "mention"
	KindQuote         Kind = "quote"
	KindImage         Kind = "image"
	KindAudio         Kind = "audio"
	KindVideo         Kind = "video"
	KindFile          Kind = "file"
	KindFigure        Kind = "figure"
	KindButton        Kind = "button"
	KindButtonGroup   Kind = "button-group"
	KindMessage       Kind = "message"
	KindCustom        Kind = "custom"
)

// Element is one node of the generic message tree.
type Element struct {
	Kind     Kind
	Tag      string // original tag name, set for KindCustom only
	Attrs    map[string]string
	Children []*Element
}

// tagToKind maps markup tag names (including common aliases) to kinds.
var tagToKind = map[string]Kind{
	"br":           KindLineBreak,
	"p":            KindParagraph,
	"b":            KindBold,
	"strong":       KindBold,
	"i":            KindItalic,
	"em":           KindItalic,
	"u":            KindUnderline,
	"ins":          KindUnderline,
	"s":            KindStrikethrough,
	"del":          KindStrikethrough,
	"spl":          KindSpoiler,
	"spoiler":      KindSpoiler,
	"code":         KindCode,
	"code-block":   KindCodeBlock,
	"a":            KindLink,
	"at":           KindMention,
	"quote":        KindQuote,
	"img":          KindImage,
	"image":        KindImage,
	"audio":        KindAudio,
	"video":        KindVideo,
	"file":         KindFile,
	"figure":       KindFigure,
	"button":       KindButton,
	"button-group": KindButtonGroup,
	"message":      KindMessage,
}

// kindToTag maps kinds back to their canonical markup tag.
var kindToTag = map[Kind]string{
	KindLineBreak:     "br",
	KindParagraph:     "p",
	KindBold:          "b",
	KindItalic:        "i",
	KindUnderline:     "u",
	KindStrikethrough: "s",
	KindSpoiler:       "spl",
	KindCode:          "code",
	KindCodeBlock:     "code-block",
	KindLink:          "a",
	KindMention:       "at",
	KindQuote:         "quote",
	KindImage:         "img",
	KindAudio:         "audio",
	KindVideo:         "video",
	KindFile:          "file",
	KindFigure:        "figure",
	KindButton:        "button",
	KindButtonGroup:   "button-group",
	KindMessage:       "message",
}

// KindForTag resolves a markup tag to its element kind. Unknown tags map to
// KindCustom.
func KindForTag(tag string) Kind {
	if kind, ok := tagToKind[tag]; ok {
		return kind
	}
	return KindCustom
}

// Text creates a plain text run.
func Text(content string) *Element {
	return &Element{Kind: KindText, Attrs: map[string]string{"text": content}}
}

// Br creates a line break.
func Br() *Element {
	return &Element{Kind: KindLineBreak}
}

// Bold wraps children in a bold element.
func Bold(children ...*Element) *Element {
	return &Element{Kind: KindBold, Children: children}
}

// Italic wraps children in an italic element.
func Italic(children ...*Element) *Element {
	return &Element{Kind: KindItalic, Children: children}
}

// Underline wraps children in an underline element.
func Underline(children ...*Element) *Element {
	return &Element{Kind: KindUnderline, Children: children}
}

// Strikethrough wraps children in a strikethrough element.
func Strikethrough(children ...*Element) *Element {
	return &Element{Kind: KindStrikethrough, Children: children}
}

// Code wraps children in an inline code element.
func Code(children ...*Element) *Element {
	return &Element{Kind: KindCode, Children: children}
}

// Spoiler wraps children in a spoiler element.
func Spoiler(children ...*Element) *Element {
	return &Element{Kind: KindSpoiler, Children: children}
}

// Link creates a hyperlink wrapping children.
func Link(href string, children ...*Element) *Element {
	return &Element{Kind: KindLink, Attrs: map[string]string{"href": href}, Children: children}
}

// AtName creates a mention by display name only.
func AtName(name string) *Element {
	return &Element{Kind: KindMention, Attrs: map[string]string{"name": name}}
}

// AtUser creates a mention of a specific user wrapping children.
func AtUser(id, name string, children ...*Element) *Element {
	attrs := map[string]string{"id": id}
	if name != "" {
		attrs["name"] = name
	}
	return &Element{Kind: KindMention, Attrs: attrs, Children: children}
}

// Quote creates a quote element referencing a message by ID.
func Quote(id string, children ...*Element) *Element {
	return &Element{Kind: KindQuote, Attrs: map[string]string{"id": id}, Children: children}
}

// Image creates an image element pointing at src.
func Image(src string) *Element {
	return &Element{Kind: KindImage, Attrs: map[string]string{"src": src}}
}

// Audio creates an audio element pointing at src.
func Audio(src string) *Element {
	return &Element{Kind: KindAudio, Attrs: map[string]string{"src": src}}
}

// Video creates a video element pointing at src.
func Video(src string) *Element {
	return &Element{Kind: KindVideo, Attrs: map[string]string{"src": src}}
}

// File creates a generic file element pointing at src.
func File(src string) *Element {
	return &Element{Kind: KindFile, Attrs: map[string]string{"src": src}}
}

// Custom creates an element of an unrecognized tag.
func Custom(tag string, attrs map[string]string, children ...*Element) *Element {
	return &Element{Kind: KindCustom, Tag: tag, Attrs: attrs, Children: children}
}

// SetAttr sets a single attribute, allocating the map on first use, and
// returns the element for chaining.
func (el *Element) SetAttr(key, value string) *Element {
	if el.Attrs == nil {
		el.Attrs = make(map[string]string, 2)
	}
	el.Attrs[key] = value
	return el
}

// Attr returns the value of an attribute, or "" when absent.
func (el *Element) Attr(key string) string {
	return el.Attrs[key]
}

// HasAttr reports whether the attribute is present, regardless of value.
func (el *Element) HasAttr(key string) bool {
	_, ok := el.Attrs[key]
	return ok
}

// FlattenText returns the concatenated plain text content of the element
// and all of its descendants. Used for button labels.
func (el *Element) FlattenText() string {
	var sb strings.Builder
	el.flattenText(&sb)
	return sb.String()
}

func (el *Element) flattenText(sb *strings.Builder) {
	if el.Kind == KindText {
		sb.WriteString(el.Attrs["text"])
	}
	for _, child := range el.Children {
		child.flattenText(sb)
	}
}

// String serializes the element to Satori markup.
func (el *Element) String() string {
	var sb strings.Builder
	el.writeTo(&sb)
	return sb.String()
}

func (el *Element) writeTo(sb *strings.Builder) {
	if el.Kind == KindText {
		sb.WriteString(Escape(el.Attrs["text"]))
		return
	}
	tag := el.Tag
	if el.Kind != KindCustom {
		tag = kindToTag[el.Kind]
	}
	sb.WriteByte('<')
	sb.WriteString(tag)
	for _, key := range sortedKeys(el.Attrs) {
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteString(`="`)
		sb.WriteString(Escape(el.Attrs[key]))
		sb.WriteByte('"')
	}
	if len(el.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	for _, child := range el.Children {
		child.writeTo(sb)
	}
	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteByte('>')
}

// Render serializes a sequence of elements to Satori markup.
func Render(elements []*Element) string {
	var sb strings.Builder
	for _, el := range elements {
		el.writeTo(&sb)
	}
	return sb.String()
}

func sortedKeys(attrs map[string]string) []string {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

var unescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&amp;", "&",
)

// Escape replaces markup-significant characters with entity references.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	return unescaper.Replace(s)
}
