// Copyright 2024-2026 Aiku AI

package telegramfmt

import (
	"testing"

	"github.com/gotd/td/tg"

	"github.com/aiku/satori-telegram/pkg/satori"
)

func render(elements []*satori.Element) string {
	return satori.Render(elements)
}

func TestParseTextPlain(t *testing.T) {
	t.Parallel()
	got := render(ParseText("hello world", nil, nil))
	if got != "hello world" {
		t.Errorf("plain text: got %q, want %q", got, "hello world")
	}
}

func TestParseTextEmpty(t *testing.T) {
	t.Parallel()
	elements := ParseText("", nil, nil)
	if len(elements) != 0 {
		t.Errorf("empty text: got %d elements, want 0", len(elements))
	}
}

func TestParseTextWholeBold(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 5},
	}
	got := render(ParseText("hello", entities, nil))
	if got != "<b>hello</b>" {
		t.Errorf("whole bold: got %q, want %q", got, "<b>hello</b>")
	}
}

func TestParseTextOverlappingEntities(t *testing.T) {
	t.Parallel()
	// bold covers [0,4), italic covers [2,6). The overlap region carries
	// both styles, nested per the fixed wrap order (bold innermost).
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 4},
		&tg.MessageEntityItalic{Offset: 2, Length: 4},
	}
	got := render(ParseText("abcdef", entities, nil))
	want := "<b>ab</b><i><b>cd</b></i><i>ef</i>"
	if got != want {
		t.Errorf("overlap: got %q, want %q", got, want)
	}
}

func TestParseTextAdjacentEntities(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 2},
		&tg.MessageEntityItalic{Offset: 2, Length: 2},
	}
	got := render(ParseText("abcd", entities, nil))
	want := "<b>ab</b><i>cd</i>"
	if got != want {
		t.Errorf("adjacent: got %q, want %q", got, want)
	}
}

func TestParseTextLineBreakInterruptsStyle(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 5},
	}
	got := render(ParseText("ab\ncd", entities, nil))
	want := "<b>ab</b><br/><b>cd</b>"
	if got != want {
		t.Errorf("line break: got %q, want %q", got, want)
	}
}

func TestParseTextConsecutiveLineBreaks(t *testing.T) {
	t.Parallel()
	got := render(ParseText("a\n\nb", nil, nil))
	want := "a<br/><br/>b"
	if got != want {
		t.Errorf("consecutive breaks: got %q, want %q", got, want)
	}
}

func TestParseTextZeroLengthEntity(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 2, Length: 0},
	}
	got := render(ParseText("abcd", entities, nil))
	want := "abcd"
	if got != want {
		t.Errorf("zero length: got %q, want %q", got, want)
	}
}

func TestParseTextEntityBeyondEnd(t *testing.T) {
	t.Parallel()
	// The end breakpoint lies past the text, so the style persists to the
	// end instead of being dropped.
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 100},
	}
	got := render(ParseText("hi", entities, nil))
	if got != "<b>hi</b>" {
		t.Errorf("clamped entity: got %q, want %q", got, "<b>hi</b>")
	}
}

func TestParseTextWrapOrder(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityItalic{Offset: 0, Length: 2},
		&tg.MessageEntityBold{Offset: 0, Length: 2},
	}
	// Wrap order is fixed by style, not by entity list order.
	got := render(ParseText("ab", entities, nil))
	if got != "<i><b>ab</b></i>" {
		t.Errorf("wrap order: got %q, want %q", got, "<i><b>ab</b></i>")
	}
}

func TestParseTextStrikethroughUnderline(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityUnderline{Offset: 0, Length: 2},
		&tg.MessageEntityStrike{Offset: 0, Length: 2},
	}
	got := render(ParseText("ab", entities, nil))
	if got != "<s><u>ab</u></s>" {
		t.Errorf("underline+strike: got %q, want %q", got, "<s><u>ab</u></s>")
	}
}

func TestParseTextCodeAndSpoiler(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityCode{Offset: 0, Length: 3},
		&tg.MessageEntitySpoiler{Offset: 0, Length: 3},
	}
	got := render(ParseText("abc", entities, nil))
	if got != "<spl><code>abc</code></spl>" {
		t.Errorf("code+spoiler: got %q, want %q", got, "<spl><code>abc</code></spl>")
	}
}

func TestParseTextMentionDiscardsInnerStyles(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 0, Length: 5},
		&tg.MessageEntityMention{Offset: 0, Length: 5},
	}
	got := render(ParseText("@abel hi", entities, nil))
	want := `<at name="abel"/> hi`
	if got != want {
		t.Errorf("mention: got %q, want %q", got, want)
	}
}

func TestParseTextTextURL(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityTextURL{Offset: 0, Length: 4, URL: "https://example.com"},
	}
	got := render(ParseText("link here", entities, nil))
	want := `<a href="https://example.com">link</a> here`
	if got != want {
		t.Errorf("text url: got %q, want %q", got, want)
	}
}

func TestParseTextMentionName(t *testing.T) {
	t.Parallel()
	users := map[int64]*satori.User{
		42: {ID: "42", Name: "Abel Tesfaye"},
	}
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityMentionName{Offset: 0, Length: 4, UserID: 42},
	}
	got := render(ParseText("Abel", entities, users))
	want := `<at id="42" name="Abel Tesfaye">Abel</at>`
	if got != want {
		t.Errorf("mention name: got %q, want %q", got, want)
	}
}

func TestParseTextMentionNameUnknownUser(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityMentionName{Offset: 0, Length: 4, UserID: 7},
	}
	got := render(ParseText("Abel", entities, nil))
	want := `<at id="7">Abel</at>`
	if got != want {
		t.Errorf("unknown mention: got %q, want %q", got, want)
	}
}

func TestParseTextIgnoresNonFormattingEntities(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityURL{Offset: 0, Length: 19},
		&tg.MessageEntityHashtag{Offset: 20, Length: 4},
	}
	got := render(ParseText("https://example.com #tag", entities, nil))
	if got != "https://example.com #tag" {
		t.Errorf("plain entities: got %q, want %q", got, "https://example.com #tag")
	}
}

func TestParseTextUnicodeOffsets(t *testing.T) {
	t.Parallel()
	// Offsets count UTF-16 code units, not bytes.
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 2, Length: 2},
	}
	got := render(ParseText("日本語です", entities, nil))
	want := "日本<b>語で</b>す"
	if got != want {
		t.Errorf("unicode offsets: got %q, want %q", got, want)
	}
}

func TestParseTextSurrogatePairBeforeEntity(t *testing.T) {
	t.Parallel()
	// The emoji occupies two UTF-16 code units but one rune, so the bold
	// span at unit offset 3 starts at rune index 2.
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 3, Length: 4},
	}
	got := render(ParseText("🙂 bold tail", entities, nil))
	want := "🙂 <b>bold</b> tail"
	if got != want {
		t.Errorf("surrogate pair before entity: got %q, want %q", got, want)
	}
}

func TestParseTextSurrogatePairInsideEntity(t *testing.T) {
	t.Parallel()
	// "🎉b" is three UTF-16 code units but two runes.
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityBold{Offset: 1, Length: 3},
	}
	got := render(ParseText("a🎉bc", entities, nil))
	want := "a<b>🎉b</b>c"
	if got != want {
		t.Errorf("surrogate pair inside entity: got %q, want %q", got, want)
	}
}

func TestParseTextPreBlock(t *testing.T) {
	t.Parallel()
	entities := []tg.MessageEntityClass{
		&tg.MessageEntityPre{Offset: 0, Length: 4, Language: "go"},
	}
	got := render(ParseText("code", entities, nil))
	if got != "<pre>code</pre>" {
		t.Errorf("pre: got %q, want %q", got, "<pre>code</pre>")
	}
}

func newDecoder() *Decoder {
	return &Decoder{SelfID: 1000}
}

func TestLocator(t *testing.T) {
	t.Parallel()
	got := newDecoder().Locator("file99")
	want := "internal:telegram/1000/file99"
	if got != want {
		t.Errorf("Locator: got %q, want %q", got, want)
	}
}

func TestDecodePlainMessage(t *testing.T) {
	t.Parallel()
	msg := &Message{ID: 5, Text: "hi"}
	got := newDecoder().Decode(msg)
	if got.ID != "5" {
		t.Errorf("message ID: got %q, want %q", got.ID, "5")
	}
	if render(got.Content) != "hi" {
		t.Errorf("content: got %q, want %q", render(got.Content), "hi")
	}
}

func TestDecodeCaptionSeparator(t *testing.T) {
	t.Parallel()
	msg := &Message{
		ID:    6,
		Text:  "caption",
		Photo: &FileRef{FileID: "p1"},
	}
	got := render(newDecoder().Decode(msg).Content)
	want := `caption <img src="internal:telegram/1000/p1"/>`
	if got != want {
		t.Errorf("caption: got %q, want %q", got, want)
	}
}

func TestDecodeAttachmentOnly(t *testing.T) {
	t.Parallel()
	msg := &Message{ID: 7, Document: &FileRef{FileID: "d1", FileName: "report.pdf"}}
	got := render(newDecoder().Decode(msg).Content)
	want := `<file src="internal:telegram/1000/d1" title="report.pdf"/>`
	if got != want {
		t.Errorf("document: got %q, want %q", got, want)
	}
}

func TestDecodeAttachmentPrecedence(t *testing.T) {
	t.Parallel()
	// When several kinds are set, only the highest-precedence one renders.
	msg := &Message{
		ID:    8,
		Photo: &FileRef{FileID: "p1"},
		Video: &FileRef{FileID: "v1"},
	}
	got := render(newDecoder().Decode(msg).Content)
	want := `<img src="internal:telegram/1000/p1"/>`
	if got != want {
		t.Errorf("precedence: got %q, want %q", got, want)
	}
}

func TestDecodeLocation(t *testing.T) {
	t.Parallel()
	msg := &Message{ID: 9, Location: &GeoPoint{Lat: 51.5, Long: -0.1}}
	got := render(newDecoder().Decode(msg).Content)
	want := `<location lat="51.5" lon="-0.1"/>`
	if got != want {
		t.Errorf("location: got %q, want %q", got, want)
	}
}

func TestDecodeVoiceAsAudio(t *testing.T) {
	t.Parallel()
	msg := &Message{ID: 10, Voice: &FileRef{FileID: "voc"}}
	got := render(newDecoder().Decode(msg).Content)
	want := `<audio src="internal:telegram/1000/voc"/>`
	if got != want {
		t.Errorf("voice: got %q, want %q", got, want)
	}
}

func TestDecodeReplyQuote(t *testing.T) {
	t.Parallel()
	msg := &Message{
		ID:   11,
		Text: "answer",
		ReplyTo: &Message{
			ID:   4,
			Text: "question",
			From: &satori.User{ID: "9", Name: "Ann"},
		},
	}
	got := newDecoder().Decode(msg)
	if len(got.Content) < 2 {
		t.Fatalf("expected quote plus text, got %d elements", len(got.Content))
	}
	quote := got.Content[0]
	if quote.Kind != satori.KindQuote {
		t.Fatalf("first element: got kind %q, want quote", quote.Kind)
	}
	if quote.Attr("id") != "4" {
		t.Errorf("quote id: got %q, want %q", quote.Attr("id"), "4")
	}
	if len(quote.Children) != 2 {
		t.Fatalf("quote children: got %d, want 2", len(quote.Children))
	}
	identity := quote.Children[0]
	if identity.Kind != satori.KindCustom || identity.Tag != "user" {
		t.Errorf("identity descriptor: got kind %q tag %q", identity.Kind, identity.Tag)
	}
	if identity.Attr("name") != "Ann" {
		t.Errorf("identity name: got %q, want %q", identity.Attr("name"), "Ann")
	}
}

func TestDecodeTopicMarkerReplySkipped(t *testing.T) {
	t.Parallel()
	msg := &Message{
		ID:             12,
		Text:           "in topic",
		IsTopicMessage: true,
		ReplyTo:        &Message{ID: 1, TopicCreated: true},
	}
	got := newDecoder().Decode(msg)
	if render(got.Content) != "in topic" {
		t.Errorf("topic marker: got %q, want %q", render(got.Content), "in topic")
	}
}

func TestDecodeTopicRealReplyKept(t *testing.T) {
	t.Parallel()
	msg := &Message{
		ID:             13,
		Text:           "reply",
		IsTopicMessage: true,
		ReplyTo:        &Message{ID: 2, Text: "earlier"},
	}
	got := newDecoder().Decode(msg)
	if got.Content[0].Kind != satori.KindQuote {
		t.Errorf("real reply in topic: got kind %q, want quote", got.Content[0].Kind)
	}
}
