// Copyright 2024-2026 Aiku AI

package satori

import "testing"

func TestRenderText(t *testing.T) {
	t.Parallel()
	got := Text("a<b").String()
	if got != "a&lt;b" {
		t.Errorf("text render: got %q, want %q", got, "a&lt;b")
	}
}

func TestRenderNested(t *testing.T) {
	t.Parallel()
	got := Bold(Italic(Text("x"))).String()
	if got != "<b><i>x</i></b>" {
		t.Errorf("nested render: got %q, want %q", got, "<b><i>x</i></b>")
	}
}

func TestRenderSelfClosing(t *testing.T) {
	t.Parallel()
	got := Image("http://x/a.png").String()
	if got != `<img src="http://x/a.png"/>` {
		t.Errorf("self-closing render: got %q", got)
	}
}

func TestRenderAttrsSorted(t *testing.T) {
	t.Parallel()
	el := Custom("thing", map[string]string{"b": "2", "a": "1", "c": "3"})
	got := el.String()
	if got != `<thing a="1" b="2" c="3"/>` {
		t.Errorf("attr order: got %q", got)
	}
}

func TestRenderEscapesAttrs(t *testing.T) {
	t.Parallel()
	got := Link(`http://x?a=1&b="2"`, Text("t")).String()
	want := `<a href="http://x?a=1&amp;b=&quot;2&quot;">t</a>`
	if got != want {
		t.Errorf("attr escape: got %q, want %q", got, want)
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	t.Parallel()
	original := `<b attr="1 & 2">`
	got := Unescape(Escape(original))
	if got != original {
		t.Errorf("escape round trip: got %q, want %q", got, original)
	}
}

func TestFlattenText(t *testing.T) {
	t.Parallel()
	el := Bold(Text("a"), Italic(Text("b")), Text("c"))
	if got := el.FlattenText(); got != "abc" {
		t.Errorf("FlattenText: got %q, want %q", got, "abc")
	}
}

func TestKindForTagAliases(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tag  string
		want Kind
	}{
		{"b", KindBold},
		{"strong", KindBold},
		{"em", KindItalic},
		{"del", KindStrikethrough},
		{"ins", KindUnderline},
		{"spl", KindSpoiler},
		{"whatever", KindCustom},
	}
	for _, tt := range tests {
		if got := KindForTag(tt.tag); got != tt.want {
			t.Errorf("KindForTag(%q): got %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestSetAttrAllocates(t *testing.T) {
	t.Parallel()
	el := Br()
	el.SetAttr("k", "v")
	if el.Attr("k") != "v" {
		t.Errorf("SetAttr: got %q, want %q", el.Attr("k"), "v")
	}
	if el.HasAttr("missing") {
		t.Error("HasAttr reported a missing attribute")
	}
}
