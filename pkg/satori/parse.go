// Copyright 2024-2026 Aiku AI

package satori

import (
	"strings"

	"golang.org/x/net/html"
)

// Parse converts Satori markup into an element tree. The markup is
// HTML-shaped: self-closing tags (<at id="1"/>), attribute quoting, and
// entity references all follow HTML tokenization rules. Unknown tags are
// preserved as custom elements; stray end tags are ignored.
func Parse(markup string) []*Element {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))

	root := &Element{}
	stack := []*Element{root}

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		top := stack[len(stack)-1]
		switch tt {
		case html.TextToken:
			text := tokenizer.Token().Data
			if text != "" {
				top.Children = append(top.Children, Text(text))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			el := elementFromToken(token)
			top.Children = append(top.Children, el)
			// Void elements never take children even without the
			// self-closing slash.
			if tt == html.StartTagToken && token.Data != "br" && token.Data != "img" {
				stack = append(stack, el)
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			kind := KindForTag(token.Data)
			for i := len(stack) - 1; i > 0; i-- {
				if matchesEndTag(stack[i], kind, token.Data) {
					stack = stack[:i]
					break
				}
			}
		}
	}

	return root.Children
}

func elementFromToken(token html.Token) *Element {
	kind := KindForTag(token.Data)
	el := &Element{Kind: kind}
	if kind == KindCustom {
		el.Tag = token.Data
	}
	if len(token.Attr) > 0 {
		el.Attrs = make(map[string]string, len(token.Attr))
		for _, attr := range token.Attr {
			el.Attrs[attr.Key] = attr.Val
		}
	}
	return el
}

// matchesEndTag reports whether an end tag closes the given open element.
// Comparison is by kind so that alias tags pair up (<strong>…</b> is
// pathological but harmless).
func matchesEndTag(el *Element, kind Kind, tag string) bool {
	if el.Kind == KindCustom {
		return kind == KindCustom && el.Tag == tag
	}
	return el.Kind == kind
}
