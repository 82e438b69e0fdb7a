package delivery

import "testing"

func TestEscapeText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a < b & c > d", "a &lt; b &amp; c &gt; d"},
		{"plain", "plain"},
		{"&amp;", "&amp;amp;"}, // full escape double-encodes on purpose
	}
	for _, tt := range tests {
		if got := EscapeText(tt.in); got != tt.want {
			t.Errorf("EscapeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeAmpersands(t *testing.T) {
	tests := []struct{ in, want string }{
		{"fish & chips", "fish &amp; chips"},
		{"&amp; stays", "&amp; stays"},
		{"&lt;b&gt;", "&lt;b&gt;"},
		{"&#39;s fine", "&#39;s fine"},
		{"&#x1F600; too", "&#x1F600; too"},
		{"tail &", "tail &amp;"},
		{"&& double", "&amp;&amp; double"},
		{"&ampersand word", "&amp;ampersand word"},
	}
	for _, tt := range tests {
		if got := EscapeAmpersands(tt.in); got != tt.want {
			t.Errorf("EscapeAmpersands(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFixHTMLTags(t *testing.T) {
	tests := []struct{ name, in, want string }{
		{"balanced", "<b>bold</b> and <i>italic</i>", "<b>bold</b> and <i>italic</i>"},
		{"unclosed", "<b>bold forever", "<b>bold forever</b>"},
		{"stray close", "no open</b> here", "no open here"},
		{"nested unclosed", "<b><i>both open", "<b><i>both open</i></b>"},
		{"mismatched close dropped", "<b>text</i>", "<b>text</b>"},
		{"code block", "<pre>x < y</pre>", "<pre>x < y</pre>"},
		{"plain", "nothing to do", "nothing to do"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixHTMLTags(tt.in); got != tt.want {
				t.Errorf("FixHTMLTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanSummary(t *testing.T) {
	tests := []struct{ name, in, want string }{
		{
			"preamble stripped",
			"Sure, here is the summary you asked for:\n\n📺 <b>Title</b>\nbody",
			"📺 <b>Title</b>\nbody",
		},
		{
			"trailing rule stripped",
			"📺 summary body\n\n---\n",
			"📺 summary body",
		},
		{
			"mid-text rule kept",
			"📺 part one\n---\npart two",
			"📺 part one\n---\npart two",
		},
		{
			"no marker passes through",
			"just text without the header",
			"just text without the header",
		},
		{
			"whitespace trimmed",
			"\n\n📺 body\n\n",
			"📺 body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanSummary(tt.in); got != tt.want {
				t.Errorf("CleanSummary(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
