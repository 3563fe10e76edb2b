package prompt

import (
	"strings"
	"testing"

	"github.com/satriahrh/voiceassist/domain"
)

func TestComposeKeepsRawTextVerbatim(t *testing.T) {
	c, err := NewComposer("", "")
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}

	inputs := []string{
		"",
		"   ",
		"how much neem oil per litre?",
		"  leading and trailing  ",
		"unicode: ñandú 稲 🌾",
		"already has " + Placeholder + " inside",
		"line one\nline two\t%s %d",
	}

	for _, in := range inputs {
		for _, ch := range []domain.Channel{domain.ChannelText, domain.ChannelVoice} {
			got := c.Compose(in, ch)
			if !strings.Contains(got, in) {
				t.Errorf("Compose(%q, %s) = %q, raw text missing", in, ch, got)
			}
		}
	}
}

func TestComposeUsesChannelTemplate(t *testing.T) {
	c, err := NewComposer("T[{{input}}]", "V[{{input}}]")
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}

	if got := c.Compose("hi", domain.ChannelText); got != "T[hi]" {
		t.Errorf("Expected T[hi], got %s", got)
	}
	if got := c.Compose("hi", domain.ChannelVoice); got != "V[hi]" {
		t.Errorf("Expected V[hi], got %s", got)
	}
	if got := c.Compose("hi", domain.Channel("sms")); got != "T[hi]" {
		t.Errorf("Expected unknown channel to use text template, got %s", got)
	}
}

func TestComposeDefaults(t *testing.T) {
	c, err := NewComposer("", "")
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}

	got := c.Compose("aphids on tomatoes", domain.ChannelText)
	if !strings.HasSuffix(got, "User said: aphids on tomatoes\nRespond helpfully.") {
		t.Errorf("Unexpected text prompt: %q", got)
	}

	got = c.Compose("aphids on tomatoes", domain.ChannelVoice)
	if !strings.HasSuffix(got, "The user said: aphids on tomatoes\nRespond as a helpful assistant.") {
		t.Errorf("Unexpected voice prompt: %q", got)
	}
}

func TestNewComposerRejectsBadTemplates(t *testing.T) {
	if _, err := NewComposer("no placeholder", ""); err == nil {
		t.Error("Expected error for text template without placeholder")
	}
	if _, err := NewComposer("", "{{input}} {{input}}"); err == nil {
		t.Error("Expected error for voice template with two placeholders")
	}
}
