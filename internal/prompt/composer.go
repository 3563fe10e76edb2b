// Package prompt turns raw user text into the finished prompt sent to the LLM.
package prompt

import (
	"fmt"
	"strings"

	"github.com/satriahrh/voiceassist/domain"
)

// Placeholder marks where the raw user text goes inside a template.
const Placeholder = "{{input}}"

const persona = "You are an experienced agronomist who advises farmers on crops, pests and safe pesticide use. " +
	"Answer in plain language and keep the answer under 80 words.\n"

// Default templates, one per channel.
const (
	DefaultTextTemplate  = persona + "User said: " + Placeholder + "\nRespond helpfully."
	DefaultVoiceTemplate = persona + "The user said: " + Placeholder + "\nRespond as a helpful assistant."
)

// Composer maps raw text to a prompt using a fixed template per channel.
type Composer struct {
	templates map[domain.Channel]string
}

// ValidateTemplate checks that a template embeds the placeholder exactly once.
func ValidateTemplate(tmpl string) error {
	switch n := strings.Count(tmpl, Placeholder); n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("template must contain %s", Placeholder)
	default:
		return fmt.Errorf("template must contain %s exactly once, found %d", Placeholder, n)
	}
}

// NewComposer validates both templates. Empty templates fall back to the defaults.
func NewComposer(textTemplate, voiceTemplate string) (*Composer, error) {
	if textTemplate == "" {
		textTemplate = DefaultTextTemplate
	}
	if voiceTemplate == "" {
		voiceTemplate = DefaultVoiceTemplate
	}
	if err := ValidateTemplate(textTemplate); err != nil {
		return nil, fmt.Errorf("text template: %w", err)
	}
	if err := ValidateTemplate(voiceTemplate); err != nil {
		return nil, fmt.Errorf("voice template: %w", err)
	}

	return &Composer{
		templates: map[domain.Channel]string{
			domain.ChannelText:  textTemplate,
			domain.ChannelVoice: voiceTemplate,
		},
	}, nil
}

// Compose embeds rawText verbatim in the channel's template.
// Unknown channels use the text template.
func (c *Composer) Compose(rawText string, channel domain.Channel) string {
	tmpl, ok := c.templates[channel]
	if !ok {
		tmpl = c.templates[domain.ChannelText]
	}
	// Only the template is scanned; placeholders typed by the user stay as they are.
	i := strings.Index(tmpl, Placeholder)
	return tmpl[:i] + rawText + tmpl[i+len(Placeholder):]
}
