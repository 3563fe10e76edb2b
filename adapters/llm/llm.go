// Package llm holds the generation backends behind repositories.LargeLanguageModel.
package llm

import (
	"io"
	"strings"

	"github.com/satriahrh/voiceassist/domain"
)

// maxErrorBody bounds how much of an error response is kept in UpstreamError.
const maxErrorBody = 512

// replyOrFallback maps an empty reply to domain.NoReply.
func replyOrFallback(reply string) string {
	if reply == "" {
		return domain.NoReply
	}
	return reply
}

// readErrorBody returns a bounded, trimmed excerpt of an error response.
func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(body))
}
