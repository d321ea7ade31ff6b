package reasoner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

// Raw is a judge reply. Fields holds the decoded JSON object when the reply
// had one; Text is always the reply as received.
type Raw struct {
	Fields map[string]any
	Text   string
}

// ParseObject decodes the first JSON object in text. Markdown code fences and
// chatter around the object are tolerated. On failure Raw carries only Text and
// the error wraps sentinel.ErrUnparsable.
func ParseObject(text string) (Raw, error) {
	raw := Raw{Text: text}
	body, ok := extract(text, '{', '}')
	if !ok {
		return raw, fmt.Errorf("%w: no JSON object in reply", sentinel.ErrUnparsable)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return raw, fmt.Errorf("%w: %v", sentinel.ErrUnparsable, err)
	}
	raw.Fields = fields
	return raw, nil
}

// ParseStringList decodes the first JSON array of strings in text.
func ParseStringList(text string) ([]string, error) {
	body, ok := extract(text, '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON list in reply", sentinel.ErrUnparsable)
	}
	var list []string
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnparsable, err)
	}
	return list, nil
}

// extract returns the outermost open..close span, skipping code fences.
func extract(text string, open, close byte) (string, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
