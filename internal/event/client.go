package event

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ClientSummary renders the client fingerprint as one line for reasoner
// prompts, e.g. "Chrome 120.0 on Windows 10 (desktop)".
func (e *AuditEvent) ClientSummary() string {
	raw := strings.TrimSpace(e.NetworkContext.ClientFingerprint.UserAgentRaw)
	if raw == "" {
		return "no user agent"
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return fmt.Sprintf("self-declared bot (%s)", name)
	}

	name, version := ua.Browser()
	if name == "" {
		name = "unknown browser"
	}
	client := strings.TrimSpace(name + " " + version)

	form := "desktop"
	if ua.Mobile() {
		form = "mobile"
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s on %s (%s)", client, os, form)
	}
	return fmt.Sprintf("%s (%s)", client, form)
}
