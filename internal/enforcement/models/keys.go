package models

// Key formats are shared with the upstream risk detector, which reads bans and
// strikes written here. User ids are used verbatim: escaping them would make
// both services disagree on the key.
const (
	blacklistPrefix = "blacklist:"
	strikesPrefix   = "global_strikes:"
	rateLimitPrefix = "rate_limit:"
	seenPrefix      = "auditor:seen:"
)

func BlacklistKey(userID string) string { return blacklistPrefix + userID }

func StrikesKey(userID string) string { return strikesPrefix + userID }

func RateLimitKey(userID string) string { return rateLimitPrefix + userID }

// SeenKey marks an event id as processed. Only this service reads it.
func SeenKey(eventID string) string { return seenPrefix + eventID }
