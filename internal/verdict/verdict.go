// Package verdict holds the judgment types shared by the judge and the enforcer.
package verdict

import "strings"

type Decision string

const (
	Block Decision = "BLOCK"
	Allow Decision = "ALLOW"
)

// ParseDecision maps free text onto a decision. Only an explicit ALLOW allows;
// anything else, including CHALLENGE and empty input, is BLOCK.
func ParseDecision(s string) Decision {
	if strings.EqualFold(strings.TrimSpace(s), string(Allow)) {
		return Allow
	}
	return Block
}

// Model is the reasoner tier that produced the final verdict.
type Model string

const (
	Junior Model = "JUNIOR"
	Senior Model = "SENIOR"
)

type Verdict struct {
	Decision   Decision
	Confidence int
	Reasoning  string
	Model      Model
}

// ClampConfidence bounds c to 0..100.
func ClampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
