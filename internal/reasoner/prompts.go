package reasoner

import (
	"strings"
	"text/template"
)

type promptData struct {
	Log      string
	Client   string
	Policies string
	Prior    string
}

var triagePrompt = template.Must(template.New("triage").Parse(`You are a Security Triage Officer. Analyze this audit log.
Extract 3-5 specific keywords or phrases to search for in the company security policy.

- Focus on the user role (e.g. "Executive", "Intern").
- Focus on the anomaly (e.g. "Impossible Travel", "VPN").
- Focus on the action (e.g. "Wire Transfer").

Log: {{.Log}}
Client: {{.Client}}

Return ONLY a JSON list of strings. Example: ["executive travel policy", "VPN usage rules"]`))

const sentinelContext = `SENTINEL ANALYSIS CONTEXT:
- "decision": "CHALLENGE" means the detector found suspicious behavioral patterns and required
  additional verification. This is an ELEVATED RISK signal.
- "decision": "ALLOW" means the detector found the behavior acceptable.
- "decision": "BLOCK" means the detector found definitive bot or attack behavior.

ANOMALY VECTOR TYPES:
- "keystroke_anomaly_X_confidence_Y": typing deviates from the user's learned baseline.
  X is severity (0-1), Y is confidence.
- "keystroke_elevated_X_confidence_Y": moderately elevated typing anomaly.
- "mouse_teleportation_X": X fraction of clicks had no preceding mouse movement. Humans
  always produce micro-movements before clicking.
- "dwell_time_*_high/low": individual keystroke timing deviations.
- "flight_time_*_high/low": inter-key timing deviations.
- "unknown_user_agent": non-standard browser user agent.`

var juniorPrompt = template.Must(template.New("junior").Parse(`You are a Junior Security Analyst reviewing behavioral biometric logs.
Task: decide if this user should be BLOCKED or ALLOWED based strictly on the policy.

` + sentinelContext + `

The Log: {{.Log}}
Client: {{.Client}}

The Policies:
{{.Policies}}

INSTRUCTIONS:
1. If the policy explicitly permits the behavior, ALLOW it.
2. If the policy prohibits it, BLOCK it.
3. If sentinel_analysis.decision is "CHALLENGE" with risk_score > 0.7 AND anomaly_vectors
   are present, this is strong evidence of non-human behavior. Lean toward BLOCK.
4. If you are not 100% sure, give a low confidence score.

Return a JSON object with:
- decision: "BLOCK" or "ALLOW"
- confidence: an integer 0-100
- reasoning: one short sentence.

RESPOND WITH ONLY THE JSON OBJECT. NO text before or after. NO markdown.`))

var seniorPrompt = template.Must(template.New("senior").Parse(`You are a CISO (Chief Information Security Officer).
A Junior Analyst was unsure about this case. Make the final decision.

THE SCENARIO:
Log: {{.Log}}
Client: {{.Client}}
Policies: {{.Policies}}
Junior's Doubt: "{{.Prior}}"

SENTINEL ML CONTEXT:
- "CHALLENGE" decisions mean the detector saw behavioral anomalies during the session and
  forced the user to re-verify by typing.
- A high risk_score (>0.7) combined with keystroke_anomaly or mouse_teleportation vectors is
  strong evidence of automated behavior, even if the exact policy threshold is not reached.
- "unknown_user_agent" alone may be a niche browser or new device. It is only suspicious
  when combined with other vectors.
- keystroke_anomaly vectors mean the typing pattern is statistically anomalous against the
  user's baseline. This IS a behavioral biometric failure.
- mouse_teleportation vectors mean the cursor reached click targets without traversing the
  space in between, which a real mouse cannot do.

CRITICAL - CUMULATIVE EVIDENCE:
Judge the anomaly_vectors as a whole. A single vector may be benign. Multiple vectors together
(unknown_user_agent + keystroke_anomaly + mouse_teleportation) are cumulative evidence of bot
behavior. The more vectors present, the stronger the case for BLOCK. Do not dismiss a high
risk_score because one individual threshold is not met.

RESPOND WITH ONLY A JSON OBJECT. NO text before or after. NO markdown.
The JSON must have EXACTLY these keys:
{"decision": "BLOCK" or "ALLOW", "reasoning": "one sentence citing policy", "confidence": 0-100}`))

func render(t *template.Template, d promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}
