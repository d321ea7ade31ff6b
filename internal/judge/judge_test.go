package judge

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/event/eventtest"
	"github.com/OFF-rtk/sentinel-auditor/internal/intel"
	"github.com/OFF-rtk/sentinel-auditor/internal/judge/mocks"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
	"github.com/OFF-rtk/sentinel-auditor/internal/reasoner"
	"github.com/OFF-rtk/sentinel-auditor/internal/verdict"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

type JudgeSuite struct {
	suite.Suite
	ctx      context.Context
	reasoner *mocks.MockReasoner
	stage    *Stage
	ev       *event.AuditEvent
	excerpts []intel.Excerpt
}

func TestJudgeSuite(t *testing.T) {
	suite.Run(t, new(JudgeSuite))
}

func (s *JudgeSuite) SetupTest() {
	s.ctx = context.Background()
	s.reasoner = mocks.NewMockReasoner(gomock.NewController(s.T()))
	stage, err := New(s.reasoner, WithLogger(logger.Discard()))
	s.Require().NoError(err)
	s.stage = stage
	s.ev = eventtest.New(eventtest.WithRisk(0.9, "mouse_teleportation_0.8"))
	s.excerpts = []intel.Excerpt{intel.DefaultExcerpt()}
}

func fields(kv ...any) reasoner.Raw {
	f := make(map[string]any)
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i].(string)] = kv[i+1]
	}
	return reasoner.Raw{Fields: f}
}

func (s *JudgeSuite) TestConfidentJuniorDecidesAlone() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), s.ev, intel.Texts(s.excerpts)).
		Return(fields("decision", "ALLOW", "confidence", float64(90), "reasoning", "Matches travel policy."), nil)
	// No senior EXPECT: a call would fail the test.

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Verdict{Decision: verdict.Allow, Confidence: 90, Reasoning: "Matches travel policy.", Model: verdict.Junior}, v)
}

func (s *JudgeSuite) TestUnsureJuniorEscalatesWithItsReasoning() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), s.ev, gomock.Any()).
		Return(fields("decision", "ALLOW", "confidence", float64(60), "reasoning", "Not sure about the clicks."), nil)
	s.reasoner.EXPECT().SeniorJudge(gomock.Any(), s.ev, intel.Texts(s.excerpts), "Not sure about the clicks.").
		Return(fields("decision", "BLOCK", "confidence", float64(95), "reasoning", "Teleporting cursor is a bot."), nil)

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Block, v.Decision)
	s.Equal(95, v.Confidence)
	s.Equal(verdict.Senior, v.Model)
}

func (s *JudgeSuite) TestSeniorAlternateKeysAreNormalized() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fields("decision", "BLOCK", "confidence", float64(40), "reasoning", "hmm"), nil)
	s.reasoner.EXPECT().SeniorJudge(gomock.Any(), gomock.Any(), gomock.Any(), "hmm").
		Return(fields("verdict", "ALLOW", "confidence", float64(88), "reason", "Known executive device."), nil)

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Verdict{Decision: verdict.Allow, Confidence: 88, Reasoning: "Known executive device.", Model: verdict.Senior}, v)
}

func (s *JudgeSuite) TestUnparsableSeniorIsSalvaged() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fields("decision", "BLOCK", "confidence", float64(50), "reasoning", "unsure"), nil)
	s.reasoner.EXPECT().SeniorJudge(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(reasoner.Raw{Text: `Final Decision: ALLOW. Confidence: 70. Reasoning: "executive exemption applies"`},
			fmt.Errorf("%w: no JSON object in reply", sentinel.ErrUnparsable))

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Verdict{Decision: verdict.Allow, Confidence: 70, Reasoning: "executive exemption applies", Model: verdict.Senior}, v)
}

func (s *JudgeSuite) TestUnreadableSeniorBlocks() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fields("decision", "ALLOW", "confidence", float64(10)), nil)
	s.reasoner.EXPECT().SeniorJudge(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(reasoner.Raw{Text: "I cannot help with that."}, sentinel.ErrUnparsable)

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Block, v.Decision)
	s.Equal(80, v.Confidence)
	s.Equal("CISO analysis inconclusive, defaulting to BLOCK based on anomaly evidence", v.Reasoning)
	s.Equal(verdict.Senior, v.Model)
}

func (s *JudgeSuite) TestUnavailableSeniorBlocks() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fields("decision", "ALLOW", "confidence", float64(10)), nil)
	s.reasoner.EXPECT().SeniorJudge(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(reasoner.Raw{}, fmt.Errorf("%w: reasoner big answered 503", sentinel.ErrUnavailable))

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Block, v.Decision)
	s.Equal(verdict.Senior, v.Model)
}

func (s *JudgeSuite) TestJuniorFailureEscalates() {
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(reasoner.Raw{}, sentinel.ErrUnavailable)
	s.reasoner.EXPECT().SeniorJudge(gomock.Any(), gomock.Any(), gomock.Any(), "Junior analyst returned no usable verdict.").
		Return(fields("decision", "ALLOW", "confidence", float64(92), "reasoning", "Benign."), nil)

	v := s.stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Allow, v.Decision)
	s.Equal(verdict.Senior, v.Model)
}

func (s *JudgeSuite) TestCustomEscalationThreshold() {
	stage, err := New(s.reasoner, WithLogger(logger.Discard()), WithEscalationThreshold(50))
	s.Require().NoError(err)
	s.reasoner.EXPECT().JuniorJudge(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fields("decision", "BLOCK", "confidence", float64(55), "reasoning", "ok"), nil)

	v := stage.Judge(s.ctx, s.ev, s.excerpts)
	s.Equal(verdict.Junior, v.Model)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      reasoner.Raw
		model    verdict.Model
		expected verdict.Verdict
	}{
		{
			name:     "missing reasoning is synthesized",
			raw:      fields("decision", "BLOCK", "confidence", float64(77)),
			model:    verdict.Senior,
			expected: verdict.Verdict{Decision: verdict.Block, Confidence: 77, Reasoning: "CISO verdict: BLOCK with confidence 77%", Model: verdict.Senior},
		},
		{
			name:     "missing decision blocks",
			raw:      fields("confidence", float64(99), "reasoning", "x"),
			model:    verdict.Junior,
			expected: verdict.Verdict{Decision: verdict.Block, Confidence: 99, Reasoning: "x", Model: verdict.Junior},
		},
		{
			name:     "challenge blocks",
			raw:      fields("decision", "challenge", "confidence", float64(50), "reasoning", "x"),
			model:    verdict.Senior,
			expected: verdict.Verdict{Decision: verdict.Block, Confidence: 50, Reasoning: "x", Model: verdict.Senior},
		},
		{
			name:     "confidence is clamped",
			raw:      fields("decision", "allow", "confidence", float64(150), "reasoning", "x"),
			model:    verdict.Junior,
			expected: verdict.Verdict{Decision: verdict.Allow, Confidence: 100, Reasoning: "x", Model: verdict.Junior},
		},
		{
			name:     "string confidence",
			raw:      fields("decision", "ALLOW", "confidence", "85%", "reasoning", "x"),
			model:    verdict.Junior,
			expected: verdict.Verdict{Decision: verdict.Allow, Confidence: 85, Reasoning: "x", Model: verdict.Junior},
		},
		{
			name:     "no fields at all",
			raw:      reasoner.Raw{},
			model:    verdict.Junior,
			expected: verdict.Verdict{Decision: verdict.Block, Confidence: 0, Reasoning: "Analyst verdict: BLOCK with confidence 0%", Model: verdict.Junior},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw, tt.model))
		})
	}
}

func TestSalvage(t *testing.T) {
	t.Run("json-like text with broken syntax", func(t *testing.T) {
		v := Salvage(`{"decision": "ALLOW", "confidence": 64, "reasoning": "travel exemption",}`)
		assert.Equal(t, verdict.Allow, v.Decision)
		assert.Equal(t, 64, v.Confidence)
		assert.Equal(t, "travel exemption", v.Reasoning)
	})
	t.Run("challenge maps to block", func(t *testing.T) {
		assert.Equal(t, verdict.Block, Salvage("decision: CHALLENGE").Decision)
	})
	t.Run("nothing recognizable", func(t *testing.T) {
		v := Salvage("model overloaded")
		assert.Equal(t, verdict.Block, v.Decision)
		assert.Equal(t, 80, v.Confidence)
		assert.Equal(t, verdict.Senior, v.Model)
	})
}
