package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/OFF-rtk/sentinel-auditor/internal/event/eventtest"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
	"github.com/OFF-rtk/sentinel-auditor/internal/triage/mocks"
)

type TriageSuite struct {
	suite.Suite
	ctx      context.Context
	reasoner *mocks.MockReasoner
	stage    *Stage
}

func TestTriageSuite(t *testing.T) {
	suite.Run(t, new(TriageSuite))
}

func (s *TriageSuite) SetupTest() {
	s.ctx = context.Background()
	s.reasoner = mocks.NewMockReasoner(gomock.NewController(s.T()))
	stage, err := New(s.reasoner, WithLogger(logger.Discard()))
	s.Require().NoError(err)
	s.stage = stage
}

func (s *TriageSuite) TestLowRiskNoVectorsIsSafeWithoutReasoner() {
	// No EXPECT: the reasoner must not be called.
	plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.49)))
	s.Equal(StatusSafe, plan.Status)
	s.Equal("Low risk score and no anomalies.", plan.Reason)
	s.Empty(plan.SearchTerms)
}

func (s *TriageSuite) TestVectorsForceInvestigation() {
	s.reasoner.EXPECT().ExtractSearchTerms(gomock.Any(), gomock.Any()).Return([]string{"impossible travel", "vpn usage", "executive role"}, nil)
	plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.1, "impossible_travel")))
	s.Equal(StatusInvestigate, plan.Status)
	s.Equal([]string{"impossible travel", "vpn usage", "executive role"}, plan.SearchTerms)
	s.False(plan.Fallback)
}

func (s *TriageSuite) TestThresholdIsInclusive() {
	s.reasoner.EXPECT().ExtractSearchTerms(gomock.Any(), gomock.Any()).Return([]string{"a", "b", "c"}, nil)
	plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.5)))
	s.Equal(StatusInvestigate, plan.Status)
}

func (s *TriageSuite) TestTermsAreCleaned() {
	s.reasoner.EXPECT().ExtractSearchTerms(gomock.Any(), gomock.Any()).
		Return([]string{" wire transfer ", "wire transfer", "", "vpn", "mfa", "geo", "sessions", "extra"}, nil)
	plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.9)))
	s.Equal([]string{"wire transfer", "vpn", "mfa", "geo", "sessions"}, plan.SearchTerms)
}

func (s *TriageSuite) TestReasonerFailureFallsBackToDefaultTerms() {
	s.Run("error", func() {
		s.reasoner.EXPECT().ExtractSearchTerms(gomock.Any(), gomock.Any()).Return(nil, errors.New("503"))
		plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.9)))
		s.Equal(StatusInvestigate, plan.Status)
		s.Equal([]string{"general security policy", "suspicious activity"}, plan.SearchTerms)
		s.True(plan.Fallback)
	})

	s.Run("empty list", func() {
		s.reasoner.EXPECT().ExtractSearchTerms(gomock.Any(), gomock.Any()).Return([]string{" ", ""}, nil)
		plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.9)))
		s.Equal(DefaultTerms, plan.SearchTerms)
	})
}

func (s *TriageSuite) TestFallbackDoesNotShareDefaultSlice() {
	s.reasoner.EXPECT().ExtractSearchTerms(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))
	plan := s.stage.Evaluate(s.ctx, eventtest.New(eventtest.WithRisk(0.9)))
	plan.SearchTerms[0] = "mutated"
	s.Equal("general security policy", DefaultTerms[0])
}
