package intel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/OFF-rtk/sentinel-auditor/internal/intel/mocks"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
	"github.com/OFF-rtk/sentinel-auditor/internal/policystore"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

type IntelSuite struct {
	suite.Suite
	ctx   context.Context
	store *mocks.MockPolicyStore
	stage *Stage
}

func TestIntelSuite(t *testing.T) {
	suite.Run(t, new(IntelSuite))
}

func (s *IntelSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = mocks.NewMockPolicyStore(gomock.NewController(s.T()))
	stage, err := New(s.store, WithLogger(logger.Discard()))
	s.Require().NoError(err)
	s.stage = stage
}

func match(id, content string, score float64) policystore.Match {
	return policystore.Match{Document: policystore.Document{PolicyID: id, Content: content}, Score: score}
}

func (s *IntelSuite) TestQueriesEachTermWithTopOneAndMinScore() {
	s.store.EXPECT().SimilaritySearch(gomock.Any(), "impossible travel", 1, 0.3).
		Return([]policystore.Match{match("EXEC-01", "Executives may travel.", 0.8)}, nil)
	s.store.EXPECT().SimilaritySearch(gomock.Any(), "sanctioned country", 1, 0.3).
		Return([]policystore.Match{match("AML-03", "Block sanctioned countries.", 0.6)}, nil)

	got := s.stage.Retrieve(s.ctx, []string{"impossible travel", "sanctioned country"})
	s.Equal([]Excerpt{
		{Text: "Executives may travel. (Source: EXEC-01)", PolicyID: "EXEC-01"},
		{Text: "Block sanctioned countries. (Source: AML-03)", PolicyID: "AML-03"},
	}, got)
	s.False(IsDefault(got))
}

func (s *IntelSuite) TestDeduplicatesByExactText() {
	s.store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), 1, 0.3).
		Return([]policystore.Match{match("AML-03", "Block sanctioned countries.", 0.6)}, nil).Times(3)

	got := s.stage.Retrieve(s.ctx, []string{"a", "b", "c"})
	s.Len(got, 1)
	s.Equal("AML-03", got[0].PolicyID)
}

func (s *IntelSuite) TestNoMatchesYieldsDefaultDeny() {
	s.store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	got := s.stage.Retrieve(s.ctx, []string{"a", "b"})
	s.Require().Len(got, 1)
	s.True(IsDefault(got))
	s.Equal(DefaultPolicyID, got[0].PolicyID)
	s.Contains(got[0].Text, "BLOCK the request")
}

func (s *IntelSuite) TestStoreFailureCountsAsNoMatch() {
	s.store.EXPECT().SimilaritySearch(gomock.Any(), "broken", gomock.Any(), gomock.Any()).
		Return(nil, sentinel.ErrUnavailable)
	s.store.EXPECT().SimilaritySearch(gomock.Any(), "fine", gomock.Any(), gomock.Any()).
		Return([]policystore.Match{match("EXEC-01", "Executives may travel.", 0.8)}, nil)

	got := s.stage.Retrieve(s.ctx, []string{"broken", "fine"})
	s.Equal([]string{"Executives may travel. (Source: EXEC-01)"}, Texts(got))
}

func (s *IntelSuite) TestTotalFailureYieldsDefaultDeny() {
	s.store.EXPECT().SimilaritySearch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	s.True(IsDefault(s.stage.Retrieve(s.ctx, []string{"a"})))
}

func (s *IntelSuite) TestNoTermsYieldsDefaultDeny() {
	s.True(IsDefault(s.stage.Retrieve(s.ctx, nil)))
}

func (s *IntelSuite) TestWithMatchOverridesSearchParameters() {
	stage, err := New(s.store, WithLogger(logger.Discard()), WithMatch(3, 0.5))
	s.Require().NoError(err)
	s.store.EXPECT().SimilaritySearch(gomock.Any(), "a", 3, 0.5).Return(nil, nil)

	stage.Retrieve(s.ctx, []string{"a"})
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	if err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestWorksAgainstMemoryStore(t *testing.T) {
	store := policystore.NewMemoryStore(policystore.Document{
		PolicyID: "AML-03",
		Content:  "Access from sanctioned countries must be blocked.",
	})
	stage, err := New(store, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	got := stage.Retrieve(context.Background(), []string{"sanctioned countries"})
	if len(got) != 1 || got[0].PolicyID != "AML-03" {
		t.Fatalf("unexpected excerpts: %+v", got)
	}
}
