package external

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/cache"
	"github.com/trial-match-server/internal/domain"
)

// MockStudySource mocks the raw registry transport
type MockStudySource struct {
	mock.Mock
}

func (m *MockStudySource) SearchStudies(ctx context.Context, query domain.TrialQuery) ([]json.RawMessage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockStudySource) GetStudy(ctx context.Context, nctID string) (json.RawMessage, bool, error) {
	args := m.Called(ctx, nctID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(json.RawMessage), args.Bool(1), args.Error(2)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newGateway(t *testing.T, source StudySource) (*TrialRegistryGateway, domain.ResultCache) {
	t.Helper()
	c, err := cache.NewMemoryCache(100, time.Hour, quietLogger())
	require.NoError(t, err)
	return NewTrialRegistryGateway(source, c, domain.BreakerConfig{FailureThreshold: 2}, quietLogger()), c
}

func study(nctID string) json.RawMessage {
	return json.RawMessage(`{"protocolSection":{"identificationModule":{"nctId":"` + nctID + `","briefTitle":"Trial ` + nctID + `"}}}`)
}

func TestGateway_SearchTrials_CachesResults(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)
	ctx := context.Background()
	query := domain.TrialQuery{Condition: "melanoma", MaxResults: 20, RecruitingOnly: true}

	source.On("SearchStudies", mock.Anything, query).
		Return([]json.RawMessage{study("NCT1"), study("NCT2")}, nil).Once()

	first, err := gateway.SearchTrials(ctx, query)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := gateway.SearchTrials(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	source.AssertNumberOfCalls(t, "SearchStudies", 1)
}

func TestGateway_SearchTrials_DistinctQueriesMiss(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)
	ctx := context.Background()

	source.On("SearchStudies", mock.Anything, mock.Anything).
		Return([]json.RawMessage{study("NCT1")}, nil)

	_, err := gateway.SearchTrials(ctx, domain.TrialQuery{Condition: "melanoma", MaxResults: 20})
	require.NoError(t, err)
	_, err = gateway.SearchTrials(ctx, domain.TrialQuery{Condition: "melanoma", MaxResults: 10})
	require.NoError(t, err)

	source.AssertNumberOfCalls(t, "SearchStudies", 2)
}

func TestGateway_SearchTrials_SkipsMalformedRecords(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)

	source.On("SearchStudies", mock.Anything, mock.Anything).Return([]json.RawMessage{
		study("NCT1"),
		json.RawMessage(`{"protocolSection": "oops"}`),
		json.RawMessage(`{"protocolSection":{"identificationModule":{}}}`),
		study("NCT4"),
	}, nil)

	trials, err := gateway.SearchTrials(context.Background(), domain.TrialQuery{Condition: "x"})
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, "NCT1", trials[0].NCTID)
	assert.Equal(t, "NCT4", trials[1].NCTID)
}

func TestGateway_SearchTrials_EmptyIsNotNil(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)
	query := domain.TrialQuery{Condition: "very rare"}

	source.On("SearchStudies", mock.Anything, query).Return([]json.RawMessage{}, nil).Once()

	trials, err := gateway.SearchTrials(context.Background(), query)
	require.NoError(t, err)
	assert.NotNil(t, trials)
	assert.Empty(t, trials)

	// an empty result is cached like any other
	trials, err = gateway.SearchTrials(context.Background(), query)
	require.NoError(t, err)
	assert.NotNil(t, trials)
	source.AssertNumberOfCalls(t, "SearchStudies", 1)
}

func TestGateway_SearchTrials_FetchErrorPropagates(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)

	source.On("SearchStudies", mock.Anything, mock.Anything).
		Return(nil, domain.NewRegistryFetchError("search studies", 503, nil))

	trials, err := gateway.SearchTrials(context.Background(), domain.TrialQuery{Condition: "x"})
	assert.Nil(t, trials)

	var regErr *domain.RegistryFetchError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, 503, regErr.StatusCode)
}

func TestGateway_SearchTrials_OpenBreakerIsRegistryError(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)
	ctx := context.Background()

	source.On("SearchStudies", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	for i := 0; i < 2; i++ {
		_, err := gateway.SearchTrials(ctx, domain.TrialQuery{Condition: "x"})
		require.Error(t, err)
	}

	_, err := gateway.SearchTrials(ctx, domain.TrialQuery{Condition: "x"})
	assert.True(t, domain.IsRegistryFetch(err))
	assert.Contains(t, err.Error(), "circuit open")
	source.AssertNumberOfCalls(t, "SearchStudies", 2)
}

func TestGateway_SearchTrials_ClientErrorsKeepCircuitClosed(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)

	source.On("SearchStudies", mock.Anything, domain.TrialQuery{Condition: "bad"}).
		Return(nil, domain.NewRegistryFetchError("search studies", 400, nil))
	source.On("SearchStudies", mock.Anything, domain.TrialQuery{Condition: "gone"}).
		Return(nil, context.Canceled)
	source.On("SearchStudies", mock.Anything, domain.TrialQuery{Condition: "asthma"}).
		Return([]json.RawMessage{study("NCT1")}, nil)

	for i := 0; i < 3; i++ {
		_, err := gateway.SearchTrials(context.Background(), domain.TrialQuery{Condition: "bad"})
		assert.True(t, domain.IsRegistryFetch(err))
		_, err = gateway.SearchTrials(context.Background(), domain.TrialQuery{Condition: "gone"})
		assert.ErrorIs(t, err, context.Canceled)
	}

	trials, err := gateway.SearchTrials(context.Background(), domain.TrialQuery{Condition: "asthma"})
	require.NoError(t, err)
	assert.Len(t, trials, 1)
	source.AssertNumberOfCalls(t, "SearchStudies", 7)
}

func TestGateway_SearchTrials_CorruptCachedPayloadRefetches(t *testing.T) {
	source := new(MockStudySource)
	gateway, c := newGateway(t, source)
	ctx := context.Background()
	query := domain.TrialQuery{Condition: "x"}

	c.Put(ctx, cache.SearchFingerprint(query), map[string]string{"not": "a list"})
	source.On("SearchStudies", mock.Anything, query).Return([]json.RawMessage{study("NCT9")}, nil).Once()

	trials, err := gateway.SearchTrials(ctx, query)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, "NCT9", trials[0].NCTID)
}

func TestGateway_GetTrialByID(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)
	ctx := context.Background()

	source.On("GetStudy", mock.Anything, "NCT1").Return(study("NCT1"), true, nil).Once()

	trial, err := gateway.GetTrialByID(ctx, "NCT1")
	require.NoError(t, err)
	require.NotNil(t, trial)
	assert.Equal(t, "Trial NCT1", trial.Title)

	cached, err := gateway.GetTrialByID(ctx, "NCT1")
	require.NoError(t, err)
	assert.Equal(t, trial, cached)
	source.AssertNumberOfCalls(t, "GetStudy", 1)
}

func TestGateway_GetTrialByID_NotFound(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)

	source.On("GetStudy", mock.Anything, "NCT404").Return(nil, false, nil)

	trial, err := gateway.GetTrialByID(context.Background(), "NCT404")
	assert.NoError(t, err)
	assert.Nil(t, trial)

	// absence is not cached
	_, _ = gateway.GetTrialByID(context.Background(), "NCT404")
	source.AssertNumberOfCalls(t, "GetStudy", 2)
}

func TestGateway_GetTrialByID_Error(t *testing.T) {
	source := new(MockStudySource)
	gateway, _ := newGateway(t, source)

	source.On("GetStudy", mock.Anything, "NCT5").Return(nil, false, errors.New("timeout"))

	trial, err := gateway.GetTrialByID(context.Background(), "NCT5")
	assert.Nil(t, trial)
	assert.True(t, domain.IsRegistryFetch(err))
}

func TestGateway_NilCache(t *testing.T) {
	source := new(MockStudySource)
	gateway := NewTrialRegistryGateway(source, nil, domain.BreakerConfig{}, quietLogger())

	source.On("SearchStudies", mock.Anything, mock.Anything).Return([]json.RawMessage{study("NCT1")}, nil)

	for i := 0; i < 2; i++ {
		_, err := gateway.SearchTrials(context.Background(), domain.TrialQuery{Condition: "x"})
		require.NoError(t, err)
	}
	source.AssertNumberOfCalls(t, "SearchStudies", 2)
}
