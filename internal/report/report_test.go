package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type recordingReporter struct {
	failures []Failure
	err      error
}

func (r *recordingReporter) Report(_ context.Context, f Failure) error {
	r.failures = append(r.failures, f)
	return r.err
}

func sampleFailure() Failure {
	f := NewFailure(StageFetch, "anti-bot triggered")
	f.Token = "{{amazon>de:B001}}"
	f.ProductID = "B001"
	f.Country = "de"
	f.Kind = "anti_bot"
	f.Attempts = 3
	return f
}

func TestStreamReporter(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes failure to stream", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		f := sampleFailure()

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values, ok := args.Values.(map[string]interface{})
			if !ok || args.Stream != DefaultStream {
				return false
			}

			var decoded Failure
			if err := json.Unmarshal([]byte(values["data"].(string)), &decoded); err != nil {
				return false
			}
			return values["id"] == f.ID.String() &&
				values["asin"] == "B001" &&
				values["stage"] == StageFetch &&
				decoded.Attempts == 3 &&
				decoded.Reason == "anti-bot triggered"
		})).Return(nil)

		reporter := NewStreamReporter(mockRedis, "", nil)
		require.NoError(t, reporter.Report(ctx, f))
		mockRedis.AssertExpectations(t)
	})

	t.Run("redis error is returned", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := NewStreamReporter(mockRedis, "stream:custom", nil).Report(ctx, sampleFailure())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish to redis")
		mockRedis.AssertExpectations(t)
	})

	t.Run("close closes client", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("Close").Return(nil)

		require.NoError(t, NewStreamReporter(mockRedis, "", nil).Close())
		mockRedis.AssertExpectations(t)
	})
}

func TestMultiReporter(t *testing.T) {
	first := &recordingReporter{}
	second := &recordingReporter{err: errors.New("stream down")}
	third := &recordingReporter{}

	err := Multi{first, nil, second, third}.Report(context.Background(), sampleFailure())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream down")
	assert.Len(t, first.failures, 1)
	assert.Len(t, second.failures, 1)
	assert.Len(t, third.failures, 1, "a failing reporter does not stop the others")
}

func TestNewFailure(t *testing.T) {
	a := NewFailure(StageExtract, "no title")
	b := NewFailure(StageExtract, "no title")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, StageExtract, a.Stage)
	assert.False(t, a.Timestamp.IsZero())
}

func TestLogAndDiscardReporters(t *testing.T) {
	assert.NoError(t, NewLogReporter(nil).Report(context.Background(), sampleFailure()))
	assert.NoError(t, Discard{}.Report(context.Background(), sampleFailure()))
}
