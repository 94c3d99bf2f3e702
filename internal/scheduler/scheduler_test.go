package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/config"
	"github.com/mamadbah2/stockledger/internal/domain/models"
)

type mockDigests struct{ mock.Mock }

func (m *mockDigests) Digest(ctx context.Context, now time.Time) (models.Notification, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(models.Notification), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func newTestScheduler(t *testing.T, digests DigestBuilder, notifier *mockNotifier) *Scheduler {
	t.Helper()
	s, err := NewScheduler(config.ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "Africa/Conakry"}, digests, notifier, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC) }
	return s
}

func TestSendDigest(t *testing.T) {
	digest := models.Notification{Kind: models.AlertDigest, Subject: "Inventory digest 2024-06-01"}
	digests := new(mockDigests)
	digests.On("Digest", mock.Anything, mock.MatchedBy(func(now time.Time) bool {
		return now.Location().String() == "Africa/Conakry"
	})).Return(digest, nil)
	notifier := new(mockNotifier)
	notifier.On("Send", mock.Anything, digest).Return(nil).Once()

	require.NoError(t, newTestScheduler(t, digests, notifier).SendDigest(context.Background()))
	digests.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendDigestFailures(t *testing.T) {
	digests := new(mockDigests)
	digests.On("Digest", mock.Anything, mock.Anything).Return(models.Notification{}, errors.New("store down")).Once()
	notifier := new(mockNotifier)

	err := newTestScheduler(t, digests, notifier).SendDigest(context.Background())
	assert.ErrorContains(t, err, "generate digest")
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	digests.On("Digest", mock.Anything, mock.Anything).Return(models.Notification{Subject: "d"}, nil)
	notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp relay refused"))
	err = newTestScheduler(t, digests, notifier).SendDigest(context.Background())
	assert.ErrorContains(t, err, "send digest")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(config.ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "Nowhere/Land"}, nil, nil, nil)
	assert.Error(t, err)

	s, err := NewScheduler(config.ReportingConfig{CronSchedule: "every evening", Timezone: "UTC"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())

	s, err = NewScheduler(config.ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "UTC"}, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	s.Stop()
}
