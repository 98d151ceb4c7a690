package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/mocks"
	"github.com/tbourn/journal-insights/internal/queue"
)

// recordingPublisher captures published messages and can fail selected ones.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
	fail func(queue.Message) error
}

func (p *recordingPublisher) Publish(_ context.Context, m queue.Message) (string, error) {
	if p.fail != nil {
		if err := p.fail(m); err != nil {
			return "", err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return fmt.Sprintf("msg_%d", len(p.msgs)), nil
}

func (p *recordingPublisher) byKind(kind string) []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.Message
	for _, m := range p.msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return out
}

func newTestScheduler(users UserDirectory, pub queue.Publisher, gen UserGenerator) *Scheduler {
	return &Scheduler{
		Users:             users,
		Publisher:         pub,
		Generator:         gen,
		PublicBaseURL:     "https://app.example.com",
		BasePath:          "/api/v1",
		CronSecret:        "s3cret",
		ContinuationDelay: 10 * time.Second,
		Location:          time.UTC,
		Now:               func() time.Time { return time.Date(2025, 11, 19, 8, 0, 0, 0, time.UTC) },
	}
}

func TestScheduler_ShortPage_DoesNotContinue(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	users.EXPECT().ListUsersPage(gomock.Any(), 3, 100).Return(ids("u", 40), nil)
	users.EXPECT().FilterEligible(gomock.Any(), gomock.Len(40)).Return(ids("u", 30), nil)
	pub := &recordingPublisher{}

	sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly", BaseDate: "2025-11-17", Page: 3})
	require.NoError(t, err)

	assert.Equal(t, 30, sum.Users)
	assert.Equal(t, 2, sum.Batches)
	assert.Nil(t, sum.NextPage)
	assert.Nil(t, sum.NextPageScheduled)
	assert.Empty(t, pub.byKind(queue.KindContinuation))
}

func TestScheduler_FullPage_ChunksAndContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	users.EXPECT().ListUsersPage(gomock.Any(), 1, 100).Return(ids("u", 100), nil)
	users.EXPECT().FilterEligible(gomock.Any(), gomock.Any()).Return(ids("u", 60), nil)
	pub := &recordingPublisher{}

	sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly", BaseDate: "2025-11-17"})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Page)
	assert.Equal(t, 100, sum.Limit)
	assert.Equal(t, 25, sum.BatchSize)
	assert.Equal(t, 60, sum.Users)
	assert.Equal(t, 3, sum.Batches)
	require.NotNil(t, sum.NextPage)
	assert.Equal(t, 2, *sum.NextPage)
	require.NotNil(t, sum.NextPageScheduled)
	assert.True(t, *sum.NextPageScheduled)
	assert.Equal(t, "2025-11-10", sum.StartDate)
	assert.Equal(t, "2025-11-16", sum.EndDate)

	batches := pub.byKind(queue.KindBatch)
	require.Len(t, batches, 3)
	var sizes []int
	seen := map[string]bool{}
	for _, m := range batches {
		assert.Equal(t, "https://app.example.com/api/v1/cron/insights/batch", m.URL)
		var msg domain.BatchMessage
		require.NoError(t, json.Unmarshal(m.Body, &msg))
		require.NoError(t, msg.Validate())
		assert.Equal(t, domain.Weekly, msg.Type)
		assert.Equal(t, "2025-11-10", msg.Period.StartDate)
		sizes = append(sizes, len(msg.UserIDs))
		for _, id := range msg.UserIDs {
			assert.False(t, seen[id], "user %s published twice", id)
			seen[id] = true
		}
	}
	sort.Ints(sizes)
	assert.Equal(t, []int{10, 25, 25}, sizes)

	cont := pub.byKind(queue.KindContinuation)
	require.Len(t, cont, 1)
	assert.Equal(t, 10*time.Second, cont[0].Delay)
	assert.Equal(t, "Bearer s3cret", cont[0].Headers.Get("Authorization"))
	assert.Empty(t, cont[0].Body)
	u, err := url.Parse(cont[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/cron/insights/weekly", u.Path)
	assert.Equal(t, "2", u.Query().Get("page"))
	assert.Equal(t, "100", u.Query().Get("limit"))
	assert.Equal(t, "25", u.Query().Get("batchSize"))
	assert.Equal(t, "2025-11-17", u.Query().Get("baseDate"))
}

func TestScheduler_SparseFullPage_StillContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	users.EXPECT().ListUsersPage(gomock.Any(), 1, 10).Return(ids("u", 10), nil)
	users.EXPECT().FilterEligible(gomock.Any(), gomock.Any()).Return([]string{}, nil)
	pub := &recordingPublisher{}

	sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "monthly", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Users)
	assert.Equal(t, 0, sum.Batches)
	assert.Equal(t, "2025-10", sum.Month)
	require.NotNil(t, sum.NextPageScheduled)
	assert.True(t, *sum.NextPageScheduled)
	cont := pub.byKind(queue.KindContinuation)
	require.Len(t, cont, 1)
	assert.Contains(t, cont[0].URL, "/cron/insights/monthly?")
	assert.Contains(t, cont[0].URL, "baseDate=2025-11-19", "defaulted base date is pinned for later pages")
}

func TestScheduler_EmptyListing_Terminates(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	users.EXPECT().ListUsersPage(gomock.Any(), 7, 100).Return(nil, nil)
	pub := &recordingPublisher{}

	sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly", Page: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Users)
	assert.Nil(t, sum.NextPage)
	assert.Empty(t, pub.msgs)
}

func TestScheduler_PublishFailuresAreIndependent(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	users.EXPECT().ListUsersPage(gomock.Any(), 1, 100).Return(ids("u", 100), nil)
	users.EXPECT().FilterEligible(gomock.Any(), gomock.Any()).Return(ids("u", 75), nil)
	pub := &recordingPublisher{fail: func(m queue.Message) error {
		switch {
		case m.Kind == queue.KindContinuation:
			return errors.New("queue unavailable")
		case strings.Contains(string(m.Body), `"u025"`):
			return errors.New("payload rejected")
		}
		return nil
	}}

	sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly"})
	require.NoError(t, err, "publish failures never fail the page")
	assert.Equal(t, 75, sum.Users)
	assert.Equal(t, 2, sum.Batches)
	require.NotNil(t, sum.NextPageScheduled)
	assert.False(t, *sum.NextPageScheduled)
	require.NotNil(t, sum.NextPage)
}

func TestScheduler_ClampsPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	users.EXPECT().ListUsersPage(gomock.Any(), 1, 100).Return(ids("u", 3), nil)
	users.EXPECT().FilterEligible(gomock.Any(), gomock.Any()).Return(ids("u", 3), nil)
	pub := &recordingPublisher{}

	sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly", Page: -2, Limit: 500, BatchSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Page)
	assert.Equal(t, 100, sum.Limit)
	assert.Equal(t, 100, sum.BatchSize)
	assert.Equal(t, 1, sum.Batches)
}

func TestScheduler_ConfigAndValidationErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl) // no calls expected
	pub := &recordingPublisher{}

	s := newTestScheduler(users, pub, nil)
	s.CronSecret = ""
	_, err := s.Run(context.Background(), RunRequest{Type: "weekly"})
	assert.ErrorIs(t, err, ErrConfig)

	s = newTestScheduler(users, nil, nil)
	_, err = s.Run(context.Background(), RunRequest{Type: "weekly"})
	assert.ErrorIs(t, err, ErrConfig)

	s = newTestScheduler(users, pub, nil)
	_, err = s.Run(context.Background(), RunRequest{Type: "daily"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Run(context.Background(), RunRequest{Type: "weekly", BaseDate: "17/11/2025"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Run(context.Background(), RunRequest{Type: "weekly", UserID: "u1", Sync: true})
	assert.ErrorIs(t, err, ErrConfig, "sync needs a generator")
	assert.Empty(t, pub.msgs)
}

func TestScheduler_SingleUser(t *testing.T) {
	t.Run("sync runs inline", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserDirectory(ctrl)
		gen := mocks.NewMockUserGenerator(ctrl)
		users.EXPECT().IsEligible(gomock.Any(), "u1").Return(true, nil)
		gen.EXPECT().Generate(gomock.Any(), "u1", weekPeriod()).Return(domain.Updated("u1"), nil)

		s := newTestScheduler(users, nil, gen)
		sum, err := s.Run(context.Background(), RunRequest{Type: "weekly", BaseDate: "2025-11-17", UserID: "u1", Sync: true})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Users)
		assert.Equal(t, 0, sum.Batches)
		require.NotNil(t, sum.Result)
		assert.Equal(t, domain.StatusUpdated, sum.Result.Status)
	})

	t.Run("sync not eligible", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserDirectory(ctrl)
		gen := mocks.NewMockUserGenerator(ctrl)
		users.EXPECT().IsEligible(gomock.Any(), "u9").Return(false, nil)

		sum, err := newTestScheduler(users, nil, gen).Run(context.Background(), RunRequest{Type: "weekly", UserID: "u9", Sync: true})
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Users)
		assert.Equal(t, domain.ReasonNotEligible, sum.Result.Reason)
	})

	t.Run("async publishes one batch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserDirectory(ctrl)
		users.EXPECT().IsEligible(gomock.Any(), "u1").Return(true, nil)
		pub := &recordingPublisher{}

		sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly", UserID: " u1 "})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Users)
		assert.Equal(t, 1, sum.Batches)
		assert.Nil(t, sum.NextPage)
		require.Len(t, pub.byKind(queue.KindBatch), 1)
		assert.Contains(t, string(pub.msgs[0].Body), `"userIds":["u1"]`)
	})

	t.Run("async publish failure is not an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserDirectory(ctrl)
		pub := mocks.NewMockPublisher(ctrl)
		users.EXPECT().IsEligible(gomock.Any(), "u1").Return(true, nil)
		pub.EXPECT().
			Publish(gomock.Any(), gomock.Cond(func(m queue.Message) bool {
				return m.Kind == queue.KindBatch && m.URL == "https://app.example.com/api/v1/cron/insights/batch"
			})).
			Return("", errors.New("queue down"))

		sum, err := newTestScheduler(users, pub, nil).Run(context.Background(), RunRequest{Type: "weekly", UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Users)
		assert.Equal(t, 0, sum.Batches)
	})
}

func TestChunk(t *testing.T) {
	assert.Empty(t, Chunk(nil, 25))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, Chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a"}, {"b"}}, Chunk([]string{"a", "b"}, 0))
}
