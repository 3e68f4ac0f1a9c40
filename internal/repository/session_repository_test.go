package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-desk/internal/model"
)

func newRedisRepo(t *testing.T, ttl time.Duration) (SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionRepository(client, ttl), mr
}

func sampleSession() *model.Session {
	now := time.Now().UTC().Truncate(time.Second)
	trace := "t-9"
	s := model.NewSession(now)
	s.Messages = append(s.Messages,
		model.Message{Role: model.RoleUser, Content: "weekly report", Timestamp: now},
		model.Message{
			Role:       model.RoleAssistant,
			Content:    "done",
			Timestamp:  now,
			TraceID:    &trace,
			ReportType: model.ReportTypeWeekly,
			Artifact:   model.NewArtifact([]byte("%PDF-1.4"), model.ReportTypeWeekly, model.OutputFormatPDF, now),
		},
	)
	return s
}

func assertRoundTrip(t *testing.T, repo SessionRepository) {
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, []byte("%PDF-1.4"), got.Messages[1].Artifact.Data)
	assert.Equal(t, "t-9", *got.Messages[1].TraceID)

	require.NoError(t, repo.Delete(ctx, s.ID))
	_, err = repo.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionRepository_RoundTrip(t *testing.T) {
	repo, _ := newRedisRepo(t, time.Hour)
	assertRoundTrip(t, repo)
}

func TestRedisSessionRepository_Expires(t *testing.T) {
	repo, mr := newRedisRepo(t, time.Minute)
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, repo.Save(ctx, s))

	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionRepository_RoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemorySessionRepository(time.Hour))
}

func TestMemorySessionRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	got.Messages = nil

	again, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, again.Messages, 2)
}
