package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

var campaignCols = []string{
	"id", "user_id", "name", "status", "schedule_condition", "schedule_interval",
	"repost_enabled", "repost_condition", "repost_interval", "repost_max_count",
	"last_post_at", "last_repost_at", "started_at", "completed_at", "created_at", "updated_at",
}

func TestCampaignRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	last := started.Add(time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			"c1", "u1", "Launch", "running", "hourly", 2,
			true, "daily", 1, 3,
			last, nil, started, nil, started, started,
		))

	c, err := NewCampaignRepo(db).Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignRunning, c.Status)
	assert.Equal(t, domain.ScheduleHourly, c.ScheduleCondition)
	assert.Equal(t, 2, c.ScheduleInterval)
	assert.Equal(t, 3, c.RepostMaxCount)
	require.NotNil(t, c.LastPostAt)
	assert.True(t, c.LastPostAt.Equal(last))
	assert.Nil(t, c.LastRepostAt)
	assert.Nil(t, c.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(campaignCols))

	_, err = NewCampaignRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestCampaignRepo_ListRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM campaigns WHERE status = 'running' ORDER BY started_at ASC LIMIT \\$1").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("c1", "u1", "A", "running", "daily", 1, false, "", 0, 0, nil, nil, now, nil, now, now).
			AddRow("c2", "u1", "B", "running", "minute", 5, false, "", 0, 0, nil, nil, now, nil, now, now))

	out, err := NewCampaignRepo(db).ListRunning(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_MarkCompletedGuarded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE campaigns SET status = 'completed'").
		WithArgs("c1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns SET status = 'completed'").
		WithArgs("c1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	require.NoError(t, repo.MarkCompleted(context.Background(), "c1", at))
	assert.ErrorIs(t, repo.MarkCompleted(context.Background(), "c1", at), campaign.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_SetTimestamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE campaigns SET last_post_at = \\$2").
		WithArgs("c1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns SET last_repost_at = \\$2").
		WithArgs("c1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	require.NoError(t, repo.SetLastPostAt(context.Background(), "c1", at))
	assert.ErrorIs(t, repo.SetLastRepostAt(context.Background(), "c1", at), campaign.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
