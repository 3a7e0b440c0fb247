package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-news-intel/internal/model"
	"go-news-intel/internal/testutil"
)

func TestGetSystemStatus(t *testing.T) {
	db := testutil.OpenTestDB(t)
	src := testutil.CreateSource(t, db, "CoinDesk RSS", 8)
	a := testutil.CreateArticle(t, db, src, "one", hoursAgo(1), testutil.WithCluster("c-1", true))
	testutil.CreateArticle(t, db, src, "two", hoursAgo(2), testutil.WithStatus(model.VerificationVerified), testutil.WithAnalyzed(hoursAgo(1)))
	testutil.CreateArticle(t, db, src, "three", hoursAgo(3), testutil.WithStatus(model.VerificationDebunked))
	testutil.CreateVote(t, db, "alice", a.ID, model.VerdictTrust)

	status, err := NewStatusService(db).GetSystemStatus()
	require.NoError(t, err)
	assert.EqualValues(t, 3, status.TotalArticles)
	assert.EqualValues(t, 1, status.PendingArticles)
	assert.EqualValues(t, 1, status.VerifiedArticles)
	assert.EqualValues(t, 1, status.DebunkedArticles)
	assert.EqualValues(t, 2, status.UnanalyzedCount)
	assert.EqualValues(t, 1, status.ClusterLeads)
	assert.EqualValues(t, 1, status.Votes)
	assert.EqualValues(t, 1, status.EnabledSources)
}

func TestBatchResultOutcomes(t *testing.T) {
	r := newBatch("test", testNow)
	r.OK(1, "fine")
	r.Fail(2, fmt.Errorf("%w: no signals", ErrDataUnavailable))
	r.Fail(3, errors.New("boom"))
	r.finish(testNow)

	assert.Equal(t, 3, r.Processed)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, OutcomeSkipped, r.Items[1].Outcome)
	assert.Equal(t, OutcomeFailed, r.Items[2].Outcome)
}
