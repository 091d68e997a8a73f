package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/testutil"
)

func TestPublish(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	draft := testutil.CreateWeatherWorkflow()

	published, err := Publish(draft, now)
	require.NoError(t, err)

	assert.NotEqual(t, draft.ID, published.ID)
	assert.Equal(t, draft.ID, published.ParentID)
	assert.Equal(t, models.WorkflowStatusPublished, published.Status)
	assert.Equal(t, draft.Version, published.Version)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, now, *published.PublishedAt)

	// editing the draft afterwards leaves the published copy untouched
	draft.Nodes[1].Config.(*models.ActionConfig).Message = "Rainy"
	assert.Equal(t, "Sunny for {{ .user }}", published.Nodes[1].Config.(*models.ActionConfig).Message)
	assert.Equal(t, models.WorkflowStatusDraft, draft.Status)
}

func TestPublish_Invalid(t *testing.T) {
	draft := testutil.CreateWeatherWorkflow()
	draft.Edges = nil

	_, err := Publish(draft, time.Now())
	requireProblem(t, err, CodeUnreachable)
}

func TestPublish_AlreadyPublished(t *testing.T) {
	published, err := Publish(testutil.CreateWeatherWorkflow(), time.Now())
	require.NoError(t, err)

	_, err = Publish(published, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyPublished)
}

func TestNewDraft(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	published, err := Publish(testutil.CreateWeatherWorkflow(), now)
	require.NoError(t, err)

	draft, err := NewDraft(published, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, published.ID, draft.ParentID)
	assert.Equal(t, published.Version+1, draft.Version)
	assert.Equal(t, models.WorkflowStatusDraft, draft.Status)
	assert.Nil(t, draft.PublishedAt)
	assert.Equal(t, published.Nodes, draft.Nodes)

	_, err = NewDraft(draft, now)
	assert.ErrorIs(t, err, ErrNotPublished)
}
