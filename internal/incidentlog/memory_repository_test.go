package incidentlog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/incidentlog"
)

func newRecord(id string, startedAt time.Time) incidentlog.Record {
	return incidentlog.Record{
		ID:        id,
		Title:     "Mercado Pago outage",
		Severity:  "critical",
		Status:    "investigating",
		Services:  []string{"mercadopago"},
		Features:  []string{"online_payments"},
		StartedAt: startedAt,
		Updates: []incidentlog.Update{
			{Timestamp: startedAt, Status: "investigating", Message: "Opened automatically."},
		},
		UpdatedAt: startedAt,
	}
}

func TestInMemoryRepository_UpsertAndGet(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	ctx := context.Background()
	started := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Upsert(ctx, newRecord("inc_1", started)))

	rec, err := repo.Get(ctx, "inc_1")
	require.NoError(t, err)
	assert.Equal(t, "Mercado Pago outage", rec.Title)
	assert.Equal(t, []string{"mercadopago"}, rec.Services)
	assert.Nil(t, rec.ResolvedAt)

	// A later event for the same incident replaces the stored state.
	updated := newRecord("inc_1", started)
	updated.Status = "resolved"
	resolved := started.Add(30 * time.Minute)
	updated.ResolvedAt = &resolved
	require.NoError(t, repo.Upsert(ctx, updated))

	rec, err = repo.Get(ctx, "inc_1")
	require.NoError(t, err)
	assert.Equal(t, "resolved", rec.Status)
	require.NotNil(t, rec.ResolvedAt)
	assert.True(t, rec.ResolvedAt.Equal(resolved))
}

func TestInMemoryRepository_GetNotFound(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()

	_, err := repo.Get(context.Background(), "inc_missing")
	assert.ErrorIs(t, err, incidentlog.ErrRecordNotFound)
}

func TestInMemoryRepository_ListNewestFirst(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Now().Add(-6 * time.Hour)

	for i := 0; i < 5; i++ {
		rec := newRecord(fmt.Sprintf("inc_%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Upsert(ctx, rec))
	}

	result, err := repo.List(ctx, incidentlog.ListOptions{})
	require.NoError(t, err)
	require.Len(t, result.Items, 5)
	assert.Equal(t, "inc_4", result.Items[0].ID)
	assert.Equal(t, "inc_0", result.Items[4].ID)
	assert.Empty(t, result.NextCursor)
}

func TestInMemoryRepository_ListPagination(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Now().Add(-6 * time.Hour)

	for i := 0; i < 5; i++ {
		rec := newRecord(fmt.Sprintf("inc_%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Upsert(ctx, rec))
	}

	first, err := repo.List(ctx, incidentlog.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "inc_4", first.Items[0].ID)
	assert.Equal(t, "inc_3", first.Items[1].ID)
	assert.Equal(t, "inc_3", first.NextCursor)

	second, err := repo.List(ctx, incidentlog.ListOptions{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, "inc_2", second.Items[0].ID)
	assert.Equal(t, "inc_1", second.Items[1].ID)

	last, err := repo.List(ctx, incidentlog.ListOptions{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "inc_0", last.Items[0].ID)
	assert.Empty(t, last.NextCursor)
}

func TestInMemoryRepository_ListOnlyResolved(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Now().Add(-2 * time.Hour)

	open := newRecord("inc_open", base)
	require.NoError(t, repo.Upsert(ctx, open))

	closed := newRecord("inc_closed", base.Add(time.Hour))
	closed.Status = "resolved"
	resolvedAt := base.Add(90 * time.Minute)
	closed.ResolvedAt = &resolvedAt
	require.NoError(t, repo.Upsert(ctx, closed))

	result, err := repo.List(ctx, incidentlog.ListOptions{OnlyResolved: true})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "inc_closed", result.Items[0].ID)
}

func TestInMemoryRepository_CopiesAreIndependent(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	ctx := context.Background()

	rec := newRecord("inc_1", time.Now())
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.Get(ctx, "inc_1")
	require.NoError(t, err)
	got.Services[0] = "mutated"
	got.Updates[0].Message = "mutated"

	again, err := repo.Get(ctx, "inc_1")
	require.NoError(t, err)
	assert.Equal(t, "mercadopago", again.Services[0])
	assert.Equal(t, "Opened automatically.", again.Updates[0].Message)
}
