package sqlite_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every new connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// setupTestRepo creates a repo with a unique table name for test isolation
func setupTestRepo(t *testing.T) (*sqlite.Repo, *sql.DB, satchel.Tables) {
	t.Helper()
	ctx := context.Background()

	db := openTestDB(t)
	tables := satchel.Tables{Downloads: "downloads_" + getRandomString(t)}

	require.NoError(t, sqlite.Migrate(ctx, db, tables))

	repo, err := sqlite.NewRepo(db, tables)
	require.NoError(t, err)

	return repo, db, tables
}

func TestNewRepo_InvalidTables(t *testing.T) {
	_, err := sqlite.NewRepo(openTestDB(t), satchel.Tables{Downloads: "Bad-Name"})
	assert.Error(t, err)

	_, err = sqlite.NewRepo(openTestDB(t), satchel.Tables{})
	assert.Error(t, err)
}

func TestRepo_Ping(t *testing.T) {
	repo, _, _ := setupTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestRepo_Record(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepo(t)

	rec, err := repo.Record(ctx, satchel.DownloadRecord{
		Dir:         "/docs",
		Files:       "a.txt;b/",
		Kind:        "list",
		Outcome:     satchel.OutcomeOK,
		InputBytes:  1024,
		PayloadName: "download-x.zip",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())

	result, err := repo.List(ctx, satchel.ListQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	got := result.Items[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "/docs", got.Dir)
	assert.Equal(t, "a.txt;b/", got.Files)
	assert.Equal(t, "list", got.Kind)
	assert.Equal(t, satchel.OutcomeOK, got.Outcome)
	assert.Equal(t, int64(1024), got.InputBytes)
	assert.Equal(t, "download-x.zip", got.PayloadName)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, result.NextCursor)
}

func TestRepo_Record_KeepsGivenIDAndTime(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepo(t)

	id := uuid.New()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	rec, err := repo.Record(ctx, satchel.DownloadRecord{ID: id, CreatedAt: at, Outcome: satchel.OutcomeNotFound})
	require.NoError(t, err)

	assert.Equal(t, id, rec.ID)
	assert.True(t, at.Equal(rec.CreatedAt))

	_, err = repo.Record(ctx, satchel.DownloadRecord{ID: id, Outcome: satchel.OutcomeOK})
	assert.Error(t, err, "duplicate id")
}

func TestRepo_List_NewestFirstWithCursor(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepo(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 5 {
		rec, err := repo.Record(ctx, satchel.DownloadRecord{
			Dir:       "/docs",
			Files:     fmt.Sprintf("f%d.txt", i),
			Outcome:   satchel.OutcomeOK,
			CreatedAt: base.Add(time.Duration(i) * 100 * time.Millisecond),
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	page1, err := repo.List(ctx, satchel.ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.Equal(t, ids[4], page1.Items[0].ID)
	assert.Equal(t, ids[3], page1.Items[1].ID)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := repo.List(ctx, satchel.ListQuery{Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.Equal(t, ids[2], page2.Items[0].ID)
	assert.Equal(t, ids[1], page2.Items[1].ID)

	page3, err := repo.List(ctx, satchel.ListQuery{Limit: 2, Cursor: page2.NextCursor})
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.Equal(t, ids[0], page3.Items[0].ID)
	assert.Empty(t, page3.NextCursor)
}

func TestRepo_List_SameTimestampTiebreak(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepo(t)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := map[uuid.UUID]bool{}
	for range 3 {
		_, err := repo.Record(ctx, satchel.DownloadRecord{Outcome: satchel.OutcomeOK, CreatedAt: at})
		require.NoError(t, err)
	}

	cursor := ""
	for {
		page, err := repo.List(ctx, satchel.ListQuery{Limit: 1, Cursor: cursor})
		require.NoError(t, err)
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "record returned twice")
			seen[item.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Len(t, seen, 3)
}

func TestRepo_List_DirPrefix(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepo(t)

	for _, dir := range []string{"/docs", "/docs/reports", "/images", "/100%_done"} {
		_, err := repo.Record(ctx, satchel.DownloadRecord{Dir: dir, Outcome: satchel.OutcomeOK})
		require.NoError(t, err)
	}

	tests := []struct {
		prefix string
		want   int
	}{
		{"/docs", 2},
		{"/docs/", 1},
		{"/images", 1},
		{"/100%", 1},
		{"/1%", 0},
		{"/_", 0},
		{"", 4},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			result, err := repo.List(ctx, satchel.ListQuery{DirPrefix: tt.prefix, Limit: 10})
			require.NoError(t, err)
			assert.Len(t, result.Items, tt.want)
		})
	}
}

func TestRepo_List_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupTestRepo(t)

	_, err := repo.List(ctx, satchel.ListQuery{Limit: 10, Cursor: "not-valid-base64!!!"})
	assert.ErrorIs(t, err, satchel.ErrInvalidInput)

	_, err = repo.List(ctx, satchel.ListQuery{Limit: 0})
	assert.ErrorIs(t, err, satchel.ErrInvalidInput)
}
