package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuhub/internal/router"
)

func TestJournalEntryDecoded(t *testing.T) {
	e := JournalEntry{Value: `[-1,"red"]`}
	v, err := e.Decoded()
	require.NoError(t, err)
	assert.True(t, v.Equal(router.Sequence(router.Number(-1), router.String("red"))))

	_, err = JournalEntry{Value: `[[1]]`}.Decoded()
	assert.Error(t, err)
}

func TestJournalRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping journal integration test")
	}
	j, err := OpenJournal(dsn, 10)
	require.NoError(t, err)
	defer j.Close()

	module := "journal_test_" + time.Now().Format("150405.000000")
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, j.WriteBatch(ctx, []ParamUpdate{
		{Module: module, Name: "volume", Value: router.Scalar(router.Number(0.5)), At: now},
		{Module: module, Name: "volume", Value: router.Scalar(router.Number(0.8)), At: now.Add(time.Millisecond)},
	}))

	entries, err := j.Recent(ctx, module, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	v, err := entries[0].Decoded()
	require.NoError(t, err)
	assert.True(t, v.Equal(router.Scalar(router.Number(0.8))))

	j.db.Where("module = ?", module).Delete(&JournalEntry{})
}
