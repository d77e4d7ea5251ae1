package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lims/library"
)

func event(kind string, book, member int64) library.CirculationEvent {
	return library.CirculationEvent{Kind: kind, BookID: book, MemberID: member, At: time.Unix(book, 0).UTC()}
}

func TestMemoryLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog(5)
	require.NoError(t, l.Record(ctx, event(library.EventBorrowed, 1, 7)))
	require.NoError(t, l.Record(ctx, event(library.EventReturned, 1, 7)))
	require.NoError(t, l.Record(ctx, event(library.EventBorrowed, 2, 8)))

	got, err := l.Recent(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, library.EventReturned, got[0].Kind)
	assert.Equal(t, library.EventBorrowed, got[1].Kind)

	other, err := l.Recent(ctx, 8, 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestMemoryLogLimit(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog(3)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, l.Record(ctx, event(library.EventBorrowed, i, 1)))
	}
	got, err := l.Recent(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(5), got[0].BookID)
	assert.Equal(t, int64(3), got[2].BookID)

	two, err := l.Recent(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestMemoryLogUnknownMember(t *testing.T) {
	got, err := NewMemoryLog(0).Recent(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 20, clamp(0, 20))
	assert.Equal(t, 20, clamp(50, 20))
	assert.Equal(t, 4, clamp(4, 20))
}

func TestMemberKey(t *testing.T) {
	assert.Equal(t, "lims:activity:member:12", memberKey(12))
}

func TestRedisLogUnreachable(t *testing.T) {
	_, err := NewRedisLog("127.0.0.1:1", 5)
	assert.Error(t, err)
}

func TestLogImplementations(t *testing.T) {
	var _ Log = (*MemoryLog)(nil)
	var _ Log = (*RedisLog)(nil)
}
