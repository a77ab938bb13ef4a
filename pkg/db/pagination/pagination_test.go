package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "123", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "123", cursor.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []int{1, 2, 3}
	extract := func(v int) Cursor { return Cursor{ID: string(rune('0' + v))} }

	page, info := BuildCursorPageInfo(rows, 2, extract)
	assert.Equal(t, []int{1, 2}, page)
	assert.True(t, info.HasMore)
	assert.NotEmpty(t, info.NextPageToken)

	page, info = BuildCursorPageInfo(rows, 5, extract)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestNormalizePageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizePageSize(0))
	assert.Equal(t, MaxPageSize, NormalizePageSize(1000))
	assert.Equal(t, 10, NormalizePageSize(10))
}

func TestDecodeIDCursor(t *testing.T) {
	id, err := DecodeIDCursor("")
	require.NoError(t, err)
	assert.Zero(t, id)

	token, err := EncodeCursor(Cursor{ID: "1234567890"})
	require.NoError(t, err)
	id, err = DecodeIDCursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), id.Int64())

	token, err = EncodeCursor(Cursor{ID: "abc"})
	require.NoError(t, err)
	_, err = DecodeIDCursor(token)
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}
