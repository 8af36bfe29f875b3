package pagination

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, ClampLimit("", 20, 100))
	assert.Equal(t, 20, ClampLimit("-3", 20, 100))
	assert.Equal(t, 100, ClampLimit("500", 20, 100))
	assert.Equal(t, 7, ClampLimit(" 7 ", 20, 100))
}

func TestTrimAndCursorRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := []int{5, 4, 3}
	cursorOf := func(v int) Cursor {
		return Cursor{ID: strconv.Itoa(v), CreatedAt: now.Add(time.Duration(v) * time.Minute).Format(time.RFC3339Nano)}
	}

	page, info, err := Trim(rows, 2, cursorOf)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, page)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "4", cursor.ID)

	_, info, err = Trim(rows, 3, cursorOf)
	require.NoError(t, err)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}
