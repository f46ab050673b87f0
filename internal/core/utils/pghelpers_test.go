package utils

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringHelpers(t *testing.T) {
	assert.False(t, ToString("").Valid)
	assert.Equal(t, pgtype.Text{String: "a@b.c", Valid: true}, ToString("a@b.c"))
	assert.Equal(t, "", FromString(pgtype.Text{}))
	assert.Equal(t, "x", FromString(pgtype.Text{String: "x", Valid: true}))
}

func TestFromTimestamptz(t *testing.T) {
	assert.Nil(t, FromTimestamptz(pgtype.Timestamptz{}))

	local := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	got := FromTimestamptz(pgtype.Timestamptz{Time: local, Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(local))
}
