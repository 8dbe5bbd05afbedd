package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Migrate(path, slog.New(slog.NewTextHandler(io.Discard, nil))))

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func count(t *testing.T, db *DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, Migrate(path, logger))
	require.NoError(t, Migrate(path, logger))
}

func TestUpsertUserReturnsSameHandle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first, err := db.UpsertUser(ctx, 42)
	require.NoError(t, err)
	second, err := db.UpsertUser(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM users"))

	found, ok, err := db.FindUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, found)

	_, ok, err = db.FindUser(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertStickerKeepsFirstEmoji(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first, err := db.UpsertSticker(ctx, Sticker{FileID: "abc", Emoji: "😀"})
	require.NoError(t, err)
	second, err := db.UpsertSticker(ctx, Sticker{FileID: "abc", Emoji: "😢"})
	require.NoError(t, err)

	assert.Equal(t, first, second)

	var emoji string
	require.NoError(t, db.QueryRow("SELECT emoji FROM stickers WHERE file_id = 'abc'").Scan(&emoji))
	assert.Equal(t, "😀", emoji)
}

func TestOwnershipLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	user, err := db.UpsertUser(ctx, 1)
	require.NoError(t, err)
	sticker, err := db.UpsertSticker(ctx, Sticker{FileID: "abc", Emoji: "😀"})
	require.NoError(t, err)

	_, ok, err := db.FindOwnership(ctx, user, sticker)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := db.CreateOwnership(ctx, user, sticker, []string{"dank", "meme"})
	require.NoError(t, err)

	o, ok, err := db.FindOwnership(ctx, user, sticker)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Ownership{ID: id, UserID: user, StickerID: sticker}, o)

	byKey, ok, err := db.OwnershipFor(ctx, 1, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o, byKey)

	tagList, err := db.TagsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"dank", "meme"}, tagList)

	require.NoError(t, db.DeleteOwnership(ctx, id))

	_, ok, err = db.FindOwnership(ctx, user, sticker)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM sticker_tags"))

	// Tags outlive their associations.
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM tags"))
}

func TestDuplicateOwnershipRejected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	user, _ := db.UpsertUser(ctx, 1)
	sticker, _ := db.UpsertSticker(ctx, Sticker{FileID: "abc"})

	_, err := db.CreateOwnership(ctx, user, sticker, []string{"a"})
	require.NoError(t, err)
	_, err = db.CreateOwnership(ctx, user, sticker, []string{"b"})
	assert.Error(t, err)

	// The failed call left nothing behind.
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM user_stickers"))
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM tags WHERE text = 'b'"))
}

func TestReplaceTagsLeavesNoStaleAssociations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	user, _ := db.UpsertUser(ctx, 1)
	sticker, _ := db.UpsertSticker(ctx, Sticker{FileID: "abc"})
	id, err := db.CreateOwnership(ctx, user, sticker, nil)
	require.NoError(t, err)

	require.NoError(t, db.ReplaceTags(ctx, id, []string{"a", "b"}))
	require.NoError(t, db.ReplaceTags(ctx, id, []string{"c"}))

	tagList, err := db.TagsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, tagList)

	require.NoError(t, db.ReplaceTags(ctx, id, nil))
	tagList, err = db.TagsOf(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, tagList)
}

func TestReplaceAndDeleteMissingOwnership(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	assert.ErrorIs(t, db.ReplaceTags(ctx, 999, []string{"x"}), ErrNotFound)
	assert.ErrorIs(t, db.DeleteOwnership(ctx, 999), ErrNotFound)
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM tags"))
}

func TestTagsAreDeduplicated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	u1, _ := db.UpsertUser(ctx, 1)
	u2, _ := db.UpsertUser(ctx, 2)
	s1, _ := db.UpsertSticker(ctx, Sticker{FileID: "s1"})
	s2, _ := db.UpsertSticker(ctx, Sticker{FileID: "s2"})

	o1, err := db.CreateOwnership(ctx, u1, s1, []string{"meme", "meme"})
	require.NoError(t, err)
	_, err = db.CreateOwnership(ctx, u2, s2, []string{"meme"})
	require.NoError(t, err)
	require.NoError(t, db.ReplaceTags(ctx, o1, []string{"meme"}))

	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM tags WHERE text = 'meme'"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sticker_tags WHERE user_sticker_id = ?", o1))
}

func TestSaveTagging(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := Sticker{FileID: "abc", Emoji: "😀"}

	id, err := db.SaveTagging(ctx, 10, s, []string{"dank", "meme"})
	require.NoError(t, err)

	again, err := db.SaveTagging(ctx, 10, s, []string{"other"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	tagList, err := db.TagsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, tagList)

	// Empty tag lists are legal and still create the ownership.
	empty, err := db.SaveTagging(ctx, 10, Sticker{FileID: "def"}, nil)
	require.NoError(t, err)
	_, ok, err := db.OwnershipFor(ctx, 10, "def")
	require.NoError(t, err)
	assert.True(t, ok)
	tagList, err = db.TagsOf(ctx, empty)
	require.NoError(t, err)
	assert.Empty(t, tagList)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.SaveTagging(ctx, 1, Sticker{FileID: "s1"}, []string{"dank", "meme", "lol"})
	require.NoError(t, err)
	_, err = db.SaveTagging(ctx, 1, Sticker{FileID: "s2"}, []string{"memes forever"})
	require.NoError(t, err)
	_, err = db.SaveTagging(ctx, 1, Sticker{FileID: "s3"}, []string{"cat"})
	require.NoError(t, err)
	_, err = db.SaveTagging(ctx, 1, Sticker{FileID: "s4"}, nil)
	require.NoError(t, err)
	// Another user tags a sticker with a matching tag.
	_, err = db.SaveTagging(ctx, 2, Sticker{FileID: "other"}, []string{"meme"})
	require.NoError(t, err)

	owner, ok, err := db.FindUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("empty query returns every owned sticker once", func(t *testing.T) {
		got, err := db.Search(ctx, owner, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2", "s3", "s4"}, got)
	})

	t.Run("substring match scoped to owner", func(t *testing.T) {
		got, err := db.Search(ctx, owner, "meme")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2"}, got)
	})

	t.Run("case sensitive", func(t *testing.T) {
		got, err := db.Search(ctx, owner, "MEME")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := db.Search(ctx, owner, "dog")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	st, err := db.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	_, err = db.SaveTagging(ctx, 1, Sticker{FileID: "s1"}, []string{"a", "b"})
	require.NoError(t, err)
	_, err = db.SaveTagging(ctx, 1, Sticker{FileID: "s2"}, []string{"b", "c"})
	require.NoError(t, err)
	_, err = db.SaveTagging(ctx, 2, Sticker{FileID: "s3"}, []string{"z"})
	require.NoError(t, err)

	st, err = db.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stats{Stickers: 2, Tags: 3}, st)
}
