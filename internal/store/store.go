// Package store persists users, stickers and the tags each user puts on
// the stickers they own.
//
// Relations:
//
//	users          external (Telegram) id, unique
//	stickers       file id, unique; emoji is first-write-wins
//	user_stickers  one row per (user, sticker): the ownership that carries tags
//	tags           tag text, unique across all users, never deleted
//	sticker_tags   ownership <-> tag, cascades when the ownership goes away
//
// Every exported method runs in its own transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an ownership handle does not exist.
var ErrNotFound = errors.New("store: not found")

type (
	UserID      int64
	StickerID   int64
	OwnershipID int64
)

// Sticker is a Telegram sticker reference.
type Sticker struct {
	FileID string
	Emoji  string
}

// Ownership links one user to one sticker they tagged.
type Ownership struct {
	ID        OwnershipID
	UserID    UserID
	StickerID StickerID
}

// Stats summarises one user's collection.
type Stats struct {
	Stickers int
	Tags     int
}

// UpsertUser returns the handle of the user with externalID, creating it if needed.
func (d *DB) UpsertUser(ctx context.Context, externalID int64) (UserID, error) {
	var id UserID
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = upsertUser(ctx, tx, externalID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: upsert user: %w", err)
	}
	return id, nil
}

// FindUser looks up a user by external id.
func (d *DB) FindUser(ctx context.Context, externalID int64) (UserID, bool, error) {
	var id UserID
	err := d.QueryRowContext(ctx, "SELECT id FROM users WHERE external_id = ?", externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: find user: %w", err)
	}
	return id, true, nil
}

// UpsertSticker returns the handle of the sticker with s.FileID, creating it
// if needed. An existing row keeps its emoji.
func (d *DB) UpsertSticker(ctx context.Context, s Sticker) (StickerID, error) {
	var id StickerID
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = upsertSticker(ctx, tx, s)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: upsert sticker: %w", err)
	}
	return id, nil
}

// FindOwnership looks up the ownership for (user, sticker).
func (d *DB) FindOwnership(ctx context.Context, user UserID, sticker StickerID) (Ownership, bool, error) {
	o, ok, err := findOwnership(ctx, d, user, sticker)
	if err != nil {
		return Ownership{}, false, fmt.Errorf("store: find ownership: %w", err)
	}
	return o, ok, nil
}

// OwnershipFor looks up the ownership by natural keys: the user's external
// id and the sticker's file id.
func (d *DB) OwnershipFor(ctx context.Context, externalID int64, fileID string) (Ownership, bool, error) {
	var o Ownership
	err := d.QueryRowContext(ctx, `
		SELECT us.id, us.user_id, us.sticker_id
		FROM user_stickers us
		JOIN users u ON u.id = us.user_id
		JOIN stickers s ON s.id = us.sticker_id
		WHERE u.external_id = ? AND s.file_id = ?`,
		externalID, fileID,
	).Scan(&o.ID, &o.UserID, &o.StickerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Ownership{}, false, nil
	}
	if err != nil {
		return Ownership{}, false, fmt.Errorf("store: ownership lookup: %w", err)
	}
	return o, true, nil
}

// CreateOwnership links user to sticker and tags the link with tagTexts.
func (d *DB) CreateOwnership(ctx context.Context, user UserID, sticker StickerID, tagTexts []string) (OwnershipID, error) {
	var id OwnershipID
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = createOwnership(ctx, tx, user, sticker, tagTexts)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: create ownership: %w", err)
	}
	return id, nil
}

// ReplaceTags swaps the whole tag set of an ownership for tagTexts.
func (d *DB) ReplaceTags(ctx context.Context, id OwnershipID, tagTexts []string) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if err := ownershipExists(ctx, tx, id); err != nil {
			return err
		}
		return replaceTags(ctx, tx, id, tagTexts)
	})
	if err != nil {
		return fmt.Errorf("store: replace tags: %w", err)
	}
	return nil
}

// DeleteOwnership removes an ownership and its tag associations.
func (d *DB) DeleteOwnership(ctx context.Context, id OwnershipID) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sticker_tags WHERE user_sticker_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM user_stickers WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: delete ownership: %w", err)
	}
	return nil
}

// SaveTagging commits a new tagging: it creates the user and sticker rows if
// they are missing, then creates the ownership, or replaces its tags if one
// already exists.
func (d *DB) SaveTagging(ctx context.Context, externalID int64, s Sticker, tagTexts []string) (OwnershipID, error) {
	var id OwnershipID
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		user, err := upsertUser(ctx, tx, externalID)
		if err != nil {
			return err
		}
		sticker, err := upsertSticker(ctx, tx, s)
		if err != nil {
			return err
		}
		o, ok, err := findOwnership(ctx, tx, user, sticker)
		if err != nil {
			return err
		}
		if ok {
			id = o.ID
			return replaceTags(ctx, tx, id, tagTexts)
		}
		id, err = createOwnership(ctx, tx, user, sticker, tagTexts)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: save tagging: %w", err)
	}
	return id, nil
}

// TagsOf lists the tag texts of an ownership in insertion order.
func (d *DB) TagsOf(ctx context.Context, id OwnershipID) ([]string, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT t.text
		FROM sticker_tags st
		JOIN tags t ON t.id = st.tag_id
		WHERE st.user_sticker_id = ?
		ORDER BY st.rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("store: tags of: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("store: tags of: %w", err)
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: tags of: %w", err)
	}
	return out, nil
}

// Search returns the file ids of the stickers owned by user. An empty query
// returns every owned sticker; otherwise only stickers with a tag containing
// query (case-sensitive) are returned. Each sticker appears once. The most
// recently tagged stickers come first.
func (d *DB) Search(ctx context.Context, user UserID, query string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = d.QueryContext(ctx, `
			SELECT s.file_id
			FROM user_stickers us
			JOIN stickers s ON s.id = us.sticker_id
			WHERE us.user_id = ?
			ORDER BY us.id DESC`, user)
	} else {
		rows, err = d.QueryContext(ctx, `
			SELECT s.file_id
			FROM user_stickers us
			JOIN stickers s ON s.id = us.sticker_id
			WHERE us.user_id = ? AND EXISTS (
				SELECT 1
				FROM sticker_tags st
				JOIN tags t ON t.id = st.tag_id
				WHERE st.user_sticker_id = us.id AND instr(t.text, ?) > 0
			)
			ORDER BY us.id DESC`, user, query)
	}
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fileID string
		if err := rows.Scan(&fileID); err != nil {
			return nil, fmt.Errorf("store: search: %w", err)
		}
		out = append(out, fileID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return out, nil
}

// Stats counts the stickers a user tagged and the distinct tags they used.
func (d *DB) Stats(ctx context.Context, externalID int64) (Stats, error) {
	var st Stats
	err := d.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM user_stickers us
				JOIN users u ON u.id = us.user_id
				WHERE u.external_id = ?),
			(SELECT COUNT(DISTINCT st.tag_id) FROM sticker_tags st
				JOIN user_stickers us ON us.id = st.user_sticker_id
				JOIN users u ON u.id = us.user_id
				WHERE u.external_id = ?)`,
		externalID, externalID,
	).Scan(&st.Stickers, &st.Tags)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}

// -- Statements shared by the transactional methods --

func upsertUser(ctx context.Context, q dbtx, externalID int64) (UserID, error) {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO users (external_id) VALUES (?) ON CONFLICT (external_id) DO NOTHING",
		externalID); err != nil {
		return 0, err
	}
	var id UserID
	err := q.QueryRowContext(ctx, "SELECT id FROM users WHERE external_id = ?", externalID).Scan(&id)
	return id, err
}

func upsertSticker(ctx context.Context, q dbtx, s Sticker) (StickerID, error) {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO stickers (file_id, emoji) VALUES (?, ?) ON CONFLICT (file_id) DO NOTHING",
		s.FileID, s.Emoji); err != nil {
		return 0, err
	}
	var id StickerID
	err := q.QueryRowContext(ctx, "SELECT id FROM stickers WHERE file_id = ?", s.FileID).Scan(&id)
	return id, err
}

func upsertTag(ctx context.Context, q dbtx, text string) (int64, error) {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO tags (text) VALUES (?) ON CONFLICT (text) DO NOTHING", text); err != nil {
		return 0, err
	}
	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM tags WHERE text = ?", text).Scan(&id)
	return id, err
}

func findOwnership(ctx context.Context, q dbtx, user UserID, sticker StickerID) (Ownership, bool, error) {
	o := Ownership{UserID: user, StickerID: sticker}
	err := q.QueryRowContext(ctx,
		"SELECT id FROM user_stickers WHERE user_id = ? AND sticker_id = ?",
		user, sticker).Scan(&o.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Ownership{}, false, nil
	}
	if err != nil {
		return Ownership{}, false, err
	}
	return o, true, nil
}

func ownershipExists(ctx context.Context, q dbtx, id OwnershipID) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM user_stickers WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func createOwnership(ctx context.Context, q dbtx, user UserID, sticker StickerID, tagTexts []string) (OwnershipID, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO user_stickers (user_id, sticker_id) VALUES (?, ?)", user, sticker)
	if err != nil {
		return 0, err
	}
	raw, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	id := OwnershipID(raw)
	if err := associate(ctx, q, id, tagTexts); err != nil {
		return 0, err
	}
	return id, nil
}

func replaceTags(ctx context.Context, q dbtx, id OwnershipID, tagTexts []string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM sticker_tags WHERE user_sticker_id = ?", id); err != nil {
		return err
	}
	return associate(ctx, q, id, tagTexts)
}

// associate upserts each tag and links it to the ownership. A tag repeated
// in tagTexts is linked once.
func associate(ctx context.Context, q dbtx, id OwnershipID, tagTexts []string) error {
	for _, text := range tagTexts {
		tagID, err := upsertTag(ctx, q, text)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO sticker_tags (user_sticker_id, tag_id) VALUES (?, ?)",
			id, tagID); err != nil {
			return err
		}
	}
	return nil
}
