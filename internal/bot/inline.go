package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"
)

// inlineAnswer is the answerInlineQuery payload. telebot's QueryResponse
// drops a zero cache_time, so it is spelled out here.
type inlineAnswer struct {
	QueryID    string       `json:"inline_query_id"`
	Results    tele.Results `json:"results"`
	CacheTime  int          `json:"cache_time"`
	IsPersonal bool         `json:"is_personal"`
	NextOffset string       `json:"next_offset,omitempty"`
}

func (b *Bot) answerRaw(c tele.Context, a inlineAnswer) error {
	_, err := b.api.Raw("answerInlineQuery", a)
	return err
}

// handleQuery answers an inline query with the sender's matching stickers.
func (b *Bot) handleQuery(c tele.Context) error {
	q := c.Query()
	if q == nil || q.Sender == nil {
		return nil
	}
	if !b.limiter.Allow(q.Sender.ID) {
		b.log.Debug("inline_query_throttled", slog.Int64("user_id", q.Sender.ID))
		return nil
	}

	results, next, err := b.inlineResults(b.base, q.Sender.ID, strings.TrimSpace(q.Text), q.Offset)
	if err != nil {
		return err
	}

	return b.answer(c, inlineAnswer{
		QueryID:    q.ID,
		Results:    results,
		CacheTime:  0,
		IsPersonal: true,
		NextOffset: next,
	})
}

// inlineResults returns one page of cached sticker results starting at
// offset, and the offset of the next page ("" on the last one).
func (b *Bot) inlineResults(ctx context.Context, externalID int64, query, offset string) (tele.Results, string, error) {
	results := tele.Results{}

	owner, ok, err := b.db.FindUser(ctx, externalID)
	if err != nil || !ok {
		return results, "", err
	}
	fileIDs, err := b.db.Search(ctx, owner, query)
	if err != nil {
		return results, "", err
	}

	start, err := strconv.Atoi(offset)
	if err != nil || start < 0 || start > len(fileIDs) {
		start = 0
	}
	end := min(start+b.cfg.PageSize, len(fileIDs))

	for _, fileID := range fileIDs[start:end] {
		r := &tele.StickerResult{Cache: fileID}
		r.SetResultID(uuid.NewString())
		results = append(results, r)
	}

	next := ""
	if end < len(fileIDs) {
		next = strconv.Itoa(end)
	}
	return results, next, nil
}
