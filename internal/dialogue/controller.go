// Package dialogue runs the per-user conversation that tags a sticker:
//
//	idle --sticker--> awaiting tags --text--> awaiting confirmation --Yes--> commit
//	idle --sticker (already tagged)--> awaiting decision --Edit--> awaiting tags
//	                                                     --Remove--> delete
//
// Every event returns the replies to send back; the transport is not known here.
package dialogue

import (
	"context"
	"fmt"
	"html"
	"sync"

	"github.com/eliseohh/tagstickerbot/internal/store"
	"github.com/eliseohh/tagstickerbot/internal/tags"
)

// Store is the part of the tag store the dialogue needs.
type Store interface {
	OwnershipFor(ctx context.Context, externalID int64, fileID string) (store.Ownership, bool, error)
	TagsOf(ctx context.Context, id store.OwnershipID) ([]string, error)
	SaveTagging(ctx context.Context, externalID int64, s store.Sticker, tagTexts []string) (store.OwnershipID, error)
	ReplaceTags(ctx context.Context, id store.OwnershipID, tagTexts []string) error
	DeleteOwnership(ctx context.Context, id store.OwnershipID) error
}

// Reply is one outbound message.
type Reply struct {
	Text string
	// Keyboard, when set, is offered as a one-row one-time reply keyboard.
	Keyboard []string
	// RemoveKeyboard hides any reply keyboard still shown.
	RemoveKeyboard bool
	HTML           bool
}

const (
	msgStart = "Hi! I'm a bot that can help you find and send your " +
		"favorite stickers using custom tags. Send me a sticker to start!"
	msgAskTags = "Cool, now send me words to tag your sticker.\n" +
		"You can use more tags, just send them separated by commas (,)\n" +
		"Example: dank, meme"
	msgAskNewTags = "Cool, send me the new tags to your sticker"
	msgTagged     = "Yay! Sticker tagged successfully!"
	msgUpdated    = "Yay! Tags updated successfully!"
	msgRemoved    = "Sticker removed successfully!"
	msgCancelled  = "Operation cancelled!"
	msgConfused   = "Sorry, I didn't understand. Send me a sticker to tag."
	msgIdleText   = "Send me a sticker to tag it!"
	msgFailure    = "Sorry, something went wrong. Please try again later."
)

// Controller keeps one session per user.
type Controller struct {
	store Store

	mu       sync.Mutex
	sessions map[int64]State
	locks    map[int64]*sync.Mutex
}

func New(s Store) *Controller {
	return &Controller{
		store:    s,
		sessions: make(map[int64]State),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// lock serializes the events of one user. Other users are not blocked.
func (c *Controller) lock(user int64) func() {
	c.mu.Lock()
	l, ok := c.locks[user]
	if !ok {
		l = &sync.Mutex{}
		c.locks[user] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// State reports the current state of user, nil when idle.
func (c *Controller) State(user int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[user]
}

func (c *Controller) set(user int64, s State) {
	c.mu.Lock()
	c.sessions[user] = s
	c.mu.Unlock()
}

func (c *Controller) end(user int64) {
	c.mu.Lock()
	delete(c.sessions, user)
	c.mu.Unlock()
}

// fail ends the session and returns the generic failure reply with err.
func (c *Controller) fail(user int64, op string, err error) ([]Reply, error) {
	c.end(user)
	return []Reply{{Text: msgFailure, RemoveKeyboard: true}}, fmt.Errorf("dialogue: %s: %w", op, err)
}

// Start greets the user and drops any session in flight.
func (c *Controller) Start(ctx context.Context, user int64) []Reply {
	defer c.lock(user)()
	c.end(user)
	return []Reply{{Text: msgStart, RemoveKeyboard: true}}
}

// Cancel drops the session without touching the store.
func (c *Controller) Cancel(ctx context.Context, user int64) []Reply {
	defer c.lock(user)()
	c.end(user)
	return []Reply{{Text: msgCancelled, RemoveKeyboard: true}}
}

// Sticker starts a dialogue for s, replacing any session in flight.
func (c *Controller) Sticker(ctx context.Context, user int64, s store.Sticker) ([]Reply, error) {
	defer c.lock(user)()

	o, ok, err := c.store.OwnershipFor(ctx, user, s.FileID)
	if err != nil {
		return c.fail(user, "sticker lookup", err)
	}
	if !ok {
		c.set(user, AwaitingTags{Sticker: s})
		return []Reply{{Text: msgAskTags, RemoveKeyboard: true}}, nil
	}

	current, err := c.store.TagsOf(ctx, o.ID)
	if err != nil {
		return c.fail(user, "current tags", err)
	}
	c.set(user, AwaitingDecision{Sticker: s, Ownership: o.ID})

	text := "You have already tagged this sticker, want to edit the tags or remove it?"
	if len(current) > 0 {
		text = fmt.Sprintf("You have already tagged this sticker with:\n<b>%s</b>\nWant to edit the tags or remove it?",
			display(current))
	}
	return []Reply{{Text: text, HTML: true, Keyboard: labels(decisionChoices)}}, nil
}

// Text handles a free text message.
func (c *Controller) Text(ctx context.Context, user int64, text string) ([]Reply, error) {
	defer c.lock(user)()

	switch st := c.State(user).(type) {
	case nil:
		return []Reply{{Text: msgIdleText}}, nil

	case AwaitingTags:
		parsed := tags.Parse(text)
		c.set(user, AwaitingConfirmation{Sticker: st.Sticker, Existing: st.Existing, Tags: parsed})
		return []Reply{{
			Text: fmt.Sprintf("You wanna tag your sticker with the following words:\n<b>%s</b>\nIs that right?",
				display(parsed)),
			HTML:     true,
			Keyboard: labels(confirmChoices),
		}}, nil

	case AwaitingDecision:
		return c.decide(ctx, user, st, parseChoice(text, decisionChoices))

	case AwaitingConfirmation:
		return c.confirm(ctx, user, st, parseChoice(text, confirmChoices))
	}
	return nil, nil
}

func (c *Controller) decide(ctx context.Context, user int64, st AwaitingDecision, choice Choice) ([]Reply, error) {
	switch choice {
	case ChoiceEdit:
		id := st.Ownership
		c.set(user, AwaitingTags{Sticker: st.Sticker, Existing: &id})
		return []Reply{{Text: msgAskNewTags, RemoveKeyboard: true}}, nil

	case ChoiceRemove:
		if err := c.store.DeleteOwnership(ctx, st.Ownership); err != nil {
			return c.fail(user, "remove sticker", err)
		}
		c.end(user)
		return []Reply{{Text: msgRemoved, RemoveKeyboard: true}}, nil

	case ChoiceCancel:
		c.end(user)
		return []Reply{{Text: msgCancelled, RemoveKeyboard: true}}, nil
	}

	c.end(user)
	return []Reply{{Text: msgConfused, RemoveKeyboard: true}}, nil
}

func (c *Controller) confirm(ctx context.Context, user int64, st AwaitingConfirmation, choice Choice) ([]Reply, error) {
	switch choice {
	case ChoiceYes:
		if st.Existing != nil {
			if err := c.store.ReplaceTags(ctx, *st.Existing, st.Tags); err != nil {
				return c.fail(user, "update tags", err)
			}
			c.end(user)
			return []Reply{{Text: msgUpdated, RemoveKeyboard: true}}, nil
		}
		if _, err := c.store.SaveTagging(ctx, user, st.Sticker, st.Tags); err != nil {
			return c.fail(user, "tag sticker", err)
		}
		c.end(user)
		return []Reply{{Text: msgTagged, RemoveKeyboard: true}}, nil

	case ChoiceNo:
		c.end(user)
		return []Reply{{Text: msgCancelled, RemoveKeyboard: true}}, nil
	}

	c.end(user)
	return []Reply{{Text: msgConfused, RemoveKeyboard: true}}, nil
}

func display(list []string) string {
	if len(list) == 0 {
		return "(no tags)"
	}
	return html.EscapeString(tags.Join(list))
}
