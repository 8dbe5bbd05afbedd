package dialogue

import "github.com/eliseohh/tagstickerbot/internal/store"

// State is where a user's tagging dialogue currently stands. A user with
// no entry in the session map is idle.
type State interface {
	Name() string
}

// AwaitingTags waits for the tag text of a sticker. Existing is set when
// the user is editing a sticker they already tagged.
type AwaitingTags struct {
	Sticker  store.Sticker
	Existing *store.OwnershipID
}

// AwaitingDecision waits for Edit, Remove or Cancel on an already tagged sticker.
type AwaitingDecision struct {
	Sticker   store.Sticker
	Ownership store.OwnershipID
}

// AwaitingConfirmation waits for Yes or No on the parsed tags.
type AwaitingConfirmation struct {
	Sticker  store.Sticker
	Existing *store.OwnershipID
	Tags     []string
}

func (AwaitingTags) Name() string         { return "awaiting_tags" }
func (AwaitingDecision) Name() string     { return "awaiting_decision" }
func (AwaitingConfirmation) Name() string { return "awaiting_confirmation" }

// Choice is a fixed answer offered on a reply keyboard.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceYes
	ChoiceNo
	ChoiceEdit
	ChoiceCancel
	ChoiceRemove
)

var choiceLabels = map[Choice]string{
	ChoiceYes:    "Yes",
	ChoiceNo:     "No",
	ChoiceEdit:   "Edit",
	ChoiceCancel: "Cancel",
	ChoiceRemove: "Remove",
}

func (c Choice) String() string { return choiceLabels[c] }

var (
	confirmChoices  = []Choice{ChoiceYes, ChoiceNo}
	decisionChoices = []Choice{ChoiceEdit, ChoiceCancel, ChoiceRemove}
)

// parseChoice matches text exactly against the labels of allowed.
// Anything else is ChoiceNone.
func parseChoice(text string, allowed []Choice) Choice {
	for _, c := range allowed {
		if text == c.String() {
			return c
		}
	}
	return ChoiceNone
}

func labels(choices []Choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.String()
	}
	return out
}
