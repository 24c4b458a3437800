package relay

import "context"

// Endpoint is a resolved chat/channel handle.
type Endpoint struct {
	ID    int64
	Title string
	Ref   string // the reference it was resolved from (id or @username)
}

// ItemKind classifies fetched source items for filtering.
type ItemKind int

const (
	// ItemUnknown means the client cannot inspect content before relaying
	// (the Bot API copies by identifier without fetching). Filters should
	// pass unknown items through.
	ItemUnknown ItemKind = iota
	ItemText
	ItemPoll
	ItemMedia
)

func (k ItemKind) String() string {
	switch k {
	case ItemText:
		return "text"
	case ItemPoll:
		return "poll"
	case ItemMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Item is one source message handle. Items are created on demand while
// iterating a range and discarded after dispatch.
type Item struct {
	ID   int64
	Kind ItemKind
}

// Filter decides whether a fetched item should be relayed.
type Filter func(Item) bool

// PollsOnly relays only poll-type content. Items whose kind the client
// cannot determine are passed through rather than dropped.
func PollsOnly(it Item) bool {
	return it.Kind == ItemPoll || it.Kind == ItemUnknown
}

// Client is the narrow surface this package needs from the platform client
// library. Implementations map platform errors to this package's taxonomy:
// Throttled for flood control, ErrNotFound for missing items, ErrForbidden
// for permission failures, ErrPayloadTooLarge for size rejections.
type Client interface {
	// Resolve turns a channel reference (numeric id or @username) into an
	// endpoint handle.
	Resolve(ctx context.Context, ref string) (Endpoint, error)

	// Fetch looks up items by identifier at the source. The result is
	// positionally aligned with ids; missing items are nil slots.
	Fetch(ctx context.Context, src Endpoint, ids []int64) ([]*Item, error)

	// Relay copies one item from src to dst without forward provenance.
	Relay(ctx context.Context, src Endpoint, it *Item, dst Endpoint) error

	// SendText sends a literal text payload to dst.
	SendText(ctx context.Context, dst Endpoint, text string) error
}
