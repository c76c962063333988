package types

import "time"

// EventType names an account activity published on the events channel.
type EventType string

// Supported event types.
const (
	// EventAccountRegistered is emitted after a new account is stored.
	EventAccountRegistered EventType = "account.registered"

	// EventFavoriteAdded is emitted after an add-favorite request succeeds.
	EventFavoriteAdded EventType = "favorite.added"

	// EventFavoriteRemoved is emitted after a remove-favorite request succeeds.
	EventFavoriteRemoved EventType = "favorite.removed"
)

// Event is the payload published for account activity.
type Event struct {
	// Type identifies what happened.
	Type EventType `json:"type"`

	// AccountID is the account the event belongs to.
	AccountID int `json:"account_id"`

	// CountryCode is set for favorite events.
	CountryCode string `json:"country_code,omitempty"`

	// Favorites is the favorites list after the change, when relevant.
	Favorites []string `json:"favorites,omitempty"`

	// OccurredAt is when the server observed the event.
	OccurredAt time.Time `json:"occurred_at"`
}
