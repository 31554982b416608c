package event

import (
	"encoding/json"
)

// Type defines the type of event.
type Type uint16

const (
	EvStorageChange Type = iota + 1
	EvFeedUpdate
	EvSearchUpdate
)

func (t Type) String() string {
	switch t {
	case EvStorageChange:
		return "storage_change"
	case EvFeedUpdate:
		return "feed_update"
	case EvSearchUpdate:
		return "search_update"
	default:
		return "unknown"
	}
}

// Event is the interface for everything published on a Bus.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"` // Unix millis
}

func (e BaseEvent) GetSeq() uint64 { return e.Seq }
func (e BaseEvent) GetTs() int64   { return e.Ts }

// StorageChangeEvent reports a write to a persisted key.
// Value is nil when the key was removed.
type StorageChangeEvent struct {
	BaseEvent
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value,omitempty"`
	Origin string          `json:"origin"` // Instance id of the writer
	Remote bool            `json:"-"`      // Applied from a peer, never re-broadcast
}

func (e StorageChangeEvent) GetType() Type { return EvStorageChange }

// Removed reports whether the key was deleted.
func (e StorageChangeEvent) Removed() bool { return e.Value == nil }

// FeedUpdateEvent is emitted whenever the market feed state changes.
type FeedUpdateEvent struct {
	BaseEvent
	Status       string `json:"status"`
	CoinCount    int    `json:"coin_count"`
	IsRefreshing bool   `json:"is_refreshing"`
	Error        string `json:"error,omitempty"`
	LastUpdate   int64  `json:"last_update,omitempty"`
}

func (e FeedUpdateEvent) GetType() Type { return EvFeedUpdate }

// SearchUpdateEvent is emitted whenever the search suggestions change.
type SearchUpdateEvent struct {
	BaseEvent
	Query           string `json:"query"`
	SuggestionCount int    `json:"suggestion_count"`
	SelectedIndex   int    `json:"selected_index"`
	IsSearching     bool   `json:"is_searching"`
	Error           string `json:"error,omitempty"`
}

func (e SearchUpdateEvent) GetType() Type { return EvSearchUpdate }
