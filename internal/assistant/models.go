// Package assistant implements the place-search chat assistant: entity
// extraction, the Vietnamese rule parser and the clarification dialogue.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vietnamexplorer/explorer/internal/geo"
)

// ErrUnknownRole is returned when decoding a chat role other than user or assistant.
var ErrUnknownRole = errors.New("unknown chat role")

// Role identifies the author of a chat message.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAssistant
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// IsUser reports whether the message was written by the person chatting.
func (r Role) IsUser() bool {
	switch r {
	case RoleUser:
		return true
	case RoleAssistant:
		return false
	}
	return false
}

// ParseRole parses a wire role name.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r != RoleUser && r != RoleAssistant {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input to a chat turn.
type ChatRequest struct {
	Message string    `json:"message" validate:"required"`
	History []Message `json:"conversation_history"`
	// Current is the caller's best-known position, if any.
	Current *geo.Point `json:"-"`
}

// chatRequestWire is the place backend's JSON body.
type chatRequestWire struct {
	Message    string    `json:"message"`
	History    []Message `json:"conversation_history"`
	CurrentLat *float64  `json:"current_lat"`
	CurrentLng *float64  `json:"current_lng"`
}

// MarshalJSON flattens Current into current_lat/current_lng.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	w := chatRequestWire{Message: r.Message, History: r.History}
	if r.History == nil {
		w.History = []Message{}
	}
	if r.Current != nil {
		lat, lng := r.Current.Lat, r.Current.Lng
		w.CurrentLat, w.CurrentLng = &lat, &lng
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads current_lat/current_lng into Current when both are present.
func (r *ChatRequest) UnmarshalJSON(b []byte) error {
	var w chatRequestWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.Message = w.Message
	r.History = w.History
	r.Current = nil
	if w.CurrentLat != nil && w.CurrentLng != nil {
		r.Current = &geo.Point{Lat: *w.CurrentLat, Lng: *w.CurrentLng}
	}
	return nil
}

// Missing field names reported in Entities.MissingFields.
const (
	MissingLocation        = "location"
	MissingCurrentLocation = "current_location"
	MissingRadius          = "radius"
)

// Entities is what the assistant understood from the conversation.
type Entities struct {
	LocationName  *string  `json:"location_name"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	RadiusKm      *float64 `json:"radius_km"`
	Query         *string  `json:"query"`
	MissingFields []string `json:"missing_fields"`
}

// Point returns the resolved coordinate, if any.
func (e Entities) Point() (geo.Point, bool) {
	if e.Lat == nil || e.Lng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *e.Lat, Lng: *e.Lng}, true
}

// Reply is the assistant's answer to one chat turn.
type Reply struct {
	Message            string   `json:"message"`
	Entities           Entities `json:"extracted_entities"`
	NeedsClarification bool     `json:"needs_clarification"`
	// SearchResults is nil when clarification is needed and empty when a search
	// found nothing.
	SearchResults []geo.PointOfInterest `json:"search_results"`
}

// Entity is a labelled span found by an extractor.
type Entity struct {
	Label string  `json:"label"`
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// Extractor finds labelled entities in free text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
}

// NopExtractor finds nothing; the rule parser alone handles the text.
type NopExtractor struct{}

// Extract implements Extractor.
func (NopExtractor) Extract(context.Context, string) ([]Entity, error) { return nil, nil }

// Labels are the entity labels requested from model-backed extractors.
var Labels = []string{"location", "place", "distance", "radius", "food", "service", "amenity"}
