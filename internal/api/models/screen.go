package models

// SearchInput is the request body of a manual place search. An empty
// placeName is accepted and reported through the screen's error message.
type SearchInput struct {
	PlaceName string `json:"placeName" validate:"max=200"`
}

// ChatInput is the request body of a chat message.
type ChatInput struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// DeviceLocationInput is a browser geolocation grant.
type DeviceLocationInput struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// PopupInput opens the detail popup of a POI marker.
type PopupInput struct {
	Index *int `json:"index" validate:"required,gte=0"`
}
