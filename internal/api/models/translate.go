package models

// TranslateInput is the request body of POST /v1/translate. Empty from/to
// default to English to Vietnamese.
type TranslateInput struct {
	Text string `json:"text" validate:"max=5000"`
	From string `json:"from,omitempty" validate:"omitempty,oneof=en vi"`
	To   string `json:"to,omitempty" validate:"omitempty,oneof=en vi"`
}

// Translation is the response of POST /v1/translate.
type Translation struct {
	TranslatedText string `json:"translatedText"`
	From           string `json:"from"`
	To             string `json:"to"`
}
