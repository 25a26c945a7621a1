package handler

import (
	"net/http"

	"github.com/vietnamexplorer/explorer/internal/api/models"
	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/translate"
)

// TranslateHandler handles the translation endpoint.
type TranslateHandler struct {
	translateService *translate.Service
}

// NewTranslateHandler creates a new TranslateHandler.
func NewTranslateHandler(translateService *translate.Service) *TranslateHandler {
	return &TranslateHandler{translateService: translateService}
}

// Translate handles POST /v1/translate.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var input models.TranslateInput
	if !decodeJSON(w, r, &input) {
		return
	}

	pair := translate.DefaultPair
	switch {
	case input.From != "" && input.To != "":
		pair = translate.Pair{From: translate.Language(input.From), To: translate.Language(input.To)}
	case input.From != "":
		pair = translate.Pair{From: translate.Language(input.From), To: opposite(translate.Language(input.From))}
	case input.To != "":
		pair = translate.Pair{From: opposite(translate.Language(input.To)), To: translate.Language(input.To)}
	}

	out, err := h.translateService.Translate(r.Context(), input.Text, pair)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Translation{
		TranslatedText: out,
		From:           string(pair.From),
		To:             string(pair.To),
	})
}

func opposite(l translate.Language) translate.Language {
	if l == translate.Vietnamese {
		return translate.English
	}
	return translate.Vietnamese
}
