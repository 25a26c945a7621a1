package handler

import (
	"errors"
	"net/http"

	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/explore"
	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/mapview"
)

// writeError maps explorer and client errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, explore.ErrScreenNotFound), errors.Is(err, explore.ErrScreenClosed):
		response.NotFound(w, r, "screen not found")
		return
	case errors.Is(err, mapview.ErrNoSuchMarker):
		response.NotFound(w, r, "no marker at that index")
		return
	case errors.Is(err, explore.ErrChatBusy):
		response.Conflict(w, r, "a chat message is already being answered")
		return
	case errors.Is(err, explore.ErrEmptyMessage):
		response.BadRequest(w, r, "message must not be empty", nil)
		return
	case errors.Is(err, geo.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	detail := failure.Detail(err)
	switch failure.KindOf(err) {
	case failure.KindValidation:
		response.BadRequest(w, r, detail, nil)
	case failure.KindNotFound:
		response.NotFound(w, r, detail)
	case failure.KindNetworkUnavailable:
		response.ServiceUnavailable(w, r, detail)
	case failure.KindTimeout:
		response.GatewayTimeout(w, r, detail)
	case failure.KindServer:
		response.BadGateway(w, r, detail)
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
