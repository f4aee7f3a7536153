package httpapi

import (
	"net/http"
	"strings"

	"stockroom/backend/internal/domain"
)

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.RequestFilter{
		Status:      domain.RequestStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Kind:        domain.RequestKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		RequestedBy: strings.TrimSpace(q.Get("requested_by")),
		Limit:       parsePositiveLimit(q.Get("limit"), 100, 500),
	}
	requests, err := a.service.ListRequests(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (a *API) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.RequestCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	request, err := a.service.SubmitRequest(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": request})
}

func (a *API) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	request, err := a.service.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (a *API) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	request, err := a.service.ApproveRequest(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (a *API) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.RejectRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	request, err := a.service.RejectRequest(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (a *API) handleCloseRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.CloseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	request, err := a.service.CloseRequest(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (a *API) handleConfirmRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	request, err := a.service.ConfirmRequest(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (a *API) handleFulfillRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.FulfillRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.service.FulfillRequest(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
