package httpapi

import (
	"net/http"
	"strings"

	"stockroom/backend/internal/domain"
)

func (a *API) handleListItems(w http.ResponseWriter, r *http.Request) {
	includeRetired := strings.EqualFold(r.URL.Query().Get("include_retired"), "true")
	items, err := a.service.ListItems(r.Context(), includeRetired)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req domain.ItemCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := a.service.CreateItem(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.service.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) handleRetireItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.service.RetireItem(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) handleItemSplits(w http.ResponseWriter, r *http.Request) {
	splits, err := a.service.GetSplit(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"splits": splits})
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.Reconcile(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := a.service.ListLocations(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (a *API) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req domain.LocationCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	loc, err := a.service.CreateLocation(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"location": loc})
}

func (a *API) handleLocationStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.LocationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	loc, err := a.service.SetLocationStatus(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": loc})
}
