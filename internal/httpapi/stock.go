package httpapi

import (
	"net/http"
	"strings"

	"stockroom/backend/internal/domain"
)

func (a *API) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.service.Issue(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.service.Adjust(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	var req domain.MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.service.MoveStock(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAssignBin(w http.ResponseWriter, r *http.Request) {
	var req domain.BinAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	split, err := a.service.AssignBin(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"split": split})
}

func movementFilter(r *http.Request) (domain.MovementFilter, error) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		return domain.MovementFilter{}, err
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		return domain.MovementFilter{}, err
	}
	return domain.MovementFilter{
		ItemID:      strings.TrimSpace(q.Get("item_id")),
		PerformedBy: strings.TrimSpace(q.Get("performed_by")),
		From:        from,
		To:          to,
		Limit:       parsePositiveLimit(q.Get("limit"), 100, 500),
	}, nil
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := movementFilter(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := a.service.ListTransactions(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

func (a *API) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	filter, err := movementFilter(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	adjustments, err := a.service.ListAdjustments(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"adjustments": adjustments})
}

func (a *API) handleListStockIns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.DocumentStatus(strings.ToLower(strings.TrimSpace(q.Get("status"))))
	docs, err := a.service.ListStockIns(r.Context(), status, parsePositiveLimit(q.Get("limit"), 100, 500))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_ins": docs})
}

func (a *API) handleCreateStockIn(w http.ResponseWriter, r *http.Request) {
	var req domain.StockInCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := a.service.CreateStockIn(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stock_in": doc})
}

func (a *API) handleGetStockIn(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.GetStockIn(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_in": doc})
}

func (a *API) handleReceiveStockIn(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.ReceiveStockIn(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_in": doc})
}

func (a *API) handleCancelStockIn(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.CancelStockIn(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_in": doc})
}

func (a *API) handleDiscardStockIn(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DiscardStockIn(r.Context(), r.PathValue("id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
