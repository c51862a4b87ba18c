package httpinterface

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/escrowd/internal/core/domain"
)

type escrowHandler struct {
	escrowSvc EscrowService
}

func newEscrowHandler(escrowSvc EscrowService) *escrowHandler {
	return &escrowHandler{escrowSvc}
}

// createEscrow creates an escrow whose maker is the caller.
func (h *escrowHandler) createEscrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req createEscrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Maker) <= 0 {
		req.Maker = caller
	}
	if req.Maker != caller {
		writeError(w, fmt.Errorf(
			"%w: escrows can only be created on behalf of the caller",
			domain.ErrEscrowUnauthorized,
		))
		return
	}

	args, err := req.toArgs()
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := h.escrowSvc.CreateEscrow(r.Context(), args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createEscrowResponse{id})
}

// listEscrows filters by party, maker or taker in this order of precedence,
// then by status.
func (h *escrowHandler) listEscrows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var status *domain.EscrowStatus
	if s := query.Get("status"); len(s) > 0 {
		st, ok := domain.ParseEscrowStatus(s)
		if !ok {
			writeError(w, fmt.Errorf("%w: unknown status %s", errBadRequest, s))
			return
		}
		status = &st
	}

	var (
		escrows []domain.Escrow
		err     error
	)
	party, maker, taker := query.Get("party"), query.Get("maker"), query.Get("taker")
	switch {
	case len(party) > 0:
		escrows, err = h.escrowSvc.GetEscrowsByParty(ctx, party)
	case len(maker) > 0:
		escrows, err = h.escrowSvc.GetEscrowsByMaker(ctx, maker)
	case len(taker) > 0:
		escrows, err = h.escrowSvc.GetEscrowsByTaker(ctx, taker)
	default:
		escrows, err = h.escrowSvc.ListEscrows(ctx, status)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	filtered := make([]domain.Escrow, 0, len(escrows))
	for _, e := range escrows {
		if len(maker) > 0 && e.Maker != maker {
			continue
		}
		if len(taker) > 0 && e.Taker != taker {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		filtered = append(filtered, e)
	}

	writeJSON(w, http.StatusOK, listEscrowsResponse{newEscrowDTOList(filtered)})
}

func (h *escrowHandler) getEscrow(w http.ResponseWriter, r *http.Request) {
	escrow, err := h.escrowSvc.GetEscrow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEscrowDTO(*escrow))
}

func (h *escrowHandler) getStage(w http.ResponseWriter, r *http.Request) {
	info, err := h.escrowSvc.GetStage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageResponse{
		Stage:    info.Stage.String(),
		Deadline: formatTime(info.Deadline),
		Now:      formatTime(info.Now),
	})
}

func (h *escrowHandler) fund(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req fundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ack, err := h.escrowSvc.Fund(
		r.Context(), chi.URLParam(r, "id"), req.SecretHash, caller,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newAckResponse(ack))
}

func (h *escrowHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ack, err := h.escrowSvc.Withdraw(
		r.Context(), chi.URLParam(r, "id"), req.Secret, req.Receiver, caller,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newAckResponse(ack))
}

func (h *escrowHandler) cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	ack, err := h.escrowSvc.Cancel(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newAckResponse(ack))
}

func (h *escrowHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{h.escrowSvc.IsPaused()})
}

func (h *escrowHandler) pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.escrowSvc.Pause(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{true})
}

func (h *escrowHandler) unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.escrowSvc.Unpause(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{false})
}

func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := callerFromContext(r.Context())
	if len(caller) <= 0 {
		writeError(w, errUnauthenticated)
		return "", false
	}
	return caller, true
}
