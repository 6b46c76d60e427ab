package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/rpc"
)

const (
	MethodSearch = "Search.Query"
	MethodCount  = "Search.Count"
)

// RegisterRPC exposes search and count on s. Params are an executor.Request
// in JSON; page and limit get the same defaults as over HTTP, and a missing
// mode means loose.
func (h *Handler) RegisterRPC(s *rpc.Server) {
	s.Register(MethodSearch, func(ctx context.Context, params json.RawMessage) (any, error) {
		req, err := h.decodeRPC(params)
		if err != nil {
			return nil, err
		}
		return h.RunSearch(ctx, req)
	})
	s.Register(MethodCount, func(ctx context.Context, params json.RawMessage) (any, error) {
		req, err := h.decodeRPC(params)
		if err != nil {
			return nil, err
		}
		return h.RunCount(ctx, req)
	})
}

func (h *Handler) decodeRPC(params json.RawMessage) (executor.Request, error) {
	var req executor.Request
	if err := json.Unmarshal(params, &req); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return req, appErr
		}
		return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request: %v", err)
	}
	if req.Query == "" {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query is required")
	}
	return h.Complete(req), nil
}
