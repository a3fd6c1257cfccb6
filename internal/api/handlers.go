package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/promptproof/market/internal/core"
	"github.com/promptproof/market/internal/store"
)

type APIHandler struct {
	service *core.MarketplaceService
	logger  *log.Logger
}

func NewAPIHandler(svc *core.MarketplaceService, logger *log.Logger) *APIHandler {
	return &APIHandler{service: svc, logger: logger}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := "internal server error"

	switch {
	case errors.Is(err, core.ErrNotFound):
		status, detail = http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrEntitlementDenied), errors.Is(err, core.ErrDuplicatePurchase):
		status, detail = http.StatusForbidden, err.Error()
	case errors.Is(err, core.ErrInvalidRequest):
		status, detail = http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrDuplicateID):
		status, detail = http.StatusConflict, "a record with this id already exists"
	case errors.Is(err, core.ErrProviderFailure):
		status, detail = http.StatusBadGateway, "model provider request failed"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *APIHandler) HealthcheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) TestHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "Success", "data": []any{}})
}

// Users

func (h *APIHandler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req store.User
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.service.AddUser(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) UserPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.PurchasesByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *APIHandler) UserContentHandler(w http.ResponseWriter, r *http.Request) {
	owned, err := h.service.ContentByOwner(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, owned)
}

func (h *APIHandler) UserTotalPurchasedHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	total, err := h.service.TotalPurchased(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "total_purchased": total})
}

func (h *APIHandler) UserTotalSoldHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	total, err := h.service.TotalSoldByOwner(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "total_sold": total})
}

// Content

type CreateContentRequest struct {
	OwnerID      string         `json:"owner_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ModelName    string         `json:"llm_model"`
	Settings     store.Settings `json:"llm_settings"`
	Price        float64        `json:"price"`
	SystemPrompt *string        `json:"system_prompt"`
	Metadata     map[string]any `json:"metadata"`
}

func (req CreateContentRequest) content() *store.Content {
	return &store.Content{
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		Description: req.Description,
		ModelName:   req.ModelName,
		Settings:    req.Settings,
		Price:       req.Price,
		Prompt:      req.SystemPrompt,
		Metadata:    req.Metadata,
	}
}

func (h *APIHandler) AddTextContentHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	content, err := h.service.CreateTextContent(r.Context(), req.content())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (h *APIHandler) AddImageContentHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	content, err := h.service.CreateImageContent(r.Context(), req.content())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

type SearchRequest struct {
	Query string `json:"query"`
}

func (h *APIHandler) SearchContentHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	results, err := h.service.SearchContent(r.Context(), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *APIHandler) GetContentHandler(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.GetContent(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (h *APIHandler) GetNItemsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "n must be an integer"})
		return
	}

	items, err := h.service.FirstN(r.Context(), n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *APIHandler) ContentTotalSoldHandler(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	total, err := h.service.TotalSold(r.Context(), contentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content_id": contentID, "total_sold": total})
}

type PurchaseRequest struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
}

func (h *APIHandler) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	purchase, err := h.service.PurchaseContent(r.Context(), req.UserID, req.ContentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (h *APIHandler) ListModelNamesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListModelNames())
}

type TestResponse struct {
	Response string `json:"response"`
}

func (h *APIHandler) TestChatCompletionHandler(w http.ResponseWriter, r *http.Request) {
	var req core.TestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.TestChatCompletion(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TestResponse{Response: resp})
}

func (h *APIHandler) TestImageGenHandler(w http.ResponseWriter, r *http.Request) {
	var req core.TestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.TestImageGeneration(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TestResponse{Response: resp})
}
