package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epicerie-app/epicerie-backend/api/middleware"
	cartsvc "github.com/epicerie-app/epicerie-backend/internal/cart"
	"github.com/epicerie-app/epicerie-backend/internal/packs"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

type stubCartService struct {
	view *cartsvc.View
	err  error
}

func (s stubCartService) LoadCart(ctx context.Context, userID uuid.UUID) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s stubCartService) AddPack(ctx context.Context, userID, packID uuid.UUID, selections packs.Selections) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s stubCartService) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s stubCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s stubCartService) RemovePack(ctx context.Context, userID, packID uuid.UUID) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*cartsvc.View, error) {
	return s.view, s.err
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestCartFetchSuccess(t *testing.T) {
	view := &cartsvc.View{Total: decimal.RequireFromString("12.50")}
	handler := CartFetch(stubCartService{view: view}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartsvc.View `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Total.Equal(view.Total) {
		t.Fatalf("unexpected total: %s", envelope.Data.Total)
	}
}

func TestCartFetchMissingUserContext(t *testing.T) {
	handler := CartFetch(stubCartService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	handler := CartAddItem(stubCartService{view: &cartsvc.View{}}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	err := pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"requested": 3, "available": 1})
	handler := CartAddItem(stubCartService{err: err}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":3}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code: %s", payload.Error.Code)
	}
	if payload.Error.Details["available"] != float64(1) {
		t.Fatalf("expected stock details, got %v", payload.Error.Details)
	}
}

func TestCartAddPackRejectsUnknownFields(t *testing.T) {
	handler := CartAddPack(stubCartService{view: &cartsvc.View{}}, nil)

	body := `{"pack_id":"` + uuid.NewString() + `","bogus":true}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/packs", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartServiceUnavailable(t *testing.T) {
	handler := CartFetch(nil, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
