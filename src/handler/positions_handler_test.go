package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"signalreconciler/src/auth"
	"signalreconciler/src/model"
)

type stubPositionLister struct {
	positions []model.Position
	err       error
}

func (s *stubPositionLister) FindOpenByUser(_ context.Context, _ uint) ([]model.Position, error) {
	return s.positions, s.err
}

type stubOrderLister struct {
	orders []model.Order
	err    error
}

func (s *stubOrderLister) FindPendingByUser(_ context.Context, _ uint) ([]model.Order, error) {
	return s.orders, s.err
}

func authedRequest(t *testing.T, target string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := auth.WithUser(req.Context(), &model.User{ID: 7, Username: "trader", Active: true})
	return req.WithContext(ctx)
}

func TestOpenPositionsHandler(t *testing.T) {
	lister := &stubPositionLister{positions: []model.Position{
		{ID: 1, UserID: 7, Symbol: "RELIANCE", Quantity: 20, AvgPrice: 95},
	}}

	recorder := httptest.NewRecorder()
	OpenPositionsHandler(lister).ServeHTTP(recorder, authedRequest(t, "/positions"))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var body struct {
		Positions []model.Position `json:"positions"`
		Count     int              `json:"count"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 1 || len(body.Positions) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Positions[0].Symbol != "RELIANCE" {
		t.Fatalf("unexpected position: %+v", body.Positions[0])
	}
}

func TestOpenPositionsHandlerWithoutUser(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/positions", nil)

	OpenPositionsHandler(&stubPositionLister{}).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestOpenPositionsHandlerRepositoryError(t *testing.T) {
	lister := &stubPositionLister{err: errors.New("db down")}

	recorder := httptest.NewRecorder()
	OpenPositionsHandler(lister).ServeHTTP(recorder, authedRequest(t, "/positions"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestPendingOrdersHandler(t *testing.T) {
	lister := &stubOrderLister{orders: []model.Order{
		{ID: 1, UserID: 7, Symbol: "RELIANCE", Quantity: 38, Status: model.OrderStatusPending},
		{ID: 2, UserID: 7, Symbol: "TCS", Quantity: 12, Status: model.OrderStatusPending},
	}}

	recorder := httptest.NewRecorder()
	PendingOrdersHandler(lister).ServeHTTP(recorder, authedRequest(t, "/orders/pending"))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var body struct {
		Orders []model.Order `json:"orders"`
		Count  int           `json:"count"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestPendingOrdersHandlerWithoutUser(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/pending", nil)

	PendingOrdersHandler(&stubOrderLister{}).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}
