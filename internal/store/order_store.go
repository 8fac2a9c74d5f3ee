package store

import (
	"context"
	"errors"

	"boostmarket/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStore keeps every order in one collection document.
type OrderStore struct {
	kv KV
}

func NewOrderStore(kv KV) *OrderStore {
	return &OrderStore{kv: kv}
}

func (s *OrderStore) List(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if _, err := getJSON(ctx, s.kv, ordersKey, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID string) (models.Order, error) {
	orders, err := s.List(ctx)
	if err != nil {
		return models.Order{}, err
	}
	for _, order := range orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return models.Order{}, ErrOrderNotFound
}

// Save inserts the order or replaces the stored order with the same id.
func (s *OrderStore) Save(ctx context.Context, order models.Order) error {
	orders, err := s.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range orders {
		if orders[i].ID == order.ID {
			orders[i] = order
			replaced = true
			break
		}
	}
	if !replaced {
		orders = append(orders, order)
	}
	return setJSON(ctx, s.kv, ordersKey, orders)
}
