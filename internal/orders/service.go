package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	"github.com/epicerie-app/epicerie-backend/pkg/enums"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

// ItemView is one frozen line of a placed order.
type ItemView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	UnitCount int             `json:"unit_count"`
	PackID    *uuid.UUID      `json:"pack_id,omitempty"`
	PackName  *string         `json:"pack_name,omitempty"`
}

// OrderView is one entry of the user's order history.
type OrderView struct {
	ID            uuid.UUID         `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	Total         decimal.Decimal   `json:"total"`
	Currency      string            `json:"currency"`
	SharedOrderID *uuid.UUID        `json:"shared_order_id,omitempty"`
	Items         []ItemView        `json:"items"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Service reads the order history written at checkout confirmation.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]OrderView, error)
}

type orderLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

type service struct {
	repo orderLister
}

// NewService constructs the order history service.
func NewService(repo orderLister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]OrderView, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	views := make([]OrderView, 0, len(rows))
	for i := range rows {
		views = append(views, viewFromModel(&rows[i]))
	}
	return views, nil
}

func viewFromModel(order *models.Order) OrderView {
	view := OrderView{
		ID:            order.ID,
		Status:        order.Status,
		Total:         order.Total,
		Currency:      order.Currency,
		SharedOrderID: order.SharedOrderID,
		Items:         make([]ItemView, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		unitCount := item.UnitCount
		if unitCount < 1 {
			unitCount = 1
		}
		view.Items = append(view.Items, ItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			UnitCount: unitCount,
			PackID:    item.PackID,
			PackName:  item.PackName,
		})
	}
	return view
}
