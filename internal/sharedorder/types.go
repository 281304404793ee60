package sharedorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epicerie-app/epicerie-backend/pkg/enums"
)

// ParticipantView is one member of a shared order.
type ParticipantView struct {
	UserID   uuid.UUID             `json:"user_id"`
	Role     enums.ParticipantRole `json:"role"`
	JoinedAt time.Time             `json:"joined_at"`
}

// ItemView is one contributed line, attributed to its contributor.
type ItemView struct {
	ItemID    uuid.UUID       `json:"item_id"`
	UserID    uuid.UUID       `json:"user_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitCount int             `json:"unit_count"`
	PackID    *uuid.UUID      `json:"pack_id,omitempty"`
	PackName  string          `json:"pack_name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderView is a shared order with its derived status: a stored active order
// past its deadline reads as expired.
type OrderView struct {
	ID           uuid.UUID               `json:"id"`
	Name         string                  `json:"name"`
	CreatorID    uuid.UUID               `json:"creator_id"`
	Status       enums.SharedOrderStatus `json:"status"`
	ExpiresAt    time.Time               `json:"expires_at"`
	Participants []ParticipantView       `json:"participants"`
	Items        []ItemView              `json:"items"`
	CreatedAt    time.Time               `json:"created_at"`
}

// UserSubtotal is one participant's share of the contributed lines.
type UserSubtotal struct {
	UserID   uuid.UUID       `json:"user_id"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// TotalsView is the order's cost breakdown. IndividualShare splits the grand
// total evenly across participants, rounded to cents.
type TotalsView struct {
	OrderID         uuid.UUID       `json:"order_id"`
	Subtotals       []UserSubtotal  `json:"subtotals"`
	Total           decimal.Decimal `json:"total"`
	Participants    int             `json:"participants"`
	IndividualShare decimal.Decimal `json:"individual_share"`
}
