package sharedorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
	"github.com/epicerie-app/epicerie-backend/pkg/enums"
	pkgerrors "github.com/epicerie-app/epicerie-backend/pkg/errors"
)

// Service coordinates shared orders: group carts with a join deadline that
// several users contribute lines to and settle together.
type Service interface {
	CreateFromCart(ctx context.Context, creatorID uuid.UUID, name string) (*OrderView, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]OrderView, error)
	Join(ctx context.Context, orderID, userID uuid.UUID) (*OrderView, error)
	ContributeFromCart(ctx context.Context, orderID, userID uuid.UUID) (*OrderView, error)
	Totals(ctx context.Context, orderID, userID uuid.UUID) (*TotalsView, error)
	Complete(ctx context.Context, orderID, userID uuid.UUID) (*OrderView, error)
}

type orderRepository interface {
	Create(ctx context.Context, order *models.SharedOrder) error
	Get(ctx context.Context, id uuid.UUID) (*models.SharedOrder, error)
	AddParticipant(ctx context.Context, participant *models.SharedOrderParticipant) error
	HasParticipant(ctx context.Context, orderID, userID uuid.UUID) (bool, error)
	AddItems(ctx context.Context, items []models.SharedOrderItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.SharedOrder, error)
	WithTx(tx *gorm.DB) *Repository
}

type cartLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type txManager interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo         orderRepository
	cart         cartLister
	tx           txManager
	expiryWindow time.Duration
	now          func() time.Time
}

// NewService constructs the shared order service. expiryWindow is how long a
// new order accepts joins and contributions.
func NewService(repo orderRepository, cart cartLister, tx txManager, expiryWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shared order repository is required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart lister is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if expiryWindow <= 0 {
		return nil, fmt.Errorf("expiry window must be positive")
	}
	return &service{
		repo:         repo,
		cart:         cart,
		tx:           tx,
		expiryWindow: expiryWindow,
		now:          time.Now,
	}, nil
}

// CreateFromCart opens a shared order seeded with a copy of the creator's
// cart. The cart itself is left intact so the creator can still check out
// individually if the group falls through.
func (s *service) CreateFromCart(ctx context.Context, creatorID uuid.UUID, name string) (*OrderView, error) {
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shared order name is required")
	}

	rows, err := s.cart.ListByUser(ctx, creatorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load creator cart")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	order := &models.SharedOrder{
		CreatorID: creatorID,
		Name:      name,
		Status:    enums.SharedOrderStatusActive,
		ExpiresAt: s.now().Add(s.expiryWindow),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, order); err != nil {
			return err
		}
		participant := &models.SharedOrderParticipant{
			SharedOrderID: order.ID,
			UserID:        creatorID,
			Role:          enums.ParticipantRoleOwner,
		}
		if err := txRepo.AddParticipant(ctx, participant); err != nil {
			return err
		}
		return txRepo.AddItems(ctx, cartRowsToItems(order.ID, creatorID, rows))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shared order")
	}

	return s.Get(ctx, order.ID)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.buildView(order), nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]OrderView, error) {
	orders, err := s.repo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shared orders")
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *s.buildView(&orders[i]))
	}
	return views, nil
}

// Join adds the user as a participant. Joining an order you already belong to
// is a no-op, not an error.
func (s *service) Join(ctx context.Context, orderID, userID uuid.UUID) (*OrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOpen(order); err != nil {
		return nil, err
	}

	participant := &models.SharedOrderParticipant{
		SharedOrderID: orderID,
		UserID:        userID,
		Role:          enums.ParticipantRoleParticipant,
	}
	if err := s.repo.AddParticipant(ctx, participant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "join shared order")
	}
	return s.Get(ctx, orderID)
}

// ContributeFromCart copies the participant's cart into the order, attributed
// to them. Their personal cart is left intact. Re-contributing merges into the
// user's existing lines instead of duplicating them: standalone quantities are
// summed and a matching pack group has its instance count bumped; a pack
// already contributed with a different selection is a conflict.
func (s *service) ContributeFromCart(ctx context.Context, orderID, userID uuid.UUID) (*OrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOpen(order); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, orderID, userID); err != nil {
		return nil, err
	}

	rows, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load participant cart")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	existingStandalone := make(map[uuid.UUID]*models.SharedOrderItem)
	existingGroups := make(map[uuid.UUID][]*models.SharedOrderItem)
	for i := range order.Items {
		item := &order.Items[i]
		if item.UserID != userID {
			continue
		}
		if item.PackID != nil {
			existingGroups[*item.PackID] = append(existingGroups[*item.PackID], item)
		} else {
			existingStandalone[item.ProductID] = item
		}
	}

	incomingStandalone := make([]models.SharedOrderItem, 0, len(rows))
	incomingGroups := make(map[uuid.UUID][]models.SharedOrderItem)
	for _, item := range cartRowsToItems(orderID, userID, rows) {
		if item.PackID != nil {
			incomingGroups[*item.PackID] = append(incomingGroups[*item.PackID], item)
		} else {
			incomingStandalone = append(incomingStandalone, item)
		}
	}

	type lineBump struct {
		itemID   uuid.UUID
		quantity int
	}
	type groupBump struct {
		packID   uuid.UUID
		quantity int
	}
	var inserts []models.SharedOrderItem
	var lineBumps []lineBump
	var groupBumps []groupBump

	for _, item := range incomingStandalone {
		if existing, ok := existingStandalone[item.ProductID]; ok {
			lineBumps = append(lineBumps, lineBump{itemID: existing.ID, quantity: existing.Quantity + item.Quantity})
		} else {
			inserts = append(inserts, item)
		}
	}
	for packID, group := range incomingGroups {
		existing, ok := existingGroups[packID]
		if !ok {
			inserts = append(inserts, group...)
			continue
		}
		if !sameGroupComposition(existing, group) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "pack already contributed with a different selection")
		}
		groupBumps = append(groupBumps, groupBump{packID: packID, quantity: existing[0].Quantity + group[0].Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		for _, bump := range lineBumps {
			if err := txRepo.UpdateItemQuantity(ctx, bump.itemID, bump.quantity); err != nil {
				return err
			}
		}
		for _, bump := range groupBumps {
			if err := txRepo.SetGroupQuantity(ctx, orderID, userID, bump.packID, bump.quantity); err != nil {
				return err
			}
		}
		return txRepo.AddItems(ctx, inserts)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "contribute to shared order")
	}
	return s.Get(ctx, orderID)
}

// Totals computes each participant's subtotal and the even split of the grand
// total. Pack groups are priced once per group, exactly like the cart.
func (s *service) Totals(ctx context.Context, orderID, userID uuid.UUID) (*TotalsView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return computeTotals(order), nil
}

// Complete settles the order. Only the creator may complete it, and only
// while it is still active and unexpired.
func (s *service) Complete(ctx context.Context, orderID, userID uuid.UUID) (*OrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CreatorID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the creator can complete a shared order")
	}
	if err := s.requireOpen(order); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, orderID, enums.SharedOrderStatusCompleted.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete shared order")
	}
	return s.Get(ctx, orderID)
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.SharedOrder, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shared order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shared order")
	}
	return order, nil
}

func (s *service) requireOpen(order *models.SharedOrder) error {
	switch s.effectiveStatus(order) {
	case enums.SharedOrderStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "shared order already completed")
	case enums.SharedOrderStatusExpired:
		return pkgerrors.New(pkgerrors.CodeExpired, "shared order expired")
	default:
		return nil
	}
}

func (s *service) requireParticipant(ctx context.Context, orderID, userID uuid.UUID) error {
	member, err := s.repo.HasParticipant(ctx, orderID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check membership")
	}
	if !member {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this shared order")
	}
	return nil
}

// effectiveStatus derives the read-time status: completed wins, then expiry.
func (s *service) effectiveStatus(order *models.SharedOrder) enums.SharedOrderStatus {
	if order.Status == enums.SharedOrderStatusCompleted {
		return enums.SharedOrderStatusCompleted
	}
	if s.now().After(order.ExpiresAt) {
		return enums.SharedOrderStatusExpired
	}
	return enums.SharedOrderStatusActive
}

func (s *service) buildView(order *models.SharedOrder) *OrderView {
	view := &OrderView{
		ID:           order.ID,
		Name:         order.Name,
		CreatorID:    order.CreatorID,
		Status:       s.effectiveStatus(order),
		ExpiresAt:    order.ExpiresAt,
		Participants: make([]ParticipantView, 0, len(order.Participants)),
		Items:        make([]ItemView, 0, len(order.Items)),
		CreatedAt:    order.CreatedAt,
	}
	for _, p := range order.Participants {
		view.Participants = append(view.Participants, ParticipantView{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.CreatedAt,
		})
	}
	for _, item := range order.Items {
		iv := ItemView{
			ItemID:    item.ID,
			UserID:    item.UserID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCount: item.UnitCount,
			PackID:    item.PackID,
		}
		if iv.UnitCount < 1 {
			iv.UnitCount = 1
		}
		if item.Product != nil {
			iv.Name = item.Product.Name
			iv.UnitPrice = item.Product.Price
		}
		if item.Pack != nil {
			iv.PackName = item.Pack.Name
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

// sameGroupComposition reports whether two pack groups cover the same product
// set.
func sameGroupComposition(existing []*models.SharedOrderItem, incoming []models.SharedOrderItem) bool {
	if len(existing) != len(incoming) {
		return false
	}
	have := make(map[uuid.UUID]bool, len(existing))
	for _, item := range existing {
		have[item.ProductID] = true
	}
	for _, item := range incoming {
		if !have[item.ProductID] {
			return false
		}
	}
	return true
}

func cartRowsToItems(orderID, userID uuid.UUID, rows []models.CartItem) []models.SharedOrderItem {
	groupSizes := make(map[uuid.UUID]int)
	for _, row := range rows {
		if row.PackID != nil {
			groupSizes[*row.PackID]++
		}
	}

	items := make([]models.SharedOrderItem, 0, len(rows))
	for _, row := range rows {
		item := models.SharedOrderItem{
			SharedOrderID: orderID,
			UserID:        userID,
			ProductID:     row.ProductID,
			Quantity:      row.Quantity,
			UnitCount:     row.UnitCount,
			PackID:        row.PackID,
		}
		if row.PackID != nil {
			// The split is recomputed at contribution time; the share stored
			// on the cart row may predate a pack price change.
			if row.Pack != nil {
				share := row.Pack.Price.Div(decimal.NewFromInt(int64(groupSizes[*row.PackID])))
				item.PackUnitPrice = &share
			} else if row.PackUnitPrice != nil {
				share := *row.PackUnitPrice
				item.PackUnitPrice = &share
			}
		}
		items = append(items, item)
	}
	return items
}

// computeTotals prices each participant's contribution with the cart's
// group-before-sum rule and splits the grand total evenly.
func computeTotals(order *models.SharedOrder) *TotalsView {
	type groupKey struct {
		userID uuid.UUID
		packID uuid.UUID
	}

	subtotals := make(map[uuid.UUID]decimal.Decimal)
	countedGroups := make(map[groupKey]bool)

	for _, item := range order.Items {
		current, ok := subtotals[item.UserID]
		if !ok {
			current = decimal.Zero
		}

		if item.PackID != nil {
			key := groupKey{userID: item.UserID, packID: *item.PackID}
			if countedGroups[key] {
				continue
			}
			countedGroups[key] = true
			if item.Pack != nil {
				current = current.Add(item.Pack.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
		} else if item.Product != nil {
			current = current.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		subtotals[item.UserID] = current
	}

	view := &TotalsView{
		OrderID:      order.ID,
		Subtotals:    make([]UserSubtotal, 0, len(subtotals)),
		Total:        decimal.Zero,
		Participants: len(order.Participants),
	}
	for userID, subtotal := range subtotals {
		view.Subtotals = append(view.Subtotals, UserSubtotal{UserID: userID, Subtotal: subtotal})
		view.Total = view.Total.Add(subtotal)
	}
	sort.Slice(view.Subtotals, func(i, j int) bool {
		return view.Subtotals[i].UserID.String() < view.Subtotals[j].UserID.String()
	})

	if view.Participants > 0 {
		view.IndividualShare = view.Total.DivRound(decimal.NewFromInt(int64(view.Participants)), 2)
	}
	return view
}
