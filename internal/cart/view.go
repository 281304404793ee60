package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epicerie-app/epicerie-backend/pkg/db/models"
)

// Line is one standalone product line in the cart view.
type Line struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// GroupItem is one product inside a pack group. It carries the even share of
// the pack price assigned at expansion time; totals come from the pack price,
// not from summing shares.
type GroupItem struct {
	ItemID    uuid.UUID       `json:"item_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	IsFixed   bool            `json:"is_fixed"`
	UnitCount int             `json:"unit_count"`
	UnitShare decimal.Decimal `json:"unit_share"`
}

// PackGroup is every line belonging to one pack, priced as a unit. Quantity
// is the number of pack instances; all member rows carry the same quantity.
type PackGroup struct {
	PackID     uuid.UUID       `json:"pack_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Items      []GroupItem     `json:"items"`
	GroupTotal decimal.Decimal `json:"group_total"`
}

// View is the assembled cart: pack groups, standalone lines, and the total.
type View struct {
	Groups []PackGroup     `json:"groups"`
	Items  []Line          `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// buildView assembles a cart view from raw cart rows. Pack rows collapse into
// groups keyed by pack id; the pack price is counted once per group and
// multiplied by the group quantity.
func buildView(rows []models.CartItem) *View {
	view := &View{
		Groups: []PackGroup{},
		Items:  []Line{},
		Total:  decimal.Zero,
	}

	groupIndex := make(map[uuid.UUID]int)
	for _, row := range rows {
		if row.PackID == nil {
			line := Line{
				ItemID:    row.ID,
				ProductID: row.ProductID,
				Quantity:  row.Quantity,
			}
			if row.Product != nil {
				line.Name = row.Product.Name
				line.ImageURL = row.Product.ImageURL
				line.UnitPrice = row.Product.Price
			}
			line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity)))
			view.Items = append(view.Items, line)
			view.Total = view.Total.Add(line.LineTotal)
			continue
		}

		idx, ok := groupIndex[*row.PackID]
		if !ok {
			group := PackGroup{
				PackID:   *row.PackID,
				Quantity: row.Quantity,
			}
			if row.Pack != nil {
				group.Name = row.Pack.Name
				group.UnitPrice = row.Pack.Price
			}
			group.GroupTotal = group.UnitPrice.Mul(decimal.NewFromInt(int64(group.Quantity)))
			view.Groups = append(view.Groups, group)
			view.Total = view.Total.Add(group.GroupTotal)
			idx = len(view.Groups) - 1
			groupIndex[*row.PackID] = idx
		}

		item := GroupItem{
			ItemID:    row.ID,
			ProductID: row.ProductID,
			IsFixed:   row.IsFixed,
			UnitCount: row.UnitCount,
		}
		if item.UnitCount < 1 {
			item.UnitCount = 1
		}
		if row.Product != nil {
			item.Name = row.Product.Name
		}
		if row.PackUnitPrice != nil {
			item.UnitShare = *row.PackUnitPrice
		}
		view.Groups[idx].Items = append(view.Groups[idx].Items, item)
	}

	return view
}
