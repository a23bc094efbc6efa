package cart

import "github.com/shopspring/decimal"

type Item struct {
	ItemID    string          `json:"itemId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`

	Title     string `json:"title,omitempty"`
	PriceID   string `json:"priceId,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

func (it Item) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Cart struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}
