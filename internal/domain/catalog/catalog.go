package catalog

import "github.com/shopspring/decimal"

type Post struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	Content           string          `json:"content"`
	Subject           string          `json:"subject"`
	SellerName        string          `json:"seller_name"`
	SellerImg         string          `json:"seller_img,omitempty"`
	MajorMunicipality string          `json:"major_municipality"`
	UserID            string          `json:"user_id"`
	ImageURLs         string          `json:"image_urls,omitempty"`
	Price             decimal.Decimal `json:"price"`
	PriceID           string          `json:"price_id,omitempty"`
	ProductID         string          `json:"product_id,omitempty"`

	// resolved for display
	ImageURL    string `json:"image_url,omitempty"`
	Placeholder bool   `json:"placeholder"`
	Quantity    int    `json:"quantity"`
}

type Subject struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon"`
}
