package cart

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/cart"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) GetMyCart(c *gin.Context) {
	c.JSON(http.StatusOK, store(c).Snapshot())
}

type AddItemReq struct {
	ItemID    string          `json:"itemId" binding:"required"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Title     string          `json:"title"`
	PriceID   string          `json:"priceId"`
	ProductID string          `json:"productId"`
}

func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s := store(c)
	item := cart.Item{
		ItemID:    req.ItemID,
		UnitPrice: req.UnitPrice,
		Title:     req.Title,
		PriceID:   req.PriceID,
		ProductID: req.ProductID,
	}
	if err := s.Add(item, req.Quantity); err != nil {
		if errors.Is(err, ErrQuantityTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to add item"})
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

type UpdateQtyReq struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity"`
}

// UpdateQty sets an item's quantity; zero or less removes it.
func (h *Handler) UpdateQty(c *gin.Context) {
	var req UpdateQtyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s := store(c)
	if err := s.SetQuantity(req.ItemID, req.Quantity); err != nil {
		if errors.Is(err, ErrNotInCart) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not in cart"})
			return
		}
		if errors.Is(err, ErrQuantityTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to update qty"})
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) RemoveItem(c *gin.Context) {
	s := store(c)
	s.Remove(c.Param("id"))
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) Clear(c *gin.Context) {
	s := store(c)
	s.Clear()
	c.JSON(http.StatusOK, s.Snapshot())
}

func store(c *gin.Context) *Store {
	return c.MustGet(CtxStoreKey).(*Store)
}
