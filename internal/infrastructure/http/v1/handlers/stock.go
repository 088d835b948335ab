package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/infrastructure/http/v1/dto"
	"stockpost/internal/infrastructure/storage/postgres/register_repo"
)

// StockHandler handles read requests against the stock ledger.
type StockHandler struct {
	*BaseHandler
	repo *register_repo.LedgerRepo
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, repo *register_repo.LedgerRepo) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		repo:        repo,
	}
}

// GetBalances handles GET /stock/balances?locationId=...
func (h *StockHandler) GetBalances(c *gin.Context) {
	ctx := c.Request.Context()

	locationID, err := id.Parse(c.Query("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid or missing locationId"))
		return
	}

	filter := register_repo.BalanceFilter{
		ExcludeZero: c.DefaultQuery("excludeZero", "true") == "true",
	}
	if productID := c.Query("productId"); productID != "" {
		parsed, err := id.Parse(productID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId"))
			return
		}
		filter.ProductIDs = []id.ID{parsed}
	}

	balances, err := h.repo.ListByLocation(ctx, locationID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.respondBalances(c, balances)
}

// GetProductBalances handles GET /stock/products/:productId/balances
func (h *StockHandler) GetProductBalances(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId"))
		return
	}

	balances, err := h.repo.ListByProduct(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.respondBalances(c, balances)
}

// GetBalance handles GET /stock/balance?locationId=&productId=[&variantId=][&date=]
// With date it answers from the entry history, otherwise from the
// materialized balance row.
func (h *StockHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()

	locationID, err := id.Parse(c.Query("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid or missing locationId"))
		return
	}
	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid or missing productId"))
		return
	}

	key := ledger.Key{LocationID: locationID, ProductID: productID, VariantID: id.Nil()}
	var variantID *string
	if variant := c.Query("variantId"); variant != "" {
		parsed, err := id.Parse(variant)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid variantId"))
			return
		}
		key.VariantID = parsed
		v := parsed.String()
		variantID = &v
	}

	var (
		qty types.Quantity
		at  time.Time
	)
	if dateStr := c.Query("date"); dateStr != "" {
		at, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid date, RFC3339 expected"))
			return
		}
		qty, err = h.repo.BalanceAtDate(ctx, key, at)
	} else {
		at = time.Now().UTC()
		qty, err = h.repo.GetBalance(ctx, key)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceAtDateResponse{
		LocationID: locationID.String(),
		ProductID:  productID.String(),
		VariantID:  variantID,
		Date:       at,
		Quantity:   qty,
	})
}

// GetHistory handles GET /stock/products/:productId/history
func (h *StockHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()

	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId"))
		return
	}

	filter := register_repo.EntryFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if locationID := c.Query("locationId"); locationID != "" {
		parsed, err := id.Parse(locationID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId"))
			return
		}
		filter.LocationID = &parsed
	}

	if recordType := c.Query("recordType"); recordType != "" {
		val := entity.RecordType(recordType)
		if val != entity.RecordTypeReceipt && val != entity.RecordTypeExpense {
			h.Error(c, apperror.NewValidation("invalid recordType"))
			return
		}
		filter.RecordType = &val
	}

	if from := c.Query("dateFrom"); from != "" {
		if parsed, err := time.Parse(time.RFC3339, from); err == nil {
			filter.FromDate = &parsed
		}
	}
	if to := c.Query("dateTo"); to != "" {
		if parsed, err := time.Parse(time.RFC3339, to); err == nil {
			filter.ToDate = &parsed
		}
	}

	entries, err := h.repo.EntryHistory(ctx, productID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, len(entries))
	for i, entry := range entries {
		items[i] = dto.FromLedgerEntry(entry)
	}

	c.JSON(http.StatusOK, dto.LedgerEntryListResponse{
		Items: items,
		Count: len(items),
	})
}

func (h *StockHandler) respondBalances(c *gin.Context, balances []entity.StockBalance) {
	items := make([]dto.StockBalanceResponse, len(balances))
	for i, balance := range balances {
		items[i] = dto.FromStockBalance(balance)
	}

	c.JSON(http.StatusOK, dto.StockBalanceListResponse{
		Items: items,
		Count: len(items),
	})
}
