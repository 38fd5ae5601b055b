package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/coinwatch/internal/query"
	"github.com/navid-fn/coinwatch/internal/service"
	"github.com/navid-fn/coinwatch/utils"
)

type QuoteHandler struct {
	quoteService *service.QuoteService
}

func NewQuoteHandler(service *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		quoteService: service,
	}
}

// GetTimeFrame serves one pair's quotes for a reporting range. Unknown
// timeframe tokens yield an empty list.
func (h *QuoteHandler) GetTimeFrame(c *gin.Context) {
	pair := c.Param("pair")
	timeframe := c.DefaultQuery("timeframe", string(query.Today))

	quotes, err := h.quoteService.TimeFrameQuotes(c.Request.Context(), query.TimeFrame(timeframe), pair)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load quotes"})
		return
	}
	c.JSON(http.StatusOK, quotes)
}

// GetCurrent serves the most recent raw quote for a pair.
func (h *QuoteHandler) GetCurrent(c *gin.Context) {
	pair := c.Param("pair")

	quote, err := h.quoteService.Current(c.Request.Context(), pair)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load quote"})
		return
	}
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quotes for pair"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quote":        quote,
		"timestampUtc": utils.ParseExchangeTimestamp(quote.Timestamp),
	})
}
