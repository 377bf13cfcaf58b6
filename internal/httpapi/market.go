package httpapi

import (
	"fmt"
	"net/http"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/gin-gonic/gin"
)

type listRequest struct {
	Price registry.Price `json:"price"`
}

func (s *Server) listMarket(c *gin.Context) {
	raw := c.Query("type")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"listings": s.engine.Listings()})
		return
	}
	t, err := registry.ParseLandType(raw)
	if err != nil {
		fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": s.engine.ListingsByType(t)})
}

func (s *Server) searchMarket(c *gin.Context) {
	var f registry.SearchFilters
	if !bindJSON(c, "", &f) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": s.engine.SearchMarketplace(f)})
}

func (s *Server) getListing(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	listing, found := s.engine.Listing(id)
	if !found {
		fail(c, "", fmt.Errorf("%w: %d", registry.ErrLandNotForSale, id))
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) listForSale(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	var req listRequest
	if !bindJSON(c, registry.OpList, &req) {
		return
	}
	if err := s.engine.ListForSale(callerOf(c), id, req.Price); err != nil {
		fail(c, registry.OpList, err)
		return
	}
	listing, _ := s.engine.Listing(id)
	c.JSON(http.StatusCreated, listing)
}

func (s *Server) removeFromSale(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	if err := s.engine.RemoveFromSale(callerOf(c), id); err != nil {
		fail(c, registry.OpUnlist, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "land_id": id})
}

func (s *Server) buyLand(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	buyer := callerOf(c)
	if err := s.engine.BuyLand(buyer, id); err != nil {
		fail(c, registry.OpBuy, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "land_id": id, "owner": buyer})
}
