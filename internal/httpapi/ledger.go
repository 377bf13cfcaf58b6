package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/gin-gonic/gin"
)

const defaultRecentLimit = 10

// transactions returns the whole ledger, or one parcel's history when
// ?land= is given.
func (s *Server) transactions(c *gin.Context) {
	raw, ok := c.GetQuery("land")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"transactions": s.engine.TransactionHistory(nil)})
		return
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		fail(c, "", fmt.Errorf("%w: land id %q", registry.ErrInvalidInput, raw))
		return
	}
	id := registry.LandID(v)
	c.JSON(http.StatusOK, gin.H{"transactions": s.engine.TransactionHistory(&id)})
}

func (s *Server) recentTransactions(c *gin.Context) {
	limit := uint64(defaultRecentLimit)
	if raw, ok := c.GetQuery("limit"); ok {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fail(c, "", fmt.Errorf("%w: limit %q", registry.ErrInvalidInput, raw))
			return
		}
		limit = v
	}
	c.JSON(http.StatusOK, gin.H{"transactions": s.engine.RecentTransactions(limit)})
}

func (s *Server) statistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Statistics())
}

func (s *Server) totalSupply(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total_supply": s.engine.TotalSupply()})
}

func (s *Server) nextID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"next_land_id": s.engine.NextLandID()})
}
