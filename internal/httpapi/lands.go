package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/gin-gonic/gin"
)

// registerRequest keeps land_type raw and the numeric fields wide so the
// engine reports validation failures in its own order.
type registerRequest struct {
	Coordinates struct {
		X json.Number `json:"x"`
		Y json.Number `json:"y"`
		Z json.Number `json:"z"`
	} `json:"coordinates"`
	Dimensions struct {
		Width  json.Number `json:"width"`
		Height json.Number `json:"height"`
		Depth  json.Number `json:"depth"`
	} `json:"dimensions"`
	LandType    string                 `json:"land_type"`
	Description string                 `json:"description"`
	Metadata    *registry.LandMetadata `json:"metadata,omitempty"`
}

func (r registerRequest) registration() (registry.Registration, error) {
	var (
		reg  registry.Registration
		errs []error
	)
	axis := func(n json.Number) int32 {
		v, err := clampNumber(n, math.MinInt32, math.MaxInt32)
		errs = append(errs, err)
		return int32(v)
	}
	extent := func(n json.Number) uint32 {
		v, err := clampNumber(n, 0, math.MaxUint32)
		errs = append(errs, err)
		return uint32(v)
	}
	reg.Coordinates = registry.Coordinates{
		X: axis(r.Coordinates.X),
		Y: axis(r.Coordinates.Y),
		Z: axis(r.Coordinates.Z),
	}
	reg.Dimensions = registry.Dimensions{
		Width:  extent(r.Dimensions.Width),
		Height: extent(r.Dimensions.Height),
		Depth:  extent(r.Dimensions.Depth),
	}
	if err := errors.Join(errs...); err != nil {
		return registry.Registration{}, err
	}

	t, err := registry.ParseLandType(r.LandType)
	if err != nil {
		t = registry.LandType(r.LandType)
	}
	reg.LandType = t
	reg.Description = r.Description
	reg.Metadata = r.Metadata
	return reg, nil
}

// clampNumber parses an integer and pins it to [lo, hi]. Values past the
// bounds stay out of the engine's range, so they fail its range checks
// instead of the decoder's.
func clampNumber(n json.Number, lo, hi int64) (int64, error) {
	if n == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q is not an integer", registry.ErrInvalidInput, n)
		}
		v = math.MaxInt64
		if strings.HasPrefix(n.String(), "-") {
			v = math.MinInt64
		}
	}
	return min(max(v, lo), hi), nil
}

func (s *Server) registerLand(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, registry.OpRegister, &req) {
		return
	}
	reg, err := req.registration()
	if err != nil {
		fail(c, registry.OpRegister, err)
		return
	}
	id, err := s.engine.RegisterLand(callerOf(c), reg)
	if err != nil {
		fail(c, registry.OpRegister, err)
		return
	}
	land, _ := s.engine.Land(id)
	c.JSON(http.StatusCreated, gin.H{"id": id, "land": land})
}

func (s *Server) listLands(c *gin.Context) {
	raw := c.Query("type")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"lands": s.engine.Lands()})
		return
	}
	t, err := registry.ParseLandType(raw)
	if err != nil {
		fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lands": s.engine.LandsByType(t)})
}

func (s *Server) getLand(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	land, found := s.engine.Land(id)
	if !found {
		fail(c, "", fmt.Errorf("%w: %d", registry.ErrLandNotFound, id))
		return
	}
	c.JSON(http.StatusOK, land)
}

func (s *Server) landOwner(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	owner, found := s.engine.LandOwner(id)
	if !found {
		fail(c, "", fmt.Errorf("%w: %d", registry.ErrLandNotFound, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"land_id": id, "owner": owner})
}

func (s *Server) verifyOwnership(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	owner := registry.Principal(c.Query("owner"))
	c.JSON(http.StatusOK, gin.H{
		"land_id":  id,
		"owner":    owner,
		"verified": s.engine.VerifyOwnership(id, owner),
	})
}

func (s *Server) landHistory(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": s.engine.TransactionHistory(&id)})
}

func (s *Server) priceHistory(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": s.engine.PriceHistory(id)})
}

func (s *Server) updateMetadata(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	var meta registry.LandMetadata
	if !bindJSON(c, registry.OpUpdateMetadata, &meta) {
		return
	}
	if err := s.engine.UpdateLandMetadata(callerOf(c), id, meta); err != nil {
		fail(c, registry.OpUpdateMetadata, err)
		return
	}
	land, _ := s.engine.Land(id)
	c.JSON(http.StatusOK, land)
}

type transferRequest struct {
	NewOwner registry.Principal `json:"new_owner"`
}

func (s *Server) transferLand(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	var req transferRequest
	if !bindJSON(c, registry.OpTransfer, &req) {
		return
	}
	if err := s.engine.TransferLand(callerOf(c), id, req.NewOwner); err != nil {
		fail(c, registry.OpTransfer, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "land_id": id, "owner": req.NewOwner})
}

func (s *Server) removeLand(c *gin.Context) {
	id, ok := landIDParam(c)
	if !ok {
		return
	}
	if err := s.engine.RemoveLand(callerOf(c), id); err != nil {
		fail(c, registry.OpRemoveLand, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "land_id": id})
}

func (s *Server) searchLands(c *gin.Context) {
	var f registry.SearchFilters
	if !bindJSON(c, "", &f) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"lands": s.engine.SearchLands(f)})
}

func (s *Server) landsNear(c *gin.Context) {
	var (
		center registry.Coordinates
		err    error
	)
	axes := []struct {
		name string
		dst  *int32
	}{{"x", &center.X}, {"y", &center.Y}, {"z", &center.Z}}
	for _, axis := range axes {
		if *axis.dst, err = queryInt32(c, axis.name); err != nil {
			fail(c, "", err)
			return
		}
	}
	radius, err := strconv.ParseUint(c.DefaultQuery("radius", "0"), 10, 32)
	if err != nil {
		fail(c, "", fmt.Errorf("%w: radius: %v", registry.ErrInvalidInput, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"lands": s.engine.LandsNear(center, uint32(radius))})
}

func (s *Server) totalArea(c *gin.Context) {
	area, err := s.engine.TotalLandArea()
	if err != nil {
		fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_area": area})
}

func (s *Server) ownerLands(c *gin.Context) {
	owner := registry.Principal(c.Param("owner"))
	c.JSON(http.StatusOK, gin.H{"owner": owner, "lands": s.engine.LandsByOwner(owner)})
}

func (s *Server) ownerCount(c *gin.Context) {
	owner := registry.Principal(c.Param("owner"))
	c.JSON(http.StatusOK, gin.H{"owner": owner, "count": s.engine.LandCountByOwner(owner)})
}

func (s *Server) ownerTransactions(c *gin.Context) {
	owner := registry.Principal(c.Param("owner"))
	c.JSON(http.StatusOK, gin.H{"owner": owner, "transactions": s.engine.UserTransactions(owner)})
}

func landIDParam(c *gin.Context) (registry.LandID, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		fail(c, "", fmt.Errorf("%w: land id %q", registry.ErrInvalidInput, raw))
		return 0, false
	}
	return registry.LandID(id), true
}

func queryInt32(c *gin.Context, name string) (int32, error) {
	raw := c.DefaultQuery(name, "0")
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", registry.ErrInvalidInput, name, err)
	}
	return int32(v), nil
}

// bindJSON decodes the request body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, op, fmt.Errorf("%w: %v", registry.ErrInvalidInput, err))
		return false
	}
	return true
}
