package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type addAdminRequest struct {
	Principal registry.Principal `json:"principal"`
}

func (s *Server) isAdmin(c *gin.Context) {
	p := registry.Principal(c.Param("principal"))
	c.JSON(http.StatusOK, gin.H{"principal": p, "admin": s.engine.IsAdmin(p)})
}

func (s *Server) addAdmin(c *gin.Context) {
	var req addAdminRequest
	if !bindJSON(c, registry.OpAddAdmin, &req) {
		return
	}
	if err := s.engine.AddAdmin(callerOf(c), req.Principal); err != nil {
		fail(c, registry.OpAddAdmin, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "admins": s.engine.Admins()})
}

// backup answers non-admins with an empty list rather than an error.
func (s *Server) backup(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lands": s.engine.BackupLands(callerOf(c))})
}

func (s *Server) restore(c *gin.Context) {
	var records []registry.LandRecord
	if !bindJSON(c, registry.OpRestoreLands, &records) {
		return
	}
	if err := s.engine.RestoreLands(callerOf(c), records); err != nil {
		fail(c, registry.OpRestoreLands, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "restored": len(records)})
}

var errSnapshotsDisabled = errors.New("snapshots disabled")

func (s *Server) saveSnapshot(c *gin.Context) {
	caller := callerOf(c)
	if !s.engine.IsAdmin(caller) {
		fail(c, "", fmt.Errorf("%w: %s is not an admin", registry.ErrUnauthorized, caller))
		return
	}
	if s.opts.Snapshotter == nil {
		_ = c.Error(errSnapshotsDisabled)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errSnapshotsDisabled.Error()})
		return
	}
	meta, err := s.opts.Snapshotter.SaveSnapshot(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("caller", string(caller)).Msg("manual snapshot failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, meta)
}
