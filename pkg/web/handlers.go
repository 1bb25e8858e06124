package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/store"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

var errUnavailable = fiber.NewError(fiber.StatusServiceUnavailable, "not configured")

// StatusResponse combines loop diagnostics with dashboard state.
type StatusResponse struct {
	Ticks      uint64 `json:"ticks"`
	Errors     uint64 `json:"errors"`
	Running    bool   `json:"running"`
	Clip       string `json:"clip"`
	Viewers    int    `json:"viewers"`
	Clips      int    `json:"clips"`
	HasHistory bool   `json:"has_history"`
}

func (s *Server) handleReport(c *fiber.Ctx) error {
	if s.cfg.Controller == nil {
		return errUnavailable
	}
	return c.JSON(s.cfg.Controller.Report())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.cfg.Controller == nil {
		return errUnavailable
	}
	st := s.cfg.Controller.Stats()
	resp := StatusResponse{
		Ticks:      st.Ticks,
		Errors:     st.Errors,
		Running:    st.Running,
		Clip:       st.Clip,
		HasHistory: s.cfg.History != nil,
	}
	if s.cfg.Hub != nil {
		resp.Viewers = s.cfg.Hub.ClientCount()
	}
	if s.cfg.Library != nil {
		resp.Clips = s.cfg.Library.Count()
	}
	return c.JSON(resp)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	if s.cfg.Controller == nil {
		return errUnavailable
	}
	if err := s.cfg.Controller.Reset(c.UserContext()); err != nil {
		return err
	}
	s.log.Info("session reset from dashboard")
	return c.JSON(s.cfg.Controller.Report())
}

func (s *Server) handleEnd(c *fiber.Ctx) error {
	if s.cfg.Controller == nil {
		return errUnavailable
	}
	if err := s.cfg.Controller.End(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.cfg.Controller.Report())
}

func (s *Server) handleListClips(c *fiber.Ctx) error {
	if s.cfg.Library == nil {
		return errUnavailable
	}
	if q := c.Query("q"); q != "" {
		return c.JSON(s.cfg.Library.Search(q))
	}
	return c.JSON(s.cfg.Library.Infos())
}

func (s *Server) handleLoadClip(c *fiber.Ctx) error {
	if s.cfg.Library == nil || s.cfg.Controller == nil {
		return errUnavailable
	}
	name := c.Params("name")
	clip, err := s.cfg.Library.Get(name)
	if errors.Is(err, reference.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	if err := s.cfg.Controller.Load(c.UserContext(), clip); err != nil {
		return err
	}
	s.log.Info("reference selected", "clip", name)
	return c.JSON(s.cfg.Controller.Report())
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	if s.cfg.History == nil {
		return errUnavailable
	}
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}

	var (
		recs []store.Record
		err  error
	)
	if ref := c.Query("reference"); ref != "" {
		recs, err = s.cfg.History.ForReference(c.UserContext(), ref, limit)
	} else {
		recs, err = s.cfg.History.Recent(c.UserContext(), limit)
	}
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []store.Record{}
	}
	return c.JSON(recs)
}

func (s *Server) handleBestSessions(c *fiber.Ctx) error {
	if s.cfg.History == nil {
		return errUnavailable
	}
	recs, err := s.cfg.History.BestPerReference(c.UserContext())
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []store.Record{}
	}
	return c.JSON(recs)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	if s.cfg.History == nil {
		return errUnavailable
	}
	rec, err := s.cfg.History.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// handleReportWS streams reports to a dashboard client.
func (s *Server) handleReportWS(c *fiber.Ctx) error {
	if s.stream == nil {
		return errUnavailable
	}
	return s.stream(c)
}
