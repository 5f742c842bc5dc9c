package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/scanner"
)

// AnnotateRequest is the body of POST /api/v1/annotate.
type AnnotateRequest struct {
	PageURL string `json:"page_url"`
	// HTML is the page source; when empty the page is downloaded.
	HTML string `json:"html,omitempty"`
	// Format selects the response: "json" (default) or "html".
	Format string `json:"format,omitempty"`
	Wait   bool   `json:"wait,omitempty"`
}

func (s *Server) annotate(c echo.Context) error {
	var req AnnotateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.PageURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "page_url is required"})
	}
	if req.Format != "" && req.Format != "json" && req.Format != "html" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "format must be json or html"})
	}

	areq := annotation.Request{PageURL: req.PageURL, Wait: req.Wait}
	if req.HTML != "" {
		areq.HTML = []byte(req.HTML)
	}

	result, err := s.annotator.ProcessPage(c.Request().Context(), areq)
	if err != nil {
		return errorResponse(c, err)
	}

	if req.Format == "html" {
		var buf bytes.Buffer
		if err := result.Render(&buf); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) changeLog(c echo.Context) error {
	id := provenance.DiffIdentity{
		Owner: c.QueryParam("owner"),
		Repo:  c.QueryParam("repo"),
		Base:  c.QueryParam("base"),
		Head:  c.QueryParam("head"),
	}
	hash := c.QueryParam("hash")
	if path := c.QueryParam("path"); hash == "" && path != "" {
		hash = provenance.Hash(path)
	}

	if id.Owner == "" || id.Repo == "" || hash == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "owner, repo and hash (or path) are required"})
	}

	res, err := s.resolvers(id).Lookup(c.Request().Context(), hash)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) hash(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "path is required"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"path": path,
		"hash": provenance.Hash(path),
	})
}

func (s *Server) tracking(c echo.Context) error {
	u := c.QueryParam("url")
	if u == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"url":     u,
		"mode":    s.settings.ClipboardTracking,
		"enabled": s.settings.TrackingEnabled(u),
	})
}

// errorResponse maps domain errors onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var rf *provenance.RequestFailedError
	switch {
	case errors.Is(err, provenance.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, provenance.ErrInvalidPage):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, scanner.ErrContentTimeout):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, provenance.ErrMalformedData), errors.As(err, &rf):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("request failed")
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
