package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apiconduit/conduit/internal/identity"
	"github.com/apiconduit/conduit/internal/observability"
	"github.com/apiconduit/conduit/internal/pipeline"
)

// handleRelay feeds one inbound request through the proxy pipeline and
// writes the relayed response.
func (s *Server) handleRelay(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	req := &pipeline.Request{
		Module:    c.Param("module"),
		Path:      c.Param("path"),
		Method:    c.Request.Method,
		RawQuery:  c.Request.URL.RawQuery,
		Header:    c.Request.Header,
		Body:      body,
		Principal: s.principal(c),
		ClientIP:  c.ClientIP(),
	}

	resp, err := s.pipeline.Execute(c.Request.Context(), req)
	if err != nil {
		c.JSON(pipeline.StatusFor(err), gin.H{"error": pipeline.PublicMessage(err)})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	for key, values := range resp.Header {
		if key == "Content-Type" {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	c.Data(resp.Status, contentType, resp.Body)
}

// principal extracts the caller identity from the Authorization
// header. Verification failure yields an anonymous caller; routes that
// require authentication reject it downstream.
func (s *Server) principal(c *gin.Context) *identity.Principal {
	if s.verifier == nil {
		return nil
	}
	p, err := s.verifier.FromAuthorizationHeader(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		s.logger.Debug("token verification failed",
			observability.String("client_ip", c.ClientIP()),
			observability.Error(err),
		)
		return nil
	}
	return p
}
