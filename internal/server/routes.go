package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/mdpwire/internal/auth"
	"github.com/danmuck/mdpwire/internal/decoder"
	"github.com/danmuck/mdpwire/internal/export"
	"github.com/danmuck/mdpwire/internal/frame"
	"github.com/danmuck/mdpwire/internal/sbe"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var ErrBodyTooLarge = errors.New("request body too large")

type TemplateInfo struct {
	ID          uint16      `json:"id"`
	Name        string      `json:"name"`
	BlockLength uint16      `json:"block_length"`
	Groups      []GroupInfo `json:"groups"`
}

type GroupInfo struct {
	Name        string      `json:"name"`
	BlockLength uint16      `json:"block_length"`
	Fixed       bool        `json:"fixed"`
	Groups      []GroupInfo `json:"groups,omitempty"`
}

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ready", func(c *gin.Context) {
		n := len(s.decoder.Registry().Templates())
		status := http.StatusOK
		if n == 0 {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":     n > 0,
			"templates": n,
			"uptime":    time.Since(s.Appeared).String(),
			"service":   s.Name,
			"version":   version,
		})
	})

	r.GET("/templates", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"templates": s.ListTemplates()})
	})

	r.GET("/templates/:template", func(c *gin.Context) {
		id, ok := templateParam(c)
		if !ok {
			return
		}
		for _, info := range s.ListTemplates() {
			if info.ID == id {
				c.JSON(http.StatusOK, info)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": (&sbe.UnknownTemplateError{TemplateID: id}).Error()})
	})

	api := r.Group("/")
	if s.auth != nil {
		api.Use(auth.Require(s.auth))
	}

	api.POST("/decode/:template", func(c *gin.Context) {
		id, ok := templateParam(c)
		if !ok {
			return
		}
		body, ok := s.readBody(c, s.decoder.Limits().MaxMessageBytes)
		if !ok {
			return
		}
		msg, err := s.decoder.DecodePayload(id, body)
		s.respondMessage(c, msg, err)
	})

	api.POST("/decode", func(c *gin.Context) {
		body, ok := s.readBody(c, s.decoder.Limits().MaxMessageBytes)
		if !ok {
			return
		}
		m, rest, err := frame.ParseMessage(body, s.decoder.Limits())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(rest) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%d bytes after framed message", len(rest))})
			return
		}
		msg, err := s.decoder.DecodeMessage(m)
		s.respondMessage(c, msg, err)
	})

	api.POST("/capture", func(c *gin.Context) {
		format, ok := formatOf(c)
		if !ok {
			return
		}
		// counts are only known once the body is drained
		c.Header("Trailer", "X-Decoded, X-Rejected, X-Capture-Error")
		c.Header("Content-Type", format.ContentType())
		w := export.NewWriter(c.Writer, format)
		stats, err := s.decoder.Stream(c.Request.Context(), c.Request.Body, w.WriteResult)
		if err == nil {
			err = w.Flush()
		}
		c.Header("X-Decoded", strconv.Itoa(stats.Decoded))
		c.Header("X-Rejected", strconv.Itoa(stats.Rejected+stats.RejectedPackets))
		if err == nil {
			return
		}
		if c.Writer.Written() {
			log.Warn().Err(err).Int("decoded", stats.Decoded).Msg("server: capture ended early")
			c.Header("X-Capture-Error", err.Error())
			return
		}
		status := http.StatusBadRequest
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		c.Writer.Header().Del("Trailer")
		c.Writer.Header().Del("Content-Type")
		c.JSON(status, gin.H{"error": err.Error(), "stats": stats})
	})
}

// ListTemplates describes every registered template in id order.
func (s *Server) ListTemplates() []TemplateInfo {
	templates := s.decoder.Registry().Templates()
	list := make([]TemplateInfo, 0, len(templates))
	for _, t := range templates {
		list = append(list, TemplateInfo{
			ID:          t.ID,
			Name:        t.Schema.Name,
			BlockLength: t.BlockLength,
			Groups:      groupInfos(t.Schema),
		})
	}
	return list
}

func groupInfos(s sbe.Schema) []GroupInfo {
	out := make([]GroupInfo, 0, len(s.Groups))
	for _, m := range s.Groups {
		info := GroupInfo{Name: m.Name, BlockLength: m.BlockLength, Fixed: m.Group.Fixed()}
		if nested, ok := m.Group.Element.(sbe.Schema); ok && len(nested.Groups) > 0 {
			info.Groups = groupInfos(nested)
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) respondMessage(c *gin.Context, msg *sbe.Message, err error) {
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": decoder.Classify(err)})
		return
	}
	format, ok := formatOf(c)
	if !ok {
		return
	}
	body, err := export.Marshal(format, msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, format.ContentType(), body)
}

func (s *Server) readBody(c *gin.Context, limit int) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(limit)+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if len(body) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": ErrBodyTooLarge.Error()})
		return nil, false
	}
	return body, true
}

func statusFor(err error) int {
	if errors.Is(err, sbe.ErrUnknownTemplate) {
		return http.StatusNotFound
	}
	return http.StatusUnprocessableEntity
}

func templateParam(c *gin.Context) (uint16, bool) {
	raw := c.Param("template")
	id, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid template id %q", raw)})
		return 0, false
	}
	return uint16(id), true
}

// formatOf picks the response format from ?format= or the Accept header.
func formatOf(c *gin.Context) (export.Format, bool) {
	name := c.Query("format")
	if name == "" && strings.Contains(c.GetHeader("Accept"), "msgpack") {
		name = string(export.FormatMsgpack)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return format, true
}
