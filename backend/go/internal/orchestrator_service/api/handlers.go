// Package api 是编排器的 HTTP 入口。
package api

import (
	"errors"
	"net/http"
	"strings"

	"Conductor/backend/go/internal/orchestrator"
	"Conductor/backend/go/internal/orchestrator_service/service"
	"Conductor/backend/go/internal/orchestrator_service/store"
	"Conductor/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AskIDHeader 携带本次请求的记录 ID。
const AskIDHeader = "X-Ask-ID"

// API provides handlers for the orchestrator service.
type API struct {
	service     *service.AskService
	serviceName string
	logger      *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(svc *service.AskService, serviceName string, log *logger.Logger) *API {
	return &API{service: svc, serviceName: serviceName, logger: log}
}

// Question 是 POST /ask 的请求体。
type Question struct {
	Message string `json:"message"`
}

// AskHandler handles POST /ask.
func (a *API) AskHandler(c *gin.Context) {
	var q Question
	if err := c.ShouldBindJSON(&q); err != nil {
		a.logger.WithErr(err).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request payload: " + err.Error()})
		return
	}
	if strings.TrimSpace(q.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Message cannot be empty"})
		return
	}

	userID := c.GetString(userIDKey)
	res, err := a.service.Ask(c.Request.Context(), userID, q.Message)
	if res != nil {
		c.Header(AskIDHeader, res.ID)
	}
	if errors.Is(err, orchestrator.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Message cannot be empty"})
		return
	}
	if err != nil {
		a.logger.WithErr(err).Error("ask failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": res.Response})
}

// RootHandler handles GET /.
func (a *API) RootHandler(c *gin.Context) {
	names := []string{}
	for _, m := range a.service.Capabilities() {
		names = append(names, m.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      a.serviceName,
		"capabilities": names,
	})
}

// GetAskHandler handles GET /asks/:id.
func (a *API) GetAskHandler(c *gin.Context) {
	rec, err := a.service.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Ask not found"})
		return
	}
	if err != nil {
		a.logger.WithErr(err).Error("failed to load ask record")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load ask record"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
