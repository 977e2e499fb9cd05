package api

import (
	"errors"
	"io"
	"net/http"

	"djpro-audio/server/config"
	"djpro-audio/server/internal/app"
	"djpro-audio/server/internal/dispatch"
	"djpro-audio/server/internal/model"
	"djpro-audio/server/internal/transport/ws"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Svc *app.Service
	Cfg *config.Config
	WS  *ws.Server
}

func NewHandler(svc *app.Service, cfg *config.Config) *Handler {
	return &Handler{Svc: svc, Cfg: cfg, WS: ws.NewServer(svc)}
}

func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.Cfg.Auth.Enable {
			c.Next()
			return
		}
		// Fallback to query param for clients that cannot set headers on upgrade
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token != h.Cfg.Auth.Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// NewRouter builds the gin engine with all routes.
func (h *Handler) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	h.SetupRoutes(r)
	return r
}

func (h *Handler) SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	wsGroup := r.Group("/ws")
	wsGroup.Use(h.AuthMiddleware())
	wsGroup.GET("", h.HandleWS)

	apiGroup := r.Group("/api")
	apiGroup.Use(h.AuthMiddleware())
	apiGroup.GET("/methods", h.Methods)
	apiGroup.POST("/playback/:method", h.Call)
}

func (h *Handler) HandleWS(c *gin.Context) {
	h.WS.ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"listening": h.Svc.Listening(),
	})
}

func (h *Handler) Methods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"channel": model.ChannelPlayback,
		"methods": h.Svc.Methods(),
	})
}

// Call runs one playback command. The JSON body, if any, is the argument bag.
func (h *Handler) Call(c *gin.Context) {
	var args map[string]interface{}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, model.Response{
			Type:    "response",
			Code:    model.CodeBadRequest,
			Message: "bad request: " + err.Error(),
		})
		return
	}

	data, err := h.Svc.Call(c.Request.Context(), c.Param("method"), args)
	if err != nil {
		code, status := model.CodeInternal, http.StatusInternalServerError
		switch {
		case errors.Is(err, dispatch.ErrNotImplemented):
			code, status = model.CodeNotImplemented, http.StatusNotImplemented
		case errors.Is(err, dispatch.ErrInvalidArgument):
			code, status = model.CodeBadRequest, http.StatusBadRequest
		}
		c.JSON(status, model.Response{Type: "response", Code: code, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.Response{
		Type:    "response",
		Code:    model.CodeOK,
		Message: "success",
		Data:    data,
	})
}
