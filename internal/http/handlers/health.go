package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	startedAt time.Time
	now       func() time.Time
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), now: time.Now}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GET /availability
func (h *HealthHandler) Availability(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"uptime":  int64(h.now().Sub(h.startedAt).Seconds()),
		"message": "Server operational.",
	})
}

type schemaField struct {
	ID   string            `json:"id"`
	Type string            `json:"type"`
	Name string            `json:"name"`
	Data map[string]string `json:"data"`
}

var inputSchema = []schemaField{
	field("topic", "string", "Topic", "What the post is about", "Decentralized AI agent marketplaces"),
	field("tone", "string", "Tone", "Voice of the post", "pragmatic"),
	field("platform", "string", "Platform", "Target platform: linkedin or twitter", "linkedin"),
	field("keywords", "string", "Keywords", "Comma separated keywords", "AI agents, Cardano"),
	field("link", "string", "Link", "Optional site to focus research on", "https://example.com"),
	field("audience", "string", "Audience", "Optional audience description", "startup founders"),
	field("use_emojis", "boolean", "Use emojis", "Allow emojis in the post", "true"),
}

func field(id, typ, name, desc, placeholder string) schemaField {
	return schemaField{
		ID:   id,
		Type: typ,
		Name: name,
		Data: map[string]string{"description": desc, "placeholder": placeholder},
	}
}

// GET /input_schema
func (h *HealthHandler) InputSchema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"input_data": inputSchema})
}
