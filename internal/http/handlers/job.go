package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/http/response"
	"github.com/yungbote/contentagent/internal/jobs"
	"github.com/yungbote/contentagent/internal/platform/apierr"
	"github.com/yungbote/contentagent/internal/platform/ctxutil"
	"github.com/yungbote/contentagent/internal/platform/logger"
)

type JobCreator interface {
	CreateJob(ctx context.Context, identifierFromPurchaser string, req domain.ContentRequest) (domain.JobRecord, error)
}

// AgentInfo is echoed back to purchasers in the start_job response.
type AgentInfo struct {
	Identifier string
	SellerVKey string
}

type JobHandler struct {
	log    *logger.Logger
	jobs   JobCreator
	status jobs.StatusService
	agent  AgentInfo
}

func NewJobHandler(log *logger.Logger, creator JobCreator, status jobs.StatusService, agent AgentInfo) *JobHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &JobHandler{
		log:    log.With("handler", "JobHandler"),
		jobs:   creator,
		status: status,
		agent:  agent,
	}
}

type startJobRequest struct {
	IdentifierFromPurchaser string         `json:"identifier_from_purchaser"`
	InputData               map[string]any `json:"input_data"`
}

type startJobResponse struct {
	Status                    string `json:"status"`
	JobID                     string `json:"job_id"`
	BlockchainIdentifier      string `json:"blockchainIdentifier"`
	SubmitResultTime          string `json:"submitResultTime"`
	UnlockTime                string `json:"unlockTime"`
	ExternalDisputeUnlockTime string `json:"externalDisputeUnlockTime"`
	AgentIdentifier           string `json:"agentIdentifier"`
	SellerVKey                string `json:"sellerVKey"`
	IdentifierFromPurchaser   string `json:"identifierFromPurchaser"`
	InputHash                 string `json:"input_hash"`
	PayByTime                 string `json:"payByTime"`
}

type statusResponse struct {
	JobID         string                `json:"job_id"`
	Status        domain.LifecycleState `json:"status"`
	PaymentStatus domain.PaymentState   `json:"payment_status"`
	Result        *domain.ContentResult `json:"result"`
	Error         *string               `json:"error"`
}

// POST /start_job
func (h *JobHandler) StartJob(c *gin.Context) {
	var body startJobRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req, err := contentRequestFromInput(body.InputData)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_input_data", err)
		return
	}

	rec, err := h.jobs.CreateJob(c.Request.Context(), body.IdentifierFromPurchaser, req)
	if err != nil {
		response.RespondAPIError(c, mapCreateError(err))
		return
	}

	response.RespondOK(c, startJobResponse{
		Status:                    "success",
		JobID:                     rec.ID,
		BlockchainIdentifier:      rec.PaymentReference,
		SubmitResultTime:          rec.Terms.SubmitResultTime,
		UnlockTime:                rec.Terms.UnlockTime,
		ExternalDisputeUnlockTime: rec.Terms.ExternalDisputeUnlockTime,
		AgentIdentifier:           h.agent.Identifier,
		SellerVKey:                h.agent.SellerVKey,
		IdentifierFromPurchaser:   rec.IdentifierFromPurchaser,
		InputHash:                 rec.InputHash,
		PayByTime:                 rec.Terms.PayByTime,
	})
}

// GET /status?job_id=
func (h *JobHandler) Status(c *gin.Context) {
	jobID := strings.TrimSpace(c.Query("job_id"))
	if jobID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_job_id", errors.New("job_id is required"))
		return
	}
	ctx := ctxutil.WithJobID(c.Request.Context(), jobID)
	rec, err := h.status.QueryStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			response.RespondAPIError(c, apierr.NotFound("job_not_found", err))
			return
		}
		h.log.Error("status query failed", "job_id", jobID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "status_failed", err)
		return
	}

	out := statusResponse{
		JobID:         rec.ID,
		Status:        rec.Lifecycle,
		PaymentStatus: rec.Payment,
		Result:        rec.Result,
	}
	if rec.Error != "" {
		msg := rec.Error
		out.Error = &msg
	}
	response.RespondOK(c, out)
}

func mapCreateError(err error) error {
	switch {
	case errors.Is(err, jobs.ErrMissingPurchaser), errors.Is(err, domain.ErrInvalidRequest):
		return apierr.BadRequest("invalid_input_data", err)
	case errors.Is(err, jobs.ErrPaymentRequest):
		return apierr.BadGateway("payment_request_failed", err)
	default:
		return err
	}
}

// contentRequestFromInput maps the loosely typed input_data object. Values
// may arrive as strings (the marketplace form encoding) or native JSON.
func contentRequestFromInput(in map[string]any) (domain.ContentRequest, error) {
	if in == nil {
		return domain.ContentRequest{}, fmt.Errorf("%w: input_data is required", domain.ErrInvalidRequest)
	}
	req := domain.ContentRequest{
		Topic:     stringField(in, "topic"),
		Tone:      stringField(in, "tone"),
		Platform:  stringField(in, "platform"),
		Keywords:  domain.SplitKeywords(in["keywords"]),
		Link:      stringField(in, "link"),
		Audience:  stringField(in, "audience"),
		UseEmojis: true,
	}
	if v, ok := in["use_emojis"]; ok && v != nil {
		b, err := boolField(v)
		if err != nil {
			return domain.ContentRequest{}, fmt.Errorf("%w: use_emojis: %v", domain.ErrInvalidRequest, err)
		}
		req.UseEmojis = b
	}
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return domain.ContentRequest{}, err
	}
	return req, nil
}

func stringField(in map[string]any, key string) string {
	switch v := in[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func boolField(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return true, nil
		}
		return strconv.ParseBool(strings.TrimSpace(t))
	default:
		return false, fmt.Errorf("unsupported value %v", v)
	}
}
