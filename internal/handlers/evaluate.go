package handlers

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mihac/internal/models"
	"mihac/internal/services/engine"
	"mihac/internal/services/recorder"
	"mihac/internal/utils"
)

// MaxBatchSize caps the number of profiles accepted in one request.
const MaxBatchSize = 1000

// EvaluateHandler evaluates profiles posted through API Gateway.
type EvaluateHandler struct {
	engine   *engine.Engine
	recorder *recorder.Recorder
}

// NewEvaluateHandler creates a new evaluate handler. rec may be nil.
func NewEvaluateHandler(eng *engine.Engine, rec *recorder.Recorder) *EvaluateHandler {
	if rec == nil {
		rec = recorder.New()
	}
	return &EvaluateHandler{engine: eng, recorder: rec}
}

// BatchResponse is returned when the request body is an array.
type BatchResponse struct {
	Summary models.BatchSummary        `json:"summary"`
	Results []*models.EvaluationResult `json:"results"`
	Errors  []string                   `json:"errors,omitempty"`
}

// Handle evaluates a JSON object (one result) or a JSON array (a batch).
// Invalid profiles are data: they come back as INVALIDO with status 200.
func (h *EvaluateHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.GetLogger()

	switch request.HTTPMethod {
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: corsHeaders()}, nil
	case http.MethodPost, "":
	default:
		return errorResponse(http.StatusMethodNotAllowed, "use POST")
	}

	body, err := requestBody(request)
	if err != nil {
		return errorResponse(http.StatusBadRequest, "body is not valid base64")
	}

	profiles, isArray, err := utils.DecodeProfilesJSON(body)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error())
	}

	if !isArray {
		result := h.engine.Evaluate(profiles[0])
		if err := h.recorder.Record(ctx, "", result); err != nil {
			logger.Warn("Evaluation recorded with errors", utils.String("id", result.ID), utils.Error(err))
		}
		logger.Info("Evaluated profile",
			utils.String("id", result.ID),
			utils.String("decision", string(result.Decision)))
		return jsonResponse(http.StatusOK, result)
	}

	if len(profiles) > MaxBatchSize {
		return errorResponse(http.StatusRequestEntityTooLarge, "too many profiles in one request")
	}
	resp := h.evaluateBatch(ctx, profiles)
	return jsonResponse(http.StatusOK, resp)
}

func (h *EvaluateHandler) evaluateBatch(ctx context.Context, profiles []models.RawProfile) BatchResponse {
	batchID := uuid.New().String()
	results, err := h.engine.EvaluateBatch(profiles)

	resp := BatchResponse{Results: results}
	if err != nil {
		utils.GetLogger().Error("Batch evaluation had defects", utils.String("batch_id", batchID), utils.Error(err))
		resp.Errors = append(resp.Errors, err.Error())
	}
	if err := h.recorder.Record(ctx, batchID, results...); err != nil {
		utils.GetLogger().Warn("Batch recorded with errors", utils.String("batch_id", batchID), utils.Error(err))
	}
	resp.Summary = h.engine.Summarize(batchID, results)
	return resp
}
