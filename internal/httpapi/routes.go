package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mechiko/pdfsanitize/internal/config"
	"github.com/mechiko/pdfsanitize/internal/pipeline"
)

// submitRequest is the wire shape of POST /v1/jobs; it mirrors
// pipeline.JobRequest but keeps the HTTP boundary's JSON tags separate
// from the internal struct.
type submitRequest struct {
	InputPath              string `json:"input_path"`
	OutputPath             string `json:"output_path,omitempty"`
	Operator               string `json:"operator"`
	WorkstationID          string `json:"workstation_id"`
	ClassificationTag      string `json:"classification_tag"`
	Policy                 string `json:"policy,omitempty"`
	SourceReadonlyAttested bool   `json:"source_readonly_attested"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	JobID      string `json:"job_id"`
	State      string `json:"state"`
	EventID    string `json:"event_id,omitempty"`
	Status     string `json:"status,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

func registerRoutes(e *echo.Echo, jobs *JobService) {
	e.POST("/v1/jobs", submitJob(jobs))
	e.GET("/v1/jobs/:id", getJobStatus(jobs))
}

func submitJob(jobs *JobService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req submitRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed job request")
		}
		if req.InputPath == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "input_path is required")
		}

		policy := config.PolicyAggressive
		if req.Policy == string(config.PolicyLenient) {
			policy = config.PolicyLenient
		}

		id := jobs.Enqueue(pipeline.JobRequest{
			InputPath:              req.InputPath,
			OutputPath:             req.OutputPath,
			Operator:               req.Operator,
			WorkstationID:          req.WorkstationID,
			ClassificationTag:      req.ClassificationTag,
			Policy:                 policy,
			SourceReadonlyAttested: req.SourceReadonlyAttested,
		})
		return c.JSON(http.StatusAccepted, submitResponse{JobID: id})
	}
}

func getJobStatus(jobs *JobService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		rec, ok := jobs.Lookup(id)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown job id")
		}

		resp := statusResponse{JobID: rec.ID, State: string(rec.State)}
		if rec.Result != nil {
			resp.EventID = rec.Result.EventID
			resp.Status = string(rec.Result.Status)
			resp.OutputPath = rec.Result.OutputPath
			if rec.Result.Err != nil {
				resp.Error = rec.Result.Err.Error()
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}
