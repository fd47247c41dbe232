package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/store"
	"github.com/labstack/echo/v4"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Reader is the read side of the warehouse. *store.Store implements it.
type Reader interface {
	ListIssueEvents(ctx context.Context, q store.EventQuery) ([]store.IssueEvent, error)
	ListRepositories(ctx context.Context, limit int) ([]store.Repository, error)
	GetWatermark(ctx context.Context, pipeline string) (*time.Time, error)
	ListRuns(ctx context.Context, pipeline string, limit int) ([]store.Run, error)
}

type API struct {
	store    Reader
	pipeline string
}

func NewAPI(r Reader, pipeline string) *API {
	return &API{store: r, pipeline: pipeline}
}

func (a *API) Register(e *echo.Echo) {
	e.GET("/events", a.HandleGetEvents)
	e.GET("/repositories", a.HandleGetRepositories)
	e.GET("/watermarks/:pipeline", a.HandleGetWatermark)
	e.GET("/runs", a.HandleGetRuns)
}

func parseLimit(c echo.Context) (int, error) {
	limitParam := c.QueryParam("limit")
	if limitParam == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %w", err)
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

type EventsResponse struct {
	Events []store.IssueEvent `json:"events"`
	Error  string             `json:"error,omitempty"`
}

// HandleGetEvents handles the GET /events endpoint
func (a *API) HandleGetEvents(c echo.Context) error {
	// repo_id - Repository id (optional)
	// issue_id - Repository-scoped issue number (optional)
	// action - Event action (optional)
	// limit - Number of events to return (default=100)
	resp := EventsResponse{}
	q := store.EventQuery{}

	if repoID := c.QueryParam("repo_id"); repoID != "" {
		q.RepoID = &repoID
	}

	if issueParam := c.QueryParam("issue_id"); issueParam != "" {
		issueID, err := strconv.ParseInt(issueParam, 10, 64)
		if err != nil {
			resp.Error = fmt.Sprintf("invalid issue_id: %s", err)
			return c.JSON(http.StatusBadRequest, resp)
		}
		q.IssueID = &issueID
	}

	if action := c.QueryParam("action"); action != "" {
		q.Action = &action
	}

	limit, err := parseLimit(c)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}
	q.Limit = limit

	events, err := a.store.ListIssueEvents(c.Request().Context(), q)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}

	resp.Events = events
	if resp.Events == nil {
		resp.Events = []store.IssueEvent{}
	}
	return c.JSON(http.StatusOK, resp)
}

type RepositoriesResponse struct {
	Repositories []store.Repository `json:"repositories"`
	Error        string             `json:"error,omitempty"`
}

func (a *API) HandleGetRepositories(c echo.Context) error {
	resp := RepositoriesResponse{}

	limit, err := parseLimit(c)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}

	repos, err := a.store.ListRepositories(c.Request().Context(), limit)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}

	resp.Repositories = repos
	if resp.Repositories == nil {
		resp.Repositories = []store.Repository{}
	}
	return c.JSON(http.StatusOK, resp)
}

type WatermarkResponse struct {
	PipelineName  string     `json:"pipeline_name"`
	LastSuccessTS *time.Time `json:"last_success_ts"`
	Error         string     `json:"error,omitempty"`
}

func (a *API) HandleGetWatermark(c echo.Context) error {
	pipeline := c.Param("pipeline")
	resp := WatermarkResponse{PipelineName: pipeline}

	w, err := a.store.GetWatermark(c.Request().Context(), pipeline)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}
	if w == nil {
		resp.Error = fmt.Sprintf("no watermark for pipeline: %s", pipeline)
		return c.JSON(http.StatusNotFound, resp)
	}

	resp.LastSuccessTS = w
	return c.JSON(http.StatusOK, resp)
}

type RunsResponse struct {
	Runs  []store.Run `json:"runs"`
	Error string      `json:"error,omitempty"`
}

// HandleGetRuns lists recent runs of the served pipeline, or of the pipeline
// named by the pipeline query parameter.
func (a *API) HandleGetRuns(c echo.Context) error {
	resp := RunsResponse{}

	limit, err := parseLimit(c)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}

	pipeline := c.QueryParam("pipeline")
	if pipeline == "" {
		pipeline = a.pipeline
	}

	runs, err := a.store.ListRuns(c.Request().Context(), pipeline, limit)
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}

	resp.Runs = runs
	if resp.Runs == nil {
		resp.Runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, resp)
}
