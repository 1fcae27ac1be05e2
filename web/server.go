package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RezaEskandarii/datafire/client"
	"github.com/RezaEskandarii/datafire/internal/metrics"
	"github.com/RezaEskandarii/datafire/internal/payload"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/pgk/parser"
	"github.com/RezaEskandarii/datafire/pgk/template"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	PageSize = 15

	defaultPreviewCount = 5
	maxPreviewCount     = 50
)

// APIServer is the operator JSON API over tasks and agents, plus /metrics.
type APIServer struct {
	tasks     *client.TaskManager
	agents    *client.AgentManager
	secretKey string
	port      uint
	location  *time.Location
	logger    *zap.SugaredLogger
}

func NewAPIServer(tasks *client.TaskManager, agents *client.AgentManager, secretKey string, port uint, location *time.Location, logger *zap.SugaredLogger) *APIServer {
	if location == nil {
		location = time.Local
	}
	return &APIServer{
		tasks:     tasks,
		agents:    agents,
		secretKey: secretKey,
		port:      port,
		location:  location,
		logger:    logger,
	}
}

// Handler returns the API routes.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/tasks", s.authMiddleware(s.listTasks))
	mux.HandleFunc("POST /api/tasks", s.authMiddleware(s.createTask))
	mux.HandleFunc("GET /api/tasks/counts", s.authMiddleware(s.countTasks))
	mux.HandleFunc("GET /api/tasks/{id}", s.authMiddleware(s.getTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.authMiddleware(s.updateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.authMiddleware(s.deleteTask))
	mux.HandleFunc("POST /api/tasks/{id}/start", s.authMiddleware(s.startTask))
	mux.HandleFunc("POST /api/tasks/{id}/stop", s.authMiddleware(s.stopTask))
	mux.HandleFunc("POST /api/tasks/{id}/run", s.authMiddleware(s.runTask))
	mux.HandleFunc("GET /api/tasks/{id}/executions", s.authMiddleware(s.taskExecutions))

	mux.HandleFunc("GET /api/agents", s.authMiddleware(s.listAgents))
	mux.HandleFunc("POST /api/agents", s.authMiddleware(s.createAgent))
	mux.HandleFunc("POST /api/agents/refresh", s.authMiddleware(s.refreshAgents))
	mux.HandleFunc("PUT /api/agents/{id}", s.authMiddleware(s.updateAgent))
	mux.HandleFunc("DELETE /api/agents/{id}", s.authMiddleware(s.deleteAgent))

	mux.HandleFunc("POST /api/cron/parse", s.authMiddleware(s.parseCron))
	mux.HandleFunc("POST /api/template/params", s.authMiddleware(s.templateParams))
	mux.HandleFunc("POST /api/template/preview", s.authMiddleware(s.templatePreview))

	return mux
}

// Serve listens until ctx is cancelled.
func (s *APIServer) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	printBanner(addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type taskRequest struct {
	Name      string                `json:"name"`
	Kind      types.TaskKind        `json:"kind"`
	Cron      string                `json:"cron"`
	BatchSize int                   `json:"batch_size"`
	AgentID   int64                 `json:"agent_id"`
	Template  string                `json:"template"`
	Params    []types.ParamSpec     `json:"params"`
	Connector types.ConnectorConfig `json:"connector"`
}

func (req taskRequest) task(id int64) *types.DataTask {
	return &types.DataTask{
		ID:              id,
		Name:            req.Name,
		Kind:            req.Kind,
		CronExpr:        req.Cron,
		BatchSize:       req.BatchSize,
		AgentID:         req.AgentID,
		TemplateContent: req.Template,
		Params:          req.Params,
		Connector:       req.Connector,
	}
}

func (s *APIServer) listTasks(w http.ResponseWriter, r *http.Request) {
	status := state.TaskStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	tasks, err := s.tasks.List(r.Context(), getPageNumber(r), PageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *APIServer) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task := req.task(0)
	if _, err := s.tasks.Create(r.Context(), task); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *APIServer) countTasks(w http.ResponseWriter, r *http.Request) {
	counts, err := s.tasks.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *APIServer) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *APIServer) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.tasks.Update(r.Context(), req.task(id)); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *APIServer) deleteTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, s.tasks.Delete)
}

func (s *APIServer) startTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, s.tasks.Start)
}

func (s *APIServer) stopTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, s.tasks.Stop)
}

func (s *APIServer) taskAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int64) error) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := action(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) runTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.tasks.RunOnce(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) taskExecutions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	executions, err := s.tasks.Executions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if executions == nil {
		executions = []types.Execution{}
	}
	writeJSON(w, http.StatusOK, executions)
}

type agentRequest struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Token string `json:"token"`
}

func (s *APIServer) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *APIServer) createAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	agent := &types.Agent{Name: req.Name, URL: req.URL, Token: req.Token}
	if _, err := s.agents.Register(r.Context(), agent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *APIServer) updateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	agent := &types.Agent{ID: id, Name: req.Name, URL: req.URL, Token: req.Token}
	if err := s.agents.Update(r.Context(), agent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *APIServer) deleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.agents.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) refreshAgents(w http.ResponseWriter, r *http.Request) {
	online, err := s.agents.RefreshHealth(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"online": online})
}

type cronRequest struct {
	Expression string `json:"expression"`
	Count      int    `json:"count"`
}

type cronResponse struct {
	Normalized string            `json:"normalized"`
	Fields     map[string]string `json:"fields"`
	Next       []time.Time       `json:"next"`
}

func (s *APIServer) parseCron(w http.ResponseWriter, r *http.Request) {
	var req cronRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	expr, err := parser.Parse(req.Expression)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cronResponse{
		Normalized: parser.Normalize(req.Expression),
		Fields:     expr.Fields,
		Next:       expr.NextN(time.Now().In(s.location), previewCount(req.Count)),
	})
}

type templateRequest struct {
	Template  string            `json:"template"`
	Kind      types.TaskKind    `json:"kind,omitempty"`
	Params    []types.ParamSpec `json:"params,omitempty"`
	BatchSize int               `json:"batch_size,omitempty"`
	BatchNo   int64             `json:"batch_no,omitempty"`
}

func (s *APIServer) templateParams(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"params": template.ExtractParams(req.Template)})
}

// templatePreview renders a batch without sending it anywhere.
func (s *APIServer) templatePreview(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	batchNo := req.BatchNo
	if batchNo < 1 {
		batchNo = 1
	}
	size := previewCount(req.BatchSize)
	now := time.Now().In(s.location)

	if req.Kind == types.KindDatabase {
		task := &types.DataTask{TemplateContent: req.Template}
		statements, err := task.Statements()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"statements": payload.BuildStatements(statements, req.Params, size, batchNo, now),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": payload.BuildMessages(req.Template, req.Params, size, batchNo, now),
	})
}

func previewCount(n int) int {
	switch {
	case n < 1:
		return defaultPreviewCount
	case n > maxPreviewCount:
		return maxPreviewCount
	}
	return n
}
