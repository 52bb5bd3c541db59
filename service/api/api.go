package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/batchingest/batchingest/service/api IngestionAPI

const (
	ingestEndpoint  = "/ingest"
	statusEndpoint  = "/status/{ingestion_id}"
	metricsEndpoint = "/metrics"

	defaultRateLimitBurst = 10
	maxRequestBodyBytes   = 1 << 20
)

// IngestionAPI defines the operations exposed over HTTP.
type IngestionAPI interface {
	Submit(ids []string, priority string) (uuid.UUID, error)
	Status(id uuid.UUID) (*ingestion.Ingestion, error)
}

// Config encapsulates the settings for configuring the HTTP API service.
type Config struct {
	// The API for submitting and inspecting ingestion requests.
	IngestionAPI IngestionAPI

	// The address to listen for incoming requests.
	ListenAddr string

	// The number of ingestion requests per second that each client may
	// submit. A zero value disables rate limiting.
	RateLimitRPS float64

	// The maximum burst of ingestion requests per client. If not specified,
	// a default value of 10 will be used instead.
	RateLimitBurst int

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.IngestionAPI == nil {
		err = multierror.Append(err, xerrors.Errorf("ingestion API has not been provided"))
	}
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, xerrors.Errorf("listen address has not been specified"))
	}
	if cfg.RateLimitRPS < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for rate limit"))
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Service exposes the batch ingestion API over HTTP.
type Service struct {
	cfg      Config
	router   *mux.Router
	limiters *limiterPool
}

// NewService creates a new API service instance with the specified config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("api service: config validation failed: %w", err)
	}

	svc := &Service{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	var submit http.Handler = http.HandlerFunc(svc.submitIngestion)
	if cfg.RateLimitRPS > 0 {
		svc.limiters = newLimiterPool(cfg.RateLimitRPS, cfg.RateLimitBurst)
		submit = svc.rateLimited(submit)
	}

	svc.router.Handle(ingestEndpoint, submit).Methods("POST")
	svc.router.HandleFunc(statusEndpoint, svc.ingestionStatus).Methods("GET")
	svc.router.Handle(metricsEndpoint, promhttp.Handler()).Methods("GET")
	svc.router.NotFoundHandler = http.HandlerFunc(svc.notFound)
	svc.router.MethodNotAllowedHandler = http.HandlerFunc(svc.methodNotAllowed)
	return svc, nil
}

// Name implements service.Service
func (svc *Service) Name() string { return "api" }

// Run implements service.Service
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:    svc.cfg.ListenAddr,
		Handler: svc.router,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	svc.cfg.Logger.WithField("addr", l.Addr().String()).Info("starting API server")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		// Ignore error when the server shuts down.
		err = nil
	}

	return err
}

type submitRequest struct {
	IDs      []json.RawMessage `json:"ids"`
	Priority string            `json:"priority"`
}

type submitResponse struct {
	IngestionID uuid.UUID `json:"ingestion_id"`
}

type statusResponse struct {
	IngestionID uuid.UUID          `json:"ingestion_id"`
	Priority    ingestion.Priority `json:"priority"`
	Status      ingestion.Status   `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	Batches     []batchResponse    `json:"batches"`
}

type batchResponse struct {
	BatchID uuid.UUID         `json:"batch_id"`
	IDs     []json.RawMessage `json:"ids"`
	Status  ingestion.Status  `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (svc *Service) submitIngestion(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		svc.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ids, err := memberIDs(req.IDs)
	if err != nil {
		svc.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := svc.cfg.IngestionAPI.Submit(ids, req.Priority)
	if err != nil {
		if xerrors.Is(err, ingestion.ErrInvalidInput) {
			svc.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		svc.cfg.Logger.WithField("err", err).Error("unable to submit ingestion request")
		svc.writeError(w, http.StatusInternalServerError, "unable to submit ingestion request")
		return
	}

	svc.writeJSON(w, http.StatusOK, submitResponse{IngestionID: id})
}

func (svc *Service) ingestionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["ingestion_id"])
	if err != nil {
		svc.writeError(w, http.StatusNotFound, "ingestion not found")
		return
	}

	in, err := svc.cfg.IngestionAPI.Status(id)
	if err != nil {
		if xerrors.Is(err, ingestion.ErrNotFound) {
			svc.writeError(w, http.StatusNotFound, "ingestion not found")
			return
		}
		svc.cfg.Logger.WithFields(logrus.Fields{
			"ingestion_id": id,
			"err":          err,
		}).Error("unable to look up ingestion")
		svc.writeError(w, http.StatusInternalServerError, "unable to look up ingestion")
		return
	}

	res := statusResponse{
		IngestionID: in.ID,
		Priority:    in.Priority,
		Status:      in.AggregateStatus(),
		CreatedAt:   in.CreatedAt,
		Batches:     make([]batchResponse, len(in.Batches)),
	}
	for i, b := range in.Batches {
		res.Batches[i] = batchResponse{
			BatchID: b.ID,
			IDs:     rawMemberIDs(b.MemberIDs),
			Status:  b.Status,
		}
	}
	svc.writeJSON(w, http.StatusOK, res)
}

func (svc *Service) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := clientKey(r); !svc.limiters.Allow(key) {
			svc.cfg.Logger.WithField("client", key).Warn("rate limit exceeded")
			svc.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (svc *Service) notFound(w http.ResponseWriter, _ *http.Request) {
	svc.writeError(w, http.StatusNotFound, "not found")
}

func (svc *Service) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	svc.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (svc *Service) writeError(w http.ResponseWriter, status int, msg string) {
	svc.writeJSON(w, status, errorResponse{Error: msg})
}

func (svc *Service) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		svc.cfg.Logger.WithField("err", err).Warn("unable to write response")
	}
}

// memberIDs converts the identifiers of an ingestion request into their
// compact JSON text. Only numbers and strings are accepted.
func memberIDs(raw []json.RawMessage) ([]string, error) {
	if raw == nil {
		return nil, nil
	}

	ids := make([]string, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) == 0 || !isScalarID(r[0]) {
			return nil, xerrors.Errorf("id at index %d must be a number or a string", i)
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, r); err != nil {
			return nil, xerrors.Errorf("id at index %d is malformed", i)
		}
		ids[i] = buf.String()
	}
	return ids, nil
}

func isScalarID(first byte) bool {
	return first == '"' || first == '-' || (first >= '0' && first <= '9')
}

// rawMemberIDs converts stored identifiers back to JSON values. Identifiers
// that are not valid JSON text are emitted as strings.
func rawMemberIDs(ids []string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		if json.Valid([]byte(id)) {
			out[i] = json.RawMessage(id)
			continue
		}
		quoted, _ := json.Marshal(id)
		out[i] = quoted
	}
	return out
}
