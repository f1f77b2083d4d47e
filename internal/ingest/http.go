package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"alertstate/internal/domain"
	"alertstate/internal/metrics"
)

// ResultSink receives decoded submissions from ingest interfaces.
// Params: context and one or more decoded submissions.
// Returns: processing error; wraps domain.ErrUnknownRule for unconfigured rules.
type ResultSink interface {
	Push(ctx context.Context, submission Submission) error
	PushBatch(ctx context.Context, submissions []Submission) error
}

// HTTPHandler decodes JSON results and forwards them to sink.
// Params: sink receives validated results, max body limits payload size.
// Returns: HTTP handler for ingest endpoint.
type HTTPHandler struct {
	sink        ResultSink
	maxBodySize int64
	metrics     *metrics.Metrics
}

// NewHTTPHandler creates ingest HTTP handler.
// Params: sink, max request body size in bytes and optional metrics.
// Returns: configured handler.
func NewHTTPHandler(sink ResultSink, maxBodySize int64, m *metrics.Metrics) *HTTPHandler {
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize, metrics: m}
}

// ServeHTTP handles one incoming result request.
// Params: HTTP request/response writer pair.
// Returns: 202 accepted, 400 bad payload, 422 unknown rule, 503 sink failure.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.Header().Set("Allow", http.MethodPost)
		h.reply(writer, http.StatusMethodNotAllowed, "")
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		h.reply(writer, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	submissions, err := DecodePayload(body)
	if err != nil {
		h.reply(writer, http.StatusBadRequest, err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.IngestBatchSize.Observe(float64(len(submissions)))
	}

	if len(submissions) == 1 {
		err = h.sink.Push(request.Context(), submissions[0])
	} else {
		err = h.sink.PushBatch(request.Context(), submissions)
	}
	switch {
	case err == nil:
		h.reply(writer, http.StatusAccepted, "")
	case errors.Is(err, domain.ErrUnknownRule):
		h.reply(writer, http.StatusUnprocessableEntity, err.Error())
	default:
		h.reply(writer, http.StatusServiceUnavailable, err.Error())
	}
}

func (h *HTTPHandler) reply(writer http.ResponseWriter, status int, message string) {
	if h.metrics != nil {
		h.metrics.IngestRequestsTotal.WithLabelValues("http", strconv.Itoa(status)).Inc()
	}
	if message == "" {
		writer.WriteHeader(status)
		return
	}
	http.Error(writer, message, status)
}
