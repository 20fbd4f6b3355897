package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/resilience"
)

const requestIDHeader = "X-Request-ID"

// SearchFunc runs one evidence search for a decoded request.
type SearchFunc func(ctx context.Context, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error)

// Reply is the wire envelope sent back on the reply subject.
type Reply struct {
	RequestID string                       `json:"requestId"`
	Result    *domain.EvidenceSearchResult `json:"result,omitempty"`
	Error     string                       `json:"error,omitempty"`
	Message   string                       `json:"message,omitempty"`
}

// Transport carries evidence search requests over NATS request/reply.
type Transport struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Transport, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Transport, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = "evidence-workers"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("clinical-evidence-engine"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Transport{
		conn:       conn,
		subject:    subject,
		queueGroup: queueGroup,
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}, nil
}

func (t *Transport) Close() {
	if t.conn != nil {
		t.conn.Close()
	}
}

// Serve answers evidence search requests until ctx is canceled, then drains
// the subscription so in-flight requests still get a reply.
func (t *Transport) Serve(ctx context.Context, search SearchFunc) error {
	sub, err := t.conn.QueueSubscribe(t.subject, t.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		requestID := ""
		if msg.Header != nil {
			requestID = msg.Header.Get(requestIDHeader)
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		reply := HandleRequest(handlerCtx, requestID, msg.Data, search)
		payload, err := json.Marshal(reply)
		if err != nil {
			t.logger.Error("nats_reply_encode_failed", "request_id", reply.RequestID, "error", err)
			return
		}
		if err := msg.Respond(payload); err != nil {
			t.logger.Error("nats_reply_failed", "request_id", reply.RequestID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := t.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := t.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// HandleRequest decodes one request payload, runs the search and builds the
// reply envelope. Malformed payloads and caller errors become error replies.
func HandleRequest(ctx context.Context, requestID string, data []byte, search SearchFunc) Reply {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	reply := Reply{RequestID: requestID}

	var req domain.EvidenceSearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reply.Error = "invalid_request"
		reply.Message = "request body must be a JSON evidence search request"
		return reply
	}

	result, err := search(ctx, req)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			reply.Error = "invalid_request"
			reply.Message = err.Error()
			return reply
		}
		reply.Error = "internal_error"
		reply.Message = "evidence search failed"
		return reply
	}
	reply.Result = result
	return reply
}

// Request sends one evidence search to whichever responder in the queue group
// picks it up. Transport failures are retried by the executor when set.
func (t *Transport) Request(ctx context.Context, req domain.EvidenceSearchRequest) (*Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence request: %w", err)
	}
	msg := nats.NewMsg(t.subject)
	msg.Header.Set(requestIDHeader, uuid.NewString())
	msg.Data = payload

	var response *nats.Msg
	call := func(ctx context.Context) error {
		out, err := t.conn.RequestMsgWithContext(ctx, msg)
		if err != nil {
			return fmt.Errorf("nats request: %w", err)
		}
		response = out
		return nil
	}

	if t.executor != nil {
		err = t.executor.Execute(ctx, "nats.request", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapRequestError(err)
	}

	var reply Reply
	if err := json.Unmarshal(response.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode evidence reply: %w", err)
	}
	return &reply, nil
}
