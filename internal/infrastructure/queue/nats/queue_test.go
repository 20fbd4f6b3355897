package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
)

func TestHandleRequestRunsSearch(t *testing.T) {
	var got domain.EvidenceSearchRequest
	search := func(_ context.Context, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
		got = req
		return &domain.EvidenceSearchResult{Success: true, State: domain.StateComplete}, nil
	}

	reply := HandleRequest(context.Background(), "req-1", []byte(`{"query":"aspirin in pregnancy","maxResults":4}`), search)
	if reply.RequestID != "req-1" || reply.Error != "" {
		t.Fatalf("unexpected reply envelope: %+v", reply)
	}
	if reply.Result == nil || !reply.Result.Success {
		t.Fatalf("expected successful result, got %+v", reply.Result)
	}
	if got.Query != "aspirin in pregnancy" || got.MaxResults != 4 {
		t.Fatalf("unexpected decoded request: %+v", got)
	}
}

func TestHandleRequestRejectsMalformedPayload(t *testing.T) {
	called := false
	search := func(context.Context, domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
		called = true
		return nil, nil
	}

	reply := HandleRequest(context.Background(), "", []byte(`{not json`), search)
	if called {
		t.Fatalf("search must not run for malformed payload")
	}
	if reply.Error != "invalid_request" || reply.RequestID == "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestHandleRequestMapsErrorKinds(t *testing.T) {
	invalid := func(context.Context, domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evidence search", fmt.Errorf("query is required"))
	}
	if reply := HandleRequest(context.Background(), "r", []byte(`{}`), invalid); reply.Error != "invalid_request" {
		t.Fatalf("expected invalid_request, got %+v", reply)
	}

	internal := func(context.Context, domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
		return nil, errors.New("boom")
	}
	reply := HandleRequest(context.Background(), "r", []byte(`{"query":"x"}`), internal)
	if reply.Error != "internal_error" || reply.Message == "boom" {
		t.Fatalf("expected generic internal error, got %+v", reply)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("canceled context must not be retried or recorded: %+v", class)
	}
	if class := classifyNATSError(fmt.Errorf("nats request: %w", nats.ErrNoResponders)); !class.Retryable {
		t.Fatalf("expected no-responders to be retryable: %+v", class)
	}
	if class := classifyNATSError(errors.New("bad subject")); class.Retryable || !class.RecordFailure {
		t.Fatalf("unexpected classification for permanent error: %+v", class)
	}
}

func TestWrapRequestError(t *testing.T) {
	err := wrapRequestError(fmt.Errorf("nats request: %w", nats.ErrTimeout))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	err = wrapRequestError(fmt.Errorf("nats request: %w", nats.ErrNoResponders))
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected no workers to read as retrieval unavailable, got %v", err)
	}
	if err := wrapRequestError(errors.New("bad subject")); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent errors must keep their kind, got %v", err)
	}
	if wrapRequestError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
