// Package tracing creates the Jaeger tracers used for following an
// ingestion request from submission to the ingestion of its batches.
package tracing

import (
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"golang.org/x/xerrors"
)

// Span operation names.
const (
	SubmitOperation = "ingestion.submit"
	IngestOperation = "batch.ingest"
)

// Closers keeps track of instantiated tracers so they can be flushed and
// closed at once before the process exits.
var Closers = new(closerSet)

type closerSet struct {
	mu      sync.Mutex
	closers []io.Closer
}

// Close all tracers tracked by the set.
func (s *closerSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, closer := range s.closers {
		if cErr := closer.Close(); cErr != nil {
			err = multierror.Append(err, cErr)
		}
	}

	s.closers = nil
	return err
}

func (s *closerSet) add(c io.Closer) {
	s.mu.Lock()
	s.closers = append(s.closers, c)
	s.mu.Unlock()
}

// NewTracer returns a Jaeger tracer configured from the standard JAEGER_*
// environment variables. Unless JAEGER_SAMPLER_TYPE is set every span is
// sampled. Callers must call Closers.Close before exiting so that buffered
// spans get reported.
func NewTracer(serviceName string) (opentracing.Tracer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, xerrors.Errorf("tracing: load jaeger config: %w", err)
	}

	if cfg.Sampler == nil || cfg.Sampler.Type == "" {
		cfg.Sampler = &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		}
	}
	cfg.ServiceName = serviceName

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, xerrors.Errorf("tracing: create tracer: %w", err)
	}

	Closers.add(closer)
	return tracer, nil
}
