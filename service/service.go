package service

import (
	"context"
	"io/ioutil"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Service is a long-running component of the batch ingestion server.
type Service interface {
	// Name returns the service name.
	Name() string

	// Run executes the service and blocks until the context gets cancelled,
	// the service runs out of work or an error occurs.
	Run(context.Context) error
}

// Group supervises a set of services that run in parallel.
type Group struct {
	services []Service
	logger   *logrus.Entry
}

// NewGroup returns a Group for the provided services. If logger is nil, an
// output-discarding logger will be used instead.
func NewGroup(logger *logrus.Entry, services ...Service) *Group {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return &Group{services: services, logger: logger}
}

// Run starts every service in the group and blocks until all of them have
// returned. The first service to return, with or without an error, causes
// the context passed to the remaining services to be cancelled. Errors from
// all services are accumulated into the returned error.
func (g *Group) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(g.services) == 0 {
		return nil
	}

	runCtx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		err   error
	)
	wg.Add(len(g.services))
	for _, svc := range g.services {
		go func(svc Service) {
			defer wg.Done()
			defer cancelFn()

			svcErr := svc.Run(runCtx)
			if svcErr == nil {
				g.logger.WithField("service", svc.Name()).Debug("service exited")
				return
			}

			g.logger.WithFields(logrus.Fields{
				"service": svc.Name(),
				"err":     svcErr,
			}).Error("service exited with error")
			errMu.Lock()
			err = multierror.Append(err, xerrors.Errorf("%s: %w", svc.Name(), svcErr))
			errMu.Unlock()
		}(svc)
	}

	wg.Wait()
	return err
}
