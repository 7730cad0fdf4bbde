// Package service provides service primitives.
package service

import (
	"context"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
)

// CleanupAble provides a Cleanup method.
type CleanupAble interface {
	// Cleanup performs the service specific post-termination cleanup.
	Cleanup()
}

// BackgroundService is a background service.
type BackgroundService interface {
	// Name returns the service name.
	Name() string

	// Start starts the service.
	Start() error

	// Stop halts the service.
	Stop()

	// Quit returns a channel that will be closed when the service terminates.
	Quit() <-chan struct{}

	CleanupAble
}

// BaseBackgroundService is a base implementation of BackgroundService.
type BaseBackgroundService struct {
	name        string
	quitChannel chan struct{}
	Logger      *logging.Logger
}

// Name returns the service name.
func (b *BaseBackgroundService) Name() string {
	return b.name
}

// Start starts the service.
func (b *BaseBackgroundService) Start() error {
	return nil
}

// Stop halts the service.
func (b *BaseBackgroundService) Stop() {
	close(b.quitChannel)
}

// Quit returns a channel that will be closed when the service terminates.
func (b *BaseBackgroundService) Quit() <-chan struct{} {
	return b.quitChannel
}

// Cleanup performs the service specific post-termination cleanup.
func (b *BaseBackgroundService) Cleanup() {
	// Default implementation does nothing.
}

// NewBaseBackgroundService creates a new base background service implementation.
func NewBaseBackgroundService(name string) *BaseBackgroundService {
	return &BaseBackgroundService{
		name:        name,
		quitChannel: make(chan struct{}),
		Logger:      logging.GetLogger(name),
	}
}

// Group runs a set of background services and tears them down in reverse
// order.
type Group struct {
	logger   *logging.Logger
	services []BackgroundService
}

// Register adds a service to the group.
func (g *Group) Register(svc BackgroundService) {
	g.services = append(g.services, svc)
}

// Start starts every registered service in registration order. On failure the
// services started so far are stopped again.
func (g *Group) Start() error {
	for i, svc := range g.services {
		g.logger.Info("starting service", "service", svc.Name())
		if err := svc.Start(); err != nil {
			g.logger.Error("failed to start service", "service", svc.Name(), "err", err)
			for j := i - 1; j >= 0; j-- {
				g.services[j].Stop()
			}
			return err
		}
	}
	return nil
}

// Stop stops every service in reverse order and runs cleanup.
func (g *Group) Stop() {
	for i := len(g.services) - 1; i >= 0; i-- {
		svc := g.services[i]
		g.logger.Info("stopping service", "service", svc.Name())
		svc.Stop()
		svc.Cleanup()
	}
}

// Wait blocks until the context is done or any service quits.
func (g *Group) Wait(ctx context.Context) {
	cases := make(chan struct{}, len(g.services))
	for _, svc := range g.services {
		go func(ch <-chan struct{}) {
			select {
			case <-ch:
				cases <- struct{}{}
			case <-ctx.Done():
			}
		}(svc.Quit())
	}

	select {
	case <-ctx.Done():
	case <-cases:
	}
}

// NewGroup creates an empty service group.
func NewGroup(name string) *Group {
	return &Group{logger: logging.GetLogger(name)}
}
