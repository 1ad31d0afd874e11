// Package supervisor implements the process lifecycle (spec.md §4.8):
// config -> logger -> output plugins -> secure session+auth -> subscriptions
// -> multicast info -> message loop, with teardown in exact reverse.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/client"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/config"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/ident"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/metrics"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/output"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/session"
)

// Supervisor owns the node's top-level lifecycle.
type Supervisor struct {
	log *log.Logger

	id          *ident.Identity
	reg         *output.Registry
	cl          *client.Client
	recvTimeout time.Duration
}

// New wires config, logging, and a default output registry into a ready
// Supervisor. A single dummy channel is always registered as the node's
// only output, matching the reference client's behavior with no plugin
// configured (spec.md SUPPLEMENTED FEATURES #7); cfg.Plugin.Path is not read.
func New(cfg *config.Config, logger *log.Logger, reg prometheus.Registerer) (*Supervisor, error) {
	id, err := ident.FromConfig(cfg.Identity.UUID, cfg.Identity.Secret)
	if err != nil {
		return nil, fmt.Errorf("supervisor: identity: %w", err)
	}

	outReg := defaultRegistry(logger.WithPrefix("output"))
	m := metrics.New(reg)

	ep := session.Endpoint{
		Host:     cfg.Remote.Server.Address,
		Port:     cfg.Remote.Server.EffectivePort(),
		IPv4Only: cfg.Remote.Server.IPv4Only,
	}

	cl := client.New(ep, id, outReg, m, logger.WithPrefix("client"))

	return &Supervisor{
		log:         logger,
		id:          id,
		reg:         outReg,
		cl:          cl,
		recvTimeout: cfg.Remote.RecvTimeout(),
	}, nil
}

func defaultRegistry(logger *log.Logger) *output.Registry {
	return output.NewRegistry([]output.Channel{
		output.NewDummyChannel(0, 1, output.FormatRGB, logger),
	})
}

// Run drives the client loop to completion, terminating it when ctx is
// cancelled, and always wipes the node secret on return (spec.md §4.8
// "guarantees terminate() on both the session and the multicast receiver
// before join").
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.id.Destroy()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.log.Info("shutdown requested")
			s.cl.Terminate()
		case <-done:
		}
	}()

	if err := s.cl.Run(ctx, s.recvTimeout); err != nil {
		return fmt.Errorf("supervisor: client run: %w", err)
	}
	return nil
}
