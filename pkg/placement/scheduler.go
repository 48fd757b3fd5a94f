package placement

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/pylon/pkg/agent"
	"github.com/cuemby/pylon/pkg/health"
	"github.com/cuemby/pylon/pkg/log"
	"github.com/cuemby/pylon/pkg/metrics"
	"github.com/cuemby/pylon/pkg/statestore"
)

// ServiceSpec describes one service to place: its resource demand, the
// container it runs, and the peers it depends on for env templating.
type ServiceSpec struct {
	Name         string
	Image        string
	Command      *string
	InternalPort *int
	ExternalPort *int
	Cpus         int
	Memory       int64
	DependsOn    []string
	Envs         map[string]string
}

// HealthGate is the polling budget applied before a newly-placed service's
// instance is trusted to accept a run-container call: up to 24 attempts,
// 5 seconds apart — a distinct protocol from the unrelated VM-readiness
// poll in cloud.DefaultVmReadyAttempts (10 attempts, also 5s apart).
type HealthGate struct {
	Attempts int
	Interval time.Duration
}

func DefaultHealthGate() HealthGate {
	return HealthGate{Attempts: 24, Interval: 5 * time.Second}
}

// Scheduler bin-packs services onto instances by residual capacity,
// driving each instance's agent over HTTP and persisting PlacementState
// after every attempt, win or lose.
type Scheduler struct {
	State       *PlacementState
	Store       *statestore.Store[PlacementState]
	AgentPort   int
	HealthCache *agent.HealthCache
	HealthGate  HealthGate

	newClient func(publicIP string) *agent.Client
}

func NewScheduler(state *PlacementState, store *statestore.Store[PlacementState], agentPort int, cache *agent.HealthCache) *Scheduler {
	return &Scheduler{
		State:       state,
		Store:       store,
		AgentPort:   agentPort,
		HealthCache: cache,
		HealthGate:  DefaultHealthGate(),
	}
}

func (s *Scheduler) client(publicIP string) *agent.Client {
	if s.newClient != nil {
		return s.newClient(publicIP)
	}
	return agent.New(publicIP, s.AgentPort)
}

// Run places a service onto the first instance, in deterministic IP
// order, whose residual capacity fits the demand and whose agent accepts
// the run-container call. An instance that refuses the call (agent
// unreachable, non-2xx) is skipped, not fatal — the scan continues to the
// next candidate. State is always persisted before Run returns, whether
// or not placement succeeded, so a crash never loses the attempt record.
//
// This mirrors the original scheduler's first-fit / continue-on-failure
// behavior: a full bin-packing solver is out of scope.
func (s *Scheduler) Run(ctx context.Context, svc ServiceSpec, peerEnvs map[string]PeerInfo) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	envs := RenderEnvs(svc.Envs, peerEnvs)

	var lastErr error
	placed := false

	for _, ip := range s.State.SortedIPs() {
		inst := s.State.Instances[ip]
		if !inst.Fits(svc.Cpus, svc.Memory) {
			continue
		}

		if err := s.awaitHealthy(ctx, ip); err != nil {
			log.Warn(fmt.Sprintf("placement: instance %s unhealthy, skipping for service %s: %v", ip, svc.Name, err))
			lastErr = err
			continue
		}

		cl := s.client(ip)
		req := agent.RunContainerRequest{
			Name:         svc.Name,
			Image:        svc.Image,
			Command:      svc.Command,
			ExternalPort: svc.ExternalPort,
			InternalPort: svc.InternalPort,
			Cpus:         svc.Cpus,
			Memory:       svc.Memory,
			Envs:         envs,
		}
		if err := cl.RunContainer(ctx, req); err != nil {
			log.Warn(fmt.Sprintf("placement: run-container for %s rejected by %s, trying next instance: %v", svc.Name, ip, err))
			lastErr = err
			continue
		}

		inst.Services[svc.Name] = Service{Cpus: svc.Cpus, Memory: svc.Memory}
		placed = true
		metrics.ServicesPlaced.Inc()
		break
	}

	if saveErr := s.save(ctx); saveErr != nil {
		log.Errorf("placement: failed to persist state", saveErr)
	}

	if !placed {
		metrics.ServicesPlacementFailed.Inc()
		if lastErr != nil {
			return fmt.Errorf("placement: no instance could host %q: %w", svc.Name, lastErr)
		}
		return fmt.Errorf("placement: no instance had residual capacity for %q (cpus=%d memory=%d)", svc.Name, svc.Cpus, svc.Memory)
	}
	return nil
}

// Stop removes a service from whichever instance currently hosts it,
// issuing remove-container and freeing its reserved capacity. Stop is a
// no-op, not an error, if the service is already absent.
func (s *Scheduler) Stop(ctx context.Context, name string) error {
	var hostIP string
	for ip, inst := range s.State.Instances {
		if _, ok := inst.Services[name]; ok {
			hostIP = ip
			break
		}
	}
	if hostIP == "" {
		return nil
	}

	cl := s.client(hostIP)
	if err := cl.RemoveContainer(ctx, name); err != nil {
		if saveErr := s.save(ctx); saveErr != nil {
			log.Errorf("placement: failed to persist state", saveErr)
		}
		return fmt.Errorf("placement: remove-container %q on %s: %w", name, hostIP, err)
	}

	delete(s.State.Instances[hostIP].Services, name)
	return s.save(ctx)
}

func (s *Scheduler) save(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Save(ctx, *s.State)
}

// awaitHealthy polls an instance's agent until it answers health-check or
// the gate is exhausted, short-circuiting via HealthCache when a recent
// successful check is still within its TTL.
func (s *Scheduler) awaitHealthy(ctx context.Context, publicIP string) error {
	if s.HealthCache != nil && s.HealthCache.RecentlyHealthy(publicIP) {
		return nil
	}

	cl := s.client(publicIP)
	var lastErr error
	for attempt := 0; attempt < s.HealthGate.Attempts; attempt++ {
		// A freshly-booted VM rarely has the agent listening yet; a TCP
		// dial fails in milliseconds where an HTTP round trip would wait
		// out a full connect timeout.
		tcpResult := health.NewTCPChecker(cl.Host()).Check(ctx)
		if !tcpResult.Healthy {
			lastErr = fmt.Errorf("%s", tcpResult.Message)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.HealthGate.Interval):
			}
			continue
		}

		if err := cl.HealthCheck(ctx); err == nil {
			if s.HealthCache != nil {
				s.HealthCache.MarkHealthy(publicIP)
			}
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.HealthGate.Interval):
		}
	}
	return fmt.Errorf("instance %s never became healthy: %w", publicIP, lastErr)
}
