package placement

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/cuemby/pylon/pkg/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAgentClient builds an agent.Client pointed at srv, working around
// agent.New's host/port split since httptest.Server only hands back a
// single "host:port" address.
func testAgentClient(t *testing.T, srv *httptest.Server) *agent.Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return agent.New(host, port)
}

// fakeAgentServer accepts every run-container call unconditionally and
// always answers health-check healthy, so scheduler tests exercise real
// wire round trips without a live VM.
func fakeAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health-check", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/run-container", func(w http.ResponseWriter, r *http.Request) {
		var req agent.RunContainerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/remove-container", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func newTestScheduler(t *testing.T, state *PlacementState, clientFor func(ip string) *agent.Client) *Scheduler {
	cache, err := agent.NewHealthCache(16, 0)
	require.NoError(t, err)
	s := NewScheduler(state, nil, agent.DefaultPort, cache)
	s.HealthGate = HealthGate{Attempts: 1, Interval: 0}
	s.newClient = clientFor
	return s
}

// TestScheduler_S4BinPacking covers a single instance with (1000, 1024)
// total capacity. Service A (700, 500) fits and is placed; service B
// (400, 600) no longer fits the residual (300, 524) and is left unplaced.
func TestScheduler_S4BinPacking(t *testing.T) {
	srv := fakeAgentServer(t)
	defer srv.Close()

	state := NewPlacementState()
	state.Instances["1.2.3.4"] = NewInstance(1000, 1024)

	sched := newTestScheduler(t, state, func(ip string) *agent.Client {
		return testAgentClient(t, srv)
	})

	err := sched.Run(context.Background(), ServiceSpec{Name: "A", Cpus: 700, Memory: 500}, nil)
	require.NoError(t, err)

	err = sched.Run(context.Background(), ServiceSpec{Name: "B", Cpus: 400, Memory: 600}, nil)
	require.Error(t, err)

	inst := state.Instances["1.2.3.4"]
	assert.Contains(t, inst.Services, "A")
	assert.NotContains(t, inst.Services, "B")

	cpu, mem := inst.Residual()
	assert.Equal(t, 300, cpu)
	assert.Equal(t, int64(524), mem)
}

// TestScheduler_S5EnvTemplate covers a service env referencing
// `{{ services.A.public_ip }}`, which resolves to A's instance public IP
// once A is a known peer.
func TestScheduler_S5EnvTemplate(t *testing.T) {
	peers := map[string]PeerInfo{
		"A": {PublicIP: "1.2.3.4"},
	}
	envs := map[string]string{
		"UPSTREAM": "{{ services.A.public_ip }}",
	}
	rendered := RenderEnvs(envs, peers)
	assert.Equal(t, "1.2.3.4", rendered["UPSTREAM"])
}

func TestRenderEnvs_UnknownPeerLeftRaw(t *testing.T) {
	envs := map[string]string{"UPSTREAM": "{{ services.ghost.public_ip }}"}
	rendered := RenderEnvs(envs, nil)
	assert.Equal(t, "{{ services.ghost.public_ip }}", rendered["UPSTREAM"])
}

func TestScheduler_StopFreesCapacity(t *testing.T) {
	srv := fakeAgentServer(t)
	defer srv.Close()

	state := NewPlacementState()
	state.Instances["1.2.3.4"] = NewInstance(1000, 1024)

	sched := newTestScheduler(t, state, func(ip string) *agent.Client {
		return testAgentClient(t, srv)
	})

	require.NoError(t, sched.Run(context.Background(), ServiceSpec{Name: "A", Cpus: 700, Memory: 500}, nil))
	require.NoError(t, sched.Stop(context.Background(), "A"))

	cpu, mem := state.Instances["1.2.3.4"].Residual()
	assert.Equal(t, 1000, cpu)
	assert.Equal(t, int64(1024), mem)
}

func TestOrderByDependencies(t *testing.T) {
	specs := []ServiceSpec{
		{Name: "web", DependsOn: []string{"db"}},
		{Name: "db"},
	}
	ordered, err := OrderByDependencies(specs)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, "db", ordered[0].Name)
	assert.Equal(t, "web", ordered[1].Name)
}

func TestOrderByDependencies_Cycle(t *testing.T) {
	specs := []ServiceSpec{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}
	_, err := OrderByDependencies(specs)
	require.Error(t, err)
}
