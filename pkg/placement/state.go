// Package placement implements the service scheduler: bin-packing
// services onto VM instances by residual capacity, driving the agent
// client, persisting placements, and rendering templated env vars.
package placement

// PlacementState is the user-side state: a mapping from VM public IP to
// Instance. The JSON shape matches the original implementation's
// user_state.rs exactly so existing state files round-trip unchanged.
type PlacementState struct {
	Instances map[string]*Instance `json:"instances"`
}

func NewPlacementState() *PlacementState {
	return &PlacementState{Instances: make(map[string]*Instance)}
}

// Instance tracks one VM's total capacity and the services currently
// placed on it.
type Instance struct {
	Cpus     int                `json:"cpus"`
	Memory   int64              `json:"memory"`
	Services map[string]Service `json:"services"`
}

func NewInstance(cpus int, memory int64) *Instance {
	return &Instance{Cpus: cpus, Memory: memory, Services: make(map[string]Service)}
}

// Service records the reserved capacity of one placed service.
type Service struct {
	Cpus   int   `json:"cpus"`
	Memory int64 `json:"memory"`
}

// Residual returns the instance's unreserved capacity: total minus the
// sum of every placed service's demand. The original recomputes this
// inline in three places; here it's a named helper instead.
func (i *Instance) Residual() (cpu int, memory int64) {
	cpu, memory = i.Cpus, i.Memory
	for _, svc := range i.Services {
		cpu -= svc.Cpus
		memory -= svc.Memory
	}
	return cpu, memory
}

// Fits reports whether demand (cpu, memory) fits in the instance's
// residual capacity.
func (i *Instance) Fits(cpu int, memory int64) bool {
	residualCPU, residualMemory := i.Residual()
	return residualCPU >= cpu && residualMemory >= memory
}

// SortedIPs returns the instance public IPs in a stable, deterministic
// order. Go maps carry no insertion order; sorting by IP gives the
// scheduler deterministic placement given identical inputs instead.
func (s *PlacementState) SortedIPs() []string {
	ips := make([]string, 0, len(s.Instances))
	for ip := range s.Instances {
		ips = append(ips, ip)
	}
	sortStrings(ips)
	return ips
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}
