// Package cloudrsrc defines the post-creation counterpart of each
// cloudspec.Spec kind, plus the Manager interface and per-kind registry
// the dependency engine uses to create and destroy them.
package cloudrsrc

import (
	"context"
	"fmt"

	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloudspec"
)

// Resource is implemented by every post-creation resource variant. ID is
// the cloud-assigned identifier used to build the persisted name
// "<kind>.<id>".
type Resource interface {
	Kind() cloudspec.Kind
	ID() string
}

type HostedZone struct {
	ZoneID string
	Domain string
}

func (r *HostedZone) Kind() cloudspec.Kind { return cloudspec.KindHostedZone }
func (r *HostedZone) ID() string           { return r.ZoneID }

type DnsRecord struct {
	RecordID string
	ZoneID   string
	Name     string
	Type     string
	Value    string
}

func (r *DnsRecord) Kind() cloudspec.Kind { return cloudspec.KindDnsRecord }
func (r *DnsRecord) ID() string           { return r.RecordID }

type Vpc struct {
	VpcID string
	CIDR  string
}

func (r *Vpc) Kind() cloudspec.Kind { return cloudspec.KindVpc }
func (r *Vpc) ID() string           { return r.VpcID }

type InternetGateway struct {
	IgwID string
}

func (r *InternetGateway) Kind() cloudspec.Kind { return cloudspec.KindInternetGateway }
func (r *InternetGateway) ID() string           { return r.IgwID }

type RouteTable struct {
	RouteTableID string
}

func (r *RouteTable) Kind() cloudspec.Kind { return cloudspec.KindRouteTable }
func (r *RouteTable) ID() string           { return r.RouteTableID }

type Subnet struct {
	SubnetID string
}

func (r *Subnet) Kind() cloudspec.Kind { return cloudspec.KindSubnet }
func (r *Subnet) ID() string           { return r.SubnetID }

type SecurityGroup struct {
	SecurityGroupID string
}

func (r *SecurityGroup) Kind() cloudspec.Kind { return cloudspec.KindSecurityGroup }
func (r *SecurityGroup) ID() string           { return r.SecurityGroupID }

type InstanceRole struct {
	RoleName string
}

func (r *InstanceRole) Kind() cloudspec.Kind { return cloudspec.KindInstanceRole }
func (r *InstanceRole) ID() string           { return r.RoleName }

type InstanceProfile struct {
	ProfileName string
}

func (r *InstanceProfile) Kind() cloudspec.Kind { return cloudspec.KindInstanceProfile }
func (r *InstanceProfile) ID() string           { return r.ProfileName }

type ContainerRegistry struct {
	RegistryID string
	URI        string
}

func (r *ContainerRegistry) Kind() cloudspec.Kind { return cloudspec.KindContainerRegistry }
func (r *ContainerRegistry) ID() string           { return r.RegistryID }

type Vm struct {
	VmID      string
	PublicIP  string
	PublicDNS string
}

func (r *Vm) Kind() cloudspec.Kind { return cloudspec.KindVm }
func (r *Vm) ID() string           { return r.VmID }

// Node is one node of a resource graph: either the synthetic root or a
// wrapped live Resource.
type Node struct {
	ID       string
	Root     bool
	Resource Resource
}

func RootNode(id string) Node {
	return Node{ID: id, Root: true}
}

func ResourceNode(id string, r Resource) Node {
	return Node{ID: id, Resource: r}
}

// Manager is the create/destroy pair for one resource kind.
// RequiredParentKinds documents which parent kinds must appear (at least
// once) in the parents slice passed to Create. The engine does not consult
// it: each manager's Create checks its own parents and returns an error
// wrapping cloud.ErrMissingParent when one is absent.
type Manager interface {
	Create(ctx context.Context, ops cloud.Ops, spec cloudspec.Spec, parents []Resource) (Resource, error)
	Destroy(ctx context.Context, ops cloud.Ops, resource Resource, parents []Resource) error
	RequiredParentKinds() []cloudspec.Kind
}

// Registry looks up the Manager for a Kind.
type Registry struct {
	managers map[cloudspec.Kind]Manager
}

func NewRegistry() *Registry {
	return &Registry{managers: make(map[cloudspec.Kind]Manager)}
}

func (r *Registry) Register(kind cloudspec.Kind, m Manager) {
	r.managers[kind] = m
}

func (r *Registry) For(kind cloudspec.Kind) (Manager, error) {
	m, ok := r.managers[kind]
	if !ok {
		return nil, fmt.Errorf("cloudrsrc: no manager registered for kind %q", kind)
	}
	return m, nil
}

// NewDefaultRegistry registers the stock manager implementation for every
// kind in the catalog.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(cloudspec.KindHostedZone, hostedZoneManager{})
	r.Register(cloudspec.KindDnsRecord, dnsRecordManager{})
	r.Register(cloudspec.KindVpc, vpcManager{})
	r.Register(cloudspec.KindInternetGateway, internetGatewayManager{})
	r.Register(cloudspec.KindRouteTable, routeTableManager{})
	r.Register(cloudspec.KindSubnet, subnetManager{})
	r.Register(cloudspec.KindSecurityGroup, securityGroupManager{})
	r.Register(cloudspec.KindInstanceRole, instanceRoleManager{})
	r.Register(cloudspec.KindInstanceProfile, instanceProfileManager{})
	r.Register(cloudspec.KindContainerRegistry, containerRegistryManager{})
	r.Register(cloudspec.KindVm, vmManager{})
	return r
}

// firstOfKind returns the first parent resource of the given kind.
func firstOfKind(parents []Resource, kind cloudspec.Kind) (Resource, bool) {
	for _, p := range parents {
		if p.Kind() == kind {
			return p, true
		}
	}
	return nil, false
}

// allOfKind returns every parent resource of the given kind, in order.
func allOfKind(parents []Resource, kind cloudspec.Kind) []Resource {
	var out []Resource
	for _, p := range parents {
		if p.Kind() == kind {
			out = append(out, p)
		}
	}
	return out
}

func missingParent(kind cloudspec.Kind, need cloudspec.Kind) error {
	return fmt.Errorf("%w: %s requires a %s parent", cloud.ErrMissingParent, kind, need)
}
