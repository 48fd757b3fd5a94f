// Package cloudspec defines the declarative, cloud-agnostic resource
// specifications that make up a spec graph: the desired-state inputs to
// the dependency engine, before anything has been created.
package cloudspec

// Kind tags each resource variant the engine knows about. Kinds are a flat
// enumeration, not a type hierarchy: every piece of graph-traversal code
// that switches on Kind is meant to be exhaustively checkable.
type Kind string

const (
	KindHostedZone         Kind = "hosted_zone"
	KindDnsRecord          Kind = "dns_record"
	KindVpc                Kind = "vpc"
	KindInternetGateway    Kind = "internet_gateway"
	KindRouteTable         Kind = "route_table"
	KindSubnet             Kind = "subnet"
	KindSecurityGroup      Kind = "security_group"
	KindInstanceRole       Kind = "instance_role"
	KindInstanceProfile    Kind = "instance_profile"
	KindContainerRegistry  Kind = "container_registry"
	KindVm                 Kind = "vm"
)

// Spec is implemented by every resource specification. Specs carry only
// declarative inputs — never identifiers assigned by the cloud.
type Spec interface {
	Kind() Kind
}

// IngressRule describes one inbound security-group rule.
type IngressRule struct {
	Protocol string
	Port     int
	CIDR     string
}

type HostedZoneSpec struct {
	Domain string
}

func (HostedZoneSpec) Kind() Kind { return KindHostedZone }

// DnsRecordSpec describes one record within a HostedZone. Type is one of
// A, NS, SOA, TXT. Value is left empty for records whose value is derived
// from a parent Vm's public IP at create time (A records).
type DnsRecordSpec struct {
	Type  string
	Name  string
	Value string
	TTL   int
}

func (DnsRecordSpec) Kind() Kind { return KindDnsRecord }

type VpcSpec struct {
	Region string
	CIDR   string
}

func (VpcSpec) Kind() Kind { return KindVpc }

type InternetGatewaySpec struct{}

func (InternetGatewaySpec) Kind() Kind { return KindInternetGateway }

type RouteTableSpec struct{}

func (RouteTableSpec) Kind() Kind { return KindRouteTable }

type SubnetSpec struct {
	CIDR             string
	AvailabilityZone string
}

func (SubnetSpec) Kind() Kind { return KindSubnet }

type SecurityGroupSpec struct {
	InboundRules []IngressRule
}

func (SecurityGroupSpec) Kind() Kind { return KindSecurityGroup }

type InstanceRoleSpec struct {
	Name          string
	AssumePolicy  string
	PolicyARNs    []string
}

func (InstanceRoleSpec) Kind() Kind { return KindInstanceRole }

type InstanceProfileSpec struct {
	Name string
}

func (InstanceProfileSpec) Kind() Kind { return KindInstanceProfile }

type ContainerRegistrySpec struct {
	Name string
}

func (ContainerRegistrySpec) Kind() Kind { return KindContainerRegistry }

type VmSpec struct {
	InstanceType string
	ImageID      string
	UserData     string
}

func (VmSpec) Kind() Kind { return KindVm }

// Node is one node of a spec graph: either the synthetic root, which has
// no inputs or outputs and anchors top-level resources, or a wrapped Spec.
type Node struct {
	ID   string
	Root bool
	Spec Spec
}

func RootNode(id string) Node {
	return Node{ID: id, Root: true}
}

func SpecNode(id string, spec Spec) Node {
	return Node{ID: id, Spec: spec}
}
