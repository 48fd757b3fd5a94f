// Package cloud defines the narrow cloud-operations seam the dependency
// engine requires: create/delete primitives for VMs, networks, IAM,
// registries, and DNS. It specifies operations, not a provider —
// concrete implementations live in subpackages (cloud/openstack,
// cloud/cloudmock).
package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMissingParent is wrapped by a manager when a required parent kind is
// absent from the parents list handed to Create. It is always a
// permanent error: a malformed spec graph needs a new deploy, not a retry.
var ErrMissingParent = errors.New("missing required parent")

// Error classifies a cloud-operation failure as transient (retryable by
// the operator) or permanent (the engine skips the node and its subtree).
type Error struct {
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("cloud: %s: %s error: %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Transient: true, Err: err}
}

func Permanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Transient: false, Err: err}
}

// IsTransient reports whether err (or something it wraps) is a transient
// cloud error.
func IsTransient(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return false
}

// VpcOutput, etc. carry the cloud-assigned identifiers a manager extracts
// from an Ops call and stores on its Resource.
type VpcOutput struct {
	VpcID string
}

type SubnetOutput struct {
	SubnetID string
}

type InternetGatewayOutput struct {
	IgwID string
}

type RouteTableOutput struct {
	RouteTableID string
}

type SecurityGroupOutput struct {
	SecurityGroupID string
}

type InstanceRoleOutput struct {
	RoleName string
}

type InstanceProfileOutput struct {
	ProfileName string
}

type ContainerRegistryOutput struct {
	RegistryID string
	URI        string
}

type InstanceDescription struct {
	InstanceID string
	State      string
	PublicIP   string
	PublicDNS  string
}

type HostedZoneOutput struct {
	ZoneID string
}

type DnsRecordOutput struct {
	RecordID string
}

// RunInstancesInput is the narrow input the engine needs to launch a Vm:
// the resolved identifiers of its already-created parents plus the Vm
// node's own declarative fields.
type RunInstancesInput struct {
	InstanceType      string
	ImageID           string
	UserData          string
	SubnetID          string
	SecurityGroupID   string
	InstanceProfile   string
}

// Ops is the full set of asynchronous operations the engine requires of a
// cloud provider. Every method either returns the post-creation
// identifier(s) or an *Error classified transient/permanent.
type Ops interface {
	CreateVpc(ctx context.Context, region, cidr string) (VpcOutput, error)
	DeleteVpc(ctx context.Context, vpcID string) error

	CreateSubnet(ctx context.Context, vpcID, cidr, az string) (SubnetOutput, error)
	DeleteSubnet(ctx context.Context, subnetID string) error
	EnableSubnetAutoAssignPublicIP(ctx context.Context, subnetID string) error

	CreateInternetGateway(ctx context.Context, vpcID string) (InternetGatewayOutput, error)
	AttachInternetGateway(ctx context.Context, igwID, vpcID string) error
	DetachInternetGateway(ctx context.Context, igwID, vpcID string) error
	DeleteInternetGateway(ctx context.Context, igwID string) error

	CreateRouteTable(ctx context.Context, vpcID string) (RouteTableOutput, error)
	AddDefaultRoute(ctx context.Context, routeTableID, igwID string) error
	AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error
	DisassociateRouteTable(ctx context.Context, routeTableID, subnetID string) error
	DeleteRouteTable(ctx context.Context, routeTableID string) error

	CreateSecurityGroup(ctx context.Context, vpcID string) (SecurityGroupOutput, error)
	AuthorizeIngress(ctx context.Context, securityGroupID, protocol string, port int, cidr string) error
	DeleteSecurityGroup(ctx context.Context, securityGroupID string) error

	CreateInstanceRole(ctx context.Context, name, assumePolicy string, policyARNs []string) (InstanceRoleOutput, error)
	DeleteInstanceRole(ctx context.Context, roleName string) error

	CreateInstanceProfile(ctx context.Context, name string, roleNames []string) (InstanceProfileOutput, error)
	DeleteInstanceProfile(ctx context.Context, profileName string) error

	CreateContainerRegistry(ctx context.Context, name string) (ContainerRegistryOutput, error)
	DeleteContainerRegistry(ctx context.Context, registryID string) error

	RunInstances(ctx context.Context, input RunInstancesInput) (InstanceDescription, error)
	DescribeInstance(ctx context.Context, instanceID string) (InstanceDescription, error)
	TerminateInstance(ctx context.Context, instanceID string) error

	CreateHostedZone(ctx context.Context, domain string) (HostedZoneOutput, error)
	DeleteHostedZone(ctx context.Context, zoneID string) error
	CreateDnsRecord(ctx context.Context, zoneID, recordType, name, value string, ttl int) (DnsRecordOutput, error)
	DeleteDnsRecord(ctx context.Context, zoneID, recordID string) error
}

// VM polling defaults, parameterized rather than hardcoded. These are the
// published defaults; callers may override them.
const (
	DefaultVmReadyAttempts    = 10
	DefaultVmReadyInterval    = 5 * time.Second
	DefaultVmTerminateAttempts = 24
	DefaultVmTerminateInterval = 5 * time.Second
)
