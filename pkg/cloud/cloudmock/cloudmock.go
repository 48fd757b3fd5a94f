// Package cloudmock provides a testify/mock double of cloud.Ops so the
// dependency engine and its managers are testable without any network.
package cloudmock

import (
	"context"

	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/stretchr/testify/mock"
)

type Ops struct {
	mock.Mock
}

func New() *Ops { return &Ops{} }

func (m *Ops) CreateVpc(ctx context.Context, region, cidr string) (cloud.VpcOutput, error) {
	args := m.Called(ctx, region, cidr)
	return args.Get(0).(cloud.VpcOutput), args.Error(1)
}

func (m *Ops) DeleteVpc(ctx context.Context, vpcID string) error {
	args := m.Called(ctx, vpcID)
	return args.Error(0)
}

func (m *Ops) CreateSubnet(ctx context.Context, vpcID, cidr, az string) (cloud.SubnetOutput, error) {
	args := m.Called(ctx, vpcID, cidr, az)
	return args.Get(0).(cloud.SubnetOutput), args.Error(1)
}

func (m *Ops) DeleteSubnet(ctx context.Context, subnetID string) error {
	args := m.Called(ctx, subnetID)
	return args.Error(0)
}

func (m *Ops) EnableSubnetAutoAssignPublicIP(ctx context.Context, subnetID string) error {
	args := m.Called(ctx, subnetID)
	return args.Error(0)
}

func (m *Ops) CreateInternetGateway(ctx context.Context, vpcID string) (cloud.InternetGatewayOutput, error) {
	args := m.Called(ctx, vpcID)
	return args.Get(0).(cloud.InternetGatewayOutput), args.Error(1)
}

func (m *Ops) AttachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	args := m.Called(ctx, igwID, vpcID)
	return args.Error(0)
}

func (m *Ops) DetachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	args := m.Called(ctx, igwID, vpcID)
	return args.Error(0)
}

func (m *Ops) DeleteInternetGateway(ctx context.Context, igwID string) error {
	args := m.Called(ctx, igwID)
	return args.Error(0)
}

func (m *Ops) CreateRouteTable(ctx context.Context, vpcID string) (cloud.RouteTableOutput, error) {
	args := m.Called(ctx, vpcID)
	return args.Get(0).(cloud.RouteTableOutput), args.Error(1)
}

func (m *Ops) AddDefaultRoute(ctx context.Context, routeTableID, igwID string) error {
	args := m.Called(ctx, routeTableID, igwID)
	return args.Error(0)
}

func (m *Ops) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	args := m.Called(ctx, routeTableID, subnetID)
	return args.Error(0)
}

func (m *Ops) DisassociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	args := m.Called(ctx, routeTableID, subnetID)
	return args.Error(0)
}

func (m *Ops) DeleteRouteTable(ctx context.Context, routeTableID string) error {
	args := m.Called(ctx, routeTableID)
	return args.Error(0)
}

func (m *Ops) CreateSecurityGroup(ctx context.Context, vpcID string) (cloud.SecurityGroupOutput, error) {
	args := m.Called(ctx, vpcID)
	return args.Get(0).(cloud.SecurityGroupOutput), args.Error(1)
}

func (m *Ops) AuthorizeIngress(ctx context.Context, securityGroupID, protocol string, port int, cidr string) error {
	args := m.Called(ctx, securityGroupID, protocol, port, cidr)
	return args.Error(0)
}

func (m *Ops) DeleteSecurityGroup(ctx context.Context, securityGroupID string) error {
	args := m.Called(ctx, securityGroupID)
	return args.Error(0)
}

func (m *Ops) CreateInstanceRole(ctx context.Context, name, assumePolicy string, policyARNs []string) (cloud.InstanceRoleOutput, error) {
	args := m.Called(ctx, name, assumePolicy, policyARNs)
	return args.Get(0).(cloud.InstanceRoleOutput), args.Error(1)
}

func (m *Ops) DeleteInstanceRole(ctx context.Context, roleName string) error {
	args := m.Called(ctx, roleName)
	return args.Error(0)
}

func (m *Ops) CreateInstanceProfile(ctx context.Context, name string, roleNames []string) (cloud.InstanceProfileOutput, error) {
	args := m.Called(ctx, name, roleNames)
	return args.Get(0).(cloud.InstanceProfileOutput), args.Error(1)
}

func (m *Ops) DeleteInstanceProfile(ctx context.Context, profileName string) error {
	args := m.Called(ctx, profileName)
	return args.Error(0)
}

func (m *Ops) CreateContainerRegistry(ctx context.Context, name string) (cloud.ContainerRegistryOutput, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(cloud.ContainerRegistryOutput), args.Error(1)
}

func (m *Ops) DeleteContainerRegistry(ctx context.Context, registryID string) error {
	args := m.Called(ctx, registryID)
	return args.Error(0)
}

func (m *Ops) RunInstances(ctx context.Context, input cloud.RunInstancesInput) (cloud.InstanceDescription, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(cloud.InstanceDescription), args.Error(1)
}

func (m *Ops) DescribeInstance(ctx context.Context, instanceID string) (cloud.InstanceDescription, error) {
	args := m.Called(ctx, instanceID)
	return args.Get(0).(cloud.InstanceDescription), args.Error(1)
}

func (m *Ops) TerminateInstance(ctx context.Context, instanceID string) error {
	args := m.Called(ctx, instanceID)
	return args.Error(0)
}

func (m *Ops) CreateHostedZone(ctx context.Context, domain string) (cloud.HostedZoneOutput, error) {
	args := m.Called(ctx, domain)
	return args.Get(0).(cloud.HostedZoneOutput), args.Error(1)
}

func (m *Ops) DeleteHostedZone(ctx context.Context, zoneID string) error {
	args := m.Called(ctx, zoneID)
	return args.Error(0)
}

func (m *Ops) CreateDnsRecord(ctx context.Context, zoneID, recordType, name, value string, ttl int) (cloud.DnsRecordOutput, error) {
	args := m.Called(ctx, zoneID, recordType, name, value, ttl)
	return args.Get(0).(cloud.DnsRecordOutput), args.Error(1)
}

func (m *Ops) DeleteDnsRecord(ctx context.Context, zoneID, recordID string) error {
	args := m.Called(ctx, zoneID, recordID)
	return args.Error(0)
}

var _ cloud.Ops = (*Ops)(nil)
