package cloudrsrc

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloudspec"
	"github.com/cuemby/pylon/pkg/log"
)

// VmPollConfig controls the VM-ready and VM-terminate polling protocols
// as overridable fields, defaulted from cloud.DefaultVm* but tunable per
// deployment rather than hardcoded.
type VmPollConfig struct {
	ReadyAttempts      int
	ReadyInterval      time.Duration
	TerminateAttempts  int
	TerminateInterval  time.Duration
}

func DefaultVmPollConfig() VmPollConfig {
	return VmPollConfig{
		ReadyAttempts:     cloud.DefaultVmReadyAttempts,
		ReadyInterval:     cloud.DefaultVmReadyInterval,
		TerminateAttempts: cloud.DefaultVmTerminateAttempts,
		TerminateInterval: cloud.DefaultVmTerminateInterval,
	}
}

var vmPoll = DefaultVmPollConfig()

// SetVmPollConfig overrides the poll parameters used by vmManager. Called
// once at process start from configuration.
func SetVmPollConfig(cfg VmPollConfig) { vmPoll = cfg }

type hostedZoneManager struct{}

func (hostedZoneManager) RequiredParentKinds() []cloudspec.Kind { return nil }

func (hostedZoneManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, _ []Resource) (Resource, error) {
	spec := s.(cloudspec.HostedZoneSpec)
	out, err := ops.CreateHostedZone(ctx, spec.Domain)
	if err != nil {
		return nil, err
	}
	return &HostedZone{ZoneID: out.ZoneID, Domain: spec.Domain}, nil
}

func (hostedZoneManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteHostedZone(ctx, r.(*HostedZone).ZoneID)
}

type dnsRecordManager struct{}

func (dnsRecordManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{cloudspec.KindHostedZone, cloudspec.KindVm}
}

func (dnsRecordManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, parents []Resource) (Resource, error) {
	spec := s.(cloudspec.DnsRecordSpec)
	zone, ok := firstOfKind(parents, cloudspec.KindHostedZone)
	if !ok {
		return nil, missingParent(cloudspec.KindDnsRecord, cloudspec.KindHostedZone)
	}
	vm, ok := firstOfKind(parents, cloudspec.KindVm)
	if !ok {
		return nil, missingParent(cloudspec.KindDnsRecord, cloudspec.KindVm)
	}
	value := spec.Value
	if value == "" {
		value = vm.(*Vm).PublicIP
	}
	zoneID := zone.(*HostedZone).ZoneID
	out, err := ops.CreateDnsRecord(ctx, zoneID, spec.Type, spec.Name, value, spec.TTL)
	if err != nil {
		return nil, err
	}
	return &DnsRecord{RecordID: out.RecordID, ZoneID: zoneID, Name: spec.Name, Type: spec.Type, Value: value}, nil
}

func (dnsRecordManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	rec := r.(*DnsRecord)
	return ops.DeleteDnsRecord(ctx, rec.ZoneID, rec.RecordID)
}

type vpcManager struct{}

func (vpcManager) RequiredParentKinds() []cloudspec.Kind { return nil }

func (vpcManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, _ []Resource) (Resource, error) {
	spec := s.(cloudspec.VpcSpec)
	out, err := ops.CreateVpc(ctx, spec.Region, spec.CIDR)
	if err != nil {
		return nil, err
	}
	return &Vpc{VpcID: out.VpcID, CIDR: spec.CIDR}, nil
}

func (vpcManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteVpc(ctx, r.(*Vpc).VpcID)
}

type internetGatewayManager struct{}

func (internetGatewayManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{cloudspec.KindVpc}
}

func (internetGatewayManager) Create(ctx context.Context, ops cloud.Ops, _ cloudspec.Spec, parents []Resource) (Resource, error) {
	vpc, ok := firstOfKind(parents, cloudspec.KindVpc)
	if !ok {
		return nil, missingParent(cloudspec.KindInternetGateway, cloudspec.KindVpc)
	}
	out, err := ops.CreateInternetGateway(ctx, vpc.(*Vpc).VpcID)
	if err != nil {
		return nil, err
	}
	if err := ops.AttachInternetGateway(ctx, out.IgwID, vpc.(*Vpc).VpcID); err != nil {
		return nil, err
	}
	return &InternetGateway{IgwID: out.IgwID}, nil
}

func (internetGatewayManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, parents []Resource) error {
	igw := r.(*InternetGateway)
	if vpc, ok := firstOfKind(parents, cloudspec.KindVpc); ok {
		if err := ops.DetachInternetGateway(ctx, igw.IgwID, vpc.(*Vpc).VpcID); err != nil {
			log.Warn(fmt.Sprintf("detach internet gateway %s: %v", igw.IgwID, err))
		}
	}
	return ops.DeleteInternetGateway(ctx, igw.IgwID)
}

type routeTableManager struct{}

func (routeTableManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{cloudspec.KindVpc, cloudspec.KindInternetGateway}
}

func (routeTableManager) Create(ctx context.Context, ops cloud.Ops, _ cloudspec.Spec, parents []Resource) (Resource, error) {
	vpc, ok := firstOfKind(parents, cloudspec.KindVpc)
	if !ok {
		return nil, missingParent(cloudspec.KindRouteTable, cloudspec.KindVpc)
	}
	igw, ok := firstOfKind(parents, cloudspec.KindInternetGateway)
	if !ok {
		return nil, missingParent(cloudspec.KindRouteTable, cloudspec.KindInternetGateway)
	}
	out, err := ops.CreateRouteTable(ctx, vpc.(*Vpc).VpcID)
	if err != nil {
		return nil, err
	}
	if err := ops.AddDefaultRoute(ctx, out.RouteTableID, igw.(*InternetGateway).IgwID); err != nil {
		return nil, err
	}
	return &RouteTable{RouteTableID: out.RouteTableID}, nil
}

func (routeTableManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteRouteTable(ctx, r.(*RouteTable).RouteTableID)
}

type subnetManager struct{}

func (subnetManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{cloudspec.KindVpc, cloudspec.KindRouteTable}
}

func (subnetManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, parents []Resource) (Resource, error) {
	spec := s.(cloudspec.SubnetSpec)
	vpc, ok := firstOfKind(parents, cloudspec.KindVpc)
	if !ok {
		return nil, missingParent(cloudspec.KindSubnet, cloudspec.KindVpc)
	}
	rt, ok := firstOfKind(parents, cloudspec.KindRouteTable)
	if !ok {
		return nil, missingParent(cloudspec.KindSubnet, cloudspec.KindRouteTable)
	}
	out, err := ops.CreateSubnet(ctx, vpc.(*Vpc).VpcID, spec.CIDR, spec.AvailabilityZone)
	if err != nil {
		return nil, err
	}
	if err := ops.EnableSubnetAutoAssignPublicIP(ctx, out.SubnetID); err != nil {
		return nil, err
	}
	if err := ops.AssociateRouteTable(ctx, rt.(*RouteTable).RouteTableID, out.SubnetID); err != nil {
		return nil, err
	}
	return &Subnet{SubnetID: out.SubnetID}, nil
}

func (subnetManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, parents []Resource) error {
	subnet := r.(*Subnet)
	if rt, ok := firstOfKind(parents, cloudspec.KindRouteTable); ok {
		if err := ops.DisassociateRouteTable(ctx, rt.(*RouteTable).RouteTableID, subnet.SubnetID); err != nil {
			log.Warn(fmt.Sprintf("disassociate route table from subnet %s: %v", subnet.SubnetID, err))
		}
	}
	return ops.DeleteSubnet(ctx, subnet.SubnetID)
}

type securityGroupManager struct{}

func (securityGroupManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{cloudspec.KindVpc}
}

func (securityGroupManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, parents []Resource) (Resource, error) {
	spec := s.(cloudspec.SecurityGroupSpec)
	vpc, ok := firstOfKind(parents, cloudspec.KindVpc)
	if !ok {
		return nil, missingParent(cloudspec.KindSecurityGroup, cloudspec.KindVpc)
	}
	out, err := ops.CreateSecurityGroup(ctx, vpc.(*Vpc).VpcID)
	if err != nil {
		return nil, err
	}
	for _, rule := range spec.InboundRules {
		if err := ops.AuthorizeIngress(ctx, out.SecurityGroupID, rule.Protocol, rule.Port, rule.CIDR); err != nil {
			return nil, err
		}
	}
	return &SecurityGroup{SecurityGroupID: out.SecurityGroupID}, nil
}

func (securityGroupManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteSecurityGroup(ctx, r.(*SecurityGroup).SecurityGroupID)
}

type instanceRoleManager struct{}

func (instanceRoleManager) RequiredParentKinds() []cloudspec.Kind { return nil }

func (instanceRoleManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, _ []Resource) (Resource, error) {
	spec := s.(cloudspec.InstanceRoleSpec)
	out, err := ops.CreateInstanceRole(ctx, spec.Name, spec.AssumePolicy, spec.PolicyARNs)
	if err != nil {
		return nil, err
	}
	return &InstanceRole{RoleName: out.RoleName}, nil
}

func (instanceRoleManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteInstanceRole(ctx, r.(*InstanceRole).RoleName)
}

type instanceProfileManager struct{}

func (instanceProfileManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{cloudspec.KindInstanceRole}
}

func (instanceProfileManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, parents []Resource) (Resource, error) {
	spec := s.(cloudspec.InstanceProfileSpec)
	roles := allOfKind(parents, cloudspec.KindInstanceRole)
	if len(roles) == 0 {
		return nil, missingParent(cloudspec.KindInstanceProfile, cloudspec.KindInstanceRole)
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.(*InstanceRole).RoleName
	}
	out, err := ops.CreateInstanceProfile(ctx, spec.Name, names)
	if err != nil {
		return nil, err
	}
	return &InstanceProfile{ProfileName: out.ProfileName}, nil
}

func (instanceProfileManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteInstanceProfile(ctx, r.(*InstanceProfile).ProfileName)
}

type containerRegistryManager struct{}

func (containerRegistryManager) RequiredParentKinds() []cloudspec.Kind { return nil }

func (containerRegistryManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, _ []Resource) (Resource, error) {
	spec := s.(cloudspec.ContainerRegistrySpec)
	out, err := ops.CreateContainerRegistry(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	return &ContainerRegistry{RegistryID: out.RegistryID, URI: out.URI}, nil
}

func (containerRegistryManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	return ops.DeleteContainerRegistry(ctx, r.(*ContainerRegistry).RegistryID)
}

type vmManager struct{}

func (vmManager) RequiredParentKinds() []cloudspec.Kind {
	return []cloudspec.Kind{
		cloudspec.KindSubnet,
		cloudspec.KindSecurityGroup,
		cloudspec.KindInstanceProfile,
		cloudspec.KindContainerRegistry,
	}
}

func (vmManager) Create(ctx context.Context, ops cloud.Ops, s cloudspec.Spec, parents []Resource) (Resource, error) {
	spec := s.(cloudspec.VmSpec)
	subnet, ok := firstOfKind(parents, cloudspec.KindSubnet)
	if !ok {
		return nil, missingParent(cloudspec.KindVm, cloudspec.KindSubnet)
	}
	sg, ok := firstOfKind(parents, cloudspec.KindSecurityGroup)
	if !ok {
		return nil, missingParent(cloudspec.KindVm, cloudspec.KindSecurityGroup)
	}
	profile, ok := firstOfKind(parents, cloudspec.KindInstanceProfile)
	if !ok {
		return nil, missingParent(cloudspec.KindVm, cloudspec.KindInstanceProfile)
	}
	if _, ok := firstOfKind(parents, cloudspec.KindContainerRegistry); !ok {
		return nil, missingParent(cloudspec.KindVm, cloudspec.KindContainerRegistry)
	}

	desc, err := ops.RunInstances(ctx, cloud.RunInstancesInput{
		InstanceType:    spec.InstanceType,
		ImageID:         spec.ImageID,
		UserData:        spec.UserData,
		SubnetID:        subnet.(*Subnet).SubnetID,
		SecurityGroupID: sg.(*SecurityGroup).SecurityGroupID,
		InstanceProfile: profile.(*InstanceProfile).ProfileName,
	})
	if err != nil {
		return nil, err
	}

	desc, err = pollVmReady(ctx, ops, desc.InstanceID)
	if err != nil {
		return nil, err
	}

	return &Vm{VmID: desc.InstanceID, PublicIP: desc.PublicIP, PublicDNS: desc.PublicDNS}, nil
}

// pollVmReady polls describe-instance until a public IP and DNS name are
// observed.
func pollVmReady(ctx context.Context, ops cloud.Ops, instanceID string) (cloud.InstanceDescription, error) {
	var last cloud.InstanceDescription
	for attempt := 0; attempt < vmPoll.ReadyAttempts; attempt++ {
		desc, err := ops.DescribeInstance(ctx, instanceID)
		if err != nil {
			return cloud.InstanceDescription{}, err
		}
		last = desc
		if desc.PublicIP != "" && desc.PublicDNS != "" {
			return desc, nil
		}
		select {
		case <-ctx.Done():
			return cloud.InstanceDescription{}, ctx.Err()
		case <-time.After(vmPoll.ReadyInterval):
		}
	}
	return cloud.InstanceDescription{}, cloud.Permanent("vm-ready-poll",
		fmt.Errorf("instance %s did not become ready after %d attempts (last state %q)",
			instanceID, vmPoll.ReadyAttempts, last.State))
}

func (vmManager) Destroy(ctx context.Context, ops cloud.Ops, r Resource, _ []Resource) error {
	vm := r.(*Vm)
	if err := ops.TerminateInstance(ctx, vm.VmID); err != nil {
		return err
	}
	return pollVmTerminated(ctx, ops, vm.VmID)
}

// pollVmTerminated polls describe-instance until the instance state is
// "terminated".
func pollVmTerminated(ctx context.Context, ops cloud.Ops, instanceID string) error {
	for attempt := 0; attempt < vmPoll.TerminateAttempts; attempt++ {
		desc, err := ops.DescribeInstance(ctx, instanceID)
		if err != nil {
			return err
		}
		if desc.State == "terminated" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(vmPoll.TerminateInterval):
		}
	}
	return cloud.Permanent("vm-terminate-poll",
		fmt.Errorf("instance %s did not reach terminated state after %d attempts", instanceID, vmPoll.TerminateAttempts))
}
