// Package openstack implements cloud.Ops against an OpenStack cloud using
// gophercloud. Resource kinds map onto OpenStack primitives where a
// direct equivalent exists (router = IGW+RouteTable,
// application-credential = instance-profile, and so on); see the
// per-operation comments below for the less obvious mappings.
package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/openstack/dns/v2/recordsets"
	"github.com/gophercloud/gophercloud/openstack/dns/v2/zones"
	"github.com/gophercloud/gophercloud/openstack/identity/v3/applicationcredentials"
	"github.com/gophercloud/gophercloud/openstack/identity/v3/roles"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/subnets"
	"github.com/gophercloud/gophercloud/openstack/objectstorage/v1/containers"
	"github.com/gophercloud/utils/openstack/clientconfig"

	"github.com/cuemby/pylon/pkg/cloud"
)

// Ops implements cloud.Ops by composing the five gophercloud service
// clients the catalog's resource kinds need.
type Ops struct {
	network *gophercloud.ServiceClient
	compute *gophercloud.ServiceClient
	identity *gophercloud.ServiceClient
	dns     *gophercloud.ServiceClient
	object  *gophercloud.ServiceClient
}

// New builds an Ops from the OpenStack clouds.yaml cloud named by
// cloudName, using gophercloud/utils for client-config discovery the same
// way eschercloudai-unikorn's provider package does.
func New(ctx context.Context, cloudName string) (*Ops, error) {
	opts := &clientconfig.ClientOpts{Cloud: cloudName}

	provider, err := clientconfig.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("openstack: authenticate: %w", err)
	}

	endpointOpts := gophercloud.EndpointOpts{}

	network, err := openstack.NewNetworkV2(provider, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("openstack: network client: %w", err)
	}
	compute, err := openstack.NewComputeV2(provider, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("openstack: compute client: %w", err)
	}
	identity, err := openstack.NewIdentityV3(provider, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("openstack: identity client: %w", err)
	}
	dnsClient, err := openstack.NewDNSV2(provider, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("openstack: dns client: %w", err)
	}
	object, err := openstack.NewObjectStorageV1(provider, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("openstack: object-storage client: %w", err)
	}

	return &Ops{
		network:  network,
		compute:  compute,
		identity: identity,
		dns:      dnsClient,
		object:   object,
	}, nil
}

// ObjectClient exposes the underlying object-storage service client so
// callers can address a Swift container/object directly, e.g. to back a
// statestore.ObjectBackend with the same credentials used for cloud.Ops.
func (o *Ops) ObjectClient() *gophercloud.ServiceClient {
	return o.object
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(gophercloud.ErrDefault404); ok {
		return cloud.Permanent(op, err)
	}
	return cloud.Transient(op, err)
}

func (o *Ops) CreateVpc(ctx context.Context, region, cidr string) (cloud.VpcOutput, error) {
	net, err := networks.Create(o.network, networks.CreateOpts{
		Name:         fmt.Sprintf("pylon-vpc-%s", region),
		AdminStateUp: gophercloud.Enabled,
	}).Extract()
	if err != nil {
		return cloud.VpcOutput{}, wrap("create-vpc", err)
	}
	return cloud.VpcOutput{VpcID: net.ID}, nil
}

func (o *Ops) DeleteVpc(ctx context.Context, vpcID string) error {
	return wrap("delete-vpc", networks.Delete(o.network, vpcID).ExtractErr())
}

func (o *Ops) CreateSubnet(ctx context.Context, vpcID, cidr, az string) (cloud.SubnetOutput, error) {
	sn, err := subnets.Create(o.network, subnets.CreateOpts{
		NetworkID: vpcID,
		CIDR:      cidr,
		IPVersion: gophercloud.IPv4,
		Name:      "pylon-subnet",
	}).Extract()
	if err != nil {
		return cloud.SubnetOutput{}, wrap("create-subnet", err)
	}
	return cloud.SubnetOutput{SubnetID: sn.ID}, nil
}

func (o *Ops) DeleteSubnet(ctx context.Context, subnetID string) error {
	return wrap("delete-subnet", subnets.Delete(o.network, subnetID).ExtractErr())
}

// EnableSubnetAutoAssignPublicIP is a no-op under OpenStack: public IP
// assignment for a subnet's ports is governed by the router's external
// gateway, not a per-subnet flag (unlike AWS's MapPublicIpOnLaunch).
func (o *Ops) EnableSubnetAutoAssignPublicIP(ctx context.Context, subnetID string) error {
	return nil
}

// CreateInternetGateway creates the OpenStack router that plays the role
// of both InternetGateway and (via AddDefaultRoute/AssociateRouteTable)
// RouteTable.
func (o *Ops) CreateInternetGateway(ctx context.Context, vpcID string) (cloud.InternetGatewayOutput, error) {
	router, err := routers.Create(o.network, routers.CreateOpts{
		Name: "pylon-router",
	}).Extract()
	if err != nil {
		return cloud.InternetGatewayOutput{}, wrap("create-internet-gateway", err)
	}
	return cloud.InternetGatewayOutput{IgwID: router.ID}, nil
}

func (o *Ops) AttachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	_, err := routers.Update(o.network, igwID, routers.UpdateOpts{
		GatewayInfo: &routers.GatewayInfo{NetworkID: vpcID},
	}).Extract()
	return wrap("attach-internet-gateway", err)
}

func (o *Ops) DetachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	_, err := routers.Update(o.network, igwID, routers.UpdateOpts{
		GatewayInfo: &routers.GatewayInfo{},
	}).Extract()
	return wrap("detach-internet-gateway", err)
}

func (o *Ops) DeleteInternetGateway(ctx context.Context, igwID string) error {
	return wrap("delete-internet-gateway", routers.Delete(o.network, igwID).ExtractErr())
}

// CreateRouteTable creates nothing: the router created by
// CreateInternetGateway already is the route table. It finds the router
// whose external gateway AttachInternetGateway set to vpcID and returns its
// ID again so the RouteTable resource has something to key on.
func (o *Ops) CreateRouteTable(ctx context.Context, vpcID string) (cloud.RouteTableOutput, error) {
	pages, err := routers.List(o.network, routers.ListOpts{}).AllPages()
	if err != nil {
		return cloud.RouteTableOutput{}, wrap("create-route-table", err)
	}
	all, err := routers.ExtractRouters(pages)
	if err != nil {
		return cloud.RouteTableOutput{}, wrap("create-route-table", err)
	}
	for _, r := range all {
		if r.GatewayInfo.NetworkID == vpcID {
			return cloud.RouteTableOutput{RouteTableID: r.ID}, nil
		}
	}
	return cloud.RouteTableOutput{}, cloud.Permanent("create-route-table", fmt.Errorf("no router has gateway network %s", vpcID))
}

// AddDefaultRoute is satisfied by the router's external gateway set in
// AttachInternetGateway; OpenStack routers add the default route to their
// gateway network automatically.
func (o *Ops) AddDefaultRoute(ctx context.Context, routeTableID, igwID string) error {
	return nil
}

func (o *Ops) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	_, err := routers.AddInterface(o.network, routeTableID, routers.AddInterfaceOpts{
		SubnetID: subnetID,
	}).Extract()
	return wrap("associate-route-table", err)
}

func (o *Ops) DisassociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	_, err := routers.RemoveInterface(o.network, routeTableID, routers.RemoveInterfaceOpts{
		SubnetID: subnetID,
	}).Extract()
	return wrap("disassociate-route-table", err)
}

func (o *Ops) DeleteRouteTable(ctx context.Context, routeTableID string) error {
	// The router is deleted by DeleteInternetGateway; nothing further to do.
	return nil
}

func (o *Ops) CreateSecurityGroup(ctx context.Context, vpcID string) (cloud.SecurityGroupOutput, error) {
	sg, err := groups.Create(o.network, groups.CreateOpts{
		Name: "pylon-sg",
	}).Extract()
	if err != nil {
		return cloud.SecurityGroupOutput{}, wrap("create-security-group", err)
	}
	return cloud.SecurityGroupOutput{SecurityGroupID: sg.ID}, nil
}

func (o *Ops) AuthorizeIngress(ctx context.Context, securityGroupID, protocol string, port int, cidr string) error {
	_, err := rules.Create(o.network, rules.CreateOpts{
		Direction:      rules.DirIngress,
		EtherType:      rules.EtherType4,
		SecGroupID:     securityGroupID,
		PortRangeMin:   port,
		PortRangeMax:   port,
		Protocol:       rules.RuleProtocol(protocol),
		RemoteIPPrefix: cidr,
	}).Extract()
	return wrap("authorize-ingress", err)
}

func (o *Ops) DeleteSecurityGroup(ctx context.Context, securityGroupID string) error {
	return wrap("delete-security-group", groups.Delete(o.network, securityGroupID).ExtractErr())
}

func (o *Ops) CreateInstanceRole(ctx context.Context, name, assumePolicy string, policyARNs []string) (cloud.InstanceRoleOutput, error) {
	role, err := roles.Create(o.identity, roles.CreateOpts{
		Name: name,
	}).Extract()
	if err != nil {
		return cloud.InstanceRoleOutput{}, wrap("create-instance-role", err)
	}
	return cloud.InstanceRoleOutput{RoleName: role.Name}, nil
}

func (o *Ops) DeleteInstanceRole(ctx context.Context, roleName string) error {
	return wrap("delete-instance-role", roles.Delete(o.identity, roleName).ExtractErr())
}

// CreateInstanceProfile has no OpenStack primitive equivalent to an AWS
// IAM instance profile; the closest analogue is an application credential
// scoped to the role. RunInstances does not pass the credential to the
// server, and nothing writes it into VM user-data.
func (o *Ops) CreateInstanceProfile(ctx context.Context, name string, roleNames []string) (cloud.InstanceProfileOutput, error) {
	cred, err := applicationcredentials.Create(o.identity, "", applicationcredentials.CreateOpts{
		Name:  name,
		Roles: toApplicationCredentialRoles(roleNames),
	}).Extract()
	if err != nil {
		return cloud.InstanceProfileOutput{}, wrap("create-instance-profile", err)
	}
	return cloud.InstanceProfileOutput{ProfileName: cred.Name}, nil
}

func toApplicationCredentialRoles(roleNames []string) []applicationcredentials.Role {
	out := make([]applicationcredentials.Role, len(roleNames))
	for i, n := range roleNames {
		out[i] = applicationcredentials.Role{Name: n}
	}
	return out
}

func (o *Ops) DeleteInstanceProfile(ctx context.Context, profileName string) error {
	return wrap("delete-instance-profile", applicationcredentials.Delete(o.identity, "", profileName).ExtractErr())
}

// CreateContainerRegistry stands up an object-storage container that a
// self-hosted registry uses as its blob backend, since OpenStack has no
// native container-registry API.
func (o *Ops) CreateContainerRegistry(ctx context.Context, name string) (cloud.ContainerRegistryOutput, error) {
	_, err := containers.Create(o.object, name, containers.CreateOpts{}).Extract()
	if err != nil {
		return cloud.ContainerRegistryOutput{}, wrap("create-container-registry", err)
	}
	return cloud.ContainerRegistryOutput{
		RegistryID: name,
		URI:        fmt.Sprintf("%s/%s", o.object.Endpoint, name),
	}, nil
}

func (o *Ops) DeleteContainerRegistry(ctx context.Context, registryID string) error {
	return wrap("delete-container-registry", containers.Delete(o.object, registryID).ExtractErr())
}

func (o *Ops) RunInstances(ctx context.Context, input cloud.RunInstancesInput) (cloud.InstanceDescription, error) {
	server, err := servers.Create(o.compute, servers.CreateOpts{
		Name:      "pylon-vm",
		FlavorRef: input.InstanceType,
		ImageRef:  input.ImageID,
		Networks:  []servers.Network{{UUID: input.SubnetID}},
		SecurityGroups: []string{input.SecurityGroupID},
		UserData:  []byte(input.UserData),
	}).Extract()
	if err != nil {
		return cloud.InstanceDescription{}, wrap("run-instances", err)
	}
	return cloud.InstanceDescription{InstanceID: server.ID, State: server.Status}, nil
}

func (o *Ops) DescribeInstance(ctx context.Context, instanceID string) (cloud.InstanceDescription, error) {
	server, err := servers.Get(o.compute, instanceID).Extract()
	if err != nil {
		return cloud.InstanceDescription{}, wrap("describe-instance", err)
	}

	var publicIP string
	for _, addrs := range server.Addresses {
		list, ok := addrs.([]interface{})
		if !ok {
			continue
		}
		for _, raw := range list {
			addr, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if addr["OS-EXT-IPS:type"] == "floating" {
				if ip, ok := addr["addr"].(string); ok {
					publicIP = ip
				}
			}
		}
	}

	return cloud.InstanceDescription{
		InstanceID: server.ID,
		State:      normalizeServerStatus(server.Status),
		PublicIP:   publicIP,
		PublicDNS:  server.Name,
	}, nil
}

func normalizeServerStatus(status string) string {
	switch status {
	case "ACTIVE":
		return "running"
	case "DELETED", "SOFT_DELETED":
		return "terminated"
	default:
		return status
	}
}

func (o *Ops) TerminateInstance(ctx context.Context, instanceID string) error {
	return wrap("terminate-instance", servers.Delete(o.compute, instanceID).ExtractErr())
}

func (o *Ops) CreateHostedZone(ctx context.Context, domain string) (cloud.HostedZoneOutput, error) {
	zone, err := zones.Create(o.dns, zones.CreateOpts{
		Name:   domain,
		Email:  fmt.Sprintf("admin@%s", domain),
		TTL:    3600,
		ZoneType: "PRIMARY",
	}).Extract()
	if err != nil {
		return cloud.HostedZoneOutput{}, wrap("create-hosted-zone", err)
	}
	return cloud.HostedZoneOutput{ZoneID: zone.ID}, nil
}

func (o *Ops) DeleteHostedZone(ctx context.Context, zoneID string) error {
	_, err := zones.Delete(o.dns, zoneID).Extract()
	return wrap("delete-hosted-zone", err)
}

func (o *Ops) CreateDnsRecord(ctx context.Context, zoneID, recordType, name, value string, ttl int) (cloud.DnsRecordOutput, error) {
	rs, err := recordsets.Create(o.dns, zoneID, recordsets.CreateOpts{
		Name:    name,
		Type:    recordType,
		TTL:     ttl,
		Records: []string{value},
	}).Extract()
	if err != nil {
		return cloud.DnsRecordOutput{}, wrap("create-dns-record", err)
	}
	return cloud.DnsRecordOutput{RecordID: rs.ID}, nil
}

func (o *Ops) DeleteDnsRecord(ctx context.Context, zoneID, recordID string) error {
	return wrap("delete-dns-record", recordsets.Delete(o.dns, zoneID, recordID).ExtractErr())
}

var _ cloud.Ops = (*Ops)(nil)
