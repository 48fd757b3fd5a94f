// Package specbuilder translates a project description — instance count,
// instance type, optional domain — into the canonical spec graph the
// dependency engine deploys. It is the one place that knows the shape of
// a "standard" infrastructure layout; every other package is shape-agnostic.
package specbuilder

import (
	"fmt"
	"strings"

	"github.com/cuemby/pylon/pkg/cloudspec"
	"github.com/cuemby/pylon/pkg/depgraph"
	"github.com/google/uuid"
)

const (
	region              = "us-west-2"
	vpcCIDR             = "10.0.0.0/16"
	subnetCIDR          = "10.0.1.0/24"
	availabilityZone    = "us-west-2a"
	registryReadOnlyARN = "arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly"
	assumeRolePolicy    = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"},"Action":"sts:AssumeRole"}]}`
)

// bootstrapUserData is the cloud-init script every VM boots with: install
// the container runtime, then fetch and launch the agent. The script has no
// registry login step, and the registry URI is not written into it.
const bootstrapUserData = `#!/bin/bash
set -e
sudo apt update
sudo apt -y install podman
sudo systemctl start podman

curl --output /home/ubuntu/pylon-agent -L https://example.invalid/pylon-agent/releases/latest/download/pylon-agent \
  && sudo chmod +x /home/ubuntu/pylon-agent \
  && /home/ubuntu/pylon-agent &
`

// Params describes the desired infrastructure shape.
type Params struct {
	NumberOfInstances int
	InstanceType      string
	ImageID           string
	Domain            string // empty means no DNS
}

// Build produces the canonical spec graph for Params: one Vpc, one
// InternetGateway, one RouteTable, one Subnet, one SecurityGroup (22, 80,
// 31888 open to 0.0.0.0/0), one InstanceRole with registry-read-only
// access under one InstanceProfile, one ContainerRegistry, N Vms each
// parented to (Subnet, SecurityGroup, InstanceProfile, ContainerRegistry);
// with Domain set, one HostedZone and one DnsRecord per Vm parented to
// (HostedZone, Vm).
func Build(p Params) (*depgraph.Graph[cloudspec.Node], error) {
	if p.NumberOfInstances < 1 {
		return nil, fmt.Errorf("specbuilder: number of instances must be >= 1, got %d", p.NumberOfInstances)
	}

	// suffix is appended to every spec node ID and to the cloud-facing
	// names of the registry and the IAM role/profile, so those names differ
	// between builds of projects that share a name. The hosted zone's
	// cloud name is the bare domain.
	suffix := strings.ToLower(uuid.New().String())[:8]
	named := func(prefix string) string { return fmt.Sprintf("%s-%s", prefix, suffix) }

	g := depgraph.New[cloudspec.Node]()
	root := g.AddNode(cloudspec.RootNode("root"))

	vpc := g.AddNode(cloudspec.SpecNode(named("vpc"), cloudspec.VpcSpec{
		Region: region,
		CIDR:   vpcCIDR,
	}))
	g.AddEdge(root, vpc)

	igw := g.AddNode(cloudspec.SpecNode(named("igw"), cloudspec.InternetGatewaySpec{}))
	g.AddEdge(vpc, igw)

	routeTable := g.AddNode(cloudspec.SpecNode(named("route-table"), cloudspec.RouteTableSpec{}))
	g.AddEdge(vpc, routeTable)
	g.AddEdge(igw, routeTable)

	subnet := g.AddNode(cloudspec.SpecNode(named("subnet"), cloudspec.SubnetSpec{
		CIDR:             subnetCIDR,
		AvailabilityZone: availabilityZone,
	}))
	g.AddEdge(vpc, subnet)
	g.AddEdge(routeTable, subnet)

	securityGroup := g.AddNode(cloudspec.SpecNode(named("security-group"), cloudspec.SecurityGroupSpec{
		InboundRules: []cloudspec.IngressRule{
			{Protocol: "tcp", Port: 22, CIDR: "0.0.0.0/0"},
			{Protocol: "tcp", Port: 80, CIDR: "0.0.0.0/0"},
			{Protocol: "tcp", Port: 31888, CIDR: "0.0.0.0/0"},
		},
	}))
	g.AddEdge(vpc, securityGroup)

	instanceRoleName := named("instance-role")
	instanceRole := g.AddNode(cloudspec.SpecNode(instanceRoleName, cloudspec.InstanceRoleSpec{
		Name:         instanceRoleName,
		AssumePolicy: assumeRolePolicy,
		PolicyARNs:   []string{registryReadOnlyARN},
	}))
	g.AddEdge(root, instanceRole)

	instanceProfileName := named("instance-profile")
	instanceProfile := g.AddNode(cloudspec.SpecNode(instanceProfileName, cloudspec.InstanceProfileSpec{
		Name: instanceProfileName,
	}))
	g.AddEdge(instanceRole, instanceProfile)

	registryName := named("registry")
	registry := g.AddNode(cloudspec.SpecNode(registryName, cloudspec.ContainerRegistrySpec{
		Name: registryName,
	}))
	g.AddEdge(root, registry)

	var hostedZone depgraph.NodeID
	hasDomain := p.Domain != ""
	if hasDomain {
		hostedZone = g.AddNode(cloudspec.SpecNode(named("hosted-zone"), cloudspec.HostedZoneSpec{
			Domain: p.Domain,
		}))
		g.AddEdge(root, hostedZone)
	}

	for i := 0; i < p.NumberOfInstances; i++ {
		vmID := fmt.Sprintf("vm-%d-%s", i+1, suffix)
		vm := g.AddNode(cloudspec.SpecNode(vmID, cloudspec.VmSpec{
			InstanceType: p.InstanceType,
			ImageID:      p.ImageID,
			UserData:     bootstrapUserData,
		}))
		g.AddEdge(subnet, vm)
		g.AddEdge(securityGroup, vm)
		g.AddEdge(instanceProfile, vm)
		g.AddEdge(registry, vm)

		if hasDomain {
			dnsRecord := g.AddNode(cloudspec.SpecNode(fmt.Sprintf("dns-record-%d-%s", i+1, suffix), cloudspec.DnsRecordSpec{
				Type: "A",
				Name: p.Domain,
				TTL:  3600,
			}))
			g.AddEdge(hostedZone, dnsRecord)
			g.AddEdge(vm, dnsRecord)
		}
	}

	return g, nil
}
