package depgraph

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/pylon/pkg/cloudrsrc"
	"github.com/cuemby/pylon/pkg/cloudspec"
)

// StateRecord is one entry of the persisted infra state: a flat,
// order-independent sequence of {name, resource, dependencies}.
// Names are "<kind>.<identifier>"; dependencies names the record's
// parents (an empty slice means the record's only parent is the root).
type StateRecord struct {
	Name         string          `json:"name"`
	Kind         cloudspec.Kind  `json:"kind"`
	Resource     json.RawMessage `json:"resource"`
	Dependencies []string        `json:"dependencies"`
}

// ToState flattens a resource graph into its persisted form. Storage
// order carries no meaning — the loader rebuilds topology from names.
func ToState(g *Graph[cloudrsrc.Node]) ([]StateRecord, error) {
	records := make([]StateRecord, 0, g.Len())
	for _, id := range g.NodeIDs() {
		node := g.Node(id)
		if node.Root {
			continue
		}

		raw, err := json.Marshal(node.Resource)
		if err != nil {
			return nil, fmt.Errorf("marshal resource %q: %w", node.ID, err)
		}

		var deps []string
		for _, pID := range g.Parents(id) {
			if pNode := g.Node(pID); !pNode.Root {
				deps = append(deps, pNode.ID)
			}
		}

		records = append(records, StateRecord{
			Name:         node.ID,
			Kind:         node.Resource.Kind(),
			Resource:     raw,
			Dependencies: deps,
		})
	}
	return records, nil
}

// FromState rebuilds a resource graph from its persisted form: a Root is
// added, then one node per record, then edges — a Root→node edge for
// records with no dependencies, else one edge per named parent.
func FromState(records []StateRecord) (*Graph[cloudrsrc.Node], error) {
	g := New[cloudrsrc.Node]()
	rootID := g.AddNode(cloudrsrc.RootNode("root"))

	nameToID := make(map[string]NodeID, len(records))
	for _, rec := range records {
		resource, err := unmarshalResource(rec.Kind, rec.Resource)
		if err != nil {
			return nil, fmt.Errorf("unmarshal resource %q: %w", rec.Name, err)
		}
		id := g.AddNode(cloudrsrc.ResourceNode(rec.Name, resource))
		nameToID[rec.Name] = id
	}

	for _, rec := range records {
		id := nameToID[rec.Name]
		if len(rec.Dependencies) == 0 {
			g.AddEdge(rootID, id)
			continue
		}
		for _, depName := range rec.Dependencies {
			depID, ok := nameToID[depName]
			if !ok {
				return nil, fmt.Errorf("record %q depends on unknown record %q", rec.Name, depName)
			}
			g.AddEdge(depID, id)
		}
	}

	if _, err := KahnOrder(g); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	return g, nil
}

func unmarshalResource(kind cloudspec.Kind, raw json.RawMessage) (cloudrsrc.Resource, error) {
	switch kind {
	case cloudspec.KindHostedZone:
		var r cloudrsrc.HostedZone
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindDnsRecord:
		var r cloudrsrc.DnsRecord
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindVpc:
		var r cloudrsrc.Vpc
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindInternetGateway:
		var r cloudrsrc.InternetGateway
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindRouteTable:
		var r cloudrsrc.RouteTable
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindSubnet:
		var r cloudrsrc.Subnet
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindSecurityGroup:
		var r cloudrsrc.SecurityGroup
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindInstanceRole:
		var r cloudrsrc.InstanceRole
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindInstanceProfile:
		var r cloudrsrc.InstanceProfile
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindContainerRegistry:
		var r cloudrsrc.ContainerRegistry
		return &r, json.Unmarshal(raw, &r)
	case cloudspec.KindVm:
		var r cloudrsrc.Vm
		return &r, json.Unmarshal(raw, &r)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}
