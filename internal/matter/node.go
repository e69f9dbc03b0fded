package matter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrClusterNotFound   = errors.New("cluster not found")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrInvalidType       = errors.New("invalid data type")
	ErrConstraint        = errors.New("constraint error")
	ErrVetoed            = errors.New("update vetoed")
)

// Origin tells hooks where an attribute update came from.
type Origin uint8

const (
	// OriginLocal is a change made on the device itself (button, driver, local API).
	OriginLocal Origin = iota
	// OriginExternal is a change applied on behalf of a RainMaker write.
	OriginExternal
	// OriginRestore is a value reloaded from persistent storage at startup.
	OriginRestore
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginExternal:
		return "external"
	case OriginRestore:
		return "restore"
	}
	return fmt.Sprintf("origin(%d)", uint8(o))
}

// AttributeRef identifies one attribute in the node.
type AttributeRef struct {
	Endpoint  uint16 `json:"endpoint"`
	Cluster   uint32 `json:"cluster"`
	Attribute uint32 `json:"attribute"`
}

func (r AttributeRef) String() string {
	return fmt.Sprintf("%d/0x%04X/0x%04X", r.Endpoint, r.Cluster, r.Attribute)
}

// Hooks observe attribute updates. PreUpdate runs before the commit and may
// veto it by returning an error, or replace the value by returning a valid
// one; an invalid return value leaves it unchanged. PostUpdate runs after the
// commit and cannot fail it.
type Hooks interface {
	PreUpdate(ctx context.Context, ref AttributeRef, v Value, origin Origin) (Value, error)
	PostUpdate(ctx context.Context, ref AttributeRef, v Value, origin Origin)
}

// Attribute is one typed value slot of a cluster.
type Attribute struct {
	def AttributeDef

	mu    sync.RWMutex
	value Value
}

func (a *Attribute) ID() uint32          { return a.def.ID }
func (a *Attribute) Name() string        { return a.def.Name }
func (a *Attribute) Type() ValueType     { return a.def.Type }
func (a *Attribute) Flags() uint8        { return a.def.Flags }
func (a *Attribute) IsWritable() bool    { return a.def.IsWritable() }
func (a *Attribute) IsNonvolatile() bool { return a.def.IsNonvolatile() }

// Bounds returns the declared bounds, or nil when the attribute has none.
func (a *Attribute) Bounds() *Bounds {
	if a.def.Bounds == nil {
		return nil
	}
	b := *a.def.Bounds
	return &b
}

// Value returns the current value.
func (a *Attribute) Value() Value {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

func (a *Attribute) set(v Value) {
	a.mu.Lock()
	a.value = v
	a.mu.Unlock()
}

// check validates v against the attribute type and declared bounds.
func (a *Attribute) check(ref AttributeRef, v Value) error {
	if v.Type != a.def.Type {
		return fmt.Errorf("%w: %s is %s, got %s", ErrInvalidType, ref, a.def.Type, v.Type)
	}
	if a.def.Bounds != nil && !a.def.Bounds.Contains(v) {
		return fmt.Errorf("%w: %s value %v outside %s", ErrConstraint, ref, v.Any(), a.def.Bounds)
	}
	return nil
}

// Cluster is an instance of a cluster definition on an endpoint.
type Cluster struct {
	node  *Node
	def   *ClusterDef
	attrs []*Attribute
}

func (c *Cluster) ID() uint32   { return c.def.ID }
func (c *Cluster) Name() string { return c.def.Name }

// Attributes returns the cluster's attributes in creation order.
func (c *Cluster) Attributes() []*Attribute {
	c.node.mu.RLock()
	defer c.node.mu.RUnlock()
	return append([]*Attribute(nil), c.attrs...)
}

// Attribute returns the attribute with the given ID, or nil.
func (c *Cluster) Attribute(id uint32) *Attribute {
	c.node.mu.RLock()
	defer c.node.mu.RUnlock()
	return c.find(id)
}

func (c *Cluster) find(id uint32) *Attribute {
	for _, a := range c.attrs {
		if a.def.ID == id {
			return a
		}
	}
	return nil
}

// AddAttribute adds an attribute not present in the cluster definition.
// Adding an ID that already exists returns the existing attribute.
func (c *Cluster) AddAttribute(def AttributeDef) *Attribute {
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	return c.add(def)
}

func (c *Cluster) add(def AttributeDef) *Attribute {
	if a := c.find(def.ID); a != nil {
		return a
	}
	if def.Bounds != nil {
		b := *def.Bounds
		def.Bounds = &b
	}
	v := def.Default
	if !v.IsValid() {
		v = ZeroValue(def.Type)
	}
	a := &Attribute{def: def, value: v}
	c.attrs = append(c.attrs, a)
	return a
}

// EnableFeature creates the attributes of the definition gated by feature.
func (c *Cluster) EnableFeature(feature uint32) {
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	for _, def := range c.def.Attributes {
		if def.Feature&feature != 0 {
			c.add(def)
		}
	}
}

// Endpoint groups the clusters of one logical device.
type Endpoint struct {
	node        *Node
	id          uint16
	deviceTypes []uint32
	clusters    []*Cluster
}

func (e *Endpoint) ID() uint16 { return e.id }

// DeviceTypes returns the endpoint's device type IDs, primary first.
func (e *Endpoint) DeviceTypes() []uint32 {
	return append([]uint32(nil), e.deviceTypes...)
}

// Clusters returns the endpoint's clusters in creation order.
func (e *Endpoint) Clusters() []*Cluster {
	e.node.mu.RLock()
	defer e.node.mu.RUnlock()
	return append([]*Cluster(nil), e.clusters...)
}

// Cluster returns the cluster with the given ID, or nil.
func (e *Endpoint) Cluster(id uint32) *Cluster {
	e.node.mu.RLock()
	defer e.node.mu.RUnlock()
	return e.find(id)
}

func (e *Endpoint) find(id uint32) *Cluster {
	for _, c := range e.clusters {
		if c.def.ID == id {
			return c
		}
	}
	return nil
}

// AddCluster instantiates a registered cluster on the endpoint with the
// attributes that are not gated by a feature.
func (e *Endpoint) AddCluster(id uint32) (*Cluster, error) {
	def := e.node.registry.Get(id)
	if def == nil {
		return nil, fmt.Errorf("%w: 0x%04X not registered", ErrClusterNotFound, id)
	}
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if c := e.find(id); c != nil {
		return c, nil
	}
	c := &Cluster{node: e.node, def: def}
	for _, ad := range def.Attributes {
		if ad.Feature == 0 {
			c.add(ad)
		}
	}
	e.clusters = append(e.clusters, c)
	return c, nil
}

// Node is the local data model: endpoints, clusters and attributes.
type Node struct {
	registry *Registry
	logger   *slog.Logger

	mu        sync.RWMutex
	endpoints []*Endpoint
	nextID    uint16
	hooks     []Hooks

	// serialises Update so pre-hook, commit and post-hook of one change
	// are never interleaved with another.
	updateMu sync.Mutex
}

// NewNode creates a node with the root endpoint 0.
func NewNode(registry *Registry, logger *slog.Logger) (*Node, error) {
	n := &Node{
		registry: registry,
		logger:   logger.With("component", "matter"),
	}
	if _, err := n.CreateEndpoint(DeviceTypeRootNode, ClusterDescriptor, ClusterRainMaker); err != nil {
		return nil, fmt.Errorf("create root endpoint: %w", err)
	}
	return n, nil
}

// Registry returns the cluster registry the node was built from.
func (n *Node) Registry() *Registry { return n.registry }

// CreateEndpoint adds an endpoint with the next free ID. IDs are assigned
// from 0 in creation order; the root endpoint takes 0.
func (n *Node) CreateEndpoint(deviceType uint32, clusterIDs ...uint32) (*Endpoint, error) {
	n.mu.Lock()
	ep := &Endpoint{node: n, id: n.nextID, deviceTypes: []uint32{deviceType}}
	n.nextID++
	n.endpoints = append(n.endpoints, ep)
	n.mu.Unlock()

	for _, id := range clusterIDs {
		if _, err := ep.AddCluster(id); err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", ep.id, err)
		}
	}
	n.logger.Debug("endpoint created", "endpoint", ep.id, "device_type", fmt.Sprintf("0x%04X", deviceType))
	return ep, nil
}

// Endpoints returns all endpoints in creation order.
func (n *Node) Endpoints() []*Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Endpoint(nil), n.endpoints...)
}

// Endpoint returns the endpoint with the given ID, or nil.
func (n *Node) Endpoint(id uint16) *Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ep := range n.endpoints {
		if ep.id == id {
			return ep
		}
	}
	return nil
}

// AddHooks registers update hooks. Hooks run in registration order.
func (n *Node) AddHooks(h Hooks) {
	n.mu.Lock()
	n.hooks = append(n.hooks, h)
	n.mu.Unlock()
}

// Attribute resolves ref to its attribute.
func (n *Node) Attribute(ref AttributeRef) (*Attribute, error) {
	ep := n.Endpoint(ref.Endpoint)
	if ep == nil {
		return nil, fmt.Errorf("%w: %d", ErrEndpointNotFound, ref.Endpoint)
	}
	c := ep.Cluster(ref.Cluster)
	if c == nil {
		return nil, fmt.Errorf("%w: 0x%04X on endpoint %d", ErrClusterNotFound, ref.Cluster, ref.Endpoint)
	}
	a := c.Attribute(ref.Attribute)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, ref)
	}
	return a, nil
}

// Get returns the current value of the referenced attribute.
func (n *Node) Get(ref AttributeRef) (Value, error) {
	a, err := n.Attribute(ref)
	if err != nil {
		return Invalid(), err
	}
	return a.Value(), nil
}

// Update is the single entry point for changing an attribute. Hooks must not
// call Update themselves.
func (n *Node) Update(ctx context.Context, ref AttributeRef, v Value, origin Origin) error {
	n.updateMu.Lock()
	defer n.updateMu.Unlock()

	a, err := n.Attribute(ref)
	if err != nil {
		return err
	}
	if err := a.check(ref, v); err != nil {
		return err
	}

	n.mu.RLock()
	hooks := append([]Hooks(nil), n.hooks...)
	n.mu.RUnlock()

	for _, h := range hooks {
		nv, err := h.PreUpdate(ctx, ref, v, origin)
		if err != nil {
			n.logger.Debug("update vetoed", "attr", ref.String(), "origin", origin.String(), "err", err)
			return fmt.Errorf("%w: %s: %w", ErrVetoed, ref, err)
		}
		if nv.IsValid() && nv != v {
			if err := a.check(ref, nv); err != nil {
				return fmt.Errorf("pre-update hook: %w", err)
			}
			v = nv
		}
	}

	a.set(v)
	n.logger.Debug("attribute updated", "attr", ref.String(), "value", v.Any(), "origin", origin.String())

	for _, h := range hooks {
		n.runPost(ctx, h, ref, v, origin)
	}
	return nil
}

func (n *Node) runPost(ctx context.Context, h Hooks, ref AttributeRef, v Value, origin Origin) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("post-update hook panic", "attr", ref.String(), "panic", r)
		}
	}()
	h.PostUpdate(ctx, ref, v, origin)
}
