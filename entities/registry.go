package entities

import (
	"fmt"

	"github.com/wispberry-tech/wispy-admin/gateway"
	"github.com/wispberry-tech/wispy-admin/store"
)

// Registry holds one validated descriptor per entity kind
type Registry struct {
	byKind map[string]*gateway.Descriptor
	kinds  []string
}

// NewRegistry builds and validates the descriptors of every entity kind
func NewRegistry() (*Registry, error) {
	descriptors := []*gateway.Descriptor{
		NewsDescriptor(),
		SportDescriptor(),
		LiveMatchDescriptor(),
		ProductDescriptor(),
		CommunityHighlightDescriptor(),
		RegistrationDescriptor(),
	}

	r := &Registry{byKind: make(map[string]*gateway.Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byKind[d.Kind]; dup {
			return nil, fmt.Errorf("entity kind %s registered twice", d.Kind)
		}
		r.byKind[d.Kind] = d
		r.kinds = append(r.kinds, d.Kind)
	}
	return r, nil
}

// Lookup returns the descriptor of a kind
func (r *Registry) Lookup(kind string) (*gateway.Descriptor, bool) {
	d, ok := r.byKind[kind]
	return d, ok
}

// Kinds returns the registered kinds in registration order
func (r *Registry) Kinds() []string {
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Tables returns the backing table of every kind, for schema validation
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, r.byKind[k].Table)
	}
	return out
}

// Gateways is the full set of typed gateways over one backend
type Gateways struct {
	News                *gateway.Gateway[News]
	Sports              *gateway.Gateway[Sport]
	LiveMatches         *gateway.Gateway[LiveMatch]
	Products            *gateway.Gateway[Product]
	CommunityHighlights *gateway.Gateway[CommunityHighlight]
	Registrations       *gateway.Gateway[Registration]

	registry *Registry
}

// NewGateways builds a gateway for every kind over backend
func NewGateways(backend store.Backend, opts ...gateway.Option) (*Gateways, error) {
	registry, err := NewRegistry()
	if err != nil {
		return nil, err
	}

	g := &Gateways{registry: registry}
	if g.News, err = newGateway[News](backend, registry, KindNews, opts); err != nil {
		return nil, err
	}
	if g.Sports, err = newGateway[Sport](backend, registry, KindSport, opts); err != nil {
		return nil, err
	}
	if g.LiveMatches, err = newGateway[LiveMatch](backend, registry, KindLiveMatch, opts); err != nil {
		return nil, err
	}
	if g.Products, err = newGateway[Product](backend, registry, KindProduct, opts); err != nil {
		return nil, err
	}
	if g.CommunityHighlights, err = newGateway[CommunityHighlight](backend, registry, KindCommunityHighlight, opts); err != nil {
		return nil, err
	}
	if g.Registrations, err = newGateway[Registration](backend, registry, KindRegistration, opts); err != nil {
		return nil, err
	}
	return g, nil
}

// Registry returns the registry the gateways were built from
func (g *Gateways) Registry() *Registry {
	return g.registry
}

func newGateway[T any](backend store.Backend, registry *Registry, kind string, opts []gateway.Option) (*gateway.Gateway[T], error) {
	desc, ok := registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("entity kind %s is not registered", kind)
	}
	gw, err := gateway.New[T](backend, desc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s gateway: %w", kind, err)
	}
	return gw, nil
}
