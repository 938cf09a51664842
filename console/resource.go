package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/wispberry-tech/wispy-admin/entities"
	"github.com/wispberry-tech/wispy-admin/gateway"
)

// ErrInvalidBody is returned when a request body cannot be decoded for a kind
var ErrInvalidBody = errors.New("invalid request body")

// Resource is the untyped view of one gateway that the HTTP handlers work against
type Resource interface {
	Kind() string
	List(ctx context.Context, orderBy string, dir gateway.Direction) (any, error)
	Get(ctx context.Context, id string) (any, error)
	Create(ctx context.Context, body io.Reader) (any, error)
	Update(ctx context.Context, id string, body io.Reader) (any, error)
	Delete(ctx context.Context, id string) error
}

type resource[T any] struct {
	gw *gateway.Gateway[T]
}

// NewResource adapts a typed gateway to Resource
func NewResource[T any](gw *gateway.Gateway[T]) Resource {
	return &resource[T]{gw: gw}
}

// ResourcesFor adapts every gateway of the set
func ResourcesFor(gws *entities.Gateways) []Resource {
	return []Resource{
		NewResource(gws.News),
		NewResource(gws.Sports),
		NewResource(gws.LiveMatches),
		NewResource(gws.Products),
		NewResource(gws.CommunityHighlights),
		NewResource(gws.Registrations),
	}
}

func (r *resource[T]) Kind() string {
	return r.gw.Descriptor().Kind
}

func (r *resource[T]) List(ctx context.Context, orderBy string, dir gateway.Direction) (any, error) {
	if orderBy == "" {
		return r.gw.List(ctx)
	}
	if dir == "" {
		dir = gateway.Desc
	}
	return r.gw.ListBy(ctx, orderBy, dir)
}

func (r *resource[T]) Get(ctx context.Context, id string) (any, error) {
	e, err := r.gw.Get(ctx, id)
	if err != nil || e == nil {
		return nil, err
	}
	return e, nil
}

func (r *resource[T]) Create(ctx context.Context, body io.Reader) (any, error) {
	var data T
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return r.gw.Create(ctx, data)
}

func (r *resource[T]) Update(ctx context.Context, id string, body io.Reader) (any, error) {
	var patch gateway.Patch
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&patch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return r.gw.Update(ctx, id, patch)
}

func (r *resource[T]) Delete(ctx context.Context, id string) error {
	return r.gw.Delete(ctx, id)
}
