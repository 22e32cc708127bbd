// Package registry announces cache nodes to a service directory.
package registry

import "context"

// Registrar publishes addr under service while the node is serving.
type Registrar interface {
	Register(ctx context.Context, service string, addr string) error
	Deregister(ctx context.Context, service string, addr string) error
}

// NopRegistrar is used for static peer lists, where nothing is announced.
type NopRegistrar struct{}

func (NopRegistrar) Register(ctx context.Context, service string, addr string) error   { return nil }
func (NopRegistrar) Deregister(ctx context.Context, service string, addr string) error { return nil }
