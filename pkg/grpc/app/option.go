package app

import (
	"google.golang.org/grpc"
)

// Option customizes the servers started by Run
type Option func(o *opts)

type opts struct {
	unaryServerInterceptors  []grpc.UnaryServerInterceptor
	streamServerInterceptors []grpc.StreamServerInterceptor
}

// newOpts applies options after the interceptors every server runs with
func newOpts(defaults opts, options ...Option) opts {
	o := opts{
		unaryServerInterceptors:  append([]grpc.UnaryServerInterceptor{}, defaults.unaryServerInterceptors...),
		streamServerInterceptors: append([]grpc.StreamServerInterceptor{}, defaults.streamServerInterceptors...),
	}
	for _, option := range options {
		option(&o)
	}
	return o
}

// WithUnaryServerInterceptor appends a unary interceptor. Interceptors run in
// the order they're added, after the built in ones.
func WithUnaryServerInterceptor(interceptor grpc.UnaryServerInterceptor) Option {
	return func(o *opts) {
		o.unaryServerInterceptors = append(o.unaryServerInterceptors, interceptor)
	}
}

// WithStreamServerInterceptor is the streaming equivalent of WithUnaryServerInterceptor
func WithStreamServerInterceptor(interceptor grpc.StreamServerInterceptor) Option {
	return func(o *opts) {
		o.streamServerInterceptors = append(o.streamServerInterceptors, interceptor)
	}
}
