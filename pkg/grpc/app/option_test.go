package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
)

func TestNewOpts(t *testing.T) {
	var calls []string
	unary := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			calls = append(calls, name)
			return handler(ctx, req)
		}
	}
	stream := func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, ss)
	}

	defaults := opts{
		unaryServerInterceptors: []grpc.UnaryServerInterceptor{unary("default")},
	}

	o := newOpts(defaults, WithUnaryServerInterceptor(unary("first")), WithUnaryServerInterceptor(unary("second")), WithStreamServerInterceptor(stream))
	assert.Len(t, o.unaryServerInterceptors, 3)
	assert.Len(t, o.streamServerInterceptors, 1)
	assert.Len(t, defaults.unaryServerInterceptors, 1)

	for _, interceptor := range o.unaryServerInterceptors {
		_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, interface{}) (interface{}, error) {
			return nil, nil
		})
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"default", "first", "second"}, calls)
}
