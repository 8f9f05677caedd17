package grpc

import (
	"errors"
	"regexp"
	"strings"
)

var (
	healthCheckEndpoints = map[string]struct{}{
		"/grpc.health.v1.Health/Check": {},
		"/grpc.health.v1.Health/Watch": {},
	}
	fullMethodNameRegex = regexp.MustCompile("^/([a-zA-Z0-9_]+\\.)+[a-zA-Z0-9_]+/[a-zA-Z0-9_]+$")
)

// ParseFullMethodName parses a gRPC full method name into its components
func ParseFullMethodName(fullMethodName string) (packageName, serviceName, methodName string, err error) {
	if !fullMethodNameRegex.MatchString(fullMethodName) {
		return "", "", "", errors.New("invalid full method name")
	}

	parts := strings.Split(fullMethodName, "/")
	methodName = parts[2]

	parts = strings.Split(parts[1], ".")
	serviceName = parts[len(parts)-1]
	packageName = strings.Join(parts[:len(parts)-1], ".")

	return packageName, serviceName, methodName, nil
}

// IsHealthCheckEndpoint returns whether a method belongs to the health service
func IsHealthCheckEndpoint(methodName string) bool {
	_, ok := healthCheckEndpoints[methodName]
	return ok
}
