package grpc

import (
	"fmt"
	"strings"
)

// ServicePrefix is a prefix given to all gRPC services defined by the pool.
const ServicePrefix = "nest-pool."

// ServiceName is a gRPC service name.
type ServiceName string

// NewServiceName creates a new gRPC service name.
func NewServiceName(name string) ServiceName {
	if strings.Contains(name, "/") {
		panic(fmt.Errorf("'/' not allowed in service name: %s", name))
	}
	return ServiceName(ServicePrefix + name)
}

// MethodDesc is a gRPC method descriptor.
type MethodDesc struct {
	short string
	full  string
}

// NewMethod creates a new method name for the given service.
func (sn ServiceName) NewMethod(name string) *MethodDesc {
	if strings.Contains(name, "/") {
		panic(fmt.Errorf("'/' not allowed in method name: %s", name))
	}

	return &MethodDesc{
		short: name,
		full:  fmt.Sprintf("/%s/%s", sn, name),
	}
}

// ShortName returns the short method name.
func (m *MethodDesc) ShortName() string {
	return m.short
}

// FullName returns the full method name.
func (m *MethodDesc) FullName() string {
	return m.full
}
