package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a thin client for SimulationService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RunSimulation calls SimulationService.RunSimulation.
func (c *Client) RunSimulation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RunSimulation", in, opts...)
}

// RunBaseline calls SimulationService.RunBaseline.
func (c *Client) RunBaseline(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RunBaseline", in, opts...)
}

// CompareScenarios calls SimulationService.CompareScenarios.
func (c *Client) CompareScenarios(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CompareScenarios", in, opts...)
}

// RunMultiDisease calls SimulationService.RunMultiDisease.
func (c *Client) RunMultiDisease(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RunMultiDisease", in, opts...)
}

// ListCatalog calls SimulationService.ListCatalog.
func (c *Client) ListCatalog(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListCatalog", nil, opts...)
}
