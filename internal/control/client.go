package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the control service over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Pause(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Pause", &emptypb.Empty{}, opts...)
}

func (c *Client) Resume(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Resume", &emptypb.Empty{}, opts...)
}

// Stop ends the battle, aborting it when forced is set.
func (c *Client) Stop(ctx context.Context, forced bool, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"forced": forced})
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "Stop", req, opts...)
}

// KillAgent kills one agent at the next tick boundary.
func (c *Client) KillAgent(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "KillAgent", req, opts...)
}

func (c *Client) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Snapshot", &emptypb.Empty{}, opts...)
}

// GetAgent fetches one agent of the latest snapshot.
func (c *Client) GetAgent(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "GetAgent", req, opts...)
}

func (c *Client) Result(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Result", &emptypb.Empty{}, opts...)
}
