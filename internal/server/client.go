package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the backend API over a JSON-coded gRPC connection.
type Client struct {
	conn  *grpc.ClientConn
	owned bool
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, owned: true}, nil
}

// NewClient wraps an existing connection. Close leaves it open.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	return c.conn.Invoke(ctx, method, req, resp, opts...)
}

func (c *Client) GetJob(ctx context.Context, req *GetJobRequest, opts ...grpc.CallOption) (*GetJobResponse, error) {
	resp := new(GetJobResponse)
	if err := c.invoke(ctx, MethodGetJob, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AddJob(ctx context.Context, req *AddJobRequest, opts ...grpc.CallOption) (*AddJobResponse, error) {
	resp := new(AddJobResponse)
	if err := c.invoke(ctx, MethodAddJob, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdateJob(ctx context.Context, req *UpdateJobRequest, opts ...grpc.CallOption) (*UpdateJobResponse, error) {
	resp := new(UpdateJobResponse)
	if err := c.invoke(ctx, MethodUpdateJob, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) DeleteJob(ctx context.Context, req *DeleteJobRequest, opts ...grpc.CallOption) (*DeleteJobResponse, error) {
	resp := new(DeleteJobResponse)
	if err := c.invoke(ctx, MethodDeleteJob, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) NextSequence(ctx context.Context, req *NextSequenceRequest, opts ...grpc.CallOption) (*NextSequenceResponse, error) {
	resp := new(NextSequenceResponse)
	if err := c.invoke(ctx, MethodNextSequence, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// Conn exposes the underlying connection for other services on the same
// server, such as health checks.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}
