package etcdclient

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// KV is the compare-and-swap surface the seat store is written against
type KV interface {
	Get(ctx context.Context, key string) (value []byte, modRevision int64, found bool, err error)
	// CompareAndSwap writes value only if key is still at modRevision
	CompareAndSwap(ctx context.Context, key string, modRevision int64, value []byte) (bool, error)
	// Create writes value only if key does not exist
	Create(ctx context.Context, key string, value []byte) (bool, error)
}

// Client wraps an etcd v3 client
type Client struct {
	cli *clientv3.Client
}

// NewClient connects to the etcd cluster
func NewClient(endpoints []string, dialTimeout time.Duration) (*Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Close closes the etcd connection
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks that the first endpoint answers
func (c *Client) Ping(ctx context.Context) error {
	eps := c.cli.Endpoints()
	if len(eps) == 0 {
		return fmt.Errorf("no etcd endpoints configured")
	}
	_, err := c.cli.Status(ctx, eps[0])
	return err
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, int64, bool, error) {
	resp, err := c.cli.Get(ctx, key)
	if err != nil {
		return nil, 0, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, false, nil
	}
	return resp.Kvs[0].Value, resp.Kvs[0].ModRevision, true, nil
}

func (c *Client) CompareAndSwap(ctx context.Context, key string, modRevision int64, value []byte) (bool, error) {
	resp, err := c.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", modRevision)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}

func (c *Client) Create(ctx context.Context, key string, value []byte) (bool, error) {
	resp, err := c.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}
