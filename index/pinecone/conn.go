package pinecone

import (
	"context"
	"fmt"
	"strings"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/poiesic/docqa/core"
)

// Conn is a data-plane connection to one namespace of an index.
type Conn interface {
	Upsert(ctx context.Context, vectors []*pinecone.Vector) error
	Query(ctx context.Context, values []float32, k int) ([]*pinecone.ScoredVector, error)
	Delete(ctx context.Context, ids []string) error
	Stats(ctx context.Context) (core.Stats, error)
	Close() error
}

// Dialer resolves the index named by a validated Config and connects to it.
// It fails with core.ErrIndexNotFound when the index does not exist.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

// DialSDK connects through the Pinecone Go client: the control plane
// describes the index, then a data-plane connection is opened on its host.
func DialSDK(ctx context.Context, cfg Config) (Conn, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone client: %w", core.ErrConfiguration, err)
	}

	described, err := client.DescribeIndex(ctx, cfg.IndexName)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: pinecone index %q", core.ErrIndexNotFound, cfg.IndexName)
		}
		return nil, fmt.Errorf("%w: describe pinecone index %q: %w", core.ErrSourceUnavailable, cfg.IndexName, err)
	}

	conn, err := client.IndexWithNamespace(described.Host, cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %w", core.ErrSourceUnavailable, described.Host, err)
	}
	return &sdkConn{conn: conn, namespace: cfg.Namespace}, nil
}

// isNotFound recognizes the control plane's answer for a missing index.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}

type sdkConn struct {
	conn      *pinecone.IndexConnection
	namespace string
}

func (c *sdkConn) Upsert(ctx context.Context, vectors []*pinecone.Vector) error {
	_, err := c.conn.UpsertVectors(&ctx, vectors)
	return err
}

func (c *sdkConn) Query(ctx context.Context, values []float32, k int) ([]*pinecone.ScoredVector, error) {
	resp, err := c.conn.QueryByVectorValues(&ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          values,
		TopK:            uint32(k),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (c *sdkConn) Delete(ctx context.Context, ids []string) error {
	return c.conn.DeleteVectorsById(&ctx, ids)
}

func (c *sdkConn) Stats(ctx context.Context) (core.Stats, error) {
	resp, err := c.conn.DescribeIndexStats(&ctx)
	if err != nil {
		return core.Stats{}, err
	}
	stats := core.Stats{Count: int(resp.TotalVectorCount), Dimension: int(resp.Dimension)}
	if c.namespace != "" {
		stats.Count = 0
		if ns, ok := resp.Namespaces[c.namespace]; ok && ns != nil {
			stats.Count = int(ns.VectorCount)
		}
	}
	return stats, nil
}

func (c *sdkConn) Close() error {
	return c.conn.Close()
}
