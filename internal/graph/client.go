package graph

import (
	"context"
	"errors"
	"fmt"
)

// Statement is one parameterised cypher query.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Client is the contract the journal needs from the graph database. Writes
// passed together are applied in a single transaction.
type Client interface {
	ExecuteWrite(ctx context.Context, stmts ...Statement) error
	ExecuteRead(ctx context.Context, stmt Statement) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is the eagerly collected response of a read.
type Result struct {
	Records []Record
}

// Record maps returned column names to values.
type Record map[string]any

// String returns the value under key as a string, or "" when absent.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value under key as an int64; the driver returns integers as
// int64 but test doubles often use int.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
