package rpc

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Client holds a persistent connection to an RPC server. Calls are
// serialized over the single connection, so a Client is safe for
// concurrent use but runs one call at a time.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	dec    *json.Decoder
	nextID uint64
}

// Dial connects to an RPC server at the given address.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Call invokes method with params and unmarshals the reply into
// result. A nil result discards the reply payload.
func (c *Client) Call(method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := Request{
		Method: method,
		ID:     strconv.FormatUint(c.nextID, 10),
		Params: raw,
	}

	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("rpc error: %s", resp.Error)
	}

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshaling result: %w", err)
		}
	}
	return nil
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
