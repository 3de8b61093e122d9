// Package client calls the wallet tools of a walletbridge MCP server and
// decodes their results. Failed tool calls come back as *mcp.ToolError, so
// errors.Is against the walletbridge sentinels works across the wire.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/walletbridge-go/mcp"
)

// Client is an initialized MCP session with a wallet server.
type Client struct {
	mcp    *mcpclient.Client
	config *Config
}

// New connects to the server at serverURL over streamable HTTP.
func New(ctx context.Context, serverURL string, opts ...Option) (*Client, error) {
	config := DefaultConfig(serverURL)
	for _, opt := range opts {
		opt(config)
	}
	c, err := mcpclient.NewStreamableHttpClient(serverURL, transport.WithHTTPBasicClient(config.HTTPClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return start(ctx, c, config)
}

// NewInProcess talks to s directly, without HTTP.
func NewInProcess(ctx context.Context, s *mcpserver.MCPServer, opts ...Option) (*Client, error) {
	config := DefaultConfig("")
	for _, opt := range opts {
		opt(config)
	}
	c, err := mcpclient.NewInProcessClient(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return start(ctx, c, config)
}

func start(ctx context.Context, c *mcpclient.Client, config *Config) (*Client, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}
	var init mcpproto.InitializeRequest
	init.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcpproto.Implementation{Name: config.Name, Version: config.Version}
	if _, err := c.Initialize(ctx, init); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}
	return &Client{mcp: c, config: config}, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// Tools lists the tool names the server offers.
func (c *Client) Tools(ctx context.Context) ([]string, error) {
	res, err := c.mcp.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(res.Tools))
	for i, t := range res.Tools {
		names[i] = t.Name
	}
	return names, nil
}

// Call invokes tool with args and decodes its JSON result into out, which may
// be nil. A failed tool call is returned as *mcp.ToolError.
func (c *Client) Call(ctx context.Context, tool string, args map[string]any, out any) error {
	var req mcpproto.CallToolRequest
	req.Params.Name = tool
	req.Params.Arguments = args

	c.config.Logger.Debug("calling wallet tool", "tool", tool)
	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return err
	}

	if res.IsError {
		if te, ok := mcp.ParseToolError(res.StructuredContent); ok {
			return te
		}
		return fmt.Errorf("%s: %s", tool, text(res))
	}
	if out == nil {
		return nil
	}

	var raw []byte
	if res.StructuredContent != nil {
		raw, err = json.Marshal(res.StructuredContent)
		if err != nil {
			return fmt.Errorf("%w: %v", mcp.ErrMalformedResult, err)
		}
	} else {
		raw = []byte(text(res))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", mcp.ErrMalformedResult, tool, err)
	}
	return nil
}

func text(res *mcpproto.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := mcpproto.AsTextContent(content); ok {
			return tc.Text
		}
	}
	return ""
}

// EVMConnect runs evm_connect.
func (c *Client) EVMConnect(ctx context.Context) (*mcp.ConnectResult, error) {
	var out mcp.ConnectResult
	if err := c.Call(ctx, mcp.ToolEVMConnect, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EVMSignMessage runs evm_sign_message with the default account.
func (c *Client) EVMSignMessage(ctx context.Context, message string) (string, error) {
	var out mcp.SignatureResult
	if err := c.Call(ctx, mcp.ToolEVMSignMessage, map[string]any{"message": message}, &out); err != nil {
		return "", err
	}
	return out.Signature, nil
}

// SolanaConnect runs solana_connect.
func (c *Client) SolanaConnect(ctx context.Context) (*mcp.ConnectResult, error) {
	var out mcp.ConnectResult
	if err := c.Call(ctx, mcp.ToolSolanaConnect, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SolanaSignMessage runs solana_sign_message on UTF-8 text.
func (c *Client) SolanaSignMessage(ctx context.Context, message string) (string, error) {
	var out mcp.SignatureResult
	if err := c.Call(ctx, mcp.ToolSolanaSignMessage, map[string]any{"message": message}, &out); err != nil {
		return "", err
	}
	return out.Signature, nil
}
