// Package mcp exposes walletbridge providers to agents over the Model Context
// Protocol. The server lives in mcp/server and a typed client in mcp/client;
// this package holds what both sides agree on: tool names, result payloads,
// and the error shape.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/walletbridge-go"
)

var (
	// ErrInvalidArgument indicates a tool argument could not be parsed.
	ErrInvalidArgument = errors.New("invalid tool argument")

	// ErrMalformedResult indicates a tool returned content the client cannot read.
	ErrMalformedResult = errors.New("malformed tool result")
)

// ToolError is the structured content of a failed tool call. Code is the
// provider error code, so agents can tell a rejection from a bad argument.
type ToolError struct {
	Tool    string                 `json:"tool"`
	Code    walletbridge.ErrorCode `json:"code"`
	Message string                 `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Tool, e.Message, e.Code)
}

// Is matches the walletbridge sentinel for the same code.
func (e *ToolError) Is(target error) bool {
	return errors.Is(walletbridge.NewProviderError(e.Code, e.Message, nil), target)
}

// NewToolError converts err into a ToolError for tool. Uncoded errors are
// reported as InvalidParams when they wrap ErrInvalidArgument and as
// InternalError otherwise.
func NewToolError(tool string, err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	code := walletbridge.CodeOf(err)
	if errors.Is(err, ErrInvalidArgument) {
		code = walletbridge.CodeInvalidParams
	}
	msg := err.Error()
	var perr *walletbridge.ProviderError
	if errors.As(err, &perr) {
		msg = perr.Message
	}
	return &ToolError{Tool: tool, Code: code, Message: msg}
}

// ParseToolError reads a ToolError from structured content. It returns false
// if content is not one.
func ParseToolError(content any) (*ToolError, bool) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, false
	}
	var te ToolError
	if err := json.Unmarshal(raw, &te); err != nil || te.Code == 0 {
		return nil, false
	}
	return &te, true
}
