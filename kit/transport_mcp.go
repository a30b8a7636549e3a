package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/linkscrape/idgen"
)

// MCPDecodeResult holds the decoded request and an optional context enrichment.
type MCPDecodeResult struct {
	Request   any
	EnrichCtx func(context.Context) context.Context
}

// MCPDecoder turns a tool call's arguments into an endpoint request.
type MCPDecoder func(*mcp.CallToolRequest) (*MCPDecodeResult, error)

// DecodeArgs unmarshals the arguments of a call into a new T and hands the
// endpoint a *T. Absent arguments decode as the zero T.
func DecodeArgs[T any]() MCPDecoder {
	return func(req *mcp.CallToolRequest) (*MCPDecodeResult, error) {
		v := new(T)
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
		}
		return &MCPDecodeResult{Request: v}, nil
	}
}

// RegisterMCPTool exposes endpoint as an MCP tool. Every failure, from
// decoding to marshalling the response, is reported as a tool result with
// isError set so the client sees the message. Each call gets an "mcp_"
// request ID on its context.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode MCPDecoder) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}

		ctx = WithRequestID(WithTransport(ctx, "mcp"), "mcp_"+idgen.New())
		if decoded.EnrichCtx != nil {
			ctx = decoded.EnrichCtx(ctx)
		}

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(resp), nil
	})
}

func toolJSON(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Errorf("marshal result: %w", err))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}
}

func toolError(err error) *mcp.CallToolResult {
	res := new(mcp.CallToolResult)
	res.SetError(err)
	return res
}
