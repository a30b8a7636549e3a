package profilescrape

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/linkscrape/kit"
)

// RegisterMCP registers the profilescrape tools on an MCP server.
func (s *Scraper) RegisterMCP(srv *mcp.Server) {
	s.registerScrapeTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

func (s *Scraper) registerScrapeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "profilescrape_scrape",
		Description: "Scrape a LinkedIn profile page. Returns firstName, lastName, photoUrl, jobTitle, company and capturedAt; fields not found are empty.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute profile URL, e.g. https://www.linkedin.com/in/jane-doe/"},
		}, []string{"url"}),
	}

	kit.RegisterMCPTool(srv, tool, s.endpoint(), kit.DecodeArgs[scrapeRequest]())
}
