// Package mcp holds the MCP transport identifiers shared by configuration
// and the server entry point.
package mcp

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio serves one client session over the process's own
	// stdin and stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves any number of sessions over the MCP
	// Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}
