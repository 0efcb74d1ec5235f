// Package sapling maps MCP tool calls onto Sapling (sl) command lines.
//
// The package is pure: [Registry.Resolve] turns a tool identifier and its
// arguments into a [runner.CommandSpec] without touching the filesystem, and
// [Format] turns a [runner.Result] into client-facing text. Running the
// command is left to the caller.
package sapling

import (
	"fmt"

	"github.com/MrWong99/mcp-sapling/internal/mcp/tools"
	"github.com/MrWong99/mcp-sapling/internal/runner"
)

// DefaultProgram is the Sapling binary looked up on PATH.
const DefaultProgram = "sl"

// Call is a validated tool invocation ready to be executed.
type Call struct {
	Tool   ToolID
	Params Params
	Spec   runner.CommandSpec
}

// Registry resolves tool calls against the fixed Sapling tool catalogue.
// A Registry is immutable and safe for concurrent use.
type Registry struct {
	program string
}

// New returns a Registry whose commands run program. An empty program
// selects [DefaultProgram].
func New(program string) *Registry {
	if program == "" {
		program = DefaultProgram
	}
	return &Registry{program: program}
}

// Program returns the binary every resolved command runs.
func (r *Registry) Program() string { return r.program }

// Tools returns the definitions of every supported tool in a stable order.
func (r *Registry) Tools() []tools.Definition {
	defs := make([]tools.Definition, 0, len(catalogue))
	for _, e := range catalogue {
		defs = append(defs, tools.Definition{
			Name:        string(e.id),
			Description: e.description,
			InputSchema: e.schema.JSONSchema(),
		})
	}
	return defs
}

// Lookup reports whether name is a supported tool.
func (r *Registry) Lookup(name string) (ToolID, bool) {
	e, ok := index[ToolID(name)]
	if !ok {
		return "", false
	}
	return e.id, true
}

// Resolve validates args against the tool's input schema and builds the
// command to run. The returned error is always a [*tools.ValidationError].
// Resolve has no side effects: the same input always yields the same Call.
func (r *Registry) Resolve(id ToolID, args map[string]any) (Call, error) {
	e, ok := index[id]
	if !ok {
		return Call{}, &tools.ValidationError{Tool: string(id), Err: tools.ErrUnknownTool}
	}

	var p Params
	if err := e.schema.Decode(args, &p); err != nil {
		return Call{}, &tools.ValidationError{Tool: string(id), Err: err}
	}

	return Call{
		Tool:   id,
		Params: p,
		Spec: runner.CommandSpec{
			Program: r.program,
			Args:    e.args(p),
			Dir:     p.RepoPath,
		},
	}, nil
}

// Response is the text returned to the client for one call.
type Response struct {
	Text    string
	IsError bool
}

// Format renders the outcome of call. Successful output is prefixed with the
// tool's label where it has one; every other outcome becomes an error
// response.
func Format(call Call, res runner.Result) Response {
	switch res := res.(type) {
	case runner.Success:
		text := res.Stdout
		if e, ok := index[call.Tool]; ok && e.label != nil {
			text = e.label(call.Params) + text
		}
		return Response{Text: text}
	case runner.Failure:
		return Response{
			Text:    fmt.Sprintf("Command failed with code %d. Error: %s", res.ExitCode, res.Stderr),
			IsError: true,
		}
	case runner.TimedOut:
		return Response{
			Text:    fmt.Sprintf("Command timed out after %d seconds", int(res.After.Seconds())),
			IsError: true,
		}
	case runner.SpawnError:
		return Response{Text: "Process error: " + res.Message, IsError: true}
	default:
		return Response{Text: fmt.Sprintf("Process error: unexpected result %T", res), IsError: true}
	}
}

// Reject renders a call that was refused before execution.
func Reject(err error) Response {
	return Response{Text: err.Error(), IsError: true}
}
