package sapling

import (
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/mcp-sapling/internal/mcp/tools"
)

// ToolID identifies one supported Sapling operation. Values are the tool
// names exposed to MCP clients.
type ToolID string

const (
	Status          ToolID = "sapling_status"
	DiffUntracked   ToolID = "sapling_diff_untracked"
	DiffChanged     ToolID = "sapling_diff_changed"
	DiffTarget      ToolID = "sapling_diff_target"
	Commit          ToolID = "sapling_commit"
	AddUntracked    ToolID = "sapling_add_untracked"
	Revert          ToolID = "sapling_revert"
	Log             ToolID = "sapling_log"
	Bookmark        ToolID = "sapling_book"
	Goto            ToolID = "sapling_goto"
	Show            ToolID = "sapling_show"
	Init            ToolID = "sapling_init"
	Push            ToolID = "sapling_push"
	Land            ToolID = "sapling_land"
	PullRequestList ToolID = "sapling_pull_request_list"
)

// defaultMaxCount is the smartlog limit used when sapling_log is called
// without maxCount.
const defaultMaxCount = 10

// Params is the decoded argument object of any Sapling tool. Each tool's
// schema admits only the fields it uses, so unused fields stay zero.
type Params struct {
	RepoPath       string   `json:"repoPath"`
	Target         string   `json:"target,omitempty"`
	Message        string   `json:"message,omitempty"`
	Files          []string `json:"files,omitempty"`
	UntrackedFiles []string `json:"untrackedFiles,omitempty"`
	MaxCount       int      `json:"maxCount,omitempty"`
	BookmarkName   string   `json:"bookmarkName,omitempty"`
	Revision       string   `json:"revision,omitempty"`
	PullRequestURL string   `json:"pullRequestUrl,omitempty"`
}

// entry is one row of the catalogue.
type entry struct {
	id          ToolID
	description string
	schema      *tools.Schema

	// args builds the argument vector after the program name.
	args func(Params) []string

	// label prefixes successful output. Nil means raw output.
	label func(Params) string
}

// Shared property schemas.
var (
	repoPathProp = tools.String("Absolute path of the Sapling repository to operate on; used as the working directory.")
	targetProp   = tools.String("Revision, bookmark or revset to compare against or move to.")
)

// catalogue is the fixed tool table, in the order tools are advertised.
// It is built once at package initialisation and never mutated.
var catalogue = mustBuildCatalogue()

// index maps ToolID to its position in catalogue.
var index = func() map[ToolID]*entry {
	m := make(map[ToolID]*entry, len(catalogue))
	for i := range catalogue {
		m[catalogue[i].id] = &catalogue[i]
	}
	return m
}()

func mustBuildCatalogue() []entry {
	rows := []struct {
		id          ToolID
		description string
		schema      *jsonschema.Schema
		args        func(Params) []string
		label       func(Params) string
	}{
		{
			id:          Status,
			description: "Show the working copy status of a Sapling repository (modified, added, removed and untracked files).",
			schema:      repoOnly(),
			args:        fixed("status"),
			label:       constLabel("Repository status:\n"),
		},
		{
			id:          DiffUntracked,
			description: "Show the diff of untracked (unknown) files in the working copy.",
			schema:      repoOnly(),
			args:        fixed("diff", "--unknown"),
			label:       constLabel("Unstaged changes:\n"),
		},
		{
			id:          DiffChanged,
			description: "Show the diff of modified, added, removed, deleted and copied files in the working copy.",
			schema:      repoOnly(),
			args:        fixed("diff", "--modified", "--added", "--removed", "--deleted", "--copies"),
			label:       constLabel("Staged changes:\n"),
		},
		{
			id:          DiffTarget,
			description: "Show the diff between the working copy and a target revision.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath": repoPathProp,
				"target":   targetProp,
			}, "repoPath", "target"),
			args:  func(p Params) []string { return []string{"diff", p.Target} },
			label: func(p Params) string { return "Diff with " + p.Target + ":\n" },
		},
		{
			id:          Commit,
			description: "Commit pending changes with a message. When files is given, only those files are committed.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath": repoPathProp,
				"message":  tools.String("Commit message."),
				"files":    tools.StringList("Optional list of files to commit instead of all pending changes.", 0),
			}, "repoPath", "message"),
			args: func(p Params) []string {
				argv := []string{"commit", "-m", p.Message}
				return append(argv, p.Files...)
			},
		},
		{
			id:          AddUntracked,
			description: "Start tracking the given untracked files.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath":       repoPathProp,
				"untrackedFiles": tools.StringList("Untracked files to start tracking. An empty list is rejected because sl add without files adds everything.", 1),
			}, "repoPath", "untrackedFiles"),
			args: func(p Params) []string {
				return append([]string{"add"}, p.UntrackedFiles...)
			},
		},
		{
			id:          Revert,
			description: "Revert all uncommitted changes in the working copy.",
			schema:      repoOnly(),
			args:        fixed("revert", "--all"),
		},
		{
			id:          Log,
			description: "Show the smartlog: the commit graph around the working copy.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath": repoPathProp,
				"maxCount": tools.PositiveInteger("Maximum number of commits to show.", defaultMaxCount),
			}, "repoPath"),
			args: func(p Params) []string {
				return []string{"smartlog", "-l", strconv.Itoa(p.MaxCount)}
			},
			label: constLabel("Commit history:\n"),
		},
		{
			id:          Bookmark,
			description: "Create or move a bookmark to the current commit.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath":     repoPathProp,
				"bookmarkName": tools.String("Name of the bookmark."),
			}, "repoPath", "bookmarkName"),
			args: func(p Params) []string { return []string{"bookmark", p.BookmarkName} },
		},
		{
			id:          Goto,
			description: "Update the working copy to the target revision.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath": repoPathProp,
				"target":   targetProp,
			}, "repoPath", "target"),
			args: func(p Params) []string { return []string{"goto", p.Target} },
		},
		{
			id:          Show,
			description: "Show the commit message and diff of a revision.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath": repoPathProp,
				"revision": tools.String("Revision to show."),
			}, "repoPath", "revision"),
			args: func(p Params) []string { return []string{"show", "-r", p.Revision} },
		},
		{
			id:          Init,
			description: "Initialise a new Git-backed Sapling repository at repoPath. The directory must already exist.",
			schema:      repoOnly(),
			args:        func(p Params) []string { return []string{"init", "--git", p.RepoPath} },
		},
		{
			id:          Push,
			description: "Submit the current commit stack as pull requests with ghstack.",
			schema:      repoOnly(),
			args:        fixed("ghstack", "submit"),
		},
		{
			id:          Land,
			description: "Land a pull request stack with ghstack.",
			schema: tools.Object(map[string]*jsonschema.Schema{
				"repoPath":       repoPathProp,
				"pullRequestUrl": tools.String("URL of the pull request to land."),
			}, "repoPath", "pullRequestUrl"),
			args: func(p Params) []string { return []string{"ghstack", "land", p.PullRequestURL} },
		},
		{
			id:          PullRequestList,
			description: "List the pull requests of the current stack with ghstack.",
			schema:      repoOnly(),
			args:        fixed("ghstack", "list"),
		},
	}

	out := make([]entry, 0, len(rows))
	for _, r := range rows {
		s, err := tools.NewSchema(r.schema)
		if err != nil {
			panic("sapling: invalid schema for " + string(r.id) + ": " + err.Error())
		}
		out = append(out, entry{
			id:          r.id,
			description: r.description,
			schema:      s,
			args:        r.args,
			label:       r.label,
		})
	}
	return out
}

// repoOnly is the schema of tools that take nothing but repoPath.
func repoOnly() *jsonschema.Schema {
	return tools.Object(map[string]*jsonschema.Schema{"repoPath": repoPathProp}, "repoPath")
}

// fixed returns an args builder that ignores its parameters.
func fixed(argv ...string) func(Params) []string {
	return func(Params) []string {
		return append([]string(nil), argv...)
	}
}

func constLabel(s string) func(Params) string {
	return func(Params) string { return s }
}
