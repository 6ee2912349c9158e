package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"plgn/internal/llm"
	"plgn/internal/sandbox"
)

// Shared response text for sandbox violations. The planner sees this as a
// structured result and can retry with a different path.
const traversalError = "Path traversal not allowed"

// ReadFileTool returns a sandboxed tool for reading file contents.
func ReadFileTool(sb *sandbox.Sandbox) *Tool {
	return &Tool{
		Name:        "read_file",
		Description: "Read the contents of a file (path relative to the project root)",
		Execute:     readFileExec(sb),
		Schema: llm.Schema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]llm.Property{
				"path": {Type: "string", Description: "The file path to read"},
			},
		},
	}
}

func readFileExec(sb *sandbox.Sandbox) ExecuteFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		path, _ := StringArg(args, "path")
		if path == "" {
			return ErrorResult("path is required"), nil
		}

		abs, err := sb.Resolve(path)
		if err != nil {
			if errors.Is(err, sandbox.ErrPathTraversal) {
				return ErrorResult(traversalError), nil
			}
			return ErrorResult(err.Error()), nil
		}

		content, err := os.ReadFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return ErrorResult(fmt.Sprintf("File not found: %s", path)), nil
			}
			return ErrorResult(fmt.Sprintf("failed to read file: %v", err)), nil
		}

		return OKResult(map[string]any{
			"path":     path,
			"contents": string(content),
		}), nil
	}
}

// WriteFileTool returns a sandboxed tool that writes a file, creating
// parent directories. Used by the extraction loop to stage pack contents.
func WriteFileTool(sb *sandbox.Sandbox) *Tool {
	return &Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating it and any parent directories",
		Execute:     writeFileExec(sb),
		Schema: llm.Schema{
			Type:     "object",
			Required: []string{"path", "content"},
			Properties: map[string]llm.Property{
				"path":    {Type: "string", Description: "The file path to write"},
				"content": {Type: "string", Description: "The content to write"},
			},
		},
	}
}

func writeFileExec(sb *sandbox.Sandbox) ExecuteFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		path, _ := StringArg(args, "path")
		if path == "" {
			return ErrorResult("path is required"), nil
		}
		content, _ := StringArg(args, "content")

		abs, err := sb.Resolve(path)
		if err != nil {
			if errors.Is(err, sandbox.ErrPathTraversal) {
				return ErrorResult(traversalError), nil
			}
			return ErrorResult(err.Error()), nil
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return ErrorResult(fmt.Sprintf("failed to create directories: %v", err)), nil
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			return ErrorResult(fmt.Sprintf("failed to write file: %v", err)), nil
		}

		return OKResult(map[string]any{
			"path":    path,
			"written": len(content),
		}), nil
	}
}

// ListFilesTool returns a sandboxed tool for listing directory contents.
func ListFilesTool(sb *sandbox.Sandbox) *Tool {
	return &Tool{
		Name:        "list_files",
		Description: "List files in a directory (path relative to the project root, \".\" for the root)",
		Execute:     listFilesExec(sb),
		Schema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"path":      {Type: "string", Description: "The directory path to list (default \".\")"},
				"recursive": {Type: "boolean", Description: "List recursively (default false)"},
			},
		},
	}
}

func listFilesExec(sb *sandbox.Sandbox) ExecuteFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		path, _ := StringArg(args, "path")
		if path == "" {
			path = "."
		}
		recursive := BoolArg(args, "recursive", false)

		abs, err := sb.ResolveAllowRoot(path)
		if err != nil {
			if errors.Is(err, sandbox.ErrPathTraversal) {
				return ErrorResult(traversalError), nil
			}
			return ErrorResult(err.Error()), nil
		}

		var files []string
		if recursive {
			err = filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return nil // unreadable entries are skipped
				}
				name := d.Name()
				if strings.HasPrefix(name, ".") && p != abs {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if name == "node_modules" && d.IsDir() {
					return filepath.SkipDir
				}
				rel, _ := filepath.Rel(abs, p)
				if rel == "." {
					return nil
				}
				if d.IsDir() {
					files = append(files, rel+"/")
				} else {
					files = append(files, rel)
				}
				return nil
			})
			if err != nil {
				return ErrorResult(fmt.Sprintf("failed to walk directory: %v", err)), nil
			}
		} else {
			entries, err := os.ReadDir(abs)
			if err != nil {
				return ErrorResult(fmt.Sprintf("failed to read directory: %v", err)), nil
			}
			for _, entry := range entries {
				name := entry.Name()
				if strings.HasPrefix(name, ".") {
					continue
				}
				if entry.IsDir() {
					files = append(files, name+"/")
				} else {
					files = append(files, name)
				}
			}
		}

		return OKResult(map[string]any{
			"path":  path,
			"files": files,
		}), nil
	}
}

// SearchFilesTool returns a sandboxed substring search over text files.
// Results are bounded so a broad query cannot flood the conversation.
func SearchFilesTool(sb *sandbox.Sandbox) *Tool {
	return &Tool{
		Name:        "search_files",
		Description: "Search files under the project root for a substring; returns matching lines",
		Execute:     searchFilesExec(sb),
		Schema: llm.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]llm.Property{
				"query": {Type: "string", Description: "Substring to search for"},
				"path":  {Type: "string", Description: "Directory to search under (default \".\")"},
			},
		},
	}
}

const maxSearchMatches = 50

func searchFilesExec(sb *sandbox.Sandbox) ExecuteFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := StringArg(args, "query")
		if query == "" {
			return ErrorResult("query is required"), nil
		}
		path, _ := StringArg(args, "path")
		if path == "" {
			path = "."
		}

		abs, err := sb.ResolveAllowRoot(path)
		if err != nil {
			if errors.Is(err, sandbox.ErrPathTraversal) {
				return ErrorResult(traversalError), nil
			}
			return ErrorResult(err.Error()), nil
		}

		type match struct {
			Path string `json:"path"`
			Line int    `json:"line"`
			Text string `json:"text"`
		}
		var matches []match

		err = filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
			if err != nil || len(matches) >= maxSearchMatches {
				if len(matches) >= maxSearchMatches {
					return filepath.SkipAll
				}
				return nil
			}
			name := d.Name()
			if d.IsDir() {
				if (strings.HasPrefix(name, ".") && p != abs) || name == "node_modules" {
					return filepath.SkipDir
				}
				return nil
			}
			data, err := os.ReadFile(p)
			if err != nil || !strings.Contains(string(data), query) {
				return nil
			}
			rel, _ := filepath.Rel(sb.Root(), p)
			for i, line := range strings.Split(string(data), "\n") {
				if strings.Contains(line, query) {
					matches = append(matches, match{Path: rel, Line: i + 1, Text: strings.TrimSpace(line)})
					if len(matches) >= maxSearchMatches {
						break
					}
				}
			}
			return nil
		})
		if err != nil {
			return ErrorResult(fmt.Sprintf("search failed: %v", err)), nil
		}

		return OKResult(map[string]any{
			"query":   query,
			"matches": matches,
		}), nil
	}
}
