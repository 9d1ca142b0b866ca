package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/invert"
	"github.com/openblcmm/blcmm/internal/model"
	"github.com/openblcmm/blcmm/internal/report"
)

// Version is set at build time via ldflags.
var Version = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve patch checking and inversion as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("serving MCP on stdio", "version", Version)
		return server.ServeStdio(newMCPServer())
	},
}

func newMCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		"blcmm",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("check_patch",
		mcp.WithDescription("Annotate a patch file and return its findings as JSON"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the patch file")),
		mcp.WithString("dict", mcp.Description("Object dictionary database for class checks")),
		mcp.WithString("min_severity", mcp.Description("Lowest severity to report: invisible, info, warning, content-error or syntax-error")),
		mcp.WithBoolean("overwrites", mcp.Description("Include overwrite relations")),
	), handleCheckPatch)

	s.AddTool(mcp.NewTool("list_overwrites",
		mcp.WithDescription("List the statements of a patch that overwrite or are overwritten by others"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the patch file")),
	), handleListOverwrites)

	s.AddTool(mcp.NewTool("invert_category",
		mcp.WithDescription("Plan the inversion of a category and return the statements that would be written"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the patch file")),
		mcp.WithString("category", mcp.Description("Slash separated category path; empty for the whole patch")),
		mcp.WithString("dict", mcp.Required(), mcp.Description("Object dictionary database")),
		mcp.WithBoolean("missing_as_empty", mcp.Description("Invert absent fields to an empty value")),
	), handleInvertCategory)

	return s
}

func handleCheckPatch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := report.Options{Overwrites: req.GetBool("overwrites", false)}
	if s := req.GetString("min_severity", ""); s != "" {
		if opts.MinSeverity, err = model.ParseSeverity(s); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	r, _, err := checkPatch(path, req.GetString("dict", ""), opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r)
}

func handleListOverwrites(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, _, err := checkPatch(path, "", report.Options{MinSeverity: model.SeveritySyntaxError + 1, Overwrites: true})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r.Totals = nil
	return jsonResult(r)
}

func handleInvertCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dbPath, err := req.RequireString("dict")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	constants, err := loadConstants()
	if err != nil {
		return nil, err
	}
	p, err := loadPatch(path, constants)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := findCategory(p, req.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dict, err := openDictionary(dbPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer func() { _ = dict.Close() }()

	r, err := invert.Plan(ctx, p, category, dict, invert.Options{MissingAsEmpty: req.GetBool("missing_as_empty", false)})
	if err != nil {
		var se *model.StructuralError
		if errors.As(err, &se) {
			return mcp.NewToolResultError(se.Error()), nil
		}
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s%s\n", r.Name, invert.InversionSuffix)
	for _, s := range r.Inverted {
		fmt.Fprintf(&buf, "%s\n", s.Code())
	}
	if len(r.Uninverted) > 0 {
		fmt.Fprintf(&buf, "\n# %s\n", invert.UninvertedBucketName)
		for _, s := range r.Uninverted {
			fmt.Fprintf(&buf, "%s  # %s\n", s.Code(), s.Ambiguity.Reason)
		}
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func jsonResult(r *report.Report) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := report.Write(&buf, r, report.FormatJSON); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
