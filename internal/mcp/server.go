package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beevik/etree"
	"github.com/jcdickinson/doxyrst/internal/autodoc"
	"github.com/jcdickinson/doxyrst/internal/db"
	"github.com/jcdickinson/doxyrst/internal/doxygen"
	"github.com/jcdickinson/doxyrst/internal/rst"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

const (
	resourceScheme = "doxy://"
	rstMIMEType    = "text/x-rst"
	defaultLimit   = 20
)

type Server struct {
	mcpServer *server.MCPServer
	index     *doxygen.Index
	inventory *db.DB
	render    []rst.Option
}

// NewServer serves lookups and renders from idx. When inventory is non-nil,
// symbol lookups are answered from it instead of scanning the index.
func NewServer(idx *doxygen.Index, inventory *db.DB, render ...rst.Option) *Server {
	s := &Server{index: idx, inventory: inventory, render: render}

	mcpServer := server.NewMCPServer(
		"doxyrst",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("lookup_symbol",
			mcp.WithDescription("Find documented compounds and members whose qualified name contains the query, case-insensitively."),
			mcp.WithString("query",
				mcp.Description("Name or part of a qualified name, e.g. \"Force::get\""),
				mcp.Required(),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		s.handleLookupSymbol,
	)

	mcpServer.AddTool(
		mcp.NewTool("render_description",
			mcp.WithDescription("Render the description of a compound or member as reStructuredText."),
			mcp.WithString("name",
				mcp.Description("Qualified name, e.g. \"OpenMM::Force::getName\""),
				mcp.Required(),
			),
			mcp.WithBoolean("brief",
				mcp.Description("Render the brief description instead of the detailed one"),
			),
		),
		s.handleRenderDescription,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			resourceScheme+"{name}",
			"Module reference page",
			mcp.WithTemplateDescription("Full reStructuredText reference page for a module or namespace, with its types and procedures."),
			mcp.WithTemplateMIMEType(rstMIMEType),
		),
		s.handleReadResource,
	)
}

type symbolResult struct {
	RefID         string `json:"ref_id"`
	Kind          string `json:"kind"`
	Element       string `json:"element,omitempty"`
	QualifiedName string `json:"qualified_name"`
	Brief         string `json:"brief,omitempty"`
}

func (s *Server) handleLookupSymbol(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := defaultLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	var results []symbolResult
	if s.inventory != nil {
		syms, err := s.inventory.SearchSymbols(query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		for _, sym := range syms {
			results = append(results, symbolResult{
				RefID:         sym.RefID,
				Kind:          sym.Kind,
				Element:       sym.Element,
				QualifiedName: sym.QualifiedName,
				Brief:         sym.Brief,
			})
		}
	} else {
		for _, sym := range s.index.Search(query, limit) {
			results = append(results, symbolResult{
				RefID:         sym.ID,
				Kind:          sym.Kind.String(),
				Element:       sym.ElementKind(),
				QualifiedName: sym.QualifiedName(),
				Brief:         s.briefText(sym.Element),
			})
		}
	}

	resultJSON, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleRenderDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	brief, _ := args["brief"].(bool)

	sym, err := s.index.Lookup(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, err)), nil
	}

	tag := "detaileddescription"
	if brief {
		tag = "briefdescription"
	}
	lines, err := rst.FormatParagraph(sym.Element.SelectElement(tag), s.index, s.render...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rendering %s: %v", name, err)), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := strings.TrimPrefix(uri, resourceScheme)
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}

	lines, err := autodoc.Module(s.index, name, autodoc.ModuleOptions{
		Types:   true,
		Methods: true,
		Render:  s.render,
	})
	if errors.Is(err, doxygen.ErrNotFound) {
		return nil, fmt.Errorf("no module named %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("rendering module: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: rstMIMEType,
			Text:     strings.Join(lines, "\n") + "\n",
		},
	}, nil
}

// briefText is the brief description on one line. Render errors leave it empty.
func (s *Server) briefText(e *etree.Element) string {
	text, err := rst.Summary(e.SelectElement("briefdescription"), s.index, s.render...)
	if err != nil {
		slog.Debug("brief description not rendered", "error", err)
	}
	return text
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
