// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the GTS portal tables for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gts-portal/internal/auth"
	"github.com/starford/gts-portal/internal/checksum"
	"github.com/starford/gts-portal/internal/dashboard"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/models"
)

// SchemaURI is the resource describing tables and query syntax.
const SchemaURI = "gts://schema"

// Server wraps the MCP server with store tools.
type Server struct {
	mcp        *server.MCPServer
	store      *mockstore.Store
	dashboards *dashboard.Builder
	mediaRoot  string
}

// New creates a new MCP server with all tools registered. mediaRoot is the
// directory upload_media writes to.
func New(store *mockstore.Store, dashboards *dashboard.Builder, mediaRoot string) *Server {
	s := &Server{store: store, dashboards: dashboards, mediaRoot: mediaRoot}

	s.mcp = server.NewMCPServer(
		"GTS Portal",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List the mock data tables with their row counts."),
	), s.listTables)

	s.mcp.AddTool(mcp.NewTool("select_rows",
		mcp.WithDescription("Select rows from a table. Read the "+SchemaURI+" resource for table fields. "+
			"where is an object of field equalities; an array value matches any of its elements."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithObject("where", mcp.Description("Field equalities, e.g. {\"status\": \"vip\"}")),
		mcp.WithString("order", mcp.Description("Sort keys, e.g. amount.desc,title")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (0 for all)")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	), s.selectRows)

	s.mcp.AddTool(mcp.NewTool("get_row",
		mcp.WithDescription("Read a single row by id."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Row id")),
	), s.getRow)

	s.mcp.AddTool(mcp.NewTool("insert_row",
		mcp.WithDescription("Insert a row. An id is generated when none is given; created_at and updated_at are set automatically."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithObject("row", mcp.Required(), mcp.Description("Row fields")),
	), s.insertRow)

	s.mcp.AddTool(mcp.NewTool("update_row",
		mcp.WithDescription("Merge fields into an existing row. Fields not given are kept."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Row id")),
		mcp.WithObject("patch", mcp.Required(), mcp.Description("Fields to change")),
		mcp.WithString("if_match", mcp.Description("Checksum returned by get_row; the update fails if the row changed since")),
	), s.updateRow)

	s.mcp.AddTool(mcp.NewTool("delete_row",
		mcp.WithDescription("Delete a row by id. Deleting a missing row is not an error."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Row id")),
	), s.deleteRow)

	s.mcp.AddTool(mcp.NewTool("get_dashboard",
		mcp.WithDescription("Compute the statistics of a role portal."),
		mcp.WithString("role", mcp.Required(), mcp.Description("Portal role"), mcp.Enum(dashboard.Roles...)),
	), s.getDashboard)

	s.mcp.AddTool(mcp.NewTool("upload_media",
		mcp.WithDescription("Store an image from an http(s) URL or a base64 data URI and return its /media URL. "+
			"With fleet_id, the fleet item's image_url is set to the new URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
		mcp.WithString("fleet_id", mcp.Description("Optional fleet item to attach the image to")),
	), s.uploadMedia)

	s.mcp.AddResource(
		mcp.NewResource(SchemaURI, "GTS Table Schema",
			mcp.WithResourceDescription("Tables, their fields, and the query syntax of the GTS portal data store."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func objectArg(req mcp.CallToolRequest, name string) (map[string]any, error) {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", name)
	}
	return obj, nil
}

func (s *Server) listTables(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.store.Tables())
}

func (s *Server) selectRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := req.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	where, err := objectArg(req, "where")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	order, err := mockstore.ParseOrder(req.GetString("order", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q := auth.RestrictQuery(table, mockstore.Query{
		Where:   where,
		OrderBy: order,
		Limit:   req.GetInt("limit", 0),
		Offset:  req.GetInt("offset", 0),
	})

	rows, err := s.store.Select(ctx, table, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(auth.Redact(rows...))
}

type rowResult struct {
	Checksum string           `json:"checksum"`
	Row      mockstore.Record `json:"row"`
}

func (s *Server) getRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, id, errRes := tableAndID(req)
	if errRes != nil {
		return errRes, nil
	}
	row, err := s.store.Get(ctx, table, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(newRowResult(row))
}

func (s *Server) insertRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := req.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := objectArg(req, "row")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rec == nil {
		return mcp.NewToolResultError("row is required"), nil
	}
	if err := hashUserPassword(table, rec); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.store.Insert(ctx, table, rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(newRowResult(row))
}

func (s *Server) updateRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, id, errRes := tableAndID(req)
	if errRes != nil {
		return errRes, nil
	}
	patch, err := objectArg(req, "patch")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if patch == nil {
		return mcp.NewToolResultError("patch is required"), nil
	}
	if err := hashUserPassword(table, patch); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.store.Update(ctx, table, id, patch, req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(newRowResult(row))
}

func (s *Server) deleteRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, id, errRes := tableAndID(req)
	if errRes != nil {
		return errRes, nil
	}
	deleted, err := s.store.Delete(ctx, table, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !deleted {
		return mcp.NewToolResultText(fmt.Sprintf("not found: %s/%s", table, id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", table, id)), nil
}

func (s *Server) getDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	role, err := req.RequireString("role")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.dashboards.Build(ctx, role)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) readSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SchemaURI,
			MIMEType: "text/markdown",
			Text:     SchemaContract,
		},
	}, nil
}

func tableAndID(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	table, err := req.RequireString("table")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	id, err := req.RequireString("id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return table, id, nil
}

func hashUserPassword(table string, rec map[string]any) error {
	if table != models.TableUsers {
		return nil
	}
	return auth.HashPassword(rec)
}

// newRowResult redacts the row after taking its checksum, so if_match keeps
// working for users rows.
func newRowResult(row mockstore.Record) rowResult {
	sum := checksum.Of(row)
	return rowResult{Checksum: sum, Row: auth.Redact(row)[0]}
}
