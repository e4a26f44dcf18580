// Package mcpserver exposes the coordination data over the Model Context
// Protocol so external agents can query staffing and make signups with the
// same invariants as the HTTP surface.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

// Deps holds the wired components the MCP tools call into.
type Deps struct {
	Store    *storage.Store
	Engine   *scheduling.Engine
	Reporter *scheduling.Reporter
}

// NewServer creates an MCP server with all coordination tools and resources
// registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"coordinator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("coordinator — volunteer food rescue scheduling: deliveries, signups, staffing."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_volunteers",
			mcp.WithDescription("List every registered volunteer with name, email and role."),
		),
		mcpListVolunteers(deps),
	)

	s.AddTool(
		mcp.NewTool("staffing_summary",
			mcp.WithDescription("Staffing status for one delivery: assigned drivers/packers and what is still needed."),
			mcp.WithString("delivery_id", mcp.Description("Delivery ID"), mcp.Required()),
		),
		mcpStaffing(deps),
	)

	s.AddTool(
		mcp.NewTool("check_availability",
			mcp.WithDescription("Whether a volunteer is free on a date (no active assignment that day)."),
			mcp.WithString("volunteer_id", mcp.Description("Volunteer ID"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Date, YYYY-MM-DD"), mcp.Required()),
		),
		mcpAvailability(deps),
	)

	s.AddTool(
		mcp.NewTool("optimal_dates",
			mcp.WithDescription("Suggest low-load weekend dates in the next 30 days for scheduling a delivery."),
		),
		mcpOptimalDates(deps),
	)

	s.AddTool(
		mcp.NewTool("signup_volunteer",
			mcp.WithDescription("Sign a registered volunteer up for the delivery on a date, creating the delivery if needed. Fails when the role is at capacity."),
			mcp.WithString("email", mcp.Description("Volunteer email"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Delivery date, YYYY-MM-DD"), mcp.Required()),
			mcp.WithString("role", mcp.Description("driver or packer"), mcp.Required()),
		),
		mcpSignup(deps),
	)

	s.AddTool(
		mcp.NewTool("upcoming_deliveries",
			mcp.WithDescription("Deliveries in the next N days with staffing summaries (default 7)."),
			mcp.WithNumber("days", mcp.Description("Days ahead to include")),
		),
		mcpUpcoming(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"coordinator://snapshot",
			"Coordination Snapshot",
			mcp.WithResourceDescription("Volunteers, deliveries, routes and organizations as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSnapshot(deps),
	)

	return s
}

func mcpListVolunteers(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		volunteers, err := deps.Store.ListVolunteers()
		if err != nil {
			return mcpError(fmt.Sprintf("listing volunteers: %v", err)), nil
		}
		return mcpJSON(volunteers)
	}
}

func mcpStaffing(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("delivery_id")
		if err != nil {
			return mcpError("delivery_id is required"), nil
		}
		sum, err := deps.Reporter.DeliveryStaffing(id)
		if err != nil {
			return mcpError(fmt.Sprintf("staffing summary: %v", err)), nil
		}
		return mcpJSON(sum)
	}
}

func mcpAvailability(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("volunteer_id")
		if err != nil {
			return mcpError("volunteer_id is required"), nil
		}
		date, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}
		avail, err := deps.Reporter.CheckAvailability(id, date)
		if err != nil {
			return mcpError(fmt.Sprintf("checking availability: %v", err)), nil
		}
		return mcpJSON(avail)
	}
}

func mcpOptimalDates(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dates, err := deps.Reporter.FindOptimalDates(0, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("finding dates: %v", err)), nil
		}
		if dates == nil {
			return mcpText("[]"), nil
		}
		return mcpJSON(dates)
	}
}

func mcpSignup(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}
		date, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}
		role, err := req.RequireString("role")
		if err != nil {
			return mcpError("role is required"), nil
		}

		res, err := deps.Engine.SignUp(ctx, email, date, role)
		if err != nil {
			return mcpError(fmt.Sprintf("signup failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpUpcoming(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := req.GetInt("days", 7)
		summaries, err := deps.Reporter.UpcomingAppointments(days)
		if err != nil {
			return mcpError(fmt.Sprintf("listing upcoming deliveries: %v", err)), nil
		}
		if summaries == nil {
			return mcpText("[]"), nil
		}
		return mcpJSON(summaries)
	}
}

func mcpResourceSnapshot(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		volunteers, err := deps.Store.ListVolunteers()
		if err != nil {
			return nil, fmt.Errorf("listing volunteers: %w", err)
		}
		deliveries, err := deps.Store.ListDeliveries()
		if err != nil {
			return nil, fmt.Errorf("listing deliveries: %w", err)
		}
		routes, err := deps.Store.ListDeliveryRoutes("")
		if err != nil {
			return nil, fmt.Errorf("listing routes: %w", err)
		}
		orgs, err := deps.Store.ListOrganizations("")
		if err != nil {
			return nil, fmt.Errorf("listing organizations: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"volunteers":    volunteers,
			"deliveries":    deliveries,
			"routes":        routes,
			"organizations": orgs,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling snapshot: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("marshaling result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
