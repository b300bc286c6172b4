package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the platform ops MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetBooking = mcp.NewTool("get_booking",
	mcp.WithDescription(
		"Look up a booking by ID. "+
			"Returns its current status, schedule, amounts, and any dispute reason. "+
			"Use this to inspect a booking before resolving a dispute."),
	mcp.WithString("booking_id",
		mcp.Required(),
		mcp.Description("The booking ID (e.g. 'bkg_a1b2c3')")),
)

var ToolListDisputes = mcp.NewTool("list_disputes",
	mcp.WithDescription(
		"List bookings currently in the disputed state, oldest first. "+
			"Each entry includes the client, companion, amount, and the reason the client gave."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of disputes to return (default 50)")),
)

var ToolResolveDispute = mcp.NewTool("resolve_dispute",
	mcp.WithDescription(
		"Resolve a disputed booking. "+
			"'complete' sides with the companion: the booking completes and the payment stands. "+
			"'revoke' sides with the client: the booking is cancelled and the payment refunded. "+
			"This action is final and is recorded in the audit log."),
	mcp.WithString("booking_id",
		mcp.Required(),
		mcp.Description("The disputed booking's ID")),
	mcp.WithString("resolution",
		mcp.Required(),
		mcp.Description("How to resolve: 'complete' (companion keeps earnings) or 'revoke' (client refunded)"),
		mcp.Enum("complete", "revoke")),
	mcp.WithString("notes",
		mcp.Description("The reasoning behind the decision, recorded in the audit log")),
)

var ToolModerateCompanion = mcp.NewTool("moderate_companion",
	mcp.WithDescription(
		"Approve or reject a companion listing. "+
			"Only approved companions appear in public browse results and can receive bookings."),
	mcp.WithString("companion_id",
		mcp.Required(),
		mcp.Description("The companion listing's ID (e.g. 'cmp_a1b2c3')")),
	mcp.WithString("status",
		mcp.Required(),
		mcp.Description("Moderation decision: 'approved' or 'rejected'"),
		mcp.Enum("approved", "rejected")),
	mcp.WithString("note",
		mcp.Description("Optional note recorded in the audit log alongside the decision")),
)

var ToolPlatformStats = mcp.NewTool("platform_stats",
	mcp.WithDescription(
		"Get platform statistics: booking counts broken down by status and the current platform fee percentage."),
)

var ToolTriggerSweep = mcp.NewTool("trigger_sweep",
	mcp.WithDescription(
		"Run the booking maintenance sweep immediately instead of waiting for the next scheduled run. "+
			"Expires stale pending requests and auto-completes bookings whose confirmation window has passed. "+
			"Returns how many bookings each pass touched."),
)
