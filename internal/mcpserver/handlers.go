package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *PlatformClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *PlatformClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetBooking looks up a booking by ID.
func (h *Handlers) HandleGetBooking(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookingID := req.GetString("booking_id", "")
	if bookingID == "" {
		return mcp.NewToolResultError("booking_id is required"), nil
	}

	raw, err := h.client.GetBooking(ctx, bookingID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get booking: %v", err)), nil
	}

	text, err := formatBookingEnvelope(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse booking: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListDisputes lists bookings awaiting dispute resolution.
func (h *Handlers) HandleListDisputes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)

	raw, err := h.client.ListDisputes(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list disputes: %v", err)), nil
	}

	text, err := formatDisputeList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse disputes: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleResolveDispute resolves a disputed booking.
func (h *Handlers) HandleResolveDispute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookingID := req.GetString("booking_id", "")
	if bookingID == "" {
		return mcp.NewToolResultError("booking_id is required"), nil
	}
	resolution := req.GetString("resolution", "")
	if resolution != "complete" && resolution != "revoke" {
		return mcp.NewToolResultError("resolution must be 'complete' or 'revoke'"), nil
	}
	notes := req.GetString("notes", "")

	raw, err := h.client.ResolveDispute(ctx, bookingID, resolution, notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve dispute: %v", err)), nil
	}

	b, err := parseBookingEnvelope(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse booking: %v", err)), nil
	}

	outcome := "the booking is completed and the companion keeps their earnings"
	if resolution == "revoke" {
		outcome = "the booking is cancelled and the client has been refunded"
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Dispute on booking %s resolved as '%s': %s.\n\n%s",
		b.ID, resolution, outcome, formatBooking(b))), nil
}

// HandleModerateCompanion approves or rejects a companion listing.
func (h *Handlers) HandleModerateCompanion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	companionID := req.GetString("companion_id", "")
	if companionID == "" {
		return mcp.NewToolResultError("companion_id is required"), nil
	}
	status := req.GetString("status", "")
	if status != "approved" && status != "rejected" {
		return mcp.NewToolResultError("status must be 'approved' or 'rejected'"), nil
	}
	note := req.GetString("note", "")

	raw, err := h.client.ModerateCompanion(ctx, companionID, status, note)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to moderate companion: %v", err)), nil
	}

	var resp struct {
		Companion struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"companion"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse companion: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Companion %s (%s) is now %s.",
		resp.Companion.DisplayName, resp.Companion.ID, status)), nil
}

// HandlePlatformStats returns platform statistics.
func (h *Handlers) HandlePlatformStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.PlatformStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get platform stats: %v", err)), nil
	}

	text, err := formatStats(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse stats: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleTriggerSweep runs the maintenance sweep on demand.
func (h *Handlers) HandleTriggerSweep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.TriggerSweep(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to trigger sweep: %v", err)), nil
	}

	var resp struct {
		Expired       int `json:"expired"`
		AutoCompleted int `json:"autoCompleted"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse sweep result: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Sweep complete.\n  Requests expired: %d\n  Bookings auto-completed: %d",
		resp.Expired, resp.AutoCompleted)), nil
}

// --- Formatting helpers ---

type bookingInfo struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"clientId"`
	CompanionID   string     `json:"companionId"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"startTime"`
	DurationHours int        `json:"durationHours"`
	TotalAmount   int64      `json:"totalAmount"`
	Currency      string     `json:"currency"`
	Location      string     `json:"location"`
	DisputeReason string     `json:"disputeReason"`
	CompletedAt   *time.Time `json:"completedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func parseBookingEnvelope(raw json.RawMessage) (bookingInfo, error) {
	var resp struct {
		Booking bookingInfo `json:"booking"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return bookingInfo{}, err
	}
	if resp.Booking.ID == "" {
		return bookingInfo{}, fmt.Errorf("no booking in response: %s", string(raw))
	}
	return resp.Booking, nil
}

func formatBookingEnvelope(raw json.RawMessage) (string, error) {
	b, err := parseBookingEnvelope(raw)
	if err != nil {
		return "", err
	}
	return formatBooking(b), nil
}

func formatBooking(b bookingInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Booking %s\n", b.ID)
	fmt.Fprintf(&sb, "  Status: %s\n", b.Status)
	fmt.Fprintf(&sb, "  Client: %s | Companion: %s\n", b.ClientID, b.CompanionID)
	fmt.Fprintf(&sb, "  When: %s for %d hour(s)\n", b.StartTime.Format(time.RFC1123), b.DurationHours)
	fmt.Fprintf(&sb, "  Amount: %s\n", formatAmount(b.TotalAmount, b.Currency))
	if b.Location != "" {
		fmt.Fprintf(&sb, "  Location: %s\n", b.Location)
	}
	if b.DisputeReason != "" {
		fmt.Fprintf(&sb, "  Dispute reason: %s\n", b.DisputeReason)
	}
	if b.CompletedAt != nil {
		fmt.Fprintf(&sb, "  Completed: %s\n", b.CompletedAt.Format(time.RFC1123))
	}
	return sb.String()
}

func formatDisputeList(raw json.RawMessage) (string, error) {
	var resp struct {
		Disputes []bookingInfo `json:"disputes"`
		Count    int           `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Disputes) == 0 {
		return "No open disputes.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d open dispute(s):\n\n", len(resp.Disputes))
	for i, b := range resp.Disputes {
		fmt.Fprintf(&sb, "%d. Booking %s\n", i+1, b.ID)
		fmt.Fprintf(&sb, "   Client: %s | Companion: %s | Amount: %s\n",
			b.ClientID, b.CompanionID, formatAmount(b.TotalAmount, b.Currency))
		fmt.Fprintf(&sb, "   Reason: %s\n", b.DisputeReason)
		if i < len(resp.Disputes)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatStats(raw json.RawMessage) (string, error) {
	var resp struct {
		BookingsByStatus map[string]int `json:"bookingsByStatus"`
		FeePercent       int            `json:"feePercent"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Platform stats:\n")
	fmt.Fprintf(&sb, "  Platform fee: %d%%\n", resp.FeePercent)
	sb.WriteString("  Bookings by status:\n")
	// Fixed ordering keeps the lifecycle readable.
	order := []string{"pending", "accepted", "active", "pending_completion", "completed", "disputed", "cancelled", "rejected", "expired"}
	for _, status := range order {
		if n, ok := resp.BookingsByStatus[status]; ok {
			fmt.Fprintf(&sb, "    %-19s %d\n", status, n)
		}
	}
	return sb.String(), nil
}

// formatAmount renders a minor-unit amount as a decimal with its currency code.
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}
