package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
)

const (
	ActionCollectUserInfo  = "collect_user_info"
	ActionScheduleDemo     = "schedule_demo"
	ActionCreateBooking    = "create_booking"
	ActionFillForm         = "fill_form"
	ActionProcessPayment   = "process_payment"
	ActionCreateTicket     = "create_ticket"
	ActionEscalateToHuman  = "escalate_to_human"
	ActionCheckOrderStatus = "check_order_status"

	CategorySales    = "sales"
	CategorySupport  = "support"
	CategoryBooking  = "booking"
	CategoryCommerce = "commerce"

	contactImportance = 8
)

var contactFields = []string{"name", "email", "phone"}

// Template actions stand in for external integrations: they validate their
// input and return a tracking record; the integration itself is pluggable
// through Registry.Update.
func builtinDefinitions() []Definition {
	return []Definition{
		{
			Name:        ActionCollectUserInfo,
			Description: "Capture contact details offered by the user",
			Handler:     collectUserInfo,
			Category:    CategorySales,
			Permission:  PermissionPublic,
			ReturnsData: true,
		},
		{
			Name:        ActionScheduleDemo,
			Description: "Request a product demo",
			Handler:     tracked("demo", "requested", "date", "product"),
			Category:    CategorySales,
			Permission:  PermissionPublic,
			ReturnsData: true,
		},
		{
			Name:        ActionCreateBooking,
			Description: "Create a booking",
			Handler:     tracked("booking", "pending", "date", "service"),
			Category:    CategoryBooking,
			Permission:  PermissionPublic,
			ReturnsData: true,
		},
		{
			Name:        ActionFillForm,
			Description: "Start a form for the user to complete",
			Handler:     tracked("form", "open", "form", "item"),
			Category:    CategoryBooking,
			Permission:  PermissionPublic,
			ReturnsData: true,
		},
		{
			Name:        ActionProcessPayment,
			Description: "Start a payment",
			Handler:     processPayment,
			Category:    CategoryCommerce,
			Permission:  PermissionUser,
			ReturnsData: true,
		},
		{
			Name:           ActionCreateTicket,
			Description:    "Open a support ticket",
			Handler:        tracked("ticket", "open", "subject", "priority"),
			RequiredParams: []string{"subject"},
			Category:       CategorySupport,
			Permission:     PermissionPublic,
			ReturnsData:    true,
		},
		{
			Name:        ActionEscalateToHuman,
			Description: "Hand the conversation to a human agent",
			Handler:     tracked("handoff", "queued", "reason"),
			Category:    CategorySupport,
			Permission:  PermissionPublic,
			ReturnsData: true,
		},
		{
			Name:           ActionCheckOrderStatus,
			Description:    "Look up the status of an order",
			Handler:        checkOrderStatus,
			RequiredParams: []string{"order_id"},
			Category:       CategoryCommerce,
			Permission:     PermissionPublic,
			ReturnsData:    true,
		},
	}
}

// tracked returns a handler that echoes the listed params into a new
// tracking record with the given status.
func tracked(kind, status string, fields ...string) Handler {
	return func(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := map[string]any{
			kind + "Id": uuid.NewString(),
			"status":    status,
			"createdAt": ec.now(),
		}
		for _, f := range fields {
			if v, ok := params[f]; ok {
				out[f] = v
			}
		}
		return out, nil
	}
}

func collectUserInfo(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	collected := map[string]any{}
	var missing []string
	for _, f := range contactFields {
		if v := stringParam(params, f); v != "" {
			collected[f] = v
		} else {
			missing = append(missing, f)
		}
	}
	if len(collected) > 0 && ec.Memory != nil && ec.UserID != "" {
		parts := make([]string, 0, len(collected))
		for _, f := range contactFields {
			if v, ok := collected[f]; ok {
				parts = append(parts, fmt.Sprintf("%s=%v", f, v))
			}
		}
		if _, err := ec.Memory.Add(ctx, ec.UserID, memory.Input{
			Type:       model.MemoryContact,
			Content:    strings.Join(parts, " "),
			Importance: contactImportance,
			Metadata:   collected,
		}); err != nil {
			return nil, err
		}
	}
	return map[string]any{"collected": collected, "missing": missing}, nil
}

func processPayment(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := map[string]any{
		"paymentId": uuid.NewString(),
		"status":    "awaiting_amount",
	}
	if amount, ok := params["amount"]; ok {
		out["amount"] = amount
		out["status"] = "pending"
	}
	if c := stringParam(params, "currency"); c != "" {
		out["currency"] = strings.ToUpper(c)
	}
	return out, nil
}

func checkOrderStatus(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	id := strings.TrimSpace(stringParam(params, "order_id"))
	if id == "" {
		return nil, fmt.Errorf("order_id must be a non-empty string")
	}
	return map[string]any{"orderId": id, "status": "processing", "checkedAt": ec.now()}, nil
}
