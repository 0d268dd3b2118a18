package actions

import (
	"context"
	"fmt"
)

// TemplateActions are the non-system actions bots may opt into.
var TemplateActions = []string{
	ActionCollectUserInfo,
	ActionScheduleDemo,
	ActionCreateBooking,
	ActionFillForm,
	ActionProcessPayment,
	ActionCreateTicket,
	ActionEscalateToHuman,
	ActionCheckOrderStatus,
	ToolSearchProducts,
	ToolGetProductDetails,
}

// NewDefaultRegistry returns a registry holding the system actions, the
// template actions and the catalog tools over catalog (DemoCatalog if nil).
func NewDefaultRegistry(ctx context.Context, catalog []Product) (*Registry, error) {
	if catalog == nil {
		catalog = DemoCatalog
	}
	r := NewRegistry()
	defs := append(systemDefinitions(), builtinDefinitions()...)

	search, err := FromTool(ctx, NewSearchProductsTool(catalog), ToolOptions{
		Category:       CategoryCommerce,
		RequiredParams: []string{"query"},
	})
	if err != nil {
		return nil, err
	}
	details, err := FromTool(ctx, NewProductDetailsTool(catalog), ToolOptions{
		Category:       CategoryCommerce,
		RequiredParams: []string{"product_id"},
	})
	if err != nil {
		return nil, err
	}
	defs = append(defs, search, details)

	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return r, nil
}
