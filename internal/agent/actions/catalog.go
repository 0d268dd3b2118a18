package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolSearchProducts    = "search_products"
	ToolGetProductDetails = "get_product_details"

	defaultProductResults = 10
	maxProductResults     = 20
)

type Product struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Category       string            `json:"category" yaml:"category"`
	Price          float64           `json:"price" yaml:"price"`
	Description    string            `json:"description" yaml:"description"`
	InStock        bool              `json:"in_stock" yaml:"inStock"`
	Specifications map[string]string `json:"specifications,omitempty" yaml:"specifications,omitempty"`
}

type SearchProductsInput struct {
	Query      string `json:"query"`
	Category   string `json:"category,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

type SearchProductsOutput struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

type ProductDetailsInput struct {
	ProductID string `json:"product_id"`
}

// NewSearchProductsTool searches catalog by name, category or description.
func NewSearchProductsTool(catalog []Product) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchProducts,
			Desc: "Search the product catalog by keyword. Returns id, name, price and availability for each match.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Keywords: product type, brand or model",
					Required: true,
				},
				"category": {
					Type: "string",
					Desc: "Optional category filter, e.g. smartphones, laptops, audio",
				},
				"max_results": {
					Type: "number",
					Desc: "Maximum number of products to return (default 10, max 20)",
				},
			}),
		},
		func(ctx context.Context, in *SearchProductsInput) (*SearchProductsOutput, error) {
			q := strings.ToLower(strings.TrimSpace(in.Query))
			if q == "" {
				return nil, fmt.Errorf("query is required")
			}
			limit := in.MaxResults
			if limit <= 0 {
				limit = defaultProductResults
			}
			if limit > maxProductResults {
				limit = maxProductResults
			}

			matched := []Product{}
			for _, p := range catalog {
				if in.Category != "" && !strings.EqualFold(p.Category, in.Category) {
					continue
				}
				if strings.Contains(strings.ToLower(p.Name), q) ||
					strings.Contains(strings.ToLower(p.Category), q) ||
					strings.Contains(strings.ToLower(p.Description), q) {
					matched = append(matched, p)
				}
				if len(matched) == limit {
					break
				}
			}
			return &SearchProductsOutput{Products: matched, Total: len(matched)}, nil
		},
	)
}

// NewProductDetailsTool returns the full record of one product.
func NewProductDetailsTool(catalog []Product) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetProductDetails,
			Desc: "Get full specifications and availability of one product by id (as returned by search_products).",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id": {
					Type:     "string",
					Desc:     "Exact product id, e.g. prod-001",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *ProductDetailsInput) (*Product, error) {
			if in.ProductID == "" {
				return nil, fmt.Errorf("product_id is required")
			}
			for _, p := range catalog {
				if p.ID == in.ProductID {
					out := p
					if out.Specifications == nil {
						out.Specifications = map[string]string{"category": p.Category}
					}
					return &out, nil
				}
			}
			return nil, fmt.Errorf("product not found: %s", in.ProductID)
		},
	)
}

// DemoCatalog backs the catalog tools when no catalog is configured.
var DemoCatalog = []Product{
	{
		ID: "prod-001", Name: "iPhone 15 Pro", Category: "smartphones", Price: 999,
		Description: "Titanium smartphone with A17 Pro chip and 48MP camera",
		InStock:     true,
		Specifications: map[string]string{
			"display": "6.1-inch Super Retina XDR",
			"chip":    "A17 Pro",
			"storage": "128GB, 256GB, 512GB, 1TB",
		},
	},
	{
		ID: "prod-002", Name: "Samsung Galaxy S24 Ultra", Category: "smartphones", Price: 1199,
		Description: "Android smartphone with S Pen and 200MP camera",
		InStock:     true,
		Specifications: map[string]string{
			"display":   "6.8-inch Dynamic AMOLED 2X",
			"processor": "Snapdragon 8 Gen 3",
			"battery":   "5000mAh",
		},
	},
	{
		ID: "prod-003", Name: "MacBook Air M3", Category: "laptops", Price: 1099,
		Description: "Lightweight laptop with M3 chip and 18 hour battery",
		InStock:     false,
	},
	{
		ID: "prod-004", Name: "Sony WH-1000XM5", Category: "audio", Price: 399,
		Description: "Wireless noise cancelling headphones",
		InStock:     true,
	},
	{
		ID: "prod-005", Name: "Dell XPS 13", Category: "laptops", Price: 999,
		Description: "Compact ultrabook laptop with InfinityEdge display",
		InStock:     true,
	},
}
