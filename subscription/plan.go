package subscription

import (
	"encoding/json"
	"fmt"
	"os"

	extErrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Plan describes a product sold through Google Play
type Plan struct {
	ID              string          `json:"id"`              // Local plan identifier stored on subscriptions
	Name            string          `json:"name"`            // Shown to the customer
	GoogleProductID string          `json:"googleProductId"` // Corresponds to the subscriptionId in notifications
	Price           decimal.Decimal `json:"price"`           // List price, used when Google does not report one
	Currency        string          `json:"currency"`        // The ISO currency code (e.g. SEK)
	Period          string          `json:"period"`          // ISO 8601 billing period (e.g. P1M)
	Retired         bool            `json:"retired"`         // Retired plans still resolve for existing purchases
}

// Catalog resolves Google product ids into plans
type Catalog struct {
	planArray         []Plan
	productIDIndexMap map[string]int
}

// loadPlansFromFile will read from the plan JSON file to define which Google products are known
func loadPlansFromFile(filename string) ([]Plan, error) {
	jsonBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot open plans JSON file")
	}
	plans := make([]Plan, 0, 1)
	if err := json.Unmarshal(jsonBytes, &plans); err != nil {
		return nil, extErrors.Wrap(err, "Invalid plan JSON file")
	}
	return plans, nil
}

func NewCatalogFromFile(filename string) (*Catalog, error) {
	plans, err := loadPlansFromFile(filename)
	if err != nil {
		return nil, err
	}
	return NewCatalog(plans)
}

func NewCatalog(plans []Plan) (*Catalog, error) {
	indexMap := make(map[string]int)
	for index, p := range plans {
		if len(p.ID) == 0 {
			return nil, fmt.Errorf("Plan at index %d has empty ID", index)
		}
		if len(p.GoogleProductID) == 0 {
			return nil, fmt.Errorf("Plan %s has empty GoogleProductID", p.ID)
		}
		if _, ok := indexMap[p.GoogleProductID]; ok {
			return nil, fmt.Errorf("GoogleProductID %s is defined more than once", p.GoogleProductID)
		}
		indexMap[p.GoogleProductID] = index + 1
	}
	return &Catalog{
		planArray:         plans,
		productIDIndexMap: indexMap,
	}, nil
}

func (c *Catalog) ListDefinedPlans() []Plan {
	return c.planArray
}

func (c *Catalog) GetByGoogleProductID(productID string) (Plan, bool) {
	index := c.productIDIndexMap[productID]
	if index == 0 {
		return Plan{}, false
	}
	return c.planArray[index-1], true
}

func (c *Catalog) GetByID(planID string) (Plan, bool) {
	for _, p := range c.planArray {
		if p.ID == planID {
			return p, true
		}
	}
	return Plan{}, false
}
