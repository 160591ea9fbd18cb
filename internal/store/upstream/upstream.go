package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"attn/backend/internal/domain"
)

const maxResponseBytes = 32 << 20

// Client reads the catalogue and order history from the store's REST
// backend. Every call fetches fresh data.
type Client struct {
	baseURL  string
	http     *http.Client
	location *time.Location
}

func New(baseURL string, timeout time.Duration, location *time.Location) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if location == nil {
		location = time.UTC
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:     &http.Client{Timeout: timeout},
		location: location,
	}
}

type productPayload struct {
	ID           flexString  `json:"id"`
	Name         string      `json:"name"`
	DisplayName  string      `json:"display_name"`
	Category     string      `json:"category"`
	Stock        flexInt     `json:"stock"`
	CostPrice    flexDecimal `json:"cost_price"`
	SellingPrice flexDecimal `json:"selling_price"`
	IsActive     *bool       `json:"is_active"`
}

type orderedItemPayload struct {
	Order        flexString  `json:"order"`
	ProductName  string      `json:"product_name"`
	Qty          flexInt     `json:"qty"`
	OrderDate    string      `json:"order_date"`
	SellingPrice flexDecimal `json:"selling_price"`
	CostPrice    flexDecimal `json:"cost_price"`
}

type orderPayload struct {
	OrderID   flexString `json:"order_id"`
	OrderDate string     `json:"order_date"`
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var payload []productPayload
	if err := c.getJSON(ctx, "/api/products/", &payload); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(payload))
	for _, p := range payload {
		if p.IsActive != nil && !*p.IsActive {
			continue
		}
		stock := int(p.Stock)
		if stock < 0 {
			stock = 0
		}
		products = append(products, domain.Product{
			ID:           string(p.ID),
			Name:         p.Name,
			DisplayName:  p.DisplayName,
			Category:     p.Category,
			Stock:        stock,
			CostPrice:    decimal.Decimal(p.CostPrice),
			SellingPrice: decimal.Decimal(p.SellingPrice),
			Active:       true,
		})
	}
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (c *Client) ListOrderLines(ctx context.Context) ([]domain.OrderLine, error) {
	lines, _, err := c.ListOrderHistory(ctx)
	return lines, err
}

// ListOrderHistory fetches ordered items and orders concurrently and returns
// the lines with the number of orders. Items without their own order date
// take the date of their order.
func (c *Client) ListOrderHistory(ctx context.Context) ([]domain.OrderLine, int, error) {
	var (
		items  []orderedItemPayload
		orders []orderPayload
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, "/api/ordereditem/", &items)
	})
	g.Go(func() error {
		return c.getJSON(gctx, "/api/orders/", &orders)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	dateByOrder := make(map[string]string, len(orders))
	for _, o := range orders {
		dateByOrder[string(o.OrderID)] = o.OrderDate
	}

	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		raw := strings.TrimSpace(item.OrderDate)
		if raw == "" {
			raw = strings.TrimSpace(dateByOrder[string(item.Order)])
		}
		line := domain.OrderLine{
			OrderID:      string(item.Order),
			ProductName:  item.ProductName,
			Qty:          max(int(item.Qty), 0),
			SellingPrice: decimal.Decimal(item.SellingPrice),
			CostPrice:    decimal.Decimal(item.CostPrice),
		}
		if raw != "" {
			if date, err := ParseDate(raw, c.location); err == nil {
				line.OrderDate = &date
			} else {
				log.Printf("[upstream] WARN: order %s has unreadable date %q", line.OrderID, raw)
			}
		}
		lines = append(lines, line)
	}
	return lines, len(orders), nil
}

func (c *Client) CountOrders(ctx context.Context) (int, error) {
	var orders []orderPayload
	if err := c.getJSON(ctx, "/api/orders/", &orders); err != nil {
		return 0, err
	}
	return len(orders), nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate accepts RFC3339 timestamps and zone-less date or date-time
// strings; the latter are read in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// flexInt decodes a JSON number or numeric string, truncating fractions.
// Anything else decodes to zero.
type flexInt int

func (v *flexInt) UnmarshalJSON(data []byte) error {
	*v = 0
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*v = flexInt(n)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*v = flexInt(int(f))
	}
	return nil
}

// flexDecimal decodes a JSON number or numeric string. Anything else decodes
// to zero.
type flexDecimal decimal.Decimal

func (v *flexDecimal) UnmarshalJSON(data []byte) error {
	*v = flexDecimal(decimal.Zero)
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if d, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
		*v = flexDecimal(d)
	}
	return nil
}

// flexString decodes identifiers that arrive as either numbers or strings.
type flexString string

func (v *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexString(s)
		return nil
	}
	*v = flexString(raw)
	return nil
}
