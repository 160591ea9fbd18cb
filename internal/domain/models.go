package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name,omitempty"`
	Category     string          `json:"category,omitempty"`
	Stock        int             `json:"stock"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Active       bool            `json:"active"`
}

// Label is the name shown to store staff and used to match order lines.
func (p Product) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// OrderLine is one sold item of an order. OrderDate is nil when the
// upstream record carried no usable date.
type OrderLine struct {
	OrderID      string          `json:"order_id"`
	ProductName  string          `json:"product_name"`
	Qty          int             `json:"qty"`
	OrderDate    *time.Time      `json:"order_date,omitempty"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
}

// Snapshot is a read-only view of the catalogue and order history taken at
// one point in time.
type Snapshot struct {
	Products   []Product
	OrderLines []OrderLine
	OrderCount int
}

type WeeklyTotal struct {
	Week  string  `json:"week"`
	Total float64 `json:"total"`
}

type ProductForecast struct {
	Product     string `json:"product"`
	ThisWeek    int    `json:"this_week"`
	NextWeek    int    `json:"next_week"`
	WeeksOfData int    `json:"weeks_of_data"`
}

type ProductSeries struct {
	Product       string        `json:"product"`
	Weeks         []WeeklyTotal `json:"weeks"`
	ThisWeek      int           `json:"this_week"`
	PredictedNext int           `json:"predicted_next_week"`
}

type RestockRecommendation struct {
	ProductID             string `json:"product_id"`
	ProductName           string `json:"product_name"`
	CurrentStock          int    `json:"current_stock"`
	PredictedWeeklyDemand int    `json:"predicted_weekly_demand"`
	DaysUntilStockout     *int   `json:"days_until_stockout"`
	SuggestedRestockQty   int    `json:"suggested_restock_qty"`
	Urgency               string `json:"urgency,omitempty"`
	Urgent                bool   `json:"urgent"`
	UrgencyMessage        string `json:"urgency_message,omitempty"`
}

type AggregationStats struct {
	Processed int        `json:"processed"`
	Skipped   int        `json:"skipped"`
	Weeks     int        `json:"weeks"`
	Earliest  *time.Time `json:"earliest,omitempty"`
	Latest    *time.Time `json:"latest,omitempty"`
}

type ForecastReport struct {
	GeneratedAt     string                  `json:"generated_at"`
	Stats           AggregationStats        `json:"stats"`
	Chart           []ProductForecast       `json:"chart"`
	Recommendations []RestockRecommendation `json:"recommendations"`
}

type RestockQuery struct {
	Search     string
	UrgentOnly bool
}

type RestockResponse struct {
	GeneratedAt     string                  `json:"generated_at"`
	Notifications   []string                `json:"notifications"`
	Recommendations []RestockRecommendation `json:"recommendations"`
}

type SalesSummary struct {
	Date                 string          `json:"date"`
	Products             int             `json:"products"`
	Orders               int             `json:"orders"`
	TodaySales           decimal.Decimal `json:"today_sales"`
	ThisMonthSales       decimal.Decimal `json:"this_month_sales"`
	LastMonthSales       decimal.Decimal `json:"last_month_sales"`
	MonthlyGrowthPercent decimal.Decimal `json:"monthly_growth_percent"`
}

type EwalletFeeQuote struct {
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
	Total  decimal.Decimal `json:"total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	UrgencyOutOfStock = "out_of_stock"
	UrgencyLowStock   = "low_stock"
)

const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)
