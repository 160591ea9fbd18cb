package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"attn/backend/internal/domain"
	"attn/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	orderLines      []domain.OrderLine
	orderIDs        map[string]struct{}
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD. If
// unset, dev defaults are used with a warning.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns a store holding exactly the given products and order lines and
// no users.
func New(products []domain.Product, lines []domain.OrderLine) *Store {
	s := &Store{
		products:        make(map[string]domain.Product, len(products)),
		orderLines:      make([]domain.OrderLine, 0, len(lines)),
		orderIDs:        make(map[string]struct{}),
		usersByUsername: make(map[string]domain.UserAccount),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	for _, line := range lines {
		s.appendLine(line)
	}
	return s
}

// NewSeeded returns a demo store with a small hardware catalogue and eight
// weeks of order history ending now.
func NewSeeded() *Store {
	return NewSeededAt(time.Now().UTC())
}

func NewSeededAt(now time.Time) *Store {
	products := []domain.Product{
		{ID: "1", Name: "Mighty Bond", Category: "adhesive", Stock: 12, CostPrice: decimal.RequireFromString("28.50"), SellingPrice: decimal.RequireFromString("35.00"), Active: true},
		{ID: "2", Name: "Duct Tape", Category: "adhesive", Stock: 0, CostPrice: decimal.RequireFromString("45.00"), SellingPrice: decimal.RequireFromString("60.00"), Active: true},
		{ID: "3", Name: "Concrete Nails 2in", DisplayName: "Concrete Nails", Category: "fasteners", Stock: 140, CostPrice: decimal.RequireFromString("1.20"), SellingPrice: decimal.RequireFromString("2.00"), Active: true},
		{ID: "4", Name: "Electrical Tape", Category: "electrical", Stock: 6, CostPrice: decimal.RequireFromString("18.00"), SellingPrice: decimal.RequireFromString("25.00"), Active: true},
		{ID: "5", Name: "Rugby Contact Cement", Category: "adhesive", Stock: 30, CostPrice: decimal.RequireFromString("52.00"), SellingPrice: decimal.RequireFromString("68.00"), Active: true},
		{ID: "6", Name: "Sandpaper #120", Category: "abrasives", Stock: 55, CostPrice: decimal.RequireFromString("8.00"), SellingPrice: decimal.RequireFromString("12.00"), Active: true},
	}

	weekly := map[string][]int{
		"Mighty Bond":          {14, 16, 15, 18, 20, 19, 22, 24},
		"Duct Tape":            {5, 6, 4, 7, 6, 8, 7, 9},
		"Concrete Nails":       {90, 85, 100, 95, 110, 105, 98, 102},
		"Electrical Tape":      {8, 9, 11, 10, 12, 13, 12, 14},
		"Rugby Contact Cement": {3, 2, 4, 3, 2, 3, 4, 3},
	}

	priceByName := make(map[string]domain.Product, len(products))
	for _, p := range products {
		priceByName[p.Label()] = p
	}

	names := make([]string, 0, len(weekly))
	for name := range weekly {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]domain.OrderLine, 0, 96)
	orderSeq := 0
	for week := 0; week < 8; week++ {
		weeksAgo := 7 - week
		for _, name := range names {
			qty := weekly[name][week]
			// Split each week's quantity over two orders a few days apart.
			first := qty / 2
			for i, part := range []int{first, qty - first} {
				if part < 1 {
					continue
				}
				orderSeq++
				orderDate := now.AddDate(0, 0, -7*weeksAgo-1-2*i)
				product := priceByName[name]
				lines = append(lines, domain.OrderLine{
					OrderID:      fmt.Sprintf("%d", 1000+orderSeq),
					ProductName:  name,
					Qty:          part,
					OrderDate:    &orderDate,
					SellingPrice: product.SellingPrice,
					CostPrice:    product.CostPrice,
				})
			}
		}
	}

	s := New(products, lines)
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) appendLine(line domain.OrderLine) {
	if line.OrderDate != nil {
		date := *line.OrderDate
		line.OrderDate = &date
	}
	s.orderLines = append(s.orderLines, line)
	if line.OrderID != "" {
		s.orderIDs[line.OrderID] = struct{}{}
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
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

func (s *Store) ListOrderLines(_ context.Context) ([]domain.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]domain.OrderLine, len(s.orderLines))
	for i, line := range s.orderLines {
		if line.OrderDate != nil {
			date := *line.OrderDate
			line.OrderDate = &date
		}
		lines[i] = line
	}
	return lines, nil
}

func (s *Store) CountOrders(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orderIDs), nil
}

// SetStock replaces a product's stock level.
func (s *Store) SetStock(_ context.Context, productID string, qty int) error {
	if qty < 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	product.Stock = qty
	s.products[productID] = product
	return nil
}

// AddOrderLines appends sold items to the history.
func (s *Store) AddOrderLines(_ context.Context, lines []domain.OrderLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		s.appendLine(line)
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
