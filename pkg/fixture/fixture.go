// Package fixture generates random test data and validates common field formats.
package fixture

import (
	"fmt"
	"math/rand/v2"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a postal address of a generated user.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// User is a generated account used for seeding.
// ID is assigned by the backend after creation.
type User struct {
	ID          int       `json:"id,omitempty"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	Phone       string    `json:"phone"`
	Address     Address   `json:"address"`
	DateOfBirth time.Time `json:"dateOfBirth"`
}

// Product is a generated catalog item.
type Product struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	SKU         string   `json:"sku"`
	InStock     bool     `json:"inStock"`
	Quantity    int      `json:"quantity"`
	Images      []string `json:"images"`
}

// OrderItem is a line of a generated order.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a generated order.
type Order struct {
	OrderID       string      `json:"orderId"`
	CustomerEmail string      `json:"customerEmail"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// OrderStatuses lists the statuses a generated order can have.
var OrderStatuses = []string{"pending", "processing", "shipped", "delivered", "cancelled"}

var (
	firstNames  = []string{"Ayesha", "Rahim", "Nadia", "Karim", "Farhana", "Tanvir", "Sadia", "Imran", "Mitu", "Arif"}
	lastNames   = []string{"Rahman", "Hossain", "Ahmed", "Islam", "Chowdhury", "Khan", "Akter", "Sarkar", "Das", "Roy"}
	cities      = []string{"Dhaka", "Chattogram", "Sylhet", "Khulna", "Rajshahi", "Barishal", "Cox's Bazar"}
	states      = []string{"Dhaka Division", "Chattogram Division", "Sylhet Division", "Khulna Division"}
	streets     = []string{"Road", "Lane", "Avenue", "Street"}
	adjectives  = []string{"Compact", "Rustic", "Sleek", "Durable", "Handmade", "Ergonomic"}
	materials   = []string{"Cotton", "Steel", "Wooden", "Leather", "Bamboo", "Granite"}
	items       = []string{"Bag", "Chair", "Lamp", "Wallet", "Bottle", "Keyboard"}
	departments = []string{"Travel", "Outdoors", "Home", "Electronics", "Books"}
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func pick(list []string) string { return list[rand.IntN(len(list))] } //nolint:gosec // test data

// RandomString returns n random alphanumeric characters.
func RandomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))]) //nolint:gosec // test data
	}
	return b.String()
}

// RandomEmail returns a unique address in the example.com domain.
func RandomEmail() string {
	return fmt.Sprintf("test_%d_%s@example.com", time.Now().UnixMilli(), strings.ToLower(RandomString(6)))
}

// RandomPhone returns a phone number in ###-###-#### form.
func RandomPhone() string {
	return fmt.Sprintf("%03d-%03d-%04d", rand.IntN(1000), rand.IntN(1000), rand.IntN(10000)) //nolint:gosec // test data
}

func price(lo, hi float64) float64 {
	p := lo + rand.Float64()*(hi-lo) //nolint:gosec // test data
	return float64(int(p*100)) / 100
}

// NewUser generates a user with random personal data.
func NewUser() User {
	first, last := pick(firstNames), pick(lastNames)
	username := strings.ToLower(first) + "_" + strings.ToLower(RandomString(4))
	return User{
		FirstName: first,
		LastName:  last,
		Name:      first + " " + last,
		Username:  username,
		Email:     username + "@example.com",
		Password:  RandomString(12),
		Phone:     RandomPhone(),
		Address: Address{
			Street:  fmt.Sprintf("%d %s %s", rand.IntN(900)+1, pick(lastNames), pick(streets)), //nolint:gosec // test data
			City:    pick(cities),
			State:   pick(states),
			ZipCode: fmt.Sprintf("%04d", rand.IntN(10000)), //nolint:gosec // test data
			Country: "Bangladesh",
		},
		DateOfBirth: time.Now().AddDate(-18-rand.IntN(30), -rand.IntN(12), -rand.IntN(28)).Truncate(24 * time.Hour), //nolint:gosec // test data
	}
}

// NewProduct generates a catalog item.
func NewProduct() Product {
	name := pick(adjectives) + " " + pick(materials) + " " + pick(items)
	images := make([]string, 3)
	for i := range images {
		images[i] = "https://picsum.photos/seed/" + uuid.NewString() + "/640/480"
	}
	return Product{
		Name:        name,
		Description: "The " + strings.ToLower(name) + " for everyday travel.",
		Price:       price(1, 1000),
		Category:    pick(departments),
		SKU:         strings.ToUpper(RandomString(10)),
		InStock:     rand.IntN(2) == 1, //nolint:gosec // test data
		Quantity:    rand.IntN(101),    //nolint:gosec // test data
		Images:      images,
	}
}

// NewOrder generates an order with 1-5 items.
func NewOrder() Order {
	n := rand.IntN(5) + 1 //nolint:gosec // test data
	orderItems := make([]OrderItem, n)
	for i := range orderItems {
		orderItems[i] = OrderItem{
			ProductID: uuid.NewString(),
			Quantity:  rand.IntN(10) + 1, //nolint:gosec // test data
			Price:     price(1, 1000),
		}
	}
	return Order{
		OrderID:       uuid.NewString(),
		CustomerEmail: RandomEmail(),
		Items:         orderItems,
		Total:         price(100, 1000),
		Status:        pick(OrderStatuses),
		CreatedAt:     time.Now().Add(-time.Duration(rand.IntN(72)) * time.Hour), //nolint:gosec // test data
	}
}

var phoneRe = regexp.MustCompile(`^[\d\s\-+()]+$`)

// IsValidEmail checks for a bare address with a dotted domain.
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return strings.Contains(s[at+1:], ".")
}

// IsValidPhone accepts digits, spaces, dashes, plus and parentheses.
func IsValidPhone(s string) bool { return phoneRe.MatchString(s) }

// IsValidURL accepts absolute URLs with scheme and host.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// FormatDate formats t using a YYYY/MM/DD pattern, e.g. "YYYY-MM-DD" or "DD.MM.YYYY".
func FormatDate(t time.Time, pattern string) string {
	if pattern == "" {
		pattern = "YYYY-MM-DD"
	}
	r := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", t.Year()),
		"MM", fmt.Sprintf("%02d", int(t.Month())),
		"DD", fmt.Sprintf("%02d", t.Day()),
	)
	return r.Replace(pattern)
}

// AddDays returns t shifted by days calendar days.
func AddDays(t time.Time, days int) time.Time { return t.AddDate(0, 0, days) }
