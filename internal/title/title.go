// Package title derives a human-readable transcript title from the user
// prompt. Derivation is deterministic: the same (prompt, databaseType)
// pair always yields the same title.
package title

import (
	"strings"
	"unicode"
)

// Domain is one recognized problem domain. Keywords are matched against
// the prompt's tokens; Entities seed the synthesized schema content.
type Domain struct {
	Label    string
	Keywords []string
	Entities []string
}

// domains is an ordered match table; the first domain with any keyword
// hit wins, so more specific domains come before broader ones.
var domains = []Domain{
	{
		Label:    "E-commerce Platform",
		Keywords: []string{"shop", "store", "cart", "product", "inventory", "ecommerce", "commerce", "order", "checkout", "catalog"},
		Entities: []string{"users", "products", "categories", "carts", "cart_items", "orders", "order_items", "payments"},
	},
	{
		Label:    "Blog Platform",
		Keywords: []string{"blog", "post", "article", "cms", "comment", "publish"},
		Entities: []string{"authors", "posts", "comments", "tags", "post_tags"},
	},
	{
		Label:    "Social Network",
		Keywords: []string{"social", "friend", "follow", "feed", "like", "message", "chat", "profile"},
		Entities: []string{"users", "profiles", "follows", "posts", "likes", "messages"},
	},
	{
		Label:    "Booking System",
		Keywords: []string{"booking", "reservation", "appointment", "calendar", "event", "venue"},
		Entities: []string{"customers", "resources", "time_slots", "bookings", "cancellations"},
	},
	{
		Label:    "Finance Tracker",
		Keywords: []string{"bank", "payment", "invoice", "expense", "budget", "transaction", "wallet", "finance"},
		Entities: []string{"accounts", "transactions", "categories", "budgets", "recurring_rules"},
	},
	{
		Label:    "Healthcare Management System",
		Keywords: []string{"patient", "doctor", "clinic", "hospital", "medical", "prescription"},
		Entities: []string{"patients", "practitioners", "appointments", "visits", "prescriptions"},
	},
	{
		Label:    "Learning Management System",
		Keywords: []string{"course", "student", "teacher", "school", "classroom", "lesson", "curriculum", "enrollment"},
		Entities: []string{"students", "instructors", "courses", "enrollments", "lessons", "grades"},
	},
	{
		Label:    "Library Management System",
		Keywords: []string{"library", "book", "borrow", "loan", "librarian"},
		Entities: []string{"members", "books", "copies", "loans", "reservations"},
	},
	{
		Label:    "Logistics Management System",
		Keywords: []string{"shipment", "delivery", "warehouse", "fleet", "logistics", "courier"},
		Entities: []string{"warehouses", "shipments", "packages", "routes", "drivers"},
	},
	{
		Label:    "Real Estate Platform",
		Keywords: []string{"property", "listing", "tenant", "lease", "rent", "landlord"},
		Entities: []string{"properties", "listings", "agents", "tenants", "leases"},
	},
	{
		Label:    "HR Management System",
		Keywords: []string{"employee", "payroll", "recruitment", "staff", "onboarding"},
		Entities: []string{"employees", "departments", "positions", "payroll_runs", "leave_requests"},
	},
	{
		Label:    "Fitness Tracker",
		Keywords: []string{"workout", "fitness", "exercise", "gym", "training"},
		Entities: []string{"athletes", "workouts", "exercises", "workout_sets", "goals"},
	},
	{
		Label:    "Restaurant Management System",
		Keywords: []string{"restaurant", "menu", "recipe", "food", "dish", "kitchen"},
		Entities: []string{"restaurants", "menus", "menu_items", "tables", "reservations", "orders"},
	},
	{
		Label:    "Project Management Tool",
		Keywords: []string{"task", "project", "kanban", "ticket", "todo", "sprint", "milestone"},
		Entities: []string{"projects", "tasks", "labels", "assignments", "comments"},
	},
	{
		Label:    "IoT Telemetry Platform",
		Keywords: []string{"sensor", "device", "telemetry", "iot", "reading"},
		Entities: []string{"devices", "sensors", "readings", "alerts", "firmware_versions"},
	},
	{
		Label:    "Analytics Platform",
		Keywords: []string{"analytics", "metric", "dashboard", "report", "kpi"},
		Entities: []string{"datasets", "metrics", "dashboards", "reports", "alerts"},
	},
}

// stopwords are too generic to serve as fallback title words.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true, "your": true,
	"i": true, "we": true, "me": true, "it": true, "its": true,
	"and": true, "or": true, "for": true, "with": true, "to": true, "of": true,
	"in": true, "on": true, "at": true, "by": true, "from": true, "into": true,
	"that": true, "this": true, "which": true, "where": true, "using": true,
	"build": true, "create": true, "make": true, "design": true, "develop": true,
	"track": true, "manage": true, "want": true, "need": true, "please": true,
	"database": true, "db": true, "schema": true, "table": true, "tables": true,
	"system": true, "app": true, "application": true, "website": true,
	"site": true, "platform": true, "tool": true, "service": true,
	"new": true, "simple": true, "basic": true, "small": true, "online": true,
	"data": true, "some": true, "all": true,
}

// Classify matches the prompt against the domain table. The boolean is
// false when no domain keyword appears in the prompt.
func Classify(prompt string) (Domain, bool) {
	tokens := tokenize(prompt)
	for _, d := range domains {
		for _, kw := range d.Keywords {
			for _, tok := range tokens {
				if tok == kw || singular(tok) == kw {
					return d, true
				}
			}
		}
	}
	return Domain{}, false
}

// Derive produces the transcript title. A domain match yields
// "<Label> (<databaseType>)"; otherwise the first two meaningful prompt
// words are titlecased; an empty result falls back to
// "<databaseType> Database Design".
func Derive(prompt, databaseType string) string {
	if d, ok := Classify(prompt); ok {
		return d.Label + " (" + databaseType + ")"
	}

	var words []string
	for _, tok := range tokenize(prompt) {
		if stopwords[tok] {
			continue
		}
		words = append(words, titlecase(tok))
		if len(words) == 2 {
			break
		}
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}
	return databaseType + " Database Design"
}

// tokenize lowercases the prompt and splits it on anything that is not a
// letter or digit.
func tokenize(prompt string) []string {
	return strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// singular trims a plural "s" so "carts" matches the keyword "cart".
// Short tokens are left alone to avoid mangling words like "gas".
func singular(tok string) string {
	if len(tok) > 3 && strings.HasSuffix(tok, "s") {
		return strings.TrimSuffix(tok, "s")
	}
	return tok
}

func titlecase(tok string) string {
	r := []rune(tok)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
