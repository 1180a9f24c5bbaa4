package seo

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/creco/imaikura/internal/inflation"
)

//go:embed routes.yaml
var defaultPlan []byte

// Route is one page of the site
type Route struct {
	Year     int
	Currency string
	Amount   string
	Priority float64
	Group    string // label of the plan group that produced it
}

// Path returns /{year}/{currency}/{amount}
func (r Route) Path() string {
	return fmt.Sprintf("/%d/%s/%s", r.Year, r.Currency, r.Amount)
}

// Request returns the raw calculation request behind the page
func (r Route) Request() inflation.Request {
	return inflation.Request{Year: strconv.Itoa(r.Year), Currency: r.Currency, Amount: r.Amount}
}

// RouteSpec is a single route in the plan file
type RouteSpec struct {
	Year     int     `yaml:"year"`
	Currency string  `yaml:"currency"`
	Amount   float64 `yaml:"amount"`
}

// YearlySpec repeats targets for every year in [From, To]
type YearlySpec struct {
	From    int `yaml:"from"`
	To      int `yaml:"to"`
	Targets []struct {
		Currency string  `yaml:"currency"`
		Amount   float64 `yaml:"amount"`
	} `yaml:"targets"`
}

// SystematicSpec emits each currency's amounts every Step years up to To
type SystematicSpec struct {
	To         int `yaml:"to"`
	Step       int `yaml:"step"`
	Currencies []struct {
		Currency string    `yaml:"currency"`
		From     int       `yaml:"from"`
		Amounts  []float64 `yaml:"amounts"`
	} `yaml:"currencies"`
}

// Group is a set of routes sharing a priority
type Group struct {
	Name       string          `yaml:"name"`
	Label      string          `yaml:"label"`
	Priority   float64         `yaml:"priority"`
	Routes     []RouteSpec     `yaml:"routes"`
	Yearly     *YearlySpec     `yaml:"yearly"`
	Systematic *SystematicSpec `yaml:"systematic"`
}

// Plan lists the page groups in priority order
// ⭐ SSOT: サイトマップ・プリレンダー対象ルートはここだけ
type Plan struct {
	Groups []Group `yaml:"groups"`
}

// DefaultPlan returns the embedded route plan
func DefaultPlan() (*Plan, error) {
	return ParsePlan(defaultPlan)
}

// LoadPlan reads a plan file, or the embedded plan when path is empty
func LoadPlan(path string) (*Plan, error) {
	if path == "" {
		return DefaultPlan()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and checks a YAML plan
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 未知のキーはエラー
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse route plan: %w", err)
	}

	for _, g := range p.Groups {
		if g.Priority <= 0 || g.Priority > 1 {
			return nil, fmt.Errorf("group %s: priority must be in (0, 1]", g.Name)
		}
		if g.Systematic != nil && g.Systematic.Step <= 0 {
			return nil, fmt.Errorf("group %s: systematic step must be positive", g.Name)
		}
		for _, spec := range g.expand() {
			if !inflation.ValidateCurrency(spec.Currency) {
				return nil, fmt.Errorf("group %s: unsupported currency %q", g.Name, spec.Currency)
			}
			if !inflation.ValidateAmount(formatAmount(spec.Amount)) {
				return nil, fmt.Errorf("group %s: invalid amount %v", g.Name, spec.Amount)
			}
		}
	}

	return &p, nil
}

func (g Group) expand() []RouteSpec {
	specs := append([]RouteSpec(nil), g.Routes...)

	if y := g.Yearly; y != nil {
		for _, target := range y.Targets {
			for year := y.From; year <= y.To; year++ {
				specs = append(specs, RouteSpec{Year: year, Currency: target.Currency, Amount: target.Amount})
			}
		}
	}

	if s := g.Systematic; s != nil && s.Step > 0 {
		for _, c := range s.Currencies {
			for year := c.From; year <= s.To; year += s.Step {
				for _, amount := range c.Amounts {
					specs = append(specs, RouteSpec{Year: year, Currency: c.Currency, Amount: amount})
				}
			}
		}
	}

	return specs
}

// Routes expands the plan in group order, keeping the first occurrence of
// each path and only routes whose year and currency have CPI data.
func (p *Plan) Routes(table *inflation.CpiTable) []Route {
	seen := make(map[string]bool)
	var routes []Route

	for _, g := range p.Groups {
		for _, spec := range g.expand() {
			r := Route{
				Year:     spec.Year,
				Currency: spec.Currency,
				Amount:   formatAmount(spec.Amount),
				Priority: g.Priority,
				Group:    g.Label,
			}
			key := r.Path()
			if seen[key] || !table.HasData(strconv.Itoa(r.Year), r.Currency) {
				continue
			}
			seen[key] = true
			routes = append(routes, r)
		}
	}

	return routes
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
