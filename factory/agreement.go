/*
Package factory converts JSON documents into collection types.

PURPOSE:
  Agreements and materials arrive as JSON from the HTTP API, the demo
  scenarios and the CLI. The factory is the single place that turns loose
  JSON (strings for enums, dates and times, numbers or strings for
  quantities) into validated collection values.

JSON SCHEMA:
  {
    "id": "agr-42",                      (optional, generated when empty)
    "requester_id": "household-7",
    "collector_id": "coop-3",
    "frequency": "weekly",               weekly | biweekly | monthly
    "days_of_week": ["monday"],
    "period": "morning",                 morning | afternoon | night
    "preferred_time": "09:00",           optional HH:MM
    "start_date": "2025-01-06",
    "materials": [
      {"type": "paper", "quantity": 5, "unit": "kg"}
    ]
  }

DEFAULTS:
  - A material without a unit takes the catalog's default unit
  - A missing period is derived from preferred_time

USAGE:
  f := factory.New(catalog.Default())
  agreement, err := f.ParseAgreement(body)

SEE ALSO:
  - collection/types.go: Agreement and Material
  - catalog/catalog.go: Material types and default units
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/collection-engine/catalog"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AgreementJSON is the JSON representation of a new agreement.
type AgreementJSON struct {
	ID            string         `json:"id,omitempty"`
	RequesterID   string         `json:"requester_id"`
	CollectorID   string         `json:"collector_id"`
	Frequency     string         `json:"frequency"`
	DaysOfWeek    []string       `json:"days_of_week,omitempty"`
	Period        string         `json:"period,omitempty"`
	PreferredTime string         `json:"preferred_time,omitempty"`
	StartDate     string         `json:"start_date"`
	Materials     []MaterialJSON `json:"materials,omitempty"`
}

// MaterialJSON is one material line. Quantity accepts 5, 5.5 or "5.5".
type MaterialJSON struct {
	Type     string      `json:"type"`
	Quantity json.Number `json:"quantity"`
	Unit     string      `json:"unit,omitempty"`
	Photos   []string    `json:"photos,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts JSON documents to collection values.
type Factory struct {
	Catalog *catalog.Catalog

	// StrictMaterials rejects material types missing from the catalog.
	StrictMaterials bool
}

// New creates a factory backed by cat. A nil catalog uses catalog.Default.
func New(cat *catalog.Catalog) *Factory {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Factory{Catalog: cat}
}

// ParseAgreement decodes and converts a JSON agreement.
func (f *Factory) ParseAgreement(data []byte) (collection.Agreement, error) {
	var aj AgreementJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return collection.Agreement{}, generic.Invalid("body", "invalid JSON: %v", err)
	}
	return f.Agreement(aj)
}

// Agreement converts aj into a pending agreement.
func (f *Factory) Agreement(aj AgreementJSON) (collection.Agreement, error) {
	freq := collection.Frequency(strings.ToLower(strings.TrimSpace(aj.Frequency)))
	if !freq.Valid() {
		return collection.Agreement{}, generic.Invalid("frequency", "must be weekly, biweekly or monthly, got %q", aj.Frequency)
	}

	start, err := generic.ParseDate(strings.TrimSpace(aj.StartDate))
	if err != nil {
		return collection.Agreement{}, generic.Invalid("start_date", "%v", err)
	}

	preferred := strings.TrimSpace(aj.PreferredTime)
	if preferred != "" && !collection.ValidTimeOfDay(preferred) {
		return collection.Agreement{}, generic.Invalid("preferred_time", "must be HH:MM, got %q", aj.PreferredTime)
	}

	period := collection.DayPeriod(strings.ToLower(strings.TrimSpace(aj.Period)))
	switch {
	case period == "" && preferred != "":
		period = collection.PeriodOf(preferred)
	case period == "":
		return collection.Agreement{}, generic.Invalid("period", "is required when preferred_time is empty")
	case !period.Valid():
		return collection.Agreement{}, generic.Invalid("period", "must be morning, afternoon or night, got %q", aj.Period)
	}

	days, err := ParseWeekdays(aj.DaysOfWeek)
	if err != nil {
		return collection.Agreement{}, err
	}

	materials, err := f.Materials(aj.Materials)
	if err != nil {
		return collection.Agreement{}, err
	}

	a := collection.Agreement{
		ID:                collection.AgreementID(strings.TrimSpace(aj.ID)),
		RequesterID:       generic.EntityID(strings.TrimSpace(aj.RequesterID)),
		CollectorID:       generic.EntityID(strings.TrimSpace(aj.CollectorID)),
		Frequency:         freq,
		DaysOfWeek:        days,
		Period:            period,
		PreferredTime:     preferred,
		StartDate:         start,
		Status:            collection.AgreementPending,
		MaterialsTemplate: materials,
	}
	if a.RequesterID == "" {
		return collection.Agreement{}, generic.Invalid("requester_id", "is required")
	}
	if a.CollectorID == "" {
		return collection.Agreement{}, generic.Invalid("collector_id", "is required")
	}
	return a, nil
}

// Materials converts material lines. An empty list is returned as nil;
// callers that need at least one material check for that themselves.
func (f *Factory) Materials(in []MaterialJSON) ([]collection.Material, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]collection.Material, len(in))
	for i, mj := range in {
		field := fmt.Sprintf("materials[%d]", i)

		typ := strings.TrimSpace(mj.Type)
		if typ == "" {
			return nil, generic.Invalid(field+".type", "is required")
		}
		if f.StrictMaterials {
			if _, ok := f.Catalog.Get(typ); !ok {
				return nil, generic.Invalid(field+".type", "unknown material %q", typ)
			}
		}

		unit := generic.Unit(strings.TrimSpace(mj.Unit))
		if unit == "" {
			unit = f.Catalog.UnitFor(typ)
		}
		qty, err := generic.ParseAmount(mj.Quantity.String(), unit)
		if err != nil {
			return nil, generic.Invalid(field+".quantity", "%v", err)
		}
		if !qty.IsPositive() {
			return nil, generic.Invalid(field+".quantity", "must be positive, got %s", qty.Value)
		}

		out[i] = collection.Material{Type: typ, Quantity: qty, Photos: append([]string(nil), mj.Photos...)}
	}
	return out, nil
}

// ParseWeekdays accepts English day names ("monday", "mon") or 0-6 with
// Sunday as 0.
func ParseWeekdays(in []string) ([]time.Weekday, error) {
	var out []time.Weekday
	for i, raw := range in {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, generic.Invalid(fmt.Sprintf("days_of_week[%d]", i), "unknown day %q", raw)
		}
		out = append(out, d)
	}
	return out, nil
}

var weekdayNames = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 21)
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		m[name] = d
		m[name[:3]] = d
		m[fmt.Sprint(int(d))] = d
	}
	return m
}()
