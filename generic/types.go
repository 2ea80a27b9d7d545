/*
Package generic provides the domain-agnostic building blocks of the asset engine.

PURPOSE:
  Calendar dates, usage quantities, reporting periods, error sentinels and the
  append-only audit log live here. The maintenance package builds projection,
  reconciliation and work-order logic on top of them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: A usage amount with a unit (e.g., 45000 km, 1200 hours)
  - UsageUnit: Label only. No conversion between units is ever performed.
  - Typed identifiers for assets, plans, events and work orders

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so odometer arithmetic never drifts
  2. Type Safety: Strong typing for IDs prevents mixing event/work order IDs
  3. Purity: Nothing in this package reads the wall clock except Today()

USAGE:
  q := generic.NewQuantityFromInt(45000, generic.UnitKilometers)
  next := q.Add(generic.NewQuantityFromInt(10000, generic.UnitKilometers))
  fmt.Println(next) // 55,000 km

SEE ALSO:
  - time.go: TimePoint and date arithmetic
  - period.go: Reporting windows
  - audit.go: Work order audit trail
*/
package generic

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Usage amount with unit
// =============================================================================

type Quantity struct {
	Value decimal.Decimal
	Unit  UsageUnit
}

// UsageUnit labels what an asset's counter measures.
type UsageUnit string

const (
	UnitKilometers UsageUnit = "km"
	UnitHours      UsageUnit = "hours"
)

// Valid reports whether u is a known unit.
func (u UsageUnit) Valid() bool {
	return u == UnitKilometers || u == UnitHours
}

// Label is the unit as shown in titles. Unset units read as km.
func (u UsageUnit) Label() string {
	if u == "" {
		return string(UnitKilometers)
	}
	return string(u)
}

func NewQuantity(value decimal.Decimal, unit UsageUnit) Quantity {
	return Quantity{Value: value, Unit: unit}
}

func NewQuantityFromInt(value int64, unit UsageUnit) Quantity {
	return Quantity{Value: decimal.NewFromInt(value), Unit: unit}
}

func (q Quantity) Add(b Quantity) Quantity { return Quantity{Value: q.Value.Add(b.Value), Unit: q.Unit} }
func (q Quantity) Sub(b Quantity) Quantity { return Quantity{Value: q.Value.Sub(b.Value), Unit: q.Unit} }
func (q Quantity) IsNegative() bool         { return q.Value.IsNegative() }

// String renders "55,000 km" or "1,250.5 hours".
func (q Quantity) String() string {
	if q.Value.Equal(q.Value.Truncate(0)) {
		return humanize.Comma(q.Value.IntPart()) + " " + q.Unit.Label()
	}
	f, _ := q.Value.Float64()
	return humanize.CommafWithDigits(f, 2) + " " + q.Unit.Label()
}

// CeilDiv returns ceil(a / b) as whole days. a must be >= 0 and b positive.
// Any remainder, however small, adds a day.
func CeilDiv(a, b decimal.Decimal) int {
	q, r := a.QuoRem(b, 0)
	n := int(q.IntPart())
	if r.IsPositive() {
		n++
	}
	return n
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssetID string
type PlanID string
type EventID string
type WorkOrderID string
