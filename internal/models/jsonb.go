package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// PriceMap maps a size label to its price.
type PriceMap map[string]float64

// Cart maps product id -> size -> count.
type Cart map[int64]map[string]int

// OrderLines is the JSONB list of order item snapshots.
type OrderLines []OrderLineSnapshot

// ServiceAreas is the ordered JSONB list of delivery zones.
type ServiceAreas []ServiceArea

// StringList is a Postgres text[] column.
type StringList = pq.StringArray

func (m PriceMap) Value() (driver.Value, error) { return jsonValue(m) }

func (m *PriceMap) Scan(src interface{}) error { return jsonScan(src, m) }

func (c Cart) Value() (driver.Value, error) { return jsonValue(c) }

func (c *Cart) Scan(src interface{}) error { return jsonScan(src, c) }

func (l OrderLines) Value() (driver.Value, error) { return jsonValue(l) }

func (l *OrderLines) Scan(src interface{}) error { return jsonScan(src, l) }

func (a ServiceAreas) Value() (driver.Value, error) { return jsonValue(a) }

func (a *ServiceAreas) Scan(src interface{}) error { return jsonScan(src, a) }

func (a AddressSnapshot) Value() (driver.Value, error) { return jsonValue(a) }

func (a *AddressSnapshot) Scan(src interface{}) error { return jsonScan(src, a) }

func (c ChargeConfig) Value() (driver.Value, error) { return jsonValue(c) }

func (c *ChargeConfig) Scan(src interface{}) error { return jsonScan(src, c) }

func (r *Refund) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return jsonValue(r)
}

func (r *Refund) Scan(src interface{}) error { return jsonScan(src, r) }

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonb: marshal %T: %w", v, err)
	}
	// lib/pq sends []byte as bytea, jsonb columns need text.
	return string(b), nil
}

func jsonScan(src interface{}, dst interface{}) error {
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
