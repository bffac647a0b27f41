package types

import (
	"encoding/json"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. One row is written
// per order lifecycle event.
type OrderEventRow struct {
	EventID          string             `bigquery:"event_id"`
	EventType        string             `bigquery:"event_type"`
	OccurredAt       time.Time          `bigquery:"occurred_at"`
	OrderID          string             `bigquery:"order_id"`
	OrderNumber      string             `bigquery:"order_number"`
	UserID           string             `bigquery:"user_id"`
	Status           string             `bigquery:"status"`
	PreviousStatus   *string            `bigquery:"previous_status"`
	PaymentStatus    string             `bigquery:"payment_status"`
	PaymentMethod    *string            `bigquery:"payment_method"`
	ItemCount        *int64             `bigquery:"item_count"`
	SubtotalCents    *int64             `bigquery:"subtotal_cents"`
	DeliveryFeeCents *int64             `bigquery:"delivery_fee_cents"`
	TaxCents         *int64             `bigquery:"tax_cents"`
	DiscountCents    *int64             `bigquery:"discount_cents"`
	TotalCents       int64              `bigquery:"total_cents"`
	CouponCode       *string            `bigquery:"coupon_code"`
	Payload          cbigquery.NullJSON `bigquery:"payload"`
}

// Saver wraps the row so BigQuery de-duplicates retried inserts on event id.
func (r *OrderEventRow) Saver() *cbigquery.StructSaver {
	return &cbigquery.StructSaver{Struct: r, InsertID: r.EventID}
}

// OrderEventSchema is the order_events table layout, partitioned on occurred_at.
var OrderEventSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "order_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "order_number", Type: cbigquery.StringFieldType},
	{Name: "user_id", Type: cbigquery.StringFieldType},
	{Name: "status", Type: cbigquery.StringFieldType},
	{Name: "previous_status", Type: cbigquery.StringFieldType},
	{Name: "payment_status", Type: cbigquery.StringFieldType},
	{Name: "payment_method", Type: cbigquery.StringFieldType},
	{Name: "item_count", Type: cbigquery.IntegerFieldType},
	{Name: "subtotal_cents", Type: cbigquery.IntegerFieldType},
	{Name: "delivery_fee_cents", Type: cbigquery.IntegerFieldType},
	{Name: "tax_cents", Type: cbigquery.IntegerFieldType},
	{Name: "discount_cents", Type: cbigquery.IntegerFieldType},
	{Name: "total_cents", Type: cbigquery.IntegerFieldType},
	{Name: "coupon_code", Type: cbigquery.StringFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}

// JSONColumn renders v for a JSON column. Nil and empty raw input map to NULL.
func JSONColumn(v any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := v.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("encode json column: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{JSONVal: string(raw), Valid: true}, nil
}
