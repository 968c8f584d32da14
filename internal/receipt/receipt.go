// Package receipt builds the printable order receipt for a cart.
package receipt

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/weiawesome/seedling-live/internal/domain"
)

// LineItem is one row of the receipt table. Money is integer VND.
type LineItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   int64
}

// LineTotal is Quantity × UnitPrice.
func (l LineItem) LineTotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// Input is everything the generator needs: ordered lines, the customer and the date.
type Input struct {
	Items        []LineItem
	CustomerName string
	Date         time.Time
}

// GrandTotal is the sum of all line totals.
func (in Input) GrandTotal() int64 {
	var t int64
	for _, it := range in.Items {
		t += it.LineTotal()
	}
	return t
}

// FromSnapshot builds a receipt input from a cart snapshot, keeping cart order.
func FromSnapshot(s domain.CartSnapshot, customer string, date time.Time) Input {
	items := make([]LineItem, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, LineItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return Input{Items: items, CustomerName: customer, Date: date}
}

// Generator renders an Input into a printable document.
type Generator interface {
	Generate(ctx context.Context, in Input, w io.Writer) error
	ContentType() string
}

// FormatDate renders t as D/M/YYYY.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// FormatMoney renders an amount with the VND suffix.
func FormatMoney(v int64) string {
	return fmt.Sprintf("%d VND", v)
}
