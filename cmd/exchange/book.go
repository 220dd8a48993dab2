package main

import (
	"io"
	"strconv"
	"time"

	"exchange_go/internal/domain"

	"github.com/olekukonko/tablewriter"
)

// printBook renders the open order book, bids first.
func printBook(w io.Writer, symbol string, orders []domain.Order) {
	writer := tablewriter.NewWriter(w)
	writer.SetHeader([]string{"ID", "account", "side", "price", "amount", "notional", "time"})
	for _, o := range orders {
		notional, err := o.Notional()
		cell := notional.String()
		if err != nil {
			cell = "overflow"
		}
		writer.Append([]string{
			strconv.FormatUint(o.ID, 10),
			strconv.FormatUint(o.AccountID, 10),
			string(o.Side),
			o.Price.String(),
			o.Quantity.String(),
			cell,
			o.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.SetCaption(true, symbol+" open orders")
	writer.Render()
}
