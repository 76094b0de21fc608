package notify

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

// displayDate is the DD/MM/YYYY format dealers expect in messages.
const displayDate = "02/01/2006"

// printer renders amounts with thousands separators (Rs.1,23,456 style
// grouping is not attempted; standard grouping matches the existing sheets).
var printer = message.NewPrinter(language.English)

// BillingMessage is the rendered message plus the addressing metadata the
// operator needs to send it.
type BillingMessage struct {
	DealerCode string    `json:"dealer_code"`
	DealerName string    `json:"dealer_name"`
	Date       time.Time `json:"date"`
	DueDate    time.Time `json:"due_date"`
	Body       string    `json:"body"`
}

// RenderBilling formats one dealer's invoices for a billing date. Each
// invoice is listed separately with its truck, because dealers reconcile
// against physical arrivals.
func RenderBilling(dealerCode string, date time.Time, invoices []billing.Event) BillingMessage {
	due := DueDate(date)
	var b strings.Builder
	fmt.Fprintf(&b, "*Billing Date:* %s\n\n*INVOICE DETAILS:*", date.Format(displayDate))

	var total float64
	dealerName := ""
	for _, inv := range invoices {
		if dealerName == "" {
			dealerName = inv.DealerName
		}
		fmt.Fprintf(&b, "\n\n*Truck:* %s", inv.VehicleNo)
		if inv.InvoiceNo != "" {
			fmt.Fprintf(&b, "\n*Invoice:* %s", inv.InvoiceNo)
		}
		totalBags := inv.Qty.Bags()
		for _, typ := range product.Types {
			bags := int(inv.Qty.Get(typ) * product.BagsPerUnit)
			if bags == 0 {
				continue
			}
			if totalBags > 0 && inv.TotalValue > 0 {
				perBag := inv.TotalValue / totalBags
				fmt.Fprintf(&b, "\n%s: %d bags @ %s/bag", typ, bags, printer.Sprintf("Rs.%.2f", perBag))
			} else {
				fmt.Fprintf(&b, "\n%s: %d bags", typ, bags)
			}
		}
		fmt.Fprintf(&b, "\n*Invoice Amount:* %s", printer.Sprintf("Rs.%.2f", inv.TotalValue))
		total += inv.TotalValue
	}

	fmt.Fprintf(&b, "\n\n*TOTAL AMOUNT:* %s\n*PAYMENT DUE DATE:* %s",
		printer.Sprintf("Rs.%.2f", total), due.Format(displayDate))

	return BillingMessage{
		DealerCode: dealerCode,
		DealerName: dealerName,
		Date:       date,
		DueDate:    due,
		Body:       b.String(),
	}
}

// unloadDate is the DD-MM-YYYY format the unloading summary uses. The
// billing message writes slashes; this one has always used dashes.
const unloadDate = "02-01-2006"

// UnloadingMessage is the rendered unloading-day summary for one dealer.
type UnloadingMessage struct {
	DealerCode string             `json:"dealer_code"`
	DealerName string             `json:"dealer_name"`
	Date       time.Time          `json:"date"`
	Closing    product.Quantities `json:"closing"`
	Body       string             `json:"body"`
}

// bagParts renders the non-zero per-type quantities as bags. Negative bags
// are skipped unless withNegative is set; balance sections show them, the
// per-truck breakdown cannot have them.
func bagParts(q product.Quantities, withNegative bool) string {
	var parts []string
	for _, typ := range product.Types {
		bags := int(q.Get(typ) * product.BagsPerUnit)
		if bags == 0 || (bags < 0 && !withNegative) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", typ, bags))
	}
	return strings.Join(parts, ", ")
}

// RenderUnloading formats a dealer's deliveries for one day followed by the
// day's material balance: opening plus billed minus unloaded, all in bags.
// A negative closing is shown as-is so the dealer sees the discrepancy.
func RenderUnloading(dealerCode, dealerName string, date time.Time, deliveries []unloading.Event, opening, billed product.Quantities) UnloadingMessage {
	var unloaded product.Quantities
	for _, e := range deliveries {
		unloaded = unloaded.Add(e.Qty)
	}
	closing := opening.Add(billed).Sub(unloaded)

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n*Date:* %s\n", dealerName, date.Format(unloadDate))

	b.WriteString("\n*Today's Unloading:*\n")
	for _, e := range deliveries {
		fmt.Fprintf(&b, "\n*Truck:* %s", e.VehicleNo)
		if e.DeliveryPoint != "" {
			fmt.Fprintf(&b, "\n*Point:* %s", e.DeliveryPoint)
		}
		if parts := bagParts(e.Qty, false); parts != "" {
			fmt.Fprintf(&b, "\n%s", parts)
		}
		fmt.Fprintf(&b, "\n*Total: %d bags*\n", int(e.Qty.Bags()))
	}
	fmt.Fprintf(&b, "\n*Total Unloaded: %d bags*\n", int(unloaded.Bags()))

	b.WriteString("\n*Material Balance:*\n")

	b.WriteString("\n*Opening Balance:*\n")
	if parts := bagParts(opening, true); parts != "" {
		fmt.Fprintf(&b, "  %s bags\n", parts)
	} else {
		b.WriteString("  No opening balance\n")
	}

	b.WriteString("\n*Today's Billing (+):*\n")
	if parts := bagParts(billed, true); parts != "" {
		fmt.Fprintf(&b, "  %s bags\n", parts)
	} else {
		b.WriteString("  No billing today\n")
	}

	b.WriteString("\n*Today's Unloading (-):*\n")
	if parts := bagParts(unloaded, true); parts != "" {
		fmt.Fprintf(&b, "  %s bags\n", parts)
	}

	b.WriteString("\n*Closing Balance:*\n")
	if parts := bagParts(closing, true); parts != "" {
		fmt.Fprintf(&b, "  %s bags", parts)
	} else {
		b.WriteString("  No pending balance")
	}

	return UnloadingMessage{
		DealerCode: dealerCode,
		DealerName: dealerName,
		Date:       date,
		Closing:    closing,
		Body:       b.String(),
	}
}

// ReminderMessage is a rendered payment reminder.
type ReminderMessage struct {
	DealerCode  string    `json:"dealer_code"`
	DealerName  string    `json:"dealer_name"`
	BalanceDate time.Time `json:"balance_date"`
	Outstanding float64   `json:"outstanding"`
	Body        string    `json:"body"`
}

// RenderReminder formats a payment reminder quoting the balance as of the
// matching collection day.
func RenderReminder(dealerCode, dealerName string, reminderDate time.Time, outstanding float64) ReminderMessage {
	balanceDate := BalanceDateForReminder(reminderDate, DueWorkingDays)
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", dealerName)
	fmt.Fprintf(&b, "*Outstanding as of %s:* %s\n",
		balanceDate.Format(displayDate), printer.Sprintf("Rs.%.2f", outstanding))
	fmt.Fprintf(&b, "Kindly arrange payment by %s.\n\nThank you.", reminderDate.Format(displayDate))
	return ReminderMessage{
		DealerCode:  dealerCode,
		DealerName:  dealerName,
		BalanceDate: balanceDate,
		Outstanding: outstanding,
		Body:        b.String(),
	}
}
