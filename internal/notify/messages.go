package notify

import (
	"fmt"
	"strings"

	"qms/counter-service/internal/models"

	"github.com/shopspring/decimal"
)

const (
	templateAdminNewOrder    = "admin_new_order"
	templateCustomerNewOrder = "customer_new_order"
	templateStatusChange     = "status_change"
)

var templates = map[string]map[string]string{
	"en": {
		templateAdminNewOrder:    "New order {ticket} ({customer}): {items}. Total {total}.",
		templateCustomerNewOrder: "Hi {customer}! Your order {ticket} was received. Total {total}.",
		templateStatusChange:     "Your order {ticket} {phrase}",
	},
	"pt": {
		templateAdminNewOrder:    "Novo pedido {ticket} ({customer}): {items}. Total {total}.",
		templateCustomerNewOrder: "Olá {customer}! Seu pedido {ticket} foi recebido. Total {total}.",
		templateStatusChange:     "Seu pedido {ticket} {phrase}",
	},
}

var statusPhrases = map[string]map[string]string{
	"en": {
		models.StatusReceived:  "was received.",
		models.StatusPreparing: "is being prepared.",
		models.StatusReady:     "is ready for pickup!",
		models.StatusDelivered: "was delivered. Enjoy!",
		models.StatusCancelled: "was cancelled.",
	},
	"pt": {
		models.StatusReceived:  "foi recebido.",
		models.StatusPreparing: "está em preparo.",
		models.StatusReady:     "está pronto para retirada!",
		models.StatusDelivered: "foi entregue. Bom apetite!",
		models.StatusCancelled: "foi cancelado.",
	},
}

func normalizeLang(lang string) string {
	if _, ok := templates[lang]; ok {
		return lang
	}
	return "en"
}

// StatusPhrase maps a status to the human readable tail of a status message.
func StatusPhrase(lang, status string) string {
	if phrase, ok := statusPhrases[normalizeLang(lang)][status]; ok {
		return phrase
	}
	return "is now " + strings.ReplaceAll(status, "_", " ") + "."
}

func renderTemplate(template string, order models.OrderTicket, phrase string) string {
	customer := order.CustomerName
	if customer == "" {
		customer = "-"
	}
	replacer := strings.NewReplacer(
		"{ticket}", order.Ticket,
		"{customer}", customer,
		"{items}", formatItems(order.Items),
		"{total}", formatMoney(order.Total),
		"{phrase}", phrase,
	)
	return replacer.Replace(template)
}

func renderMessage(lang, templateID string, order models.OrderTicket, phrase string) string {
	return renderTemplate(templates[normalizeLang(lang)][templateID], order, phrase)
}

func formatItems(items []models.OrderItem) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		part := fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		if item.Notes != "" {
			part += " (" + item.Notes + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func formatMoney(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(2)
}
