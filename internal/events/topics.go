package events

// Topic constants for domain events emitted by the platform.
const (
	TopicShipmentCreated       = "shipment.created"
	TopicShipmentQuoted        = "shipment.quoted"
	TopicShipmentStatusChanged = "shipment.status_changed"
	TopicInvoiceIssued         = "invoice.issued"
	TopicPaymentIntentCreated  = "payment.intent_created"
	TopicPaymentConfirmed      = "payment.confirmed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicShipmentCreated,
		TopicShipmentQuoted,
		TopicShipmentStatusChanged,
		TopicInvoiceIssued,
		TopicPaymentIntentCreated,
		TopicPaymentConfirmed,
	}
}
