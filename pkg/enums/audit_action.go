package enums

// AuditAction labels an entry in the payment audit trail.
type AuditAction string

const (
	AuditActionPaymentCreated   AuditAction = "payment_created"
	AuditActionStatusChanged    AuditAction = "status_changed"
	AuditActionRefundRecorded   AuditAction = "refund_recorded"
	AuditActionWebhookAccepted  AuditAction = "webhook_accepted"
	AuditActionWebhookDuplicate AuditAction = "webhook_duplicate"
	AuditActionWebhookRejected  AuditAction = "webhook_rejected"
	AuditActionFulfilmentSkip   AuditAction = "fulfilment_skipped"
)

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}
