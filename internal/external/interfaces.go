package external

// WebhookVerifier validates the authenticity of an incoming webhook payload
// against its signature header and signing secret.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// EventCheckoutCompleted is the payment provider event that grants the pro
// entitlement. All other event types are acknowledged and ignored.
const EventCheckoutCompleted = "checkout.session.completed"
