package entity

const (
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
	IntentStatusProcessing            = "processing"
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
)

// PaymentIntent mirrors the gateway object a purchase is settled against.
// ClientSecret is opaque here and only passed through to the buyer.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}
