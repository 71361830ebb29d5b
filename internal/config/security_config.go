package config

type SecurityConfig interface {
	GetCallbackRateLimit() float64
	GetCallbackRateBurst() int
}

type Security struct {
	CallbackRateLimit float64 `env:"CALLBACK_RATE_LIMIT" envDefault:"5"`
	CallbackRateBurst int     `env:"CALLBACK_RATE_BURST" envDefault:"10"`
}

var _ SecurityConfig = Security{}

// GetCallbackRateLimit is requests per second per client address.
func (s Security) GetCallbackRateLimit() float64 {
	return s.CallbackRateLimit
}

func (s Security) GetCallbackRateBurst() int {
	return s.CallbackRateBurst
}
