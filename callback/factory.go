package callback

import (
	"net/http"

	"github.com/oasislabs/signing-gateway/log"
)

// Services are the services required to create a Client
type Services struct {
	Logger log.Logger
}

// NewClient creates a new instance of the client with the
// specified configuration and the provided services
func NewClient(services *Services, config *Config) *Client {
	return NewClientWithDeps(&Deps{
		Logger: services.Logger,
		Client: &http.Client{Timeout: config.Timeout},
	})
}
