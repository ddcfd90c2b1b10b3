package interfaces

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with parameters.
	// Returns the response body as bytes or an error.
	Get(url string, params map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// PostJSON performs a POST request with a JSON body.
	// Returns the response body as bytes or an error.
	PostJSON(url string, body interface{}) ([]byte, error)
}
