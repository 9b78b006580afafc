package utils

import (
	"context"

	"github.com/go-resty/resty/v2"
	g "github.com/univision/camera-relay/globals"
)

// CallAPIWithBody executes the request and returns status code and body of any response.
// Error is returned only when no response was received.
func CallAPIWithBody(ctx context.Context, apiClient *resty.Client, method string, fullEndpoint string, body interface{}) (int, []byte, error) {
	req := apiClient.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req = req.SetBody(body)
	}
	resp, sndErr := req.Execute(method, fullEndpoint)
	if sndErr != nil {
		g.Log.Warn("failed to call control api", method, fullEndpoint, sndErr)
		return 0, nil, sndErr
	}
	return resp.StatusCode(), resp.Body(), nil
}

// IsSuccess reports a 2xx status code
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
