package domain

import "fmt"

// Step identifies which stage of the authentication chain an error came
// from, so callers can tell a device-token failure from an entitlement one
// without parsing messages.
type Step string

const (
	StepGetDeviceToken    Step = "get_device_token"
	StepSisuAuthenticate  Step = "sisu_authenticate"
	StepSisuAuthorize     Step = "sisu_authorize"
	StepGetOAuthToken     Step = "get_oauth_token"
	StepRefreshOAuthToken Step = "refresh_oauth_token"
	StepXstsAuthorize     Step = "xsts_authorize"
	StepMinecraftLogin    Step = "minecraft_login"
	StepEntitlements      Step = "entitlements"
	StepMinecraftProfile  Step = "minecraft_profile"
)

const maxErrorBody = 512

// FlowError is the error type for every failed federation step. Status and
// Body are set when the remote service answered with a non-2xx response;
// Err is set when the request itself failed or the response would not
// decode.
type FlowError struct {
	Step   Step
	Status int
	Body   string
	Err    error
}

func (e *FlowError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("auth: step %s failed with status %d: %v", e.Step, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("auth: step %s failed: %v", e.Step, e.Err)
	default:
		body := e.Body
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "..."
		}
		return fmt.Sprintf("auth: step %s failed with status %d: %s", e.Step, e.Status, body)
	}
}

func (e *FlowError) Unwrap() error {
	return e.Err
}
