package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aliuygur/instol-panel/internal/application"
	"github.com/aliuygur/instol-panel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it with the given status code.
// If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeRedirect writes a JSON navigation intent for the shell to follow.
func writeRedirect(w http.ResponseWriter, status int, route model.Route) {
	writeJSON(w, status, redirectResponse{Redirect: string(route)})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// redirectResponse carries a navigation intent to the shell.
type redirectResponse struct {
	Redirect string `json:"redirect"`
}

// sessionResponse reports whether a credential is present.
type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// instanceResponse is the JSON representation of a provisioned instance.
type instanceResponse struct {
	ID        string `json:"id"`
	URL       string `json:"instance_url"`
	Subdomain string `json:"subdomain"`
	Status    string `json:"status"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

// listResponse is the full instance listing.
type listResponse struct {
	Instances []instanceResponse `json:"instances"`
}

// availabilityResponse is the probing state for the candidate subdomain.
type availabilityResponse struct {
	Subdomain string `json:"subdomain"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Checking  bool   `json:"checking"`
}

// confirmationResponse is the state of the open delete confirmation.
type confirmationResponse struct {
	Open       bool   `json:"open"`
	InstanceID string `json:"instance_id,omitempty"`
	Subdomain  string `json:"subdomain,omitempty"`
	Typed      string `json:"typed,omitempty"`
	Armed      bool   `json:"armed"`
}

// healthResponse is the health check body.
type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// candidateRequest is the body for subdomain keystroke updates.
type candidateRequest struct {
	Subdomain string `json:"subdomain"`
}

// createRequest is the body for instance creation.
type createRequest struct {
	Region string `json:"region"`
}

// confirmationTextRequest is the body for typed confirmation updates.
type confirmationTextRequest struct {
	Text string `json:"text"`
}

// toInstanceResponse converts a domain Instance to its JSON representation.
func toInstanceResponse(inst model.Instance) instanceResponse {
	createdAt := ""
	if !inst.CreatedAt.IsZero() {
		createdAt = inst.CreatedAt.UTC().Format(time.RFC3339)
	}
	return instanceResponse{
		ID:        inst.ID,
		URL:       inst.URL,
		Subdomain: inst.Subdomain(),
		Status:    inst.Status,
		State:     string(inst.DisplayState()),
		CreatedAt: createdAt,
	}
}

// toListResponse converts an instance set to the listing body.
func toListResponse(instances []model.Instance) listResponse {
	resp := listResponse{Instances: make([]instanceResponse, 0, len(instances))}
	for _, inst := range instances {
		resp.Instances = append(resp.Instances, toInstanceResponse(inst))
	}
	return resp
}

// toConfirmationResponse converts a confirmation state to its JSON
// representation.
func toConfirmationResponse(c application.ConfirmationState) confirmationResponse {
	if !c.Open {
		return confirmationResponse{}
	}
	return confirmationResponse{
		Open:       true,
		InstanceID: c.Instance.ID,
		Subdomain:  c.Instance.Subdomain(),
		Typed:      c.Typed,
		Armed:      c.Armed,
	}
}
