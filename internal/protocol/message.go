// Package protocol implements the line-framed JSON-RPC-style wire format
// carried over the daemon's standard input/output streams: one request,
// response, or notification object per line.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the only protocol version string this daemon accepts.
const Version = "2.0"

// RequestID is a request's id field, either a JSON number or string. Go's
// encoding/json already unmarshals untyped interface{} into float64/string
// appropriately, so RequestID is carried as json.RawMessage and compared/
// echoed byte-for-byte rather than decoded into a concrete type.
type RequestID = json.RawMessage

// Request is one inbound line: a method call with optional parameters.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      RequestID       `json:"id"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a successful reply to a Request, echoing its id.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Result  any       `json:"result"`
}

// ErrorData carries the symbolic error_code and optional human detail for a
// daemon-specific ErrorResponse.
type ErrorData struct {
	ErrorCode string `json:"error_code"`
	Details   string `json:"details,omitempty"`
}

// ErrorObject is the JSON-RPC error payload: a numeric code, a message, and
// optional structured data.
type ErrorObject struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorResponse is an error reply to a Request. ID is a pointer since a
// parse error has no request to echo an id from.
type ErrorResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *RequestID  `json:"id"`
	Error   ErrorObject `json:"error"`
}

// Notification is an out-of-band, id-less message: generation_progress,
// generation_complete, or generation_error.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// NewResponse builds a successful Response for id.
func NewResponse(id RequestID, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// NewNotification builds a Notification for the given method/params pair.
func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: Version, Method: method, Params: params}
}

// NewErrorResponse builds an ErrorResponse. id is nil for a parse error that
// never reached a parseable request id.
func NewErrorResponse(id *RequestID, code int, message, errorCode, details string) ErrorResponse {
	var data *ErrorData
	if errorCode != "" {
		data = &ErrorData{ErrorCode: errorCode, Details: details}
	}

	return ErrorResponse{
		JSONRPC: Version,
		ID:      id,
		Error: ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// GenerateParams is the parsed body of a "generate" request.
type GenerateParams struct {
	Prompt         string   `json:"prompt"`
	DurationSec    *int     `json:"duration_sec,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Backend        string   `json:"backend,omitempty"`
	InferenceSteps *int     `json:"inference_steps,omitempty"`
	Scheduler      string   `json:"scheduler,omitempty"`
	GuidanceScale  *float64 `json:"guidance_scale,omitempty"`
}

// GenerateResult is the synchronous reply body to a "generate" request.
type GenerateResult struct {
	TrackID string `json:"track_id"`
	Status  string `json:"status"`
	Position int   `json:"position"`
	Seed    uint64 `json:"seed"`
	Backend string `json:"backend"`
}

// PingResult is the reply body to a "ping" request.
type PingResult struct {
	Status string `json:"status"`
}

// ShutdownResult is the reply body to a "shutdown" request.
type ShutdownResult struct {
	Status string `json:"status"`
}

// BackendDescriptor describes one installed or installable backend, part of
// a "get_backends" reply.
type BackendDescriptor struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	MinDurationSec int   `json:"min_duration_sec"`
	MaxDurationSec int   `json:"max_duration_sec"`
	SampleRate    int    `json:"sample_rate"`
	ModelVersion  string `json:"model_version,omitempty"`
}

// GetBackendsResult is the reply body to a "get_backends" request.
type GetBackendsResult struct {
	Backends       []BackendDescriptor `json:"backends"`
	DefaultBackend string              `json:"default_backend"`
}

// GenerationProgressParams is the "generation_progress" notification body.
type GenerationProgressParams struct {
	TrackID         string  `json:"track_id"`
	Percent         int     `json:"percent"`
	TokensGenerated int     `json:"tokens_generated"`
	TokensEstimated int     `json:"tokens_estimated"`
	ETASec          float64 `json:"eta_sec"`
}

// GenerationCompleteParams is the "generation_complete" notification body.
type GenerationCompleteParams struct {
	TrackID           string  `json:"track_id"`
	Path              string  `json:"path"`
	DurationSec       float64 `json:"duration_sec"`
	SampleRate        int     `json:"sample_rate"`
	Prompt            string  `json:"prompt"`
	Seed              uint64  `json:"seed"`
	GenerationTimeSec float64 `json:"generation_time_sec"`
	ModelVersion      string  `json:"model_version"`
	Backend           string  `json:"backend"`
}

// GenerationErrorParams is the "generation_error" notification body.
type GenerationErrorParams struct {
	TrackID string `json:"track_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseGenerateParams decodes a request's raw params into GenerateParams.
func ParseGenerateParams(raw json.RawMessage) (GenerateParams, error) {
	var p GenerateParams
	if len(raw) == 0 {
		return p, fmt.Errorf("missing params")
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode generate params: %w", err)
	}

	return p, nil
}
