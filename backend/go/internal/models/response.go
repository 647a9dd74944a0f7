package models

// 结构化失败结果使用的错误码。
const (
	CodeValidationError       = "validation_error"
	CodeUnknownCommand        = "unknown_command"
	CodeSchemaError           = "schema_error"
	CodeStoreError            = "store_error"
	CodeClassificationError   = "classification_error"
	CodeCapabilityUnavailable = "capability_unavailable"
	CodeInvocationError       = "invocation_error"
)

// ErrorDetail 携带机器可读的错误码和说明。
type ErrorDetail struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// AgentResponse 是每个子 Agent 操作的统一返回结构。
type AgentResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// OK 构造一个成功结果。
func OK(message string, data any) *AgentResponse {
	return &AgentResponse{Success: true, Message: message, Data: data}
}

// Fail 构造一个失败结果。
func Fail(message, code, detail string) *AgentResponse {
	return &AgentResponse{
		Success: false,
		Message: message,
		Error:   &ErrorDetail{Code: code, Detail: detail},
	}
}

// ErrorCode 返回错误码，成功结果返回空字符串。
func (r *AgentResponse) ErrorCode() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return r.Error.Code
}

// ToMap 把结果转成可以作为 FunctionResponse 发回模型的 map。
func (r *AgentResponse) ToMap() map[string]any {
	if r == nil {
		return map[string]any{"success": false, "message": "no response"}
	}
	m := map[string]any{
		"success": r.Success,
		"message": r.Message,
	}
	if r.Data != nil {
		m["data"] = r.Data
	}
	if r.Error != nil {
		m["error"] = map[string]any{"code": r.Error.Code, "detail": r.Error.Detail}
	}
	return m
}
