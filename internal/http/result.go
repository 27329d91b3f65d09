package httpapi

import "net/http"

// Result 统一响应结构，code 2000 成功，-1 失败
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message}
}

func writeOk[T any](w http.ResponseWriter, result T) {
	writeJSON(w, http.StatusOK, Ok(result))
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Fail(message))
}

// writeUnknownView 视图名不在配置中
func writeUnknownView(w http.ResponseWriter, name string) {
	writeFail(w, http.StatusNotFound, "unknown view: "+name)
}
