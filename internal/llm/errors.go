package llm

import (
	"net/http"

	xerrors "BankAgent/internal/errors"
)

// 大模型服务商返回的错误码。客户端在收到 HTTP 响应时就地确定错误码，
// 上层无需再解析错误文本。
const (
	CodeProviderBalance xerrors.Code = "PROVIDER_INSUFFICIENT_BALANCE"
	CodeUnauthorized    xerrors.Code = "PROVIDER_UNAUTHORIZED"
	CodeRateLimited     xerrors.Code = "PROVIDER_RATE_LIMITED"
	CodeModelNotFound   xerrors.Code = "PROVIDER_MODEL_NOT_FOUND"
	CodeProviderFailure xerrors.Code = "PROVIDER_FAILURE"
)

func init() {
	xerrors.Register(CodeProviderBalance, xerrors.Attributes{
		Message:   "provider account balance exhausted",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
	})
	xerrors.Register(CodeUnauthorized, xerrors.Attributes{
		Message:   "provider rejected credentials",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
	})
	xerrors.Register(CodeRateLimited, xerrors.Attributes{
		Message:   "provider rate limit reached",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
	})
	xerrors.Register(CodeModelNotFound, xerrors.Attributes{
		Message:   "model not found",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
	})
	xerrors.Register(CodeProviderFailure, xerrors.Attributes{
		Message:   "provider request failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
	})
}

// CodeForStatus 将服务商返回的 HTTP 状态码映射为错误码。
func CodeForStatus(status int) xerrors.Code {
	switch status {
	case http.StatusPaymentRequired:
		return CodeProviderBalance
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeUnauthorized
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusNotFound:
		return CodeModelNotFound
	default:
		return CodeProviderFailure
	}
}
