package errors

// 공통 에러 코드 정의
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"
	// ErrUnavailable 외부 제공자(Stripe, Supabase)와 통신할 수 없는 경우
	ErrUnavailable = "UNAVAILABLE"
	// ErrFailedPrecondition 현재 상태에서 요청을 수행할 수 없는 경우 (예: 구독 없음)
	ErrFailedPrecondition = "FAILED_PRECONDITION"
)
