package errors

import "google.golang.org/grpc/codes"

// CodePair는 프레임워크 간 코드 매핑을 위한 구조체입니다
type CodePair struct {
	HTTPStatus int
	GRPCCode   codes.Code
}

// 코드 매핑 테이블
var codeMapping = map[string]CodePair{
	ErrInternal:           {500, codes.Internal},
	ErrNotFound:           {404, codes.NotFound},
	ErrInvalidArgument:    {400, codes.InvalidArgument},
	ErrUnauthenticated:    {401, codes.Unauthenticated},
	ErrUnauthorized:       {403, codes.PermissionDenied},
	ErrConflict:           {409, codes.AlreadyExists},
	ErrTimeout:            {504, codes.DeadlineExceeded},
	ErrNotImplemented:     {501, codes.Unimplemented},
	ErrUnavailable:        {502, codes.Unavailable},
	ErrFailedPrecondition: {400, codes.FailedPrecondition},
}

// GetCodeMapping은 특정 에러 코드에 대한 HTTP 및 gRPC 코드 매핑을 반환합니다
func GetCodeMapping(code string) (int, codes.Code) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, codes.Internal
}
