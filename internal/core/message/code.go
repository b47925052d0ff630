package message

import "fmt"

// Code 通用应答状态码
type Code uint16

const (
	CodeSuccess          Code = 200
	CodeSuccessNoContent Code = 204
	CodeBadRequest       Code = 400
	CodeUnauthorized     Code = 401
	CodeNotFound         Code = 404
	CodeTimeout          Code = 408
	CodeRateLimited      Code = 429
	CodeInternal         Code = 500
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeSuccessNoContent:
		return "SUCCESS_NO_CONTENT"
	case CodeBadRequest:
		return "BAD_REQUEST"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeRateLimited:
		return "RATE_LIMITED"
	case CodeInternal:
		return "INTERNAL"
	default:
		return fmt.Sprintf("CODE_%d", uint16(c))
	}
}

// OK 是否为成功码
func (c Code) OK() bool {
	return c == CodeSuccess || c == CodeSuccessNoContent
}
