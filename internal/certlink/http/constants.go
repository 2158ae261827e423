package http

const (
	JSONKeyOK = "ok"

	HTTPErrorInvalidAddressText = "invalid wallet address"
	HTTPErrorMissingCourseText  = "missing course"
)
