package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
var koMessages = map[Code]string{
	"UNKNOWN":             "알 수 없는 오류가 발생했습니다",
	"VALIDATION_FAILED":   "필수 값이 누락되었습니다: {{.field}}",
	"INVALID_DATE":        "날짜 형식이 올바르지 않습니다: {{.value}}",
	"INVALID_RANGE":       "시작일은 종료일보다 늦을 수 없습니다",
	"RANGE_TOO_LARGE":     "최대 {{.max}}일까지만 처리할 수 있습니다",
	"INVALID_ROLLOVER":    "이월 설정은 O 또는 X 여야 합니다",
	"REASON_REQUIRED":     "사유를 입력해주세요",
	"INVALID_SITE_CONFIG": "사이트 설정이 올바르지 않습니다: {{.reason}}",
	"NOT_FOUND":           "대상을 찾을 수 없습니다",
	"ALREADY_EXISTS":      "이미 출석 기록이 있습니다",
	"FUTURE_DATE":         "미래 날짜는 처리할 수 없습니다",
}

var enMessages = map[Code]string{
	"UNKNOWN":             "An unexpected error occurred",
	"VALIDATION_FAILED":   "Missing required value: {{.field}}",
	"INVALID_DATE":        "Invalid date: {{.value}}",
	"INVALID_RANGE":       "Start date must not be after end date",
	"RANGE_TOO_LARGE":     "At most {{.max}} days can be processed at once",
	"INVALID_ROLLOVER":    "Rollover must be O or X",
	"REASON_REQUIRED":     "A reason is required",
	"INVALID_SITE_CONFIG": "Invalid site configuration: {{.reason}}",
	"NOT_FOUND":           "Not found",
	"ALREADY_EXISTS":      "Attendance already recorded",
	"FUTURE_DATE":         "Future dates are not allowed",
}
