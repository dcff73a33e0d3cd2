// Package resultcode defines the positive result-code taxonomy of
// spec.md §7: normal callback payloads for enroll/verify/identify/capture, never
// errors. Negative values remain errno-style errors (internal/corerr).
package resultcode

// Result is a positive callback payload reported to enroll/verify/identify/
// capture callers.
type Result int

const (
	EnrollPass Result = iota + 1
	EnrollComplete
	EnrollFail
	EnrollRetry
	EnrollRetryTooShort
	EnrollRetryCenterFinger
	EnrollRetryRemoveFinger

	VerifyMatch
	VerifyNoMatch
	VerifyRetry
	VerifyRetryTooShort
	VerifyRetryCenterFinger
	VerifyRetryRemoveFinger

	IdentifyMatch
	IdentifyNoMatch
	IdentifyRetry

	CaptureComplete
	CaptureFail
)

var names = map[Result]string{
	EnrollPass:              "enroll-pass",
	EnrollComplete:          "enroll-complete",
	EnrollFail:              "enroll-fail",
	EnrollRetry:             "enroll-retry",
	EnrollRetryTooShort:     "enroll-retry-too-short",
	EnrollRetryCenterFinger: "enroll-retry-center-finger",
	EnrollRetryRemoveFinger: "enroll-retry-remove-finger",
	VerifyMatch:             "verify-match",
	VerifyNoMatch:           "verify-no-match",
	VerifyRetry:             "verify-retry",
	VerifyRetryTooShort:     "verify-retry-too-short",
	VerifyRetryCenterFinger: "verify-retry-center-finger",
	VerifyRetryRemoveFinger: "verify-retry-remove-finger",
	IdentifyMatch:           "identify-match",
	IdentifyNoMatch:         "identify-no-match",
	IdentifyRetry:           "identify-retry",
	CaptureComplete:         "capture-complete",
	CaptureFail:             "capture-fail",
}

func (r Result) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "unknown-result"
}

// IsRetry reports whether r is one of the enroll, verify or identify RETRY*
// family.
func (r Result) IsRetry() bool {
	switch r {
	case EnrollRetry, EnrollRetryTooShort, EnrollRetryCenterFinger, EnrollRetryRemoveFinger,
		VerifyRetry, VerifyRetryTooShort, VerifyRetryCenterFinger, VerifyRetryRemoveFinger,
		IdentifyRetry:
		return true
	}
	return false
}
