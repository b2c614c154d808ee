package editor

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a text value flagged by libinjection.
type InjectionCheckResult struct {
	Detector    string // "sqli" or "xss"
	Fingerprint string // libinjection fingerprint, SQLi only
	FieldName   string
	FieldValue  string
}

// CheckValueForInjection runs the libinjection SQLi and XSS detectors over a
// text value. Returns nil when the value is clean.
//
// Text props end up inside rendered markup and in downstream data queries of
// bespoke renderers, so both detectors apply.
func CheckValueForInjection(fieldName, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &InjectionCheckResult{
			Detector:    "sqli",
			Fingerprint: string(fingerprint),
			FieldName:   fieldName,
			FieldValue:  value,
		}
	}

	if libinjection.IsXSS(value) {
		return &InjectionCheckResult{
			Detector:   "xss",
			FieldName:  fieldName,
			FieldValue: value,
		}
	}

	return nil
}
