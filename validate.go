package metrics

import "regexp"

// nameRE matches valid metric and label names: ASCII letter or underscore or
// colon first, then any run of letters/digits/underscore/colon.
var nameRE = regexp.MustCompile(`^[A-Za-z_:][A-Za-z0-9_:]*$`)

const maxNameLength = 200

// ValidateName checks a metric or label name: ASCII only,
// 1-200 characters, matching ^[A-Za-z_:][A-Za-z0-9_:]*$.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > maxNameLength {
		return &ValidationError{Name: name, Reason: "length must be between 1 and 200 characters"}
	}
	if !isASCII(name) {
		return &ValidationError{Name: name, Reason: "must be ASCII-only"}
	}
	if !nameRE.MatchString(name) {
		return &ValidationError{Name: name, Reason: `must match ^[A-Za-z_:][A-Za-z0-9_:]*$`}
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// validateNameAndSchema validates a metric name and, for grouped metrics, every
// declared label name.
func validateNameAndSchema(name string, schema LabelSchema) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	for labelName := range schema {
		if err := ValidateName(labelName); err != nil {
			return &ValidationError{Name: labelName, Reason: "label name " + err.Error()}
		}
	}
	return nil
}
