package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a major.minor.patch plugin version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "1", "1.2" or "1.2.3". A leading "v" is accepted.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns the dotted form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// FeatureType tags the kind of feature a plugin provides.
type FeatureType int

// Feature types.
const (
	FeatureOCR FeatureType = iota
	FeatureJSONFormatter
	FeaturePasswordGeneration
	FeatureEmailTemplateExpansion
	FeatureTableConversion
	FeatureKeywordExtraction
	FeatureGrammarChecker
	FeatureSmartFormatting
	FeatureLanguageDetection
	FeatureOther
)

var featureTypeNames = [...]string{
	FeatureOCR:                    "OCR",
	FeatureJSONFormatter:          "JsonFormatter",
	FeaturePasswordGeneration:     "PasswordGeneration",
	FeatureEmailTemplateExpansion: "EmailTemplateExpansion",
	FeatureTableConversion:        "TableConversion",
	FeatureKeywordExtraction:      "KeywordExtraction",
	FeatureGrammarChecker:         "GrammarChecker",
	FeatureSmartFormatting:        "SmartFormatting",
	FeatureLanguageDetection:      "LanguageDetection",
	FeatureOther:                  "Other",
}

// String returns the feature id associated with the type.
func (t FeatureType) String() string {
	if t < 0 || int(t) >= len(featureTypeNames) {
		return "Other"
	}
	return featureTypeNames[t]
}

// ParseFeatureType maps a feature id back to its type. Matching is case
// insensitive; unknown names map to FeatureOther.
func ParseFeatureType(s string) (FeatureType, bool) {
	for i, name := range featureTypeNames {
		if strings.EqualFold(name, s) {
			return FeatureType(i), true
		}
	}
	return FeatureOther, false
}

// ContentType is the kind of clipboard content.
type ContentType int

// Content types. Text is the zero value.
const (
	ContentText ContentType = iota
	ContentImage
	ContentTable
	ContentCode
)

// String returns the content type name.
func (c ContentType) String() string {
	switch c {
	case ContentText:
		return "text"
	case ContentImage:
		return "image"
	case ContentTable:
		return "table"
	case ContentCode:
		return "code"
	default:
		return "unknown"
	}
}

// MenuOption is a menu entry contributed by a feature.
type MenuOption struct {
	Icon        string
	Text        string
	FeatureType FeatureType
}

// LogLevel is the severity of a plugin log message.
type LogLevel int

// Log levels.
const (
	LogTrace LogLevel = iota
	LogDebug
	LogInformation
	LogWarning
	LogError
	LogCritical
	LogFatal
)

// String returns the level name.
func (l LogLevel) String() string {
	switch l {
	case LogTrace:
		return "trace"
	case LogDebug:
		return "debug"
	case LogInformation:
		return "information"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	case LogCritical:
		return "critical"
	case LogFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// NotificationType is the severity of a user notification.
type NotificationType int

// Notification types.
const (
	NotifyInformation NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// String returns the notification type name.
func (n NotificationType) String() string {
	switch n {
	case NotifyInformation:
		return "information"
	case NotifySuccess:
		return "success"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLogLevel maps a level name to a LogLevel. "info" and "warn" are
// accepted as short forms.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(s) {
	case "trace":
		return LogTrace, true
	case "debug":
		return LogDebug, true
	case "information", "info":
		return LogInformation, true
	case "warning", "warn":
		return LogWarning, true
	case "error":
		return LogError, true
	case "critical":
		return LogCritical, true
	case "fatal":
		return LogFatal, true
	}
	return LogInformation, false
}

// ParseNotificationType maps a type name to a NotificationType.
func ParseNotificationType(s string) (NotificationType, bool) {
	switch strings.ToLower(s) {
	case "information", "info":
		return NotifyInformation, true
	case "success":
		return NotifySuccess, true
	case "warning", "warn":
		return NotifyWarning, true
	case "error":
		return NotifyError, true
	}
	return NotifyInformation, false
}
