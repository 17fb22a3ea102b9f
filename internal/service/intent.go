package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"defect-service/internal/model"
)

type IntentKind string

const (
	IntentReport       IntentKind = "REPORT"
	IntentFilter       IntentKind = "FILTER_SEVERITY"
	IntentRoutePlan    IntentKind = "ROUTE_PLAN"
	IntentMarkRepaired IntentKind = "MARK_REPAIRED"
	IntentUnrecognized IntentKind = "UNRECOGNIZED"
)

// Intent is the normalized, closed-set operation derived from a user query.
type Intent struct {
	Kind     IntentKind
	Severity *model.Severity
	Class    *model.DefectClass
	Count    int
	EventID  *uuid.UUID
}

// TextClassifier reduces free-form text to an Intent. The keyword matcher
// below is the default; an external language-understanding call can be
// swapped in behind the same interface without touching the query engine.
type TextClassifier interface {
	Classify(text string) Intent
}

var (
	reUUID      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	reNumber    = regexp.MustCompile(`\d+`)
	reHighRisk  = regexp.MustCompile(`(show|list|get|find|display|what|which).*(high|critical|urgent|dangerous|severe)`)
	reMedRisk   = regexp.MustCompile(`(show|list|get|find|display|what|which).*(medium|moderate|middle)`)
	reLowRisk   = regexp.MustCompile(`(show|list|get|find|display|what|which).*(low|minor|small)`)
	reReport    = regexp.MustCompile(`report|summary|overview|statistic|stats|total|count|how many`)
	reRoute     = regexp.MustCompile(`path|route|shortest|direction|navigate|visit|fix today|repair route`)
	reRepair    = regexp.MustCompile(`fix|repair|mark|update|complete|done|repaired`)
	rePothole   = regexp.MustCompile(`pothole`)
	reCrack     = regexp.MustCompile(`crack`)
)

type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (KeywordClassifier) Classify(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Intent{Kind: IntentUnrecognized}
	}

	// Order matters: severity filters and routes both mention defects, and
	// a repair request with an id must win over the generic report words.
	if raw := reUUID.FindString(text); raw != "" && reRepair.MatchString(lower) {
		if id, err := uuid.Parse(raw); err == nil {
			return Intent{Kind: IntentMarkRepaired, EventID: &id}
		}
	}

	switch {
	case reHighRisk.MatchString(lower):
		sev := model.SeverityHigh
		return Intent{Kind: IntentFilter, Severity: &sev}
	case reMedRisk.MatchString(lower):
		sev := model.SeverityMedium
		return Intent{Kind: IntentFilter, Severity: &sev}
	case reLowRisk.MatchString(lower):
		sev := model.SeverityLow
		return Intent{Kind: IntentFilter, Severity: &sev}
	}

	if reRoute.MatchString(lower) {
		intent := Intent{Kind: IntentRoutePlan, Count: 10}
		if raw := reNumber.FindString(lower); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				intent.Count = n
			}
		}
		intent.Class = classFilter(lower)
		return intent
	}

	if reReport.MatchString(lower) {
		return Intent{Kind: IntentReport, Class: classFilter(lower)}
	}

	return Intent{Kind: IntentUnrecognized}
}

func classFilter(lower string) *model.DefectClass {
	pothole := rePothole.MatchString(lower)
	crack := reCrack.MatchString(lower)
	if pothole == crack {
		return nil
	}
	cls := model.DefectClassPothole
	if crack {
		cls = model.DefectClassCrack
	}
	return &cls
}
