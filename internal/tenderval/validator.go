package tenderval

import (
	"fmt"
	"time"

	"tendertrack/models"
)

// Срок действия предложения по умолчанию, дней
const DefaultValidityPeriod = 90

// Result разделяет блокирующие ошибки и необязательные предупреждения
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) errf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateForTransition проверяет снимок тендера перед переходом этапа.
// Чистая функция: никакого I/O, момент времени передается явно.
// Правила едины для всех целевых этапов.
func ValidateForTransition(t *models.Tender, targetStage string, now time.Time) Result {
	var r Result
	checkRequiredFields(t, &r)
	checkSubmissionDeadline(t, now, &r)
	checkDocumentsSale(t, &r)
	checkQuestionsDeadline(t, &r)
	checkSiteVisit(t, &r)
	checkOpeningDate(t, &r)
	checkBondValidity(t, &r)
	return r
}

func checkRequiredFields(t *models.Tender, r *Result) {
	required := []struct {
		value string
		name  string
	}{
		{t.Name, "name"},
		{t.ReferenceNumber, "reference number"},
		{t.TenderType, "tender type"},
		{t.Method, "method"},
		{t.Owner, "owner"},
	}
	for _, f := range required {
		if f.value == "" {
			r.errf("%s is required", f.name)
		}
	}
}

func checkSubmissionDeadline(t *models.Tender, now time.Time, r *Result) {
	if t.SubmissionDeadline == nil {
		r.errf("submission deadline is required")
		return
	}
	deadline := *t.SubmissionDeadline

	if t.PublicationDate != nil {
		pub := *t.PublicationDate
		if !deadline.After(pub) {
			r.errf("submission deadline must be after publication date")
		} else if days := daysBetween(pub, deadline); days < 7 {
			r.warnf("only %d %s between publication and submission deadline", days, dayWord(days))
		}
	} else if deadline.Before(now.Add(24 * time.Hour)) {
		r.errf("submission deadline must be at least one day in the future")
	}

	if deadline.Before(now) {
		r.warnf("submission deadline is already in the past")
	}
}

func checkDocumentsSale(t *models.Tender, r *Result) {
	if t.IsDirectSale {
		return
	}
	if t.DocumentsSaleStart != nil {
		if t.PublicationDate != nil && t.DocumentsSaleStart.Before(*t.PublicationDate) {
			r.errf("documents sale must not start before publication date")
		}
		if t.DocumentsPrice == 0 {
			r.errf("documents price is required when documents sale is scheduled")
		}
	}
	if t.DocumentsSaleEnd != nil {
		if t.DocumentsSaleStart != nil && t.DocumentsSaleEnd.Before(*t.DocumentsSaleStart) {
			r.errf("documents sale must not end before it starts")
		}
		if t.SubmissionDeadline != nil && t.DocumentsSaleEnd.After(*t.SubmissionDeadline) {
			r.errf("documents sale must not end after submission deadline")
		}
	}
}

func checkQuestionsDeadline(t *models.Tender, r *Result) {
	if t.QuestionsDeadline == nil || t.SubmissionDeadline == nil {
		return
	}
	if !t.QuestionsDeadline.Before(*t.SubmissionDeadline) {
		r.errf("questions deadline must be before submission deadline")
		return
	}
	if days := daysBetween(*t.QuestionsDeadline, *t.SubmissionDeadline); days < 3 {
		r.warnf("only %d %s between questions deadline and submission deadline", days, dayWord(days))
	}
}

func checkSiteVisit(t *models.Tender, r *Result) {
	if t.SiteVisitDate == nil || t.SubmissionDeadline == nil {
		return
	}
	if !t.SiteVisitDate.Before(*t.SubmissionDeadline) {
		r.errf("site visit must be before submission deadline")
	}
}

func checkOpeningDate(t *models.Tender, r *Result) {
	if t.IsDirectSale || t.OpeningDate == nil || t.SubmissionDeadline == nil {
		return
	}
	if t.OpeningDate.Before(*t.SubmissionDeadline) {
		r.errf("opening date must not be before submission deadline")
	}
}

func checkBondValidity(t *models.Tender, r *Result) {
	if t.IsDirectSale {
		return
	}
	validity := t.ValidityPeriod
	if validity == 0 {
		validity = DefaultValidityPeriod
	}
	if t.BidBondValidityDays < validity {
		r.errf("bid bond validity %d days is less than offer validity period %d days",
			t.BidBondValidityDays, validity)
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
