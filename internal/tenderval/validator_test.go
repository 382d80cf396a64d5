package tenderval_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tendertrack/internal/tenderval"
	"tendertrack/models"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// validTender — заполненный тендер без нарушений
func validTender() *models.Tender {
	return &models.Tender{
		Name:                "Road maintenance",
		ReferenceNumber:     "T-2024-001",
		TenderType:          "public",
		Method:              "open",
		Owner:               "Ministry of Transport",
		PublicationDate:     date("2024-01-01"),
		SubmissionDeadline:  date("2024-01-20"),
		ValidityPeriod:      90,
		BidBondValidityDays: 90,
	}
}

var testNow = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

func TestValidTenderPasses(t *testing.T) {
	r := tenderval.ValidateForTransition(validTender(), "submission", testNow)
	require.True(t, r.OK())
	require.Empty(t, r.Warnings)
}

func TestMissingRequiredFields(t *testing.T) {
	tender := validTender()
	tender.Name = ""
	tender.Owner = ""

	r := tenderval.ValidateForTransition(tender, "submission", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "name is required")
	require.Contains(t, r.Errors, "owner is required")
}

func TestMissingSubmissionDeadline(t *testing.T) {
	tender := validTender()
	tender.SubmissionDeadline = nil

	r := tenderval.ValidateForTransition(tender, "submission", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "submission deadline is required")
}

func TestShortPublicationGapWarnsButPasses(t *testing.T) {
	tender := validTender()
	tender.PublicationDate = date("2024-01-01")
	tender.SubmissionDeadline = date("2024-01-03")

	r := tenderval.ValidateForTransition(tender, "submission", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, r.OK())
	require.Contains(t, r.Warnings, "only 2 days between publication and submission deadline")
}

func TestDeadlineBeforePublicationFails(t *testing.T) {
	tender := validTender()
	tender.PublicationDate = date("2024-01-10")
	tender.SubmissionDeadline = date("2024-01-05")

	r := tenderval.ValidateForTransition(tender, "submission", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "submission deadline must be after publication date")
}

func TestPastDeadlineOnlyWarns(t *testing.T) {
	tender := validTender()
	tender.SubmissionDeadline = date("2024-01-03")

	r := tenderval.ValidateForTransition(tender, "submission", testNow)
	require.True(t, r.OK())
	require.Contains(t, r.Warnings, "submission deadline is already in the past")
}

func TestNoPublicationRequiresFutureDeadline(t *testing.T) {
	tender := validTender()
	tender.PublicationDate = nil
	tender.SubmissionDeadline = date("2024-01-05")

	r := tenderval.ValidateForTransition(tender, "submission", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "submission deadline must be at least one day in the future")
}

func TestDocumentsSaleRules(t *testing.T) {
	tender := validTender()
	tender.DocumentsSaleStart = date("2023-12-25") // раньше публикации
	tender.DocumentsSaleEnd = date("2024-01-25")   // позже дедлайна

	r := tenderval.ValidateForTransition(tender, "documents_purchase", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "documents sale must not start before publication date")
	require.Contains(t, r.Errors, "documents price is required when documents sale is scheduled")
	require.Contains(t, r.Errors, "documents sale must not end after submission deadline")
}

func TestDirectSaleSkipsDocumentsAndBondChecks(t *testing.T) {
	tender := validTender()
	tender.IsDirectSale = true
	tender.DocumentsSaleStart = date("2023-12-25")
	tender.BidBondValidityDays = 0
	tender.OpeningDate = date("2024-01-10") // раньше дедлайна, но для прямой продажи не важно

	r := tenderval.ValidateForTransition(tender, "submission", testNow)
	require.True(t, r.OK())
}

func TestQuestionsDeadlineRules(t *testing.T) {
	tender := validTender()
	tender.QuestionsDeadline = date("2024-01-25")

	r := tenderval.ValidateForTransition(tender, "questions", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "questions deadline must be before submission deadline")

	tender.QuestionsDeadline = date("2024-01-19")
	r = tenderval.ValidateForTransition(tender, "questions", testNow)
	require.True(t, r.OK())
	require.Contains(t, r.Warnings, "only 1 day between questions deadline and submission deadline")
}

func TestSingleDayPublicationGapWarnsSingular(t *testing.T) {
	tender := validTender()
	tender.PublicationDate = date("2024-01-01")
	tender.SubmissionDeadline = date("2024-01-02")

	r := tenderval.ValidateForTransition(tender, "submission", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	require.True(t, r.OK())
	require.Contains(t, r.Warnings, "only 1 day between publication and submission deadline")
}

func TestSiteVisitBeforeDeadline(t *testing.T) {
	tender := validTender()
	tender.SiteVisitDate = date("2024-01-21")

	r := tenderval.ValidateForTransition(tender, "site_visit", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "site visit must be before submission deadline")
}

func TestOpeningNotBeforeDeadline(t *testing.T) {
	tender := validTender()
	tender.OpeningDate = date("2024-01-15")

	r := tenderval.ValidateForTransition(tender, "financial_opening", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "opening date must not be before submission deadline")
}

func TestBondValidityShorterThanOffer(t *testing.T) {
	tender := validTender()
	tender.ValidityPeriod = 90
	tender.BidBondValidityDays = 60

	r := tenderval.ValidateForTransition(tender, "bond_preparation", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "bid bond validity 60 days is less than offer validity period 90 days")
}

func TestBondValidityUsesDefaultPeriod(t *testing.T) {
	tender := validTender()
	tender.ValidityPeriod = 0
	tender.BidBondValidityDays = 60

	r := tenderval.ValidateForTransition(tender, "bond_preparation", testNow)
	require.False(t, r.OK())
	require.Contains(t, r.Errors, "bid bond validity 60 days is less than offer validity period 90 days")
}
