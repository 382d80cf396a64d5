package workflow

import (
	"fmt"

	"tendertrack/models"
)

// ValidateStep проверяет инвариант шага: заполнена ровно одна цель
// назначения, и она согласована с типом назначения
func ValidateStep(step *models.WorkflowStep) error {
	targets := 0
	if step.AssignedRoleID != nil {
		targets++
	}
	if step.AssignedTeamID != nil {
		targets++
	}
	if step.AssignedUserID != nil {
		targets++
	}
	if step.DynamicAssignment != "" {
		targets++
	}
	if targets != 1 {
		return fmt.Errorf("step %d has %d assignment targets, want exactly one", step.ID, targets)
	}

	var ok bool
	switch step.AssignmentType {
	case models.AssignRole:
		ok = step.AssignedRoleID != nil
	case models.AssignTeam:
		ok = step.AssignedTeamID != nil
	case models.AssignUser:
		ok = step.AssignedUserID != nil
	case models.AssignDynamic:
		ok = step.DynamicAssignment != ""
	default:
		return fmt.Errorf("step %d has unknown assignment type %q", step.ID, step.AssignmentType)
	}
	if !ok {
		return fmt.Errorf("step %d assignment target does not match type %s", step.ID, step.AssignmentType)
	}
	if step.EscalationHours > 0 && step.EscalateToRoleID == nil {
		return fmt.Errorf("step %d has escalation hours but no escalation role", step.ID)
	}
	return nil
}
