package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	decisionApprove = "approve"
	decisionDecline = "decline"
)

type actionDecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// decideAction handles PATCH /api/v1/actions/:log_id. Approving executes
// the recorded action; declining settles the log without executing.
// Concurrent decisions lose the status CAS and come back as 409.
func (s *Server) decideAction(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("log_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log id"})
		return
	}

	var req actionDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Decision {
	case decisionApprove:
		log, err := s.deps.Approver.Approve(c.Request.Context(), logID)
		if err != nil {
			serviceError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	case decisionDecline:
		log, err := s.deps.Approver.Decline(c.Request.Context(), logID)
		if err != nil {
			serviceError(c, err)
			return
		}
		c.JSON(http.StatusOK, log)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be \"approve\" or \"decline\""})
	}
}

// getActionLog handles GET /api/v1/actions/:log_id.
func (s *Server) getActionLog(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("log_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log id"})
		return
	}

	log, err := s.deps.Logs.GetActionLog(c.Request.Context(), logID)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// listActionLogs handles GET /api/v1/deployments/:deployment_id/actions.
func (s *Server) listActionLogs(c *gin.Context) {
	deploymentID, err := uuid.Parse(c.Param("deployment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deployment id"})
		return
	}

	logs, err := s.deps.Logs.ListActionLogs(c.Request.Context(), deploymentID)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": logs})
}
