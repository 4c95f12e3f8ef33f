package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sneakbots/sentinel/pkg/models"
)

// startDeployment handles POST /api/v1/deployments/:deployment_id/start.
// The stored deployment conf is validated here, before the start event
// reaches the bus; the controller trusts events it receives.
func (s *Server) startDeployment(c *gin.Context) {
	deploymentID, err := uuid.Parse(c.Param("deployment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deployment id"})
		return
	}

	deployment, err := s.deps.Deployments.GetDeployment(c.Request.Context(), deploymentID)
	if err != nil {
		serviceError(c, err)
		return
	}
	if deployment.Platform != models.PlatformDiscord {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported platform"})
		return
	}

	var conf models.DiscordDeploymentConfig
	if err := json.Unmarshal(deployment.Conf, &conf); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "deployment conf is not valid JSON"})
		return
	}
	if err := conf.Validate(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	ev := &models.DeploymentEvent{
		Type:         models.DeploymentEventStart,
		DeploymentID: deployment.ID,
		ModeratorID:  deployment.ModeratorID,
		Platform:     deployment.Platform,
		Conf:         &conf,
	}
	if err := s.deps.Events.Publish(c.Request.Context(), ev); err != nil {
		serviceError(c, err)
		return
	}

	s.logger.Info("Deployment start requested", "deployment_id", deploymentID)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "deployment_id": deploymentID})
}

// stopDeployment handles POST /api/v1/deployments/:deployment_id/stop.
func (s *Server) stopDeployment(c *gin.Context) {
	deploymentID, err := uuid.Parse(c.Param("deployment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deployment id"})
		return
	}

	if _, err := s.deps.Deployments.GetDeployment(c.Request.Context(), deploymentID); err != nil {
		serviceError(c, err)
		return
	}

	ev := &models.DeploymentEvent{
		Type:         models.DeploymentEventStop,
		DeploymentID: deploymentID,
	}
	if err := s.deps.Events.Publish(c.Request.Context(), ev); err != nil {
		serviceError(c, err)
		return
	}

	s.logger.Info("Deployment stop requested", "deployment_id", deploymentID)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "deployment_id": deploymentID})
}
