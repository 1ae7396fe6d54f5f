package pass

import (
	"errors"
	"net/http"
	"strconv"

	"studiopass/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GrantTrial godoc
// @Summary      Claim trial pass
// @Description  Grants the one-time trial pass if the client has never held one.
// @Tags         passes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  TrialGrantResult
// @Failure      401  {object}  gin.H
// @Failure      500  {object}  gin.H
// @Router       /passes/trial [post]
func (h *Handler) GrantTrial(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	result, err := h.service.GrantTrial(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant trial pass"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMyPasses godoc
// @Summary      List my passes
// @Tags         passes
// @Security     BearerAuth
// @Produce      json
// @Param        active  query     bool  false  "Only active passes with remaining capacity"
// @Success      200     {array}   Pass
// @Failure      500     {object}  gin.H
// @Router       /passes [get]
func (h *Handler) ListMyPasses(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	activeOnly := c.DefaultQuery("active", "false") == "true"

	passes, err := h.service.ListOwn(c.Request.Context(), userID, activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch passes"})
		return
	}

	c.JSON(http.StatusOK, passes)
}

// GrantPass godoc
// @Summary      Grant a pass to a client
// @Description  Admin-assigned purchase or grant. Trial passes cannot be granted here.
// @Tags         passes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        userID  path      int           true  "Client ID"
// @Param        grant   body      GrantRequest  true  "Pass to grant"
// @Success      201     {object}  Pass
// @Failure      400     {object}  gin.H
// @Failure      500     {object}  gin.H
// @Router       /admin/users/{userID}/passes [post]
func (h *Handler) GrantPass(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.Grant(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pass type or session count"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant pass"})
		return
	}

	c.JSON(http.StatusCreated, p)
}

// AdjustPass godoc
// @Summary      Adjust remaining sessions
// @Description  Admin override of a pass balance. Recorded in the deduction audit trail.
// @Tags         passes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        passID  path      int            true  "Pass ID"
// @Param        adjust  body      AdjustRequest  true  "New remaining balance"
// @Success      200     {object}  Pass
// @Failure      400     {object}  gin.H
// @Failure      404     {object}  gin.H
// @Failure      500     {object}  gin.H
// @Router       /admin/passes/{passID} [patch]
func (h *Handler) AdjustPass(c *gin.Context) {
	passID, err := strconv.Atoi(c.Param("passID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pass ID"})
		return
	}

	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.ManualAdjust(c.Request.Context(), passID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrPassNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "pass not found"})
		case errors.Is(err, ErrInvalidGrant):
			c.JSON(http.StatusBadRequest, gin.H{"error": "remaining_sessions is required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust pass"})
		}
		return
	}

	c.JSON(http.StatusOK, p)
}

// DeletePass godoc
// @Summary      Delete a pass
// @Description  Removes a pass and its deduction history. Not reversible.
// @Tags         passes
// @Security     BearerAuth
// @Produce      json
// @Param        passID  path      int  true  "Pass ID"
// @Success      200     {object}  gin.H
// @Failure      404     {object}  gin.H
// @Failure      500     {object}  gin.H
// @Router       /admin/passes/{passID} [delete]
func (h *Handler) DeletePass(c *gin.Context) {
	passID, err := strconv.Atoi(c.Param("passID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pass ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), passID); err != nil {
		if errors.Is(err, ErrPassNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pass not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete pass"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "pass deleted"})
}

// ListDeductions godoc
// @Summary      Deduction history for a pass
// @Tags         passes
// @Security     BearerAuth
// @Produce      json
// @Param        passID  path      int  true  "Pass ID"
// @Success      200     {array}   Deduction
// @Failure      500     {object}  gin.H
// @Router       /admin/passes/{passID}/deductions [get]
func (h *Handler) ListDeductions(c *gin.Context) {
	passID, err := strconv.Atoi(c.Param("passID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pass ID"})
		return
	}

	deductions, err := h.service.DeductionHistory(c.Request.Context(), passID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch deductions"})
		return
	}

	c.JSON(http.StatusOK, deductions)
}
