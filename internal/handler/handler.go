// Package handler exposes the REST API over the timesheet service.
package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"timeclock/internal/auth"
	"timeclock/internal/timesheet"
)

// Handler holds the service and the token-issuing configuration.
type Handler struct {
	svc        *timesheet.Service
	signingKey string
	issuer     string
	tokenTTL   time.Duration
}

// New creates a handler.
func New(svc *timesheet.Service, signingKey, issuer string, tokenTTL time.Duration) *Handler {
	return &Handler{svc: svc, signingKey: signingKey, issuer: issuer, tokenTTL: tokenTTL}
}

// Mount registers all API routes. Register and login are public;
// everything else requires a bearer token, and /api/admin plus the user
// listing require the admin role.
func (h *Handler) Mount(r gin.IRouter) {
	r.POST("/api/register", h.register)
	r.POST("/api/login", h.login)

	api := r.Group("/api", auth.RequireUser(h.signingKey, h.issuer))
	api.POST("/work-entries", h.createEntry)
	api.GET("/work-entries", h.listEntries)
	api.GET("/projects", h.listProjects)
	api.GET("/users", auth.RequireAdmin(), h.listUsers)

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.POST("/users", h.createUser)
	admin.DELETE("/users/:userId", h.deleteUser)
	admin.POST("/projects", h.createProject)
	admin.PUT("/projects/:projectId", h.updateProject)
	admin.DELETE("/projects/:projectId", h.deleteProject)
}

// writeErr maps service errors onto the API's status codes.
func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timesheet.ErrValidation),
		errors.Is(err, timesheet.ErrUsernameTaken),
		errors.Is(err, timesheet.ErrProjectNameTaken),
		errors.Is(err, timesheet.ErrSelfDelete):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, timesheet.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, timesheet.ErrUserNotFound),
		errors.Is(err, timesheet.ErrProjectNotFound),
		errors.Is(err, timesheet.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// -------- Auth --------

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": u.ID})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	u, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	token, err := auth.Issue(u.ID, u.Username, u.Role, h.issuer, h.signingKey, h.tokenTTL)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userResponse{ID: u.ID, Username: u.Username, Role: u.Role},
	})
}

// -------- Users --------

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if users == nil {
		users = []timesheet.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) createUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"userId": u.ID,
		"user":   userResponse{ID: u.ID, Username: u.Username, Role: u.Role},
	})
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := pathID(c, "userId")
	if !ok {
		return
	}
	claims, _ := auth.FromContext(c)
	if err := h.svc.DeleteUser(c.Request.Context(), claims.UserID, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// -------- Projects --------

type projectRequest struct {
	Name     string `json:"name"`
	IsHidden bool   `json:"is_hidden"`
}

type projectSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) listProjects(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	admin := claims.Role == auth.RoleAdmin

	projects, err := h.svc.ListProjects(c.Request.Context(), admin)
	if err != nil {
		writeErr(c, err)
		return
	}
	if admin {
		if projects == nil {
			projects = []timesheet.Project{}
		}
		c.JSON(http.StatusOK, projects)
		return
	}
	summaries := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, projectSummary{ID: p.ID, Name: p.Name})
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *Handler) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.CreateProject(c.Request.Context(), req.Name, req.IsHidden)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"projectId": p.ID, "project": p})
}

func (h *Handler) updateProject(c *gin.Context) {
	id, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.UpdateProject(c.Request.Context(), id, req.Name, req.IsHidden); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project updated"})
}

func (h *Handler) deleteProject(c *gin.Context) {
	id, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	if err := h.svc.DeleteProject(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

// -------- Work entries --------

type photoUploadRequest struct {
	Name string `json:"name"`
	Data string `json:"data" binding:"required"`
}

type entryRequest struct {
	WorkDate    string               `json:"work_date" binding:"required"`
	StartTime   string               `json:"start_time" binding:"required"`
	EndTime     string               `json:"end_time" binding:"required"`
	Description string               `json:"description"`
	ProjectID   *int64               `json:"project_id"`
	Photos      []photoUploadRequest `json:"photos"`
}

type photoResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Order    int    `json:"order"`
}

type entryResponse struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Username    string          `json:"username"`
	WorkDate    string          `json:"work_date"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	Description string          `json:"description"`
	ProjectID   *int64          `json:"project_id"`
	ProjectName *string         `json:"project_name"`
	CreatedAt   time.Time       `json:"created_at"`
	Photos      []photoResponse `json:"photos"`
}

func (h *Handler) createEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.FromContext(c)

	in := timesheet.NewEntry{
		WorkDate:    req.WorkDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Description: req.Description,
		ProjectID:   req.ProjectID,
	}
	for _, p := range req.Photos {
		in.Photos = append(in.Photos, timesheet.PhotoUpload{Name: p.Name, Data: p.Data})
	}

	// Entries always belong to the caller, never a client-supplied user.
	id, err := h.svc.CreateEntry(c.Request.Context(), claims.UserID, in)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entryId": id})
}

func (h *Handler) listEntries(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	admin := claims.Role == auth.RoleAdmin

	entries, err := h.svc.ListEntries(c.Request.Context(), claims.UserID, admin, c.Query("from"), c.Query("to"))
	if err != nil {
		writeErr(c, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp := entryResponse{
			ID:          e.ID,
			UserID:      e.UserID,
			Username:    e.Username,
			WorkDate:    e.WorkDate.Format("2006-01-02"),
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Description: e.Description,
			ProjectID:   e.ProjectID,
			ProjectName: e.ProjectName,
			CreatedAt:   e.CreatedAt,
			Photos:      []photoResponse{},
		}
		for _, p := range e.Photos {
			resp.Photos = append(resp.Photos, photoResponse{URL: p.URL, Filename: p.Filename, Order: p.Order})
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}
