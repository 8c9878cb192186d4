package api

import (
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/libtrack/libtrack-server/internal/models"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// saveUpload stores an uploaded file under the upload directory with a
// generated name and returns the public path it will be served from.
func (h *Handler) saveUpload(c *gin.Context, file *multipart.FileHeader, subdir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return "", fmt.Errorf("file type %s is not allowed", ext)
	}
	if file.Size > h.uploads.MaxSizeMB*1024*1024 {
		return "", fmt.Errorf("file exceeds %d MB limit", h.uploads.MaxSizeMB)
	}

	dir := filepath.Join(h.uploads.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	newName := uuid.New().String() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(dir, newName)); err != nil {
		return "", err
	}

	return h.uploads.ServePrefix + "/" + subdir + "/" + newName, nil
}

// CreateBook handles POST /api/books (multipart form with optional cover)
func (h *Handler) CreateBook(c *gin.Context) {
	title := c.PostForm("title")
	author := c.PostForm("author")
	if title == "" || author == "" {
		h.badRequest(c, "title and author are required")
		return
	}

	copies, _ := strconv.Atoi(c.DefaultPostForm("copies", "1"))
	book := &models.Book{
		Title:       title,
		Author:      author,
		TotalCopies: copies,
	}
	if isbn := c.PostForm("isbn"); isbn != "" {
		book.ISBN = sql.NullString{String: isbn, Valid: true}
	}
	if category := c.PostForm("category"); category != "" {
		book.Category = sql.NullString{String: category, Valid: true}
	}

	coverPath := ""
	if file, err := c.FormFile("cover"); err == nil {
		path, err := h.saveUpload(c, file, "covers")
		if err != nil {
			h.badRequest(c, err.Error())
			return
		}
		coverPath = path
	}

	created, err := h.svc.CreateBook(c.Request.Context(), c.GetString("userId"), book, coverPath)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "book": created})
}

// ListBooks handles GET /api/books
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.svc.ListBooks(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.internalError(c, err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "books": books})
}

// CreateResearchPaper handles POST /api/research-papers
func (h *Handler) CreateResearchPaper(c *gin.Context) {
	var paper models.ResearchPaper
	var req struct {
		Title      string `json:"title" binding:"required"`
		Authors    string `json:"authors" binding:"required"`
		Year       int    `json:"year"`
		Department string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	paper.Title = req.Title
	paper.Authors = req.Authors
	if req.Year != 0 {
		paper.Year = sql.NullInt64{Int64: int64(req.Year), Valid: true}
	}
	if req.Department != "" {
		paper.Department = sql.NullString{String: req.Department, Valid: true}
	}

	created, err := h.svc.CreateResearchPaper(c.Request.Context(), c.GetString("userId"), &paper)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "researchPaper": created})
}

// ListResearchPapers handles GET /api/research-papers
func (h *Handler) ListResearchPapers(c *gin.Context) {
	papers, err := h.svc.ListResearchPapers(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.internalError(c, err)
		return
	}
	if papers == nil {
		papers = []models.ResearchPaper{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "researchPapers": papers})
}

// UploadProfileImage handles POST /api/profile/image
func (h *Handler) UploadProfileImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		h.badRequest(c, "image file is required")
		return
	}

	path, err := h.saveUpload(c, file, "profiles")
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	if err := h.svc.SetProfileImage(c.Request.Context(), c.GetString("userId"), path); err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "path": path})
}
