package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/libtrack/libtrack-server/internal/models"
)

// CreateBook adds a catalog book. coverPath may be empty when no cover was
// uploaded.
func (s *DefaultService) CreateBook(ctx context.Context, actorID string, book *models.Book, coverPath string) (*models.Book, error) {
	if strings.TrimSpace(book.Title) == "" || strings.TrimSpace(book.Author) == "" {
		return nil, fmt.Errorf("%w: title and author are required", ErrValidation)
	}

	if coverPath != "" {
		book.CoverImage = sql.NullString{String: coverPath, Valid: true}
	}

	if err := s.repo.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("error creating book: %w", err)
	}

	s.logActivity(ctx, actorID, "book.create", fmt.Sprintf("book_id=%s", book.ID))

	return book, nil
}

// ListBooks returns catalog books, optionally filtered by a title/author search
func (s *DefaultService) ListBooks(ctx context.Context, search string) ([]models.Book, error) {
	books, err := s.repo.ListBooks(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("error listing books: %w", err)
	}
	return books, nil
}

// CreateResearchPaper adds a research paper to the archive
func (s *DefaultService) CreateResearchPaper(ctx context.Context, actorID string, paper *models.ResearchPaper) (*models.ResearchPaper, error) {
	if strings.TrimSpace(paper.Title) == "" || strings.TrimSpace(paper.Authors) == "" {
		return nil, fmt.Errorf("%w: title and authors are required", ErrValidation)
	}

	if err := s.repo.CreateResearchPaper(ctx, paper); err != nil {
		return nil, fmt.Errorf("error creating research paper: %w", err)
	}

	s.logActivity(ctx, actorID, "paper.create", fmt.Sprintf("paper_id=%s", paper.ID))

	return paper, nil
}

// ListResearchPapers returns archived papers, optionally filtered by search
func (s *DefaultService) ListResearchPapers(ctx context.Context, search string) ([]models.ResearchPaper, error) {
	papers, err := s.repo.ListResearchPapers(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("error listing research papers: %w", err)
	}
	return papers, nil
}

// SetProfileImage records an uploaded profile image path for a user
func (s *DefaultService) SetProfileImage(ctx context.Context, userID, imagePath string) error {
	if err := s.repo.UpdateUserProfileImage(ctx, userID, imagePath); err != nil {
		return err
	}
	s.logActivity(ctx, userID, "user.profile_image", "")
	return nil
}
