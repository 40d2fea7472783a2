package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/dto"
	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type categoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
	CountChildren(ctx context.Context, id string) (int, error)
}

type categoryEventSource interface {
	ListAutoAssignedTo(ctx context.Context, categoryID string) ([]models.Event, error)
}

type categoryReclassifier interface {
	Refresh()
	ClassifyAll(ctx context.Context, ids []string) (*models.ClassificationStats, error)
	RecategorizeForCategory(ctx context.Context, categoryID string) error
}

// CategoryService manages the category tree and keeps the classifier in
// step with rule changes.
type CategoryService struct {
	repo       categoryStore
	events     categoryEventSource
	classifier categoryReclassifier
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCategoryService constructs the service.
func NewCategoryService(repo categoryStore, events categoryEventSource, classifier categoryReclassifier, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{repo: repo, events: events, classifier: classifier, validator: validate, logger: logger}
}

// List returns categories in classification order.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Tree builds the category tree from the flat arena, with a trailing
// virtual node for uncategorized events.
func (s *CategoryService) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}

	nodes := make(map[string]*models.CategoryNode, len(categories))
	for _, category := range categories {
		nodes[category.ID] = &models.CategoryNode{Category: category, Children: []*models.CategoryNode{}}
	}

	var roots []*models.CategoryNode
	for _, category := range categories {
		node := nodes[category.ID]
		if category.ParentID != nil {
			if parent, ok := nodes[*category.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
			s.logger.Warn("category has unknown parent", zap.String("category_id", category.ID))
		}
		roots = append(roots, node)
	}
	sortNodes(roots)

	roots = append(roots, &models.CategoryNode{
		Category: models.Category{ID: models.UncategorizedID, Name: "Uncategorized"},
		Children: []*models.CategoryNode{},
	})
	return roots, nil
}

// Create registers a new category and classifies existing events
// against the extended rule set.
func (s *CategoryService) Create(ctx context.Context, req dto.CreateCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	rules, err := rulesFromRequest(req.Rules)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if _, err := s.repo.GetByID(ctx, *req.ParentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "parent category not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent category")
		}
	}

	category := &models.Category{
		Name:     req.Name,
		Color:    req.Color,
		Priority: req.Priority,
		ParentID: req.ParentID,
		Rules:    rules,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}

	s.classifier.Refresh()
	if _, err := s.classifier.ClassifyAll(ctx, nil); err != nil {
		s.logger.Warn("post-create classification failed", zap.String("category_id", category.ID), zap.Error(err))
	}
	return category, nil
}

// Update rewrites a category. Parent moves are cycle-checked before any
// write; rule changes trigger recategorization of currently assigned
// events.
func (s *CategoryService) Update(ctx context.Context, id string, req dto.UpdateCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	rules, err := rulesFromRequest(req.Rules)
	if err != nil {
		return nil, err
	}

	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	if err := s.ensureNoCycle(ctx, id, req.ParentID); err != nil {
		return nil, err
	}

	category.Name = req.Name
	category.Color = req.Color
	category.Priority = req.Priority
	category.ParentID = req.ParentID
	category.Rules = rules
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}

	s.classifier.Refresh()
	if err := s.classifier.RecategorizeForCategory(ctx, id); err != nil {
		s.logger.Warn("recategorization failed", zap.String("category_id", id), zap.Error(err))
	}
	return category, nil
}

// Move reparents a category after a cycle check.
func (s *CategoryService) Move(ctx context.Context, id string, newParentID *string) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	if err := s.ensureNoCycle(ctx, id, newParentID); err != nil {
		return nil, err
	}
	category.ParentID = newParentID
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move category")
	}
	return category, nil
}

// Delete removes a leaf category. Its auto-assigned events lose the
// assignment (set-null in the store) and are re-run through the
// classifier.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	children, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check category children")
	}
	if children > 0 {
		return appErrors.ErrCategoryHasKids
	}

	orphaned, err := s.events.ListAutoAssignedTo(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list category events")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete category")
	}

	s.classifier.Refresh()
	if len(orphaned) > 0 {
		ids := make([]string, len(orphaned))
		for i, event := range orphaned {
			ids[i] = event.ID
		}
		if _, err := s.classifier.ClassifyAll(ctx, ids); err != nil {
			s.logger.Warn("post-delete classification failed", zap.String("category_id", id), zap.Error(err))
		}
	}
	return nil
}

// ensureNoCycle rejects a parent assignment that would make the
// category its own ancestor. The walk follows parent ids through the
// arena rather than object pointers.
func (s *CategoryService) ensureNoCycle(ctx context.Context, id string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	if *parentID == id {
		return appErrors.ErrCategoryCycle
	}

	categories, err := s.repo.List(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load categories")
	}
	arena := make(map[string]*models.Category, len(categories))
	for i := range categories {
		arena[categories[i].ID] = &categories[i]
	}
	if _, ok := arena[*parentID]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, "parent category not found")
	}

	seen := map[string]struct{}{id: {}}
	for cursor := parentID; cursor != nil; {
		if _, dup := seen[*cursor]; dup {
			return appErrors.ErrCategoryCycle
		}
		seen[*cursor] = struct{}{}
		node, ok := arena[*cursor]
		if !ok {
			break
		}
		cursor = node.ParentID
	}
	return nil
}

func rulesFromRequest(requests []dto.RuleRequest) (models.RuleList, error) {
	rules := make(models.RuleList, 0, len(requests))
	for _, req := range requests {
		kind := models.RuleKind(req.Kind)
		if !kind.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown rule kind: "+req.Kind)
		}
		rules = append(rules, models.ClassificationRule{Kind: kind, Pattern: req.Pattern})
	}
	return rules, nil
}

func sortNodes(nodes []*models.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Category.Priority != nodes[j].Category.Priority {
			return nodes[i].Category.Priority > nodes[j].Category.Priority
		}
		return nodes[i].Category.Name < nodes[j].Category.Name
	})
	for _, node := range nodes {
		sortNodes(node.Children)
	}
}
