package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/dto"
	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type categoryStoreStub struct {
	items map[string]*models.Category

	updated *models.Category
	created *models.Category
	deleted []string
}

func (s *categoryStoreStub) List(ctx context.Context) ([]models.Category, error) {
	categories := make([]models.Category, 0, len(s.items))
	for _, category := range s.items {
		categories = append(categories, *category)
	}
	return categories, nil
}

func (s *categoryStoreStub) GetByID(ctx context.Context, id string) (*models.Category, error) {
	category, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *category
	return &cp, nil
}

func (s *categoryStoreStub) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = "generated"
	}
	s.created = category
	if s.items == nil {
		s.items = make(map[string]*models.Category)
	}
	cp := *category
	s.items[category.ID] = &cp
	return nil
}

func (s *categoryStoreStub) Update(ctx context.Context, category *models.Category) error {
	s.updated = category
	cp := *category
	s.items[category.ID] = &cp
	return nil
}

func (s *categoryStoreStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.items, id)
	return nil
}

func (s *categoryStoreStub) CountChildren(ctx context.Context, id string) (int, error) {
	count := 0
	for _, category := range s.items {
		if category.ParentID != nil && *category.ParentID == id {
			count++
		}
	}
	return count, nil
}

type categoryEventSourceStub struct {
	assigned map[string][]models.Event
}

func (s *categoryEventSourceStub) ListAutoAssignedTo(ctx context.Context, categoryID string) ([]models.Event, error) {
	return s.assigned[categoryID], nil
}

type reclassifierStub struct {
	refreshes       int
	classifyAllIDs  [][]string
	recategorizedID []string
}

func (s *reclassifierStub) Refresh() { s.refreshes++ }

func (s *reclassifierStub) ClassifyAll(ctx context.Context, ids []string) (*models.ClassificationStats, error) {
	s.classifyAllIDs = append(s.classifyAllIDs, ids)
	return &models.ClassificationStats{}, nil
}

func (s *reclassifierStub) RecategorizeForCategory(ctx context.Context, categoryID string) error {
	s.recategorizedID = append(s.recategorizedID, categoryID)
	return nil
}

func strPtr(s string) *string { return &s }

func newCategoryFixture(items ...*models.Category) (*CategoryService, *categoryStoreStub, *reclassifierStub) {
	store := &categoryStoreStub{items: make(map[string]*models.Category)}
	for _, item := range items {
		store.items[item.ID] = item
	}
	classifier := &reclassifierStub{}
	svc := NewCategoryService(store, &categoryEventSourceStub{}, classifier, validator.New(), zap.NewNop())
	return svc, store, classifier
}

func TestCategoryCreateTriggersClassification(t *testing.T) {
	svc, store, classifier := newCategoryFixture()

	category, err := svc.Create(context.Background(), dto.CreateCategoryRequest{
		Name:     "Work",
		Color:    "#336699",
		Priority: 10,
		Rules:    []dto.RuleRequest{{Kind: "CONTAINS", Pattern: "meeting"}},
	})
	require.NoError(t, err)
	require.NotNil(t, store.created)
	assert.Equal(t, "Work", category.Name)
	require.Len(t, category.Rules, 1)
	assert.Equal(t, models.RuleContains, category.Rules[0].Kind)

	assert.Equal(t, 1, classifier.refreshes)
	require.Len(t, classifier.classifyAllIDs, 1)
	assert.Nil(t, classifier.classifyAllIDs[0])
}

func TestCategoryCreateRejectsUnknownRuleKind(t *testing.T) {
	svc, store, _ := newCategoryFixture()

	_, err := svc.Create(context.Background(), dto.CreateCategoryRequest{
		Name:     "Work",
		Color:    "#336699",
		Priority: 10,
		Rules:    []dto.RuleRequest{{Kind: "GLOB", Pattern: "*"}},
	})
	require.Error(t, err)
	assert.Nil(t, store.created)
}

func TestCategoryCreateRejectsMissingParent(t *testing.T) {
	svc, store, _ := newCategoryFixture()

	_, err := svc.Create(context.Background(), dto.CreateCategoryRequest{
		Name:     "Work",
		Color:    "#336699",
		Priority: 10,
		ParentID: strPtr("nope"),
	})
	require.Error(t, err)
	assert.Nil(t, store.created)
}

func TestCategoryUpdateRecategorizes(t *testing.T) {
	svc, store, classifier := newCategoryFixture(
		&models.Category{ID: "work", Name: "Work", Color: "#336699", Priority: 10},
	)

	updated, err := svc.Update(context.Background(), "work", dto.UpdateCategoryRequest{
		Name:     "Work",
		Color:    "#336699",
		Priority: 20,
		Rules:    []dto.RuleRequest{{Kind: "EQUALS", Pattern: "Standup"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Priority)
	require.NotNil(t, store.updated)

	assert.Equal(t, 1, classifier.refreshes)
	assert.Equal(t, []string{"work"}, classifier.recategorizedID)
}

func TestCategoryMoveSelfParentRejected(t *testing.T) {
	svc, store, _ := newCategoryFixture(
		&models.Category{ID: "work", Name: "Work"},
	)

	_, err := svc.Move(context.Background(), "work", strPtr("work"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCategoryCycle) || err == appErrors.ErrCategoryCycle)
	assert.Nil(t, store.updated)
}

func TestCategoryMoveCycleRejectedBeforeWrite(t *testing.T) {
	svc, store, _ := newCategoryFixture(
		&models.Category{ID: "a", Name: "A", ParentID: nil},
		&models.Category{ID: "b", Name: "B", ParentID: strPtr("a")},
		&models.Category{ID: "c", Name: "C", ParentID: strPtr("b")},
	)

	// a under c would close the loop a -> b -> c -> a
	_, err := svc.Move(context.Background(), "a", strPtr("c"))
	require.Error(t, err)
	assert.Nil(t, store.updated)
}

func TestCategoryMoveToValidParent(t *testing.T) {
	svc, store, _ := newCategoryFixture(
		&models.Category{ID: "a", Name: "A"},
		&models.Category{ID: "b", Name: "B"},
	)

	moved, err := svc.Move(context.Background(), "b", strPtr("a"))
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, "a", *moved.ParentID)
	require.NotNil(t, store.updated)
}

func TestCategoryMoveUnknownParentRejected(t *testing.T) {
	svc, _, _ := newCategoryFixture(
		&models.Category{ID: "a", Name: "A"},
	)

	_, err := svc.Move(context.Background(), "a", strPtr("ghost"))
	require.Error(t, err)
}

func TestCategoryDeleteWithChildrenRejected(t *testing.T) {
	svc, store, _ := newCategoryFixture(
		&models.Category{ID: "parent", Name: "Parent"},
		&models.Category{ID: "child", Name: "Child", ParentID: strPtr("parent")},
	)

	err := svc.Delete(context.Background(), "parent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCategoryHasKids) || err == appErrors.ErrCategoryHasKids)
	assert.Empty(t, store.deleted)
}

func TestCategoryDeleteReclassifiesOrphans(t *testing.T) {
	store := &categoryStoreStub{items: map[string]*models.Category{
		"work": {ID: "work", Name: "Work"},
	}}
	events := &categoryEventSourceStub{assigned: map[string][]models.Event{
		"work": {{ID: "e1"}, {ID: "e2"}},
	}}
	classifier := &reclassifierStub{}
	svc := NewCategoryService(store, events, classifier, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, store.deleted)
	assert.Equal(t, 1, classifier.refreshes)
	require.Len(t, classifier.classifyAllIDs, 1)
	assert.Equal(t, []string{"e1", "e2"}, classifier.classifyAllIDs[0])
}

func TestCategoryTreeAppendsUncategorizedBucket(t *testing.T) {
	svc, _, _ := newCategoryFixture(
		&models.Category{ID: "a", Name: "Alpha", Priority: 5},
		&models.Category{ID: "b", Name: "Beta", Priority: 10},
		&models.Category{ID: "a1", Name: "Alpha child", Priority: 1, ParentID: strPtr("a")},
	)

	roots, err := svc.Tree(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 3)

	// priority descending, virtual bucket last
	assert.Equal(t, "b", roots[0].Category.ID)
	assert.Equal(t, "a", roots[1].Category.ID)
	assert.Equal(t, models.UncategorizedID, roots[2].Category.ID)

	require.Len(t, roots[1].Children, 1)
	assert.Equal(t, "a1", roots[1].Children[0].Category.ID)
}
