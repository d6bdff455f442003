package recipes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "procrecipe/internal/errors"
	"procrecipe/models"
)

// MemoryRepository keeps recipes in a map keyed by id. Every mutation holds the write
// lock for its whole read-modify-write, so per-record updates never interleave.
type MemoryRepository struct {
	mu        sync.RWMutex
	recipes   map[string]models.Recipe
	codes     map[string]string
	templates map[string]models.RoutingTemplate
	nextStep  uint

	now   func() time.Time
	newID func() string
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Transactor = (*MemoryRepository)(nil)
)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		recipes:   make(map[string]models.Recipe),
		codes:     make(map[string]string),
		templates: make(map[string]models.RoutingTemplate),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// WithinTransaction runs fn against a private copy of the store and swaps it in when fn
// succeeds. Other callers wait until the unit of work finishes.
func (m *MemoryRepository) WithinTransaction(ctx context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scratch := &MemoryRepository{
		recipes:   make(map[string]models.Recipe, len(m.recipes)),
		codes:     make(map[string]string, len(m.codes)),
		templates: make(map[string]models.RoutingTemplate, len(m.templates)),
		nextStep:  m.nextStep,
		now:       m.now,
		newID:     m.newID,
	}
	for id, recipe := range m.recipes {
		scratch.recipes[id] = recipe.Clone()
	}
	for code, id := range m.codes {
		scratch.codes[code] = id
	}
	for id, tpl := range m.templates {
		scratch.templates[id] = tpl.Clone()
	}

	if err := fn(scratch); err != nil {
		logger.Debug(ctx, "memory transaction rolled back", "error", err)
		return err
	}
	m.recipes = scratch.recipes
	m.codes = scratch.codes
	m.templates = scratch.templates
	m.nextStep = scratch.nextStep
	return nil
}

func (m *MemoryRepository) Create(ctx context.Context, draft models.Recipe) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recipe, err := prepareDraft(draft, m.newID(), m.now())
	if err != nil {
		return models.Recipe{}, err
	}
	if _, taken := m.codes[recipe.Code]; taken {
		return models.Recipe{}, duplicateCode(recipe.Code)
	}
	m.store(recipe)

	logger.Info(ctx, "recipe created", "id", recipe.ID, "code", recipe.Code)
	return recipe.Clone(), nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (models.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recipe, ok := m.recipes[id]
	if !ok {
		return models.Recipe{}, apperrors.NotFound("recipe", id)
	}
	return recipe.Clone(), nil
}

func (m *MemoryRepository) Update(ctx context.Context, id string, patch Patch) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.recipes[id]
	if !ok {
		return models.Recipe{}, apperrors.NotFound("recipe", id)
	}
	next, err := patched(current, patch, m.now())
	if err != nil {
		return models.Recipe{}, err
	}
	if owner, taken := m.codes[next.Code]; taken && owner != id {
		return models.Recipe{}, duplicateCode(next.Code)
	}
	delete(m.codes, current.Code)
	m.store(next)

	logger.Info(ctx, "recipe updated", "id", id, "code", next.Code, "version", next.Version)
	return next.Clone(), nil
}

func (m *MemoryRepository) Activate(ctx context.Context, id string) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.recipes[id]
	if !ok {
		return models.Recipe{}, apperrors.NotFound("recipe", id)
	}
	changed, err := activation(current)
	if err != nil {
		return models.Recipe{}, err
	}
	if !changed {
		return current.Clone(), nil
	}
	current.Status = models.StatusActive
	current.UpdatedAt = m.now()
	m.recipes[id] = current

	logger.Info(ctx, "recipe activated", "id", id, "code", current.Code)
	return current.Clone(), nil
}

func (m *MemoryRepository) Deprecate(ctx context.Context, id string) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.recipes[id]
	if !ok {
		return models.Recipe{}, apperrors.NotFound("recipe", id)
	}
	if current.Status == models.StatusDeprecated {
		return current.Clone(), nil
	}
	current.Status = models.StatusDeprecated
	current.UpdatedAt = m.now()
	m.recipes[id] = current

	logger.Info(ctx, "recipe deprecated", "id", id, "code", current.Code)
	return current.Clone(), nil
}

func (m *MemoryRepository) Duplicate(ctx context.Context, id, code, createdBy string) (models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.recipes[id]
	if !ok {
		return models.Recipe{}, apperrors.NotFound("recipe", id)
	}
	dup, err := duplicateOf(source, code, createdBy, m.newID(), m.now())
	if err != nil {
		return models.Recipe{}, err
	}
	if _, taken := m.codes[dup.Code]; taken {
		return models.Recipe{}, duplicateCode(dup.Code)
	}
	m.store(dup)

	logger.Info(ctx, "recipe duplicated", "id", dup.ID, "code", dup.Code, "source", id)
	return dup.Clone(), nil
}

func (m *MemoryRepository) List(_ context.Context, filter Filter) ([]models.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := foldSearch(filter.Search)
	out := make([]models.Recipe, 0, len(m.recipes))
	for _, recipe := range m.recipes {
		if matchesFilter(recipe, filter, search) {
			out = append(out, recipe.Clone())
		}
	}
	sortRecipes(out)
	return out, nil
}

func (m *MemoryRepository) CreateRoutingTemplate(ctx context.Context, template models.RoutingTemplate) (models.RoutingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl := template.Clone()
	normalizeTemplate(&tpl)
	if err := validateTemplate(tpl); err != nil {
		return models.RoutingTemplate{}, err
	}
	for _, step := range tpl.Steps {
		if _, ok := m.recipes[step.RecipeID]; !ok {
			return models.RoutingTemplate{}, apperrors.NotFound("recipe", step.RecipeID)
		}
	}

	now := m.now()
	tpl.ID = m.newID()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	for i := range tpl.Steps {
		m.nextStep++
		tpl.Steps[i].ID = m.nextStep
		tpl.Steps[i].TemplateID = tpl.ID
		tpl.Steps[i].Recipe = nil
	}
	m.templates[tpl.ID] = tpl

	logger.Info(ctx, "routing template created", "id", tpl.ID, "name", tpl.Name, "steps", len(tpl.Steps))
	return m.resolve(tpl), nil
}

func (m *MemoryRepository) GetRoutingTemplate(_ context.Context, id string) (models.RoutingTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[id]
	if !ok {
		return models.RoutingTemplate{}, apperrors.NotFound("routing template", id)
	}
	return m.resolve(tpl), nil
}

func (m *MemoryRepository) ListRoutingTemplates(_ context.Context, filter TemplateFilter) ([]models.RoutingTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	division := NormalizeDivision(filter.Division)
	out := make([]models.RoutingTemplate, 0, len(m.templates))
	for _, tpl := range m.templates {
		if division != "" && tpl.Division != division {
			continue
		}
		out = append(out, m.resolve(tpl))
	}
	sortTemplates(out)
	return out, nil
}

// resolve joins each step to the current state of its recipe. Callers hold the lock.
func (m *MemoryRepository) resolve(tpl models.RoutingTemplate) models.RoutingTemplate {
	out := tpl.Clone()
	for i, step := range out.Steps {
		if recipe, ok := m.recipes[step.RecipeID]; ok {
			resolved := recipe.Clone()
			out.Steps[i].Recipe = &resolved
		}
	}
	return out
}

func (m *MemoryRepository) store(recipe models.Recipe) {
	m.recipes[recipe.ID] = recipe
	m.codes[recipe.Code] = recipe.ID
}
