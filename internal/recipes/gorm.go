package recipes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "procrecipe/internal/errors"
	"procrecipe/models"
)

const defaultMaxRetries = 5

// errStale marks a write that lost an optimistic version race and should be retried.
var errStale = errors.New("recipe changed concurrently")

// GormRepository stores recipes through gorm. Writes are guarded on the version and
// status they read inside a transaction; a lost race is retried against the fresh row.
type GormRepository struct {
	db         *gorm.DB
	newID      func() string
	maxRetries int
}

var (
	_ Repository = (*GormRepository)(nil)
	_ Transactor = (*GormRepository)(nil)
)

// NewGormRepository wraps an already migrated database handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{
		db:         db,
		newID:      uuid.NewString,
		maxRetries: defaultMaxRetries,
	}
}

// WithinTransaction runs fn in one database transaction. Writes fn makes through the
// repository it is handed become savepoints inside that transaction.
func (r *GormRepository) WithinTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx, newID: r.newID, maxRetries: r.maxRetries})
	})
}

func (r *GormRepository) Create(ctx context.Context, draft models.Recipe) (models.Recipe, error) {
	recipe, err := prepareDraft(draft, r.newID(), r.db.NowFunc())
	if err != nil {
		return models.Recipe{}, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCodeFree(tx, recipe.Code, ""); err != nil {
			return err
		}
		return tx.Create(&recipe).Error
	})
	if err != nil {
		return models.Recipe{}, storeError("create recipe", err)
	}

	logger.Info(ctx, "recipe created", "id", recipe.ID, "code", recipe.Code)
	return recipe, nil
}

func (r *GormRepository) Get(ctx context.Context, id string) (models.Recipe, error) {
	recipe, err := findRecipe(r.db.WithContext(ctx), id)
	if err != nil {
		return models.Recipe{}, storeError("get recipe", err)
	}
	return recipe, nil
}

func (r *GormRepository) Update(ctx context.Context, id string, patch Patch) (models.Recipe, error) {
	var updated models.Recipe
	err := r.retry(ctx, func(tx *gorm.DB) error {
		current, err := findRecipe(tx, id)
		if err != nil {
			return err
		}
		next, err := patched(current, patch, r.db.NowFunc())
		if err != nil {
			return err
		}
		if next.Code != current.Code {
			if err := ensureCodeFree(tx, next.Code, id); err != nil {
				return err
			}
		}
		// Lifecycle moves leave the version alone, so the status read is part of the guard.
		result := tx.Model(&models.Recipe{}).
			Where("id = ? AND version = ? AND status = ?", id, current.Version, current.Status).
			Select("*").
			Updates(&next)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStale
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.Recipe{}, storeError("update recipe", err)
	}

	logger.Info(ctx, "recipe updated", "id", id, "code", updated.Code, "version", updated.Version)
	return updated, nil
}

func (r *GormRepository) Activate(ctx context.Context, id string) (models.Recipe, error) {
	var activated models.Recipe
	err := r.retry(ctx, func(tx *gorm.DB) error {
		current, err := findRecipe(tx, id)
		if err != nil {
			return err
		}
		changed, err := activation(current)
		if err != nil {
			return err
		}
		if changed {
			if err := moveStatus(tx, &current, models.StatusActive, r.db.NowFunc()); err != nil {
				return err
			}
			logger.Info(ctx, "recipe activated", "id", id, "code", current.Code)
		}
		activated = current
		return nil
	})
	if err != nil {
		return models.Recipe{}, storeError("activate recipe", err)
	}
	return activated, nil
}

func (r *GormRepository) Deprecate(ctx context.Context, id string) (models.Recipe, error) {
	var deprecated models.Recipe
	err := r.retry(ctx, func(tx *gorm.DB) error {
		current, err := findRecipe(tx, id)
		if err != nil {
			return err
		}
		if current.Status != models.StatusDeprecated {
			if err := moveStatus(tx, &current, models.StatusDeprecated, r.db.NowFunc()); err != nil {
				return err
			}
			logger.Info(ctx, "recipe deprecated", "id", id, "code", current.Code)
		}
		deprecated = current
		return nil
	})
	if err != nil {
		return models.Recipe{}, storeError("deprecate recipe", err)
	}
	return deprecated, nil
}

func (r *GormRepository) Duplicate(ctx context.Context, id, code, createdBy string) (models.Recipe, error) {
	var dup models.Recipe
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := findRecipe(tx, id)
		if err != nil {
			return err
		}
		dup, err = duplicateOf(source, code, createdBy, r.newID(), r.db.NowFunc())
		if err != nil {
			return err
		}
		if err := ensureCodeFree(tx, dup.Code, ""); err != nil {
			return err
		}
		return tx.Create(&dup).Error
	})
	if err != nil {
		return models.Recipe{}, storeError("duplicate recipe", err)
	}

	logger.Info(ctx, "recipe duplicated", "id", dup.ID, "code", dup.Code, "source", id)
	return dup, nil
}

func (r *GormRepository) List(ctx context.Context, filter Filter) ([]models.Recipe, error) {
	query := r.db.WithContext(ctx).Model(&models.Recipe{})
	if division := NormalizeDivision(filter.Division); division != "" {
		query = query.Where("division = ?", division)
	}
	if filter.OperationType != "" {
		query = query.Where("operation_type = ?", filter.OperationType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var rows []models.Recipe
	if err := query.Order("code ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, storeError("list recipes", err)
	}

	// Search runs after the query so case folding matches the memory store on every driver.
	search := foldSearch(filter.Search)
	out := make([]models.Recipe, 0, len(rows))
	for _, recipe := range rows {
		if matchesFilter(recipe, Filter{}, search) {
			out = append(out, recipe)
		}
	}
	sortRecipes(out)
	return out, nil
}

func (r *GormRepository) CreateRoutingTemplate(ctx context.Context, template models.RoutingTemplate) (models.RoutingTemplate, error) {
	tpl := template.Clone()
	normalizeTemplate(&tpl)
	if err := validateTemplate(tpl); err != nil {
		return models.RoutingTemplate{}, err
	}

	tpl.ID = r.newID()
	steps := tpl.Steps
	tpl.Steps = nil
	for i := range steps {
		steps[i].ID = 0
		steps[i].TemplateID = tpl.ID
		steps[i].Recipe = nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			var count int64
			if err := tx.Model(&models.Recipe{}).Where("id = ?", step.RecipeID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperrors.NotFound("recipe", step.RecipeID)
			}
		}
		if err := tx.Omit(clause.Associations).Create(&tpl).Error; err != nil {
			return err
		}
		return tx.Create(&steps).Error
	})
	if err != nil {
		return models.RoutingTemplate{}, storeError("create routing template", err)
	}

	logger.Info(ctx, "routing template created", "id", tpl.ID, "name", tpl.Name, "steps", len(steps))
	return r.GetRoutingTemplate(ctx, tpl.ID)
}

func (r *GormRepository) GetRoutingTemplate(ctx context.Context, id string) (models.RoutingTemplate, error) {
	var tpl models.RoutingTemplate
	err := preloadSteps(r.db.WithContext(ctx)).Where("id = ?", id).First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoutingTemplate{}, apperrors.NotFound("routing template", id)
		}
		return models.RoutingTemplate{}, storeError("get routing template", err)
	}
	return tpl, nil
}

func (r *GormRepository) ListRoutingTemplates(ctx context.Context, filter TemplateFilter) ([]models.RoutingTemplate, error) {
	query := preloadSteps(r.db.WithContext(ctx))
	if division := NormalizeDivision(filter.Division); division != "" {
		query = query.Where("division = ?", division)
	}

	var out []models.RoutingTemplate
	if err := query.Order("name ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, storeError("list routing templates", err)
	}
	sortTemplates(out)
	return out, nil
}

// retry runs fn in a fresh transaction until it stops losing version races.
func (r *GormRepository) retry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, errStale) {
			return err
		}
		logger.Debug(ctx, "retrying stale recipe write", "attempt", attempt+1)
	}
	return err
}

func preloadSteps(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Steps", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		Preload("Steps.Recipe")
}

func findRecipe(tx *gorm.DB, id string) (models.Recipe, error) {
	var recipe models.Recipe
	if err := tx.Where("id = ?", id).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Recipe{}, apperrors.NotFound("recipe", id)
		}
		return models.Recipe{}, err
	}
	return recipe, nil
}

func ensureCodeFree(tx *gorm.DB, code, exceptID string) error {
	query := tx.Model(&models.Recipe{}).Where("code = ?", code)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return duplicateCode(code)
	}
	return nil
}

// moveStatus performs a lifecycle move guarded on the status it was read with.
func moveStatus(tx *gorm.DB, recipe *models.Recipe, to models.RecipeStatus, now time.Time) error {
	result := tx.Model(&models.Recipe{}).
		Where("id = ? AND status = ?", recipe.ID, recipe.Status).
		Updates(map[string]any{"status": to, "updated_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errStale
	}
	recipe.Status = to
	recipe.UpdatedAt = now
	return nil
}

// storeError passes structured errors through and wraps driver failures as internal.
func storeError(op string, err error) error {
	var structured *apperrors.StructuredError
	if errors.As(err, &structured) {
		return err
	}
	if errors.Is(err, errStale) {
		return apperrors.Internal(op+": retries exhausted", err)
	}
	return apperrors.Internal(op, err)
}
