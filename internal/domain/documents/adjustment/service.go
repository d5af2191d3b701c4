package adjustment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/core/numerator"
	"stockkeeper/internal/core/tx"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/domain/registers/stock"
	"stockkeeper/pkg/logger"
)

// OpnameWorkflow is the part of the stock count workflow adjustments drive.
type OpnameWorkflow interface {
	LockForAdjustment(ctx context.Context, opnameID id.ID) (*opname.Opname, error)
	MarkAdjusted(ctx context.Context, o *opname.Opname, adjustmentID id.ID) error
}

// ManualInput holds a manual stock in/out request.
type ManualInput struct {
	Status         Status
	ManagementDate time.Time
	ProducedBy     string
	Notes          string
	Items          []ItemInput
}

// FromOpnameInput holds a request to apply a reconciled count.
type FromOpnameInput struct {
	OpnameID id.ID
	// ManagementDate defaults to the count date.
	ManagementDate *time.Time
	ProducedBy     string
	Notes          string
}

// HeaderInput changes the date or notes. Quantities are immutable.
type HeaderInput struct {
	ManagementDate *time.Time
	Notes          *string
}

// Service orchestrates stock adjustments.
type Service struct {
	repo      Repository
	ledger    *stock.Service
	opnames   OpnameWorkflow
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*ManagementStock]
	now       func() time.Time
}

// NewService creates a new adjustment service.
func NewService(
	repo Repository,
	ledger *stock.Service,
	opnames OpnameWorkflow,
	gen numerator.Generator,
	txm tx.Manager,
) *Service {
	s := &Service{
		repo:      repo,
		ledger:    ledger,
		opnames:   opnames,
		numerator: gen,
		txManager: txm,
		hooks:     domain.NewHookRegistry[*ManagementStock](),
		now:       time.Now,
	}
	s.hooks.On(domain.BeforeCreate, audit.EnrichCreatedBy[*ManagementStock])
	s.hooks.On(domain.BeforeUpdate, audit.EnrichUpdatedBy[*ManagementStock])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*ManagementStock] {
	return s.hooks
}

// CreateManual books a manual IN or OUT for a batch of products. The batch
// is all-or-nothing: an OUT line exceeding current stock fails the whole
// request with INSUFFICIENT_STOCK and no stock changes.
func (s *Service) CreateManual(ctx context.Context, in ManualInput) (*ManagementStock, error) {
	if in.Status != StatusIn && in.Status != StatusOut {
		return nil, apperror.NewValidation("status must be IN or OUT").
			WithDetail("status", string(in.Status))
	}

	now := s.now()
	if in.ManagementDate.IsZero() {
		in.ManagementDate = now
	}
	m := NewManagementStock(in.Status, in.ManagementDate, in.ProducedBy, in.Notes, now)
	if err := m.SetManualItems(in.Items); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.create(ctx, m, now); err != nil {
			return err
		}
		opts := stock.ApplyOptions{ForbidNegative: m.Status == StatusOut}
		if _, err := s.ledger.ApplyBatch(ctx, m.Recorder(), m.Entries(), opts); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manual adjustment applied",
		"id", m.ID, "code", m.Code, "status", m.Status, "items", len(m.Items))
	return m, nil
}

// CreateFromOpname applies the differences of a RECONCILED count and marks
// the count COMPLETED, all in one transaction.
func (s *Service) CreateFromOpname(ctx context.Context, in FromOpnameInput) (*ManagementStock, error) {
	now := s.now()
	var m *ManagementStock

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.opnames.LockForAdjustment(ctx, in.OpnameID)
		if err != nil {
			return err
		}

		date := o.OpnameDate
		if in.ManagementDate != nil {
			date = *in.ManagementDate
		}
		producedBy := in.ProducedBy
		if strings.TrimSpace(producedBy) == "" {
			producedBy = o.ConductedBy
		}
		notes := in.Notes
		if notes == "" {
			notes = "Stock count " + o.Code
		}

		m = NewManagementStock(StatusOpnameAdjustment, date, producedBy, notes, now)
		m.LinkedOpnameID = &o.ID
		m.Items = itemsFromOpname(m.ID, o)

		if err := s.create(ctx, m, now); err != nil {
			return err
		}
		if _, err := s.ledger.ApplyBatch(ctx, m.Recorder(), m.Entries(), stock.ApplyOptions{}); err != nil {
			return err
		}
		return s.opnames.MarkAdjusted(ctx, o, m.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "opname adjustment applied",
		"id", m.ID, "code", m.Code, "opname_id", in.OpnameID, "items", len(m.Items))
	return m, nil
}

func itemsFromOpname(adjustmentID id.ID, o *opname.Opname) []Item {
	items := make([]Item, 0, len(o.Items))
	for i, oi := range o.Items {
		itemID := oi.ID
		items = append(items, Item{
			ID:                 id.New(),
			ManagementStockID:  adjustmentID,
			LineNo:             i + 1,
			ProductID:          oi.ProductID,
			Quantity:           oi.Difference,
			Notes:              oi.Notes,
			LinkedOpnameItemID: &itemID,
		})
	}
	return items
}

// create allocates the code and stores header and items. Runs inside a transaction.
func (s *Service) create(ctx context.Context, m *ManagementStock, now time.Time) error {
	c, err := s.numerator.Next(ctx, CodeEntityType, now)
	if err != nil {
		return err
	}
	if err := m.AssignCode(c); err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, m); err != nil {
		return err
	}
	if err := m.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create adjustment: %w", err)
	}
	if err := s.repo.CreateItems(ctx, m.ID, m.Items); err != nil {
		return fmt.Errorf("create items: %w", err)
	}
	return nil
}

// UpdateHeader changes date and notes of any adjustment.
func (s *Service) UpdateHeader(ctx context.Context, adjustmentID id.ID, in HeaderInput) (*ManagementStock, error) {
	var m *ManagementStock
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if m, err = s.repo.GetForUpdate(ctx, adjustmentID); err != nil {
			return err
		}

		if in.ManagementDate != nil {
			if in.ManagementDate.IsZero() {
				return apperror.NewValidation("management date is required").
					WithDetail("field", "managementDate")
			}
			m.ManagementDate = *in.ManagementDate
		}
		if in.Notes != nil {
			m.Notes = strings.TrimSpace(*in.Notes)
		}

		if err := s.hooks.Run(ctx, domain.BeforeUpdate, m); err != nil {
			return err
		}
		m.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, m); err != nil {
			return fmt.Errorf("update adjustment: %w", err)
		}

		m.Items, err = s.repo.GetItems(ctx, adjustmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns an adjustment with its items.
func (s *Service) Get(ctx context.Context, adjustmentID id.ID) (*ManagementStock, error) {
	m, err := s.repo.GetByID(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	if m.Items, err = s.repo.GetItems(ctx, adjustmentID); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return m, nil
}

// List returns adjustment headers.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*ManagementStock], error) {
	if filter.Status != "" {
		st, err := ParseStatus(filter.Status)
		if err != nil {
			return domain.ListResult[*ManagementStock]{}, err
		}
		filter.Status = string(st)
	}
	return s.repo.List(ctx, filter.Normalize())
}

// Delete reverses every line of a manual adjustment and removes it.
// Count-derived adjustments cannot be deleted.
func (s *Service) Delete(ctx context.Context, adjustmentID id.ID) error {
	var m *ManagementStock
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if m, err = s.repo.GetForUpdate(ctx, adjustmentID); err != nil {
			return err
		}
		if err := m.CanDelete(); err != nil {
			return err
		}
		if m.Items, err = s.repo.GetItems(ctx, adjustmentID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		if err := s.hooks.Run(ctx, domain.BeforeDelete, m); err != nil {
			return err
		}

		if _, err := s.ledger.Reverse(ctx, m.Recorder(), m.Entries()); err != nil {
			return err
		}
		return s.repo.Delete(ctx, adjustmentID)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "adjustment reversed and deleted", "id", m.ID, "code", m.Code, "status", m.Status)
	return nil
}
