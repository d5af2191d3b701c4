package opname

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
	"stockkeeper/pkg/logger"
)

// StockReader supplies the current stock snapshotted into new items.
type StockReader interface {
	CurrentStocks(ctx context.Context, productIDs []id.ID) (map[id.ID]int64, error)
}

// RecordInput holds the fields of a new stock count.
type RecordInput struct {
	OpnameDate  time.Time
	ConductedBy string
	Notes       string
	Items       []ItemInput
	// Finalize derives the terminal status in the same save.
	Finalize bool
}

// NotesInput changes notes only. ItemNotes is keyed by product.
type NotesInput struct {
	Notes     *string
	ItemNotes map[id.ID]string
}

// Service drives the stock count workflow.
type Service struct {
	repo      Repository
	stocks    StockReader
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Opname]
	now       func() time.Time
}

// NewService creates a new opname service.
func NewService(repo Repository, stocks StockReader, gen numerator.Generator, txm tx.Manager) *Service {
	s := &Service{
		repo:      repo,
		stocks:    stocks,
		numerator: gen,
		txManager: txm,
		hooks:     domain.NewHookRegistry[*Opname](),
		now:       time.Now,
	}
	s.hooks.On(domain.BeforeCreate, audit.EnrichCreatedBy[*Opname])
	s.hooks.On(domain.BeforeUpdate, audit.EnrichUpdatedBy[*Opname])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Opname] {
	return s.hooks
}

// Record creates a count, snapshotting the system stock of every product.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Opname, error) {
	if len(in.Items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	if err := CheckUniqueProducts(in.Items); err != nil {
		return nil, err
	}

	now := s.now()
	if in.OpnameDate.IsZero() {
		in.OpnameDate = now
	}
	o := NewOpname(in.OpnameDate, in.ConductedBy, in.Notes, now)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.stocks.CurrentStocks(ctx, ProductIDs(in.Items))
		if err != nil {
			return fmt.Errorf("load current stock: %w", err)
		}
		if o.Items, err = o.BuildItems(in.Items, current); err != nil {
			return err
		}

		c, err := s.numerator.Next(ctx, CodeEntityType, now)
		if err != nil {
			return err
		}
		if err := o.AssignCode(c); err != nil {
			return err
		}

		if in.Finalize {
			o.Finalize()
		}

		if err := s.hooks.Run(ctx, domain.BeforeCreate, o); err != nil {
			return err
		}
		if err := o.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create opname: %w", err)
		}
		if err := s.repo.SaveItems(ctx, o.ID, o.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "opname recorded", "id", o.ID, "code", o.Code, "status", o.Status, "items", len(o.Items))
	return o, nil
}

// UpdateItems replaces the items of an IN_PROGRESS count. Products already
// counted keep their system stock snapshot.
func (s *Service) UpdateItems(ctx context.Context, opnameID id.ID, inputs []ItemInput) (*Opname, error) {
	if len(inputs) == 0 {
		return nil, apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	if err := CheckUniqueProducts(inputs); err != nil {
		return nil, err
	}

	var o *Opname
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.lockWithItems(ctx, opnameID); err != nil {
			return err
		}
		if err := o.CanEditItems(); err != nil {
			return err
		}

		current, err := s.stocks.CurrentStocks(ctx, ProductIDs(inputs))
		if err != nil {
			return fmt.Errorf("load current stock: %w", err)
		}
		items, err := o.BuildItems(inputs, current)
		if err != nil {
			return err
		}
		o.Items = items

		return s.save(ctx, o, true)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "opname items updated", "id", o.ID, "items", len(o.Items))
	return o, nil
}

// Reconcile finalizes the count: COMPLETED when nothing differs, RECONCILED
// otherwise. Reconciling a finalized count returns its status unchanged.
func (s *Service) Reconcile(ctx context.Context, opnameID id.ID) (*Opname, error) {
	var o *Opname
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.lockWithItems(ctx, opnameID); err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return nil
		}
		o.Finalize()
		return s.save(ctx, o, false)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "opname reconciled", "id", o.ID, "code", o.Code, "status", o.Status)
	return o, nil
}

// UpdateNotes changes header and item notes. Allowed in every status until
// an adjustment has consumed the count.
func (s *Service) UpdateNotes(ctx context.Context, opnameID id.ID, in NotesInput) (*Opname, error) {
	var o *Opname
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.lockWithItems(ctx, opnameID); err != nil {
			return err
		}
		if o.AdjustmentID, err = s.repo.AdjustmentOf(ctx, o.ID); err != nil {
			return err
		}
		if err := o.CanEditNotes(); err != nil {
			return err
		}

		if in.Notes != nil {
			o.Notes = strings.TrimSpace(*in.Notes)
		}
		matched := 0
		for i := range o.Items {
			if n, ok := in.ItemNotes[o.Items[i].ProductID]; ok {
				o.Items[i].Notes = strings.TrimSpace(n)
				matched++
			}
		}
		if matched != len(in.ItemNotes) {
			return apperror.NewValidation("item notes reference a product that is not counted")
		}

		return s.save(ctx, o, len(in.ItemNotes) > 0)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "opname notes updated", "id", o.ID, "code", o.Code, "item_notes", len(in.ItemNotes))
	return o, nil
}

// Get returns a count with its items.
func (s *Service) Get(ctx context.Context, opnameID id.ID) (*Opname, error) {
	o, err := s.repo.GetByID(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	if o.Items, err = s.repo.GetItems(ctx, opnameID); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	if o.AdjustmentID, err = s.repo.AdjustmentOf(ctx, opnameID); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns count headers.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Opname], error) {
	if filter.Status != "" {
		st, err := ParseStatus(filter.Status)
		if err != nil {
			return domain.ListResult[*Opname]{}, err
		}
		filter.Status = string(st)
	}
	return s.repo.List(ctx, filter.Normalize())
}

// Delete removes a count that no adjustment references. An unadjusted count
// never touched stock, so nothing needs reversing.
func (s *Service) Delete(ctx context.Context, opnameID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.lockWithItems(ctx, opnameID)
		if err != nil {
			return err
		}
		adj, err := s.repo.AdjustmentOf(ctx, opnameID)
		if err != nil {
			return err
		}
		if adj != nil {
			return apperror.NewOpnameAlreadyAdjusted(opnameID.String()).
				WithDetail("adjustment_id", adj.String())
		}
		if err := s.hooks.Run(ctx, domain.BeforeDelete, o); err != nil {
			return err
		}
		return s.repo.Delete(ctx, opnameID)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "opname deleted", "id", opnameID)
	return nil
}

// LockForAdjustment loads a count for consumption by an adjustment. It must
// run inside the adjustment's transaction; the row lock serializes competing
// adjustments and deletions of the same count.
func (s *Service) LockForAdjustment(ctx context.Context, opnameID id.ID) (*Opname, error) {
	o, err := s.lockWithItems(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	adj, err := s.repo.AdjustmentOf(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	if adj != nil {
		return nil, apperror.NewOpnameAlreadyAdjusted(opnameID.String()).
			WithDetail("adjustment_id", adj.String())
	}
	if o.Status != StatusReconciled {
		return nil, apperror.NewOpnameNotReconciled(opnameID.String(), string(o.Status))
	}
	return o, nil
}

// MarkAdjusted moves a consumed count to COMPLETED. Runs in the adjustment's transaction.
func (s *Service) MarkAdjusted(ctx context.Context, o *Opname, adjustmentID id.ID) error {
	if err := o.MarkConsumed(adjustmentID); err != nil {
		return err
	}
	if err := s.save(ctx, o, false); err != nil {
		return err
	}
	logger.Info(ctx, "opname consumed by adjustment", "id", o.ID, "adjustment_id", adjustmentID)
	return nil
}

func (s *Service) lockWithItems(ctx context.Context, opnameID id.ID) (*Opname, error) {
	o, err := s.repo.GetForUpdate(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	if o.Items, err = s.repo.GetItems(ctx, opnameID); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return o, nil
}

func (s *Service) save(ctx context.Context, o *Opname, withItems bool) error {
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, o); err != nil {
		return err
	}
	o.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, o); err != nil {
		return fmt.Errorf("update opname: %w", err)
	}
	if withItems {
		if err := s.repo.SaveItems(ctx, o.ID, o.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
	}
	return nil
}
