package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records posting events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service turns business events into balanced POSTED journal entries. One
// method per event type; each runs in a single unit of work so journal lines,
// balance updates, and batch decrements commit together.
//
// Missing accounts are a soft failure on these automatic paths: the entry is
// skipped with a warning rather than blocking the sale. Manual postings and
// period close never use this policy.
type Service struct {
	uow       UnitOfWork
	journals  *journals.Service
	inventory *inventory.Service
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the posting rules over a shared unit of work.
func NewService(uow UnitOfWork, jsvc *journals.Service, isvc *inventory.Service, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: uow, journals: jsvc, inventory: isvc, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// InvoiceResult reports what an invoice posting produced. COGS and Deductions
// are zero-valued when no stock moved.
type InvoiceResult struct {
	Entry      *journals.Entry
	COGSEntry  *journals.Entry
	COGS       float64
	Deductions []inventory.BatchDeduction
}

// OnInvoiceCreated posts the receivable entry and, unless COGS was already
// recognised at dispatch, consumes stock FIFO and posts cost of goods sold.
// Insufficient stock aborts the whole invoice; no entry or decrement survives.
func (s *Service) OnInvoiceCreated(ctx context.Context, ev InvoiceEvent) (InvoiceResult, error) {
	var result InvoiceResult
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		lines := []journals.CodeLine{
			{AccountCode: accounts.CodeAccountsReceivable, Debit: ev.Total, Description: fmt.Sprintf("A/R for %s", ev.InvoiceNumber)},
			{AccountCode: accounts.CodeSalesRevenue, Credit: ev.Subtotal, Description: fmt.Sprintf("Sales revenue %s", ev.InvoiceNumber)},
		}
		if ev.TaxAmount > 0 {
			lines = append(lines, journals.CodeLine{AccountCode: accounts.CodeTaxPayable, Credit: ev.TaxAmount, Description: fmt.Sprintf("Tax payable %s", ev.InvoiceNumber)})
		}
		entry, err := s.postAuto(ctx, tx, journals.PostingInput{
			Date:          ev.Date,
			Description:   fmt.Sprintf("Invoice %s", ev.InvoiceNumber),
			ReferenceType: journals.RefTypeInvoice,
			ReferenceID:   ev.ID,
			CreatedBy:     ev.ActorID,
			Lines:         lines,
		})
		if err != nil {
			return err
		}
		result.Entry = entry

		if ev.SkipCOGS || len(ev.Items) == 0 {
			return nil
		}
		cogs, deductions, err := s.consumeStock(ctx, tx, ev.Items, inventory.Reference{
			Type:    journals.RefTypeInvoice,
			ID:      ev.ID,
			ActorID: ev.ActorID,
		})
		if err != nil {
			return err
		}
		result.COGS = cogs
		result.Deductions = deductions
		if cogs <= 0 {
			return nil
		}
		cogsEntry, err := s.postAuto(ctx, tx, journals.PostingInput{
			Date:          ev.Date,
			Description:   fmt.Sprintf("COGS for Invoice %s", ev.InvoiceNumber),
			ReferenceType: journals.RefTypeInvoice,
			ReferenceID:   ev.ID,
			CreatedBy:     ev.ActorID,
			Lines: []journals.CodeLine{
				{AccountCode: accounts.CodeCOGS, Debit: cogs, Description: "Cost of Goods Sold"},
				{AccountCode: accounts.CodeInventory, Credit: cogs, Description: "Inventory reduction"},
			},
		})
		if err != nil {
			return err
		}
		result.COGSEntry = cogsEntry
		return nil
	})
	if err != nil {
		return InvoiceResult{}, err
	}
	s.recordAudit(ctx, "posting.invoice", journals.RefTypeInvoice, ev.ID, ev.ActorID, map[string]any{
		"invoice_number": ev.InvoiceNumber,
		"total":          ev.Total,
		"cogs":           result.COGS,
	})
	return result, nil
}

// OnInvoiceVoided posts the mirror image of the original invoice entries as
// new entries dated now. Journal history is append-only. Stock is not
// restored here; a credit-note receipt handles physical returns.
func (s *Service) OnInvoiceVoided(ctx context.Context, ev InvoiceVoidEvent) error {
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		lines := []journals.CodeLine{
			{AccountCode: accounts.CodeSalesRevenue, Debit: ev.Subtotal, Description: fmt.Sprintf("Void %s", ev.InvoiceNumber)},
			{AccountCode: accounts.CodeAccountsReceivable, Credit: ev.Total, Description: fmt.Sprintf("Void A/R %s", ev.InvoiceNumber)},
		}
		if ev.TaxAmount > 0 {
			lines = append(lines, journals.CodeLine{AccountCode: accounts.CodeTaxPayable, Debit: ev.TaxAmount, Description: fmt.Sprintf("Void tax %s", ev.InvoiceNumber)})
		}
		if _, err := s.postAuto(ctx, tx, journals.PostingInput{
			Date:          s.now(),
			Description:   fmt.Sprintf("Void Invoice %s", ev.InvoiceNumber),
			ReferenceType: journals.RefTypeInvoice,
			ReferenceID:   ev.ID,
			CreatedBy:     ev.ActorID,
			Lines:         lines,
		}); err != nil {
			return err
		}
		if ev.COGS <= 0 {
			return nil
		}
		_, err := s.postAuto(ctx, tx, journals.PostingInput{
			Date:          s.now(),
			Description:   fmt.Sprintf("Reverse COGS for Void Invoice %s", ev.InvoiceNumber),
			ReferenceType: journals.RefTypeInvoice,
			ReferenceID:   ev.ID,
			CreatedBy:     ev.ActorID,
			Lines: []journals.CodeLine{
				{AccountCode: accounts.CodeInventory, Debit: ev.COGS, Description: "Inventory restoration"},
				{AccountCode: accounts.CodeCOGS, Credit: ev.COGS, Description: "Reverse COGS"},
			},
		})
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "posting.invoice_void", journals.RefTypeInvoice, ev.ID, ev.ActorID, map[string]any{
		"invoice_number": ev.InvoiceNumber,
	})
	return nil
}

// OnDeliveryDispatched consumes stock FIFO at dispatch and posts cost of
// goods sold against the delivery note.
func (s *Service) OnDeliveryDispatched(ctx context.Context, ev DeliveryEvent) (InvoiceResult, error) {
	var result InvoiceResult
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		cogs, deductions, err := s.consumeStock(ctx, tx, ev.Items, inventory.Reference{
			Type:    journals.RefTypeDeliveryNote,
			ID:      ev.ID,
			ActorID: ev.ActorID,
		})
		if err != nil {
			return err
		}
		result.COGS = cogs
		result.Deductions = deductions
		if cogs <= 0 {
			return nil
		}
		result.COGSEntry, err = s.postAuto(ctx, tx, journals.PostingInput{
			Date:          ev.Date,
			Description:   fmt.Sprintf("COGS for Delivery Note %s", ev.DeliveryNumber),
			ReferenceType: journals.RefTypeDeliveryNote,
			ReferenceID:   ev.ID,
			CreatedBy:     ev.ActorID,
			Lines: []journals.CodeLine{
				{AccountCode: accounts.CodeCOGS, Debit: cogs, Description: "Cost of Goods Sold"},
				{AccountCode: accounts.CodeInventory, Credit: cogs, Description: "Inventory reduction"},
			},
		})
		return err
	})
	if err != nil {
		return InvoiceResult{}, err
	}
	s.recordAudit(ctx, "posting.delivery", journals.RefTypeDeliveryNote, ev.ID, ev.ActorID, map[string]any{
		"delivery_number": ev.DeliveryNumber,
		"cogs":            result.COGS,
	})
	return result, nil
}

// OnClientPayment posts a customer receipt: bank up, receivable down.
func (s *Service) OnClientPayment(ctx context.Context, ev PaymentEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.client_payment", journals.PostingInput{
		Date:          ev.Date,
		Description:   "Client payment received",
		ReferenceType: journals.RefTypePayment,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: bankCode(ev.BankAccountCode), Debit: ev.Amount, Description: "Bank deposit"},
			{AccountCode: accounts.CodeAccountsReceivable, Credit: ev.Amount, Description: "A/R reduction"},
		},
	})
}

// OnSupplierPayment posts a payment to a supplier: payable down, bank down.
func (s *Service) OnSupplierPayment(ctx context.Context, ev PaymentEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.supplier_payment", journals.PostingInput{
		Date:          ev.Date,
		Description:   "Supplier payment",
		ReferenceType: journals.RefTypePayment,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: accounts.CodeAccountsPayable, Debit: ev.Amount, Description: "A/P reduction"},
			{AccountCode: bankCode(ev.BankAccountCode), Credit: ev.Amount, Description: "Bank payment"},
		},
	})
}

// OnGoodsReceived capitalises received goods: inventory at net cost, input
// tax as a receivable when taxed, payable for the gross amount.
func (s *Service) OnGoodsReceived(ctx context.Context, ev GoodsReceiptEvent) (*journals.Entry, error) {
	net := actshared.Round2(ev.TotalAmount - ev.TaxAmount)
	lines := []journals.CodeLine{
		{AccountCode: accounts.CodeInventory, Debit: net, Description: fmt.Sprintf("Inventory from %s", ev.PONumber)},
		{AccountCode: accounts.CodeAccountsPayable, Credit: ev.TotalAmount, Description: fmt.Sprintf("A/P for %s", ev.PONumber)},
	}
	if ev.TaxAmount > 0 {
		lines = append(lines, journals.CodeLine{AccountCode: accounts.CodeInputTaxReceivable, Debit: ev.TaxAmount, Description: fmt.Sprintf("Input Tax Receivable %s", ev.PONumber)})
	}
	return s.postEvent(ctx, "posting.goods_received", journals.PostingInput{
		Date:          ev.Date,
		Description:   fmt.Sprintf("Goods received against %s", ev.PONumber),
		ReferenceType: journals.RefTypePurchase,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines:         lines,
	})
}

// OnGoodsReceivedReversed posts the mirror of a goods receipt, dated now.
func (s *Service) OnGoodsReceivedReversed(ctx context.Context, ev GoodsReceiptEvent) (*journals.Entry, error) {
	net := actshared.Round2(ev.TotalAmount - ev.TaxAmount)
	lines := []journals.CodeLine{
		{AccountCode: accounts.CodeAccountsPayable, Debit: ev.TotalAmount, Description: fmt.Sprintf("Reverse A/P for %s", ev.PONumber)},
		{AccountCode: accounts.CodeInventory, Credit: net, Description: fmt.Sprintf("Reverse inventory from %s", ev.PONumber)},
	}
	if ev.TaxAmount > 0 {
		lines = append(lines, journals.CodeLine{AccountCode: accounts.CodeInputTaxReceivable, Credit: ev.TaxAmount, Description: fmt.Sprintf("Reverse Input Tax Receivable %s", ev.PONumber)})
	}
	return s.postEvent(ctx, "posting.goods_received_reversed", journals.PostingInput{
		Date:          s.now(),
		Description:   fmt.Sprintf("Reverse goods received against %s", ev.PONumber),
		ReferenceType: journals.RefTypePurchase,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines:         lines,
	})
}

// OnLandedCostAdded capitalises an after-the-fact cost (freight, duty) into
// inventory against the PO or GRN it belongs to.
func (s *Service) OnLandedCostAdded(ctx context.Context, ev LandedCostEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.landed_cost", journals.PostingInput{
		Date:          ev.Date,
		Description:   fmt.Sprintf("Landed cost (%s) for %s", ev.CostType, ev.DocNumber),
		ReferenceType: journals.RefTypePurchase,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: accounts.CodeInventory, Debit: ev.Amount, Description: fmt.Sprintf("Landed cost (%s) for %s", ev.CostType, ev.DocNumber)},
			{AccountCode: accounts.CodeAccountsPayable, Credit: ev.Amount, Description: fmt.Sprintf("A/P for %s, %s", ev.CostType, ev.DocNumber)},
		},
	})
}

// OnLandedCostReversed posts the mirror of a landed-cost entry, dated now.
func (s *Service) OnLandedCostReversed(ctx context.Context, ev LandedCostEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.landed_cost_reversed", journals.PostingInput{
		Date:          s.now(),
		Description:   fmt.Sprintf("Reverse landed cost (%s) for %s", ev.CostType, ev.DocNumber),
		ReferenceType: journals.RefTypePurchase,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: accounts.CodeAccountsPayable, Debit: ev.Amount, Description: fmt.Sprintf("Reverse A/P for %s, %s", ev.CostType, ev.DocNumber)},
			{AccountCode: accounts.CodeInventory, Credit: ev.Amount, Description: fmt.Sprintf("Reverse landed cost (%s) for %s", ev.CostType, ev.DocNumber)},
		},
	})
}

// OnExpenseCreated posts an operating expense against petty cash or bank,
// with the debit account mapped from the expense category.
func (s *Service) OnExpenseCreated(ctx context.Context, ev ExpenseEvent) (*journals.Entry, error) {
	creditDesc := "Bank payment"
	if ev.PaymentMethod == PaymentCash {
		creditDesc = "Petty cash"
	}
	return s.postEvent(ctx, "posting.expense", journals.PostingInput{
		Date:          ev.Date,
		Description:   expenseMemo(ev),
		ReferenceType: journals.RefTypeExpense,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: AccountForCategory(ev.Category), Debit: ev.Amount, Description: string(ev.Category)},
			{AccountCode: CreditAccountFor(ev.PaymentMethod), Credit: ev.Amount, Description: creditDesc},
		},
	})
}

// OnExpenseReversed posts the mirror of an expense when it is deleted.
func (s *Service) OnExpenseReversed(ctx context.Context, ev ExpenseEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.expense_reversed", journals.PostingInput{
		Date:          s.now(),
		Description:   fmt.Sprintf("Reverse %s", expenseMemo(ev)),
		ReferenceType: journals.RefTypeExpense,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: CreditAccountFor(ev.PaymentMethod), Debit: ev.Amount, Description: "Reversal"},
			{AccountCode: AccountForCategory(ev.Category), Credit: ev.Amount, Description: "Expense reversal"},
		},
	})
}

// OnStockAdjustmentApproved writes off destroyed stock. Only loss types
// (wastage, damage, theft) reach the ledger; increases and recounts are
// corrections and post nothing.
func (s *Service) OnStockAdjustmentApproved(ctx context.Context, ev AdjustmentEvent) (*journals.Entry, error) {
	if !ev.Type.IsLoss() {
		return nil, nil
	}
	amount := actshared.Monetary(ev.Quantity, ev.CostPrice)
	if amount <= 0 {
		return nil, nil
	}
	return s.postEvent(ctx, "posting.adjustment", journals.PostingInput{
		Date:          s.now(),
		Description:   fmt.Sprintf("Stock adjustment: %s", ev.Reason),
		ReferenceType: journals.RefTypeAdjustment,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: accounts.CodeInventoryLoss, Debit: amount, Description: "Inventory loss"},
			{AccountCode: accounts.CodeInventory, Credit: amount, Description: "Inventory reduction"},
		},
	})
}

// OnCreditNoteCreated posts a customer return against receivables.
func (s *Service) OnCreditNoteCreated(ctx context.Context, ev CreditNoteEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.credit_note", journals.PostingInput{
		Date:          ev.Date,
		Description:   fmt.Sprintf("Credit note %s", ev.CreditNoteNumber),
		ReferenceType: journals.RefTypeCreditNote,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: accounts.CodeOtherIncome, Debit: ev.TotalAmount, Description: fmt.Sprintf("Returns %s", ev.CreditNoteNumber)},
			{AccountCode: accounts.CodeAccountsReceivable, Credit: ev.TotalAmount, Description: fmt.Sprintf("A/R reduction %s", ev.CreditNoteNumber)},
		},
	})
}

// OnCreditNoteVoided posts the mirror of a credit note, dated now.
func (s *Service) OnCreditNoteVoided(ctx context.Context, ev CreditNoteEvent) (*journals.Entry, error) {
	return s.postEvent(ctx, "posting.credit_note_void", journals.PostingInput{
		Date:          s.now(),
		Description:   fmt.Sprintf("Void credit note %s", ev.CreditNoteNumber),
		ReferenceType: journals.RefTypeCreditNote,
		ReferenceID:   ev.ID,
		CreatedBy:     ev.ActorID,
		Lines: []journals.CodeLine{
			{AccountCode: accounts.CodeAccountsReceivable, Debit: ev.TotalAmount, Description: fmt.Sprintf("Restore A/R %s", ev.CreditNoteNumber)},
			{AccountCode: accounts.CodeOtherIncome, Credit: ev.TotalAmount, Description: fmt.Sprintf("Reverse returns %s", ev.CreditNoteNumber)},
		},
	})
}

// postEvent posts a single-entry event in its own unit of work.
func (s *Service) postEvent(ctx context.Context, action string, input journals.PostingInput) (*journals.Entry, error) {
	var entry *journals.Entry
	err := s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		var txErr error
		entry, txErr = s.postAuto(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if entry != nil {
		s.recordAudit(ctx, action, input.ReferenceType, input.ReferenceID, input.CreatedBy, map[string]any{
			"entry_number": entry.EntryNumber,
		})
	}
	return entry, nil
}

// postAuto posts inside an open transaction with the soft-fail policy: a
// missing account logs a warning and skips the entry instead of failing the
// parent business operation. The ledger stays incomplete until the chart of
// accounts is fixed, but a configuration gap never blocks a sale.
func (s *Service) postAuto(ctx context.Context, tx Tx, input journals.PostingInput) (*journals.Entry, error) {
	entry, err := s.journals.PostEntryTx(ctx, tx.Journals, input)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			s.logger.Warn("account missing, skipping auto journal entry",
				slog.String("reference_type", input.ReferenceType),
				slog.String("reference_id", input.ReferenceID.String()),
				slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// consumeStock runs the FIFO deduction for every item and returns the
// cost-weighted total for the COGS leg.
func (s *Service) consumeStock(ctx context.Context, tx Tx, items []InvoiceItem, ref inventory.Reference) (float64, []inventory.BatchDeduction, error) {
	var total float64
	var all []inventory.BatchDeduction
	for _, item := range items {
		req := inventory.DeductionRequest{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			Quantity:    item.Quantity,
		}
		plan, err := s.inventory.PlanDeductionTx(ctx, tx.Inventory, req)
		if err != nil {
			return 0, nil, err
		}
		if err := s.inventory.ApplyDeductionsTx(ctx, tx.Inventory, req, plan, ref); err != nil {
			return 0, nil, err
		}
		total += inventory.PlanCost(plan)
		all = append(all, plan...)
	}
	return actshared.Round2(total), all, nil
}

func bankCode(code string) string {
	if code == "" {
		return accounts.CodeMainBank
	}
	return code
}

func expenseMemo(ev ExpenseEvent) string {
	if ev.Description != "" {
		return ev.Description
	}
	return fmt.Sprintf("Expense (%s)", ev.Category)
}

func (s *Service) recordAudit(ctx context.Context, action, refType string, refID uuid.UUID, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["reference_type"] = refType
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   refType,
		EntityID: refID.String(),
		Meta:     meta,
		At:       s.now(),
	})
}
