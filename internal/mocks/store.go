// Package mocks traz implementações em memória dos repositórios para os
// testes de aplicação. Os fakes copiam por valor em toda leitura e escrita e
// reproduzem as uniques do banco (competência da fatura, invoice_id do
// recebível, external_id do razão), que são as guardas de idempotência que os
// serviços dependem.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
)

// Store é o banco em memória compartilhado pelos fakes.
type Store struct {
	mu sync.Mutex

	Contracts     map[string]entity.Contract
	ContractItems map[string][]entity.ContractItem
	Invoices      map[string]entity.Invoice
	InvoiceItems  map[string]entity.InvoiceItem
	Batches       map[string]entity.BillingBatch
	BatchErrors   map[string][]entity.BatchError
	Receivables   map[string]entity.AccountReceivable
	Boletos       map[string]entity.Boleto
	FiscalDocs    map[string]entity.FiscalDocument
	Transactions  map[string]entity.FinancialTransaction
	CashAccounts  map[string]entity.CashAccount
	Users         map[string]entity.User

	Issuer  *entity.FiscalIssuer
	Gateway *entity.GatewayConfig

	invoiceSeq int64
	fiscalSeq  map[string]int64
	docSeq     int64
}

// NewStore cria o banco vazio.
func NewStore() *Store {
	return &Store{
		Contracts:     map[string]entity.Contract{},
		ContractItems: map[string][]entity.ContractItem{},
		Invoices:      map[string]entity.Invoice{},
		InvoiceItems:  map[string]entity.InvoiceItem{},
		Batches:       map[string]entity.BillingBatch{},
		BatchErrors:   map[string][]entity.BatchError{},
		Receivables:   map[string]entity.AccountReceivable{},
		Boletos:       map[string]entity.Boleto{},
		FiscalDocs:    map[string]entity.FiscalDocument{},
		Transactions:  map[string]entity.FinancialTransaction{},
		CashAccounts:  map[string]entity.CashAccount{},
		Users:         map[string]entity.User{},
		fiscalSeq:     map[string]int64{},
	}
}

// Construtores dos fakes avulsos (os que ficam fora de TxRepos).
func NewContractRepo(s *Store) *ContractRepo     { return &ContractRepo{s: s} }
func NewInvoiceRepo(s *Store) *InvoiceRepo       { return &InvoiceRepo{s: s} }
func NewBatchRepo(s *Store) *BatchRepo           { return &BatchRepo{s: s} }
func NewReceivableRepo(s *Store) *ReceivableRepo { return &ReceivableRepo{s: s} }
func NewBoletoRepo(s *Store) *BoletoRepo         { return &BoletoRepo{s: s} }
func NewFiscalRepo(s *Store) *FiscalRepo         { return &FiscalRepo{s: s} }
func NewFinancialRepo(s *Store) *FinancialRepo   { return &FinancialRepo{s: s} }
func NewUserRepo(s *Store) *UserRepo             { return &UserRepo{s: s} }

// Repos monta o conjunto de fakes sobre o mesmo Store.
func (s *Store) Repos() repository.TxRepos {
	return repository.TxRepos{
		Invoices:    &InvoiceRepo{s: s},
		Batches:     &BatchRepo{s: s},
		Receivables: &ReceivableRepo{s: s},
		Boletos:     &BoletoRepo{s: s},
		Fiscal:      &FiscalRepo{s: s},
		Financial:   &FinancialRepo{s: s},
	}
}

// snapshot clona os mapas mutáveis para o rollback do TxRunner fake.
func (s *Store) snapshot() *Store {
	clone := NewStore()
	for k, v := range s.Invoices {
		clone.Invoices[k] = v
	}
	for k, v := range s.InvoiceItems {
		clone.InvoiceItems[k] = v
	}
	for k, v := range s.Batches {
		clone.Batches[k] = v
	}
	for k, v := range s.BatchErrors {
		clone.BatchErrors[k] = append([]entity.BatchError(nil), v...)
	}
	for k, v := range s.Receivables {
		clone.Receivables[k] = v
	}
	for k, v := range s.Boletos {
		clone.Boletos[k] = v
	}
	for k, v := range s.FiscalDocs {
		clone.FiscalDocs[k] = v
	}
	for k, v := range s.Transactions {
		clone.Transactions[k] = v
	}
	for k, v := range s.CashAccounts {
		clone.CashAccounts[k] = v
	}
	for k, v := range s.fiscalSeq {
		clone.fiscalSeq[k] = v
	}
	clone.invoiceSeq = s.invoiceSeq
	clone.docSeq = s.docSeq
	return clone
}

func (s *Store) restore(snap *Store) {
	s.Invoices = snap.Invoices
	s.InvoiceItems = snap.InvoiceItems
	s.Batches = snap.Batches
	s.BatchErrors = snap.BatchErrors
	s.Receivables = snap.Receivables
	s.Boletos = snap.Boletos
	s.FiscalDocs = snap.FiscalDocs
	s.Transactions = snap.Transactions
	s.CashAccounts = snap.CashAccounts
	s.fiscalSeq = snap.fiscalSeq
	s.invoiceSeq = snap.invoiceSeq
	s.docSeq = snap.docSeq
}

// TxRunner fake: executa fn sobre o próprio Store, com rollback por snapshot
// quando fn falha.
type TxRunner struct {
	S *Store
	// BeforeCommit permite injetar uma falha pós-mutações (simula commit).
	BeforeCommit func() error
}

var _ repository.TxRunner = (*TxRunner)(nil)

func (t *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepos) error) error {
	t.S.mu.Lock()
	snap := t.S.snapshot()
	t.S.mu.Unlock()

	err := fn(ctx, t.S.Repos())
	if err == nil && t.BeforeCommit != nil {
		err = t.BeforeCommit()
	}
	if err != nil {
		t.S.mu.Lock()
		t.S.restore(snap)
		t.S.mu.Unlock()
		return err
	}
	return nil
}

// ── Contratos ──

type ContractRepo struct{ s *Store }

var _ repository.ContractRepository = (*ContractRepo)(nil)

func (r *ContractRepo) ListEligible(_ context.Context, month, year int, f repository.ContractFilter) ([]*entity.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Contract
	for _, c := range r.s.Contracts {
		if c.Status != entity.ContractStatusActive {
			continue
		}
		day := c.ResolvedDueDay()
		if day < f.DayFrom || day > f.DayTo {
			continue
		}
		if f.BillingGroupID != "" && c.BillingGroupID != f.BillingGroupID {
			continue
		}
		invoiced := false
		for _, inv := range r.s.Invoices {
			if inv.ContractID == c.ID && inv.CompetenceMonth == month && inv.CompetenceYear == year {
				invoiced = true
				break
			}
		}
		if invoiced {
			continue
		}
		cc := c
		out = append(out, &cc)
	}
	return out, nil
}

func (r *ContractRepo) CountAlreadyBilled(_ context.Context, month, year int, f repository.ContractFilter) (int, decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	total := decimal.Zero
	for _, c := range r.s.Contracts {
		if c.Status != entity.ContractStatusActive {
			continue
		}
		day := c.ResolvedDueDay()
		if day < f.DayFrom || day > f.DayTo {
			continue
		}
		if f.BillingGroupID != "" && c.BillingGroupID != f.BillingGroupID {
			continue
		}
		for _, inv := range r.s.Invoices {
			if inv.ContractID == c.ID && inv.CompetenceMonth == month && inv.CompetenceYear == year {
				count++
				total = total.Add(c.Value)
				break
			}
		}
	}
	return count, total, nil
}

func (r *ContractRepo) GetByID(_ context.Context, id string) (*entity.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.Contracts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *ContractRepo) ListItems(_ context.Context, contractID string) ([]*entity.ContractItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ContractItem
	for _, it := range r.s.ContractItems[contractID] {
		ic := it
		out = append(out, &ic)
	}
	return out, nil
}

// ── Faturas ──

type InvoiceRepo struct{ s *Store }

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

func (r *InvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Invoices {
		if cur.ContractID == inv.ContractID &&
			cur.CompetenceMonth == inv.CompetenceMonth &&
			cur.CompetenceYear == inv.CompetenceYear {
			return fmt.Errorf("fatura já existe para a competência: %w", domain.ErrDuplicate)
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	r.s.Invoices[inv.ID] = *inv
	return nil
}

func (r *InvoiceRepo) Update(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Invoices[inv.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.Invoices[inv.ID] = *inv
	return nil
}

func (r *InvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.Invoices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &inv, nil
}

func (r *InvoiceRepo) CreateItem(_ context.Context, item *entity.InvoiceItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	r.s.InvoiceItems[item.ID] = *item
	return nil
}

func (r *InvoiceRepo) UpdateItem(_ context.Context, item *entity.InvoiceItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.InvoiceItems[item.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.InvoiceItems[item.ID] = *item
	return nil
}

func (r *InvoiceRepo) DeleteItem(_ context.Context, itemID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.InvoiceItems[itemID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.InvoiceItems, itemID)
	return nil
}

func (r *InvoiceRepo) ListItems(_ context.Context, invoiceID string) ([]*entity.InvoiceItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.InvoiceItem
	for _, it := range r.s.InvoiceItems {
		if it.InvoiceID == invoiceID {
			ic := it
			out = append(out, &ic)
		}
	}
	return out, nil
}

func (r *InvoiceRepo) GetItem(_ context.Context, itemID string) (*entity.InvoiceItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.InvoiceItems[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &it, nil
}

func (r *InvoiceRepo) NextNumber(_ context.Context) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoiceSeq++
	return fmt.Sprintf("FAT-%04d", r.s.invoiceSeq), nil
}

// ── Lotes ──

type BatchRepo struct{ s *Store }

var _ repository.BillingBatchRepository = (*BatchRepo)(nil)

func (r *BatchRepo) Create(_ context.Context, b *entity.BillingBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	r.s.Batches[b.ID] = *b
	return nil
}

func (r *BatchRepo) Update(_ context.Context, b *entity.BillingBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Batches[b.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.Batches[b.ID] = *b
	return nil
}

func (r *BatchRepo) GetByID(_ context.Context, id string) (*entity.BillingBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.Batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (r *BatchRepo) AddError(_ context.Context, batchID string, e entity.BatchError) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.BatchErrors[batchID] = append(r.s.BatchErrors[batchID], e)
	return nil
}

func (r *BatchRepo) ListErrors(_ context.Context, batchID string) ([]entity.BatchError, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]entity.BatchError(nil), r.s.BatchErrors[batchID]...), nil
}

// ── Recebíveis ──

type ReceivableRepo struct{ s *Store }

var _ repository.ReceivableRepository = (*ReceivableRepo)(nil)

func (r *ReceivableRepo) Create(_ context.Context, rec *entity.AccountReceivable) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Receivables {
		if cur.InvoiceID == rec.InvoiceID {
			return fmt.Errorf("recebível já existe para a fatura: %w", domain.ErrDuplicate)
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	r.s.Receivables[rec.ID] = *rec
	return nil
}

func (r *ReceivableRepo) Update(_ context.Context, rec *entity.AccountReceivable) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Receivables[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.Receivables[rec.ID] = *rec
	return nil
}

func (r *ReceivableRepo) GetByID(_ context.Context, id string) (*entity.AccountReceivable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.Receivables[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *ReceivableRepo) GetByInvoiceID(_ context.Context, invoiceID string) (*entity.AccountReceivable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.Receivables {
		if rec.InvoiceID == invoiceID {
			rc := rec
			return &rc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *ReceivableRepo) GetByExternalRef(_ context.Context, ref string) (*entity.AccountReceivable, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.Receivables {
		if rec.ExternalRef == ref {
			rc := rec
			return &rc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ── Boletos ──

type BoletoRepo struct{ s *Store }

var _ repository.BoletoRepository = (*BoletoRepo)(nil)

func (r *BoletoRepo) Create(_ context.Context, b *entity.Boleto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Boletos {
		if cur.ExternalID == b.ExternalID {
			return fmt.Errorf("boleto já registrado: %w", domain.ErrDuplicate)
		}
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	r.s.Boletos[b.ID] = *b
	return nil
}

func (r *BoletoRepo) Update(_ context.Context, b *entity.Boleto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.Boletos[b.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.Boletos[b.ID] = *b
	return nil
}

func (r *BoletoRepo) GetByExternalID(_ context.Context, externalID string) (*entity.Boleto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.Boletos {
		if b.ExternalID == externalID {
			bc := b
			return &bc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *BoletoRepo) GetActiveByInvoiceID(_ context.Context, invoiceID string) (*entity.Boleto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.Boletos {
		if b.InvoiceID == invoiceID && b.Status != entity.BoletoStatusCancelled {
			bc := b
			return &bc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ── Documentos fiscais ──

type FiscalRepo struct{ s *Store }

var _ repository.FiscalDocumentRepository = (*FiscalRepo)(nil)

func (r *FiscalRepo) Create(_ context.Context, d *entity.FiscalDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	r.s.docSeq++
	r.s.FiscalDocs[d.ID] = *d
	return nil
}

func (r *FiscalRepo) Update(_ context.Context, d *entity.FiscalDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.FiscalDocs[d.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.FiscalDocs[d.ID] = *d
	return nil
}

func (r *FiscalRepo) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.FiscalDocs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (r *FiscalRepo) GetLatestByInvoiceID(_ context.Context, invoiceID string) (*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *entity.FiscalDocument
	for _, d := range r.s.FiscalDocs {
		if d.InvoiceID != invoiceID {
			continue
		}
		dc := d
		if latest == nil || dc.Number > latest.Number {
			latest = &dc
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *FiscalRepo) NextNumber(_ context.Context, issuerID, series string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := issuerID + "/" + series
	if _, ok := r.s.fiscalSeq[key]; !ok {
		return 0, fmt.Errorf("sequência fiscal não configurada: %w", domain.ErrConfigMissing)
	}
	r.s.fiscalSeq[key]++
	return r.s.fiscalSeq[key], nil
}

// SeedFiscalSequence habilita a numeração da série a partir de last.
func (s *Store) SeedFiscalSequence(issuerID, series string, last int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fiscalSeq[issuerID+"/"+series] = last
}

// ── Razão ──

type FinancialRepo struct{ s *Store }

var _ repository.FinancialRepository = (*FinancialRepo)(nil)

func (r *FinancialRepo) CreateTransaction(_ context.Context, t *entity.FinancialTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.Transactions {
		if cur.ExternalID != "" && cur.ExternalID == t.ExternalID {
			return fmt.Errorf("lançamento já registrado: %w", domain.ErrDuplicate)
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	r.s.Transactions[t.ID] = *t

	acc, ok := r.s.CashAccounts[t.CashAccountID]
	if !ok {
		return domain.ErrNotFound
	}
	delta := t.Amount
	if t.Type == entity.TransactionOut {
		delta = delta.Neg()
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	r.s.CashAccounts[t.CashAccountID] = acc
	return nil
}

func (r *FinancialRepo) ReverseTransaction(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.Transactions[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.s.Transactions, id)
	acc, ok := r.s.CashAccounts[t.CashAccountID]
	if !ok {
		return domain.ErrNotFound
	}
	delta := t.Amount
	if t.Type == entity.TransactionIn {
		delta = delta.Neg()
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	r.s.CashAccounts[t.CashAccountID] = acc
	return nil
}

func (r *FinancialRepo) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.Transactions {
		if t.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (r *FinancialRepo) GetCashAccount(_ context.Context, id string) (*entity.CashAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.CashAccounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &acc, nil
}

// ── Configuração ──

type SettingsRepo struct{ s *Store }

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

func NewSettingsRepo(s *Store) *SettingsRepo { return &SettingsRepo{s: s} }

func (r *SettingsRepo) FiscalIssuer(_ context.Context) (*entity.FiscalIssuer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Issuer == nil {
		return nil, domain.ErrConfigMissing
	}
	cp := *r.s.Issuer
	return &cp, nil
}

func (r *SettingsRepo) GatewayConfig(_ context.Context) (*entity.GatewayConfig, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Gateway == nil {
		return nil, domain.ErrConfigMissing
	}
	cp := *r.s.Gateway
	return &cp, nil
}

func (r *SettingsRepo) UpdateGatewayToken(_ context.Context, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Gateway == nil {
		return domain.ErrConfigMissing
	}
	r.s.Gateway.AccessToken = token
	r.s.Gateway.TokenExpiresAt = &expiresAt
	return nil
}

// ── Usuários ──

type UserRepo struct{ s *Store }

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.Users {
		if u.Email == email {
			uc := u
			return &uc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// AddCashAccount registra uma conta caixa com saldo inicial.
func (s *Store) AddCashAccount(id string, initial decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CashAccounts[id] = entity.CashAccount{
		ID:             id,
		Name:           "Conta teste",
		InitialBalance: initial,
		CurrentBalance: initial,
	}
}
