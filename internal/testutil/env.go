package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	auditrepository "github.com/smallbiznis/leasecore/internal/audit/repository"
	auditservice "github.com/smallbiznis/leasecore/internal/audit/service"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/leasecore/internal/catalog/service"
	"github.com/smallbiznis/leasecore/internal/config"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	contractrepository "github.com/smallbiznis/leasecore/internal/contract/repository"
	contractservice "github.com/smallbiznis/leasecore/internal/contract/service"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	depositservice "github.com/smallbiznis/leasecore/internal/deposit/service"
	"github.com/smallbiznis/leasecore/internal/events"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/leasecore/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/leasecore/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/leasecore/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/leasecore/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/leasecore/internal/payment/repository"
	paymentservice "github.com/smallbiznis/leasecore/internal/payment/service"
	roomdomain "github.com/smallbiznis/leasecore/internal/room/domain"
	roomrepository "github.com/smallbiznis/leasecore/internal/room/repository"
	tenantdomain "github.com/smallbiznis/leasecore/internal/tenant/domain"
	tenantrepository "github.com/smallbiznis/leasecore/internal/tenant/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Env is a fully wired billing core.
type Env struct {
	DB     *gorm.DB
	Node   *snowflake.Node
	Clock  *Clock
	Config config.Config
	Log    *zap.Logger
	OrgID  snowflake.ID

	RoomRepo     roomdomain.Repository
	TenantRepo   tenantdomain.Repository
	ContractRepo contractdomain.Repository
	InvoiceRepo  invoicedomain.Repository
	PaymentRepo  paymentdomain.Repository

	Ledger    ledgerdomain.Service
	Audit     auditdomain.Service
	Outbox    *events.Outbox
	Contracts contractdomain.Service
	Catalog   catalogdomain.Service
	Invoices  invoicedomain.Service
	Payments  paymentdomain.Service
	Deposits  depositdomain.Service
}

// NewEnv builds the services on a fresh database with the clock set to now.
func NewEnv(t testing.TB, now time.Time) *Env {
	t.Helper()

	e := &Env{
		DB:     NewDB(t),
		Node:   NewNode(t),
		Clock:  NewClock(now),
		Config: config.Default(),
		Log:    zap.NewNop(),

		RoomRepo:     roomrepository.Provide(),
		TenantRepo:   tenantrepository.Provide(),
		ContractRepo: contractrepository.Provide(),
		InvoiceRepo:  invoicerepository.Provide(),
		PaymentRepo:  paymentrepository.Provide(),
	}
	e.OrgID = e.Node.Generate()
	e.Outbox = events.NewOutbox(e.DB, e.Node)
	e.Ledger = ledgerservice.NewService(ledgerservice.Params{DB: e.DB, Log: e.Log, GenID: e.Node})
	e.Audit = auditservice.NewService(auditservice.Params{
		DB:    e.DB,
		Repo:  auditrepository.Provide(),
		GenID: e.Node,
		Clock: e.Clock,
	})
	e.Contracts = contractservice.NewService(contractservice.Params{
		DB:         e.DB,
		Log:        e.Log,
		GenID:      e.Node,
		Clock:      e.Clock,
		Config:     e.Config,
		Repo:       e.ContractRepo,
		RoomRepo:   e.RoomRepo,
		TenantRepo: e.TenantRepo,
		LedgerSvc:  e.Ledger,
		AuditSvc:   e.Audit,
		Outbox:     e.Outbox,
	})
	e.Catalog = catalogservice.NewService(catalogservice.Params{
		DB:           e.DB,
		Log:          e.Log,
		GenID:        e.Node,
		Clock:        e.Clock,
		ContractRepo: e.ContractRepo,
	})
	e.Invoices = invoiceservice.NewService(invoiceservice.Params{
		DB:           e.DB,
		Log:          e.Log,
		GenID:        e.Node,
		Clock:        e.Clock,
		Config:       e.Config,
		Repo:         e.InvoiceRepo,
		ContractRepo: e.ContractRepo,
		LedgerSvc:    e.Ledger,
		AuditSvc:     e.Audit,
		Outbox:       e.Outbox,
	})
	e.Payments = paymentservice.NewService(paymentservice.Params{
		DB:          e.DB,
		Log:         e.Log,
		GenID:       e.Node,
		Clock:       e.Clock,
		Repo:        e.PaymentRepo,
		InvoiceRepo: e.InvoiceRepo,
		LedgerSvc:   e.Ledger,
		AuditSvc:    e.Audit,
		Outbox:      e.Outbox,
	})
	e.Deposits = depositservice.NewService(depositservice.Params{
		DB:        e.DB,
		Log:       e.Log,
		Clock:     e.Clock,
		LedgerSvc: e.Ledger,
		AuditSvc:  e.Audit,
		Outbox:    e.Outbox,
	})
	return e
}

// Room inserts an AVAILABLE room.
func (e *Env) Room(t testing.TB, code string) roomdomain.Room {
	t.Helper()
	now := e.Clock.Now()
	room := roomdomain.Room{
		ID:        e.Node.Generate(),
		OrgID:     e.OrgID,
		Code:      code,
		Status:    roomdomain.RoomStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.RoomRepo.Insert(context.Background(), e.DB, &room); err != nil {
		t.Fatalf("insert room: %v", err)
	}
	return room
}

// Tenant inserts a tenant.
func (e *Env) Tenant(t testing.TB, name string) tenantdomain.Tenant {
	t.Helper()
	tenant := tenantdomain.Tenant{
		ID:        e.Node.Generate(),
		OrgID:     e.OrgID,
		Name:      name,
		CreatedAt: e.Clock.Now(),
	}
	if err := e.TenantRepo.Insert(context.Background(), e.DB, &tenant); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	return tenant
}

// RoomStatus reloads the status of a room.
func (e *Env) RoomStatus(t testing.TB, id snowflake.ID) roomdomain.RoomStatus {
	t.Helper()
	room, err := e.RoomRepo.FindByID(context.Background(), e.DB, e.OrgID, id)
	if err != nil || room == nil {
		t.Fatalf("load room %s: %v", id, err)
	}
	return room.Status
}
