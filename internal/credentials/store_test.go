package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/clearwell-health/therabill/internal/payer"
)

func TestStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO payer_credentials").
		WithArgs(pgxmock.AnyArg(), "org-1", "medicare", []byte("sealed")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	if _, err := store.Upsert(context.Background(), "org-1", "medicare", []byte("sealed")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "org_id", "payer_code", "ciphertext", "created_at", "updated_at"}).
		AddRow(id, "org-1", "medicare", []byte("sealed"), now, now)
	mock.ExpectQuery("SELECT id, org_id, payer_code").WithArgs("org-1", "medicare").WillReturnRows(rows)

	rec, err := store.Get(context.Background(), "org-1", "medicare")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.PayerCode != "medicare" || string(rec.Ciphertext) != "sealed" {
		t.Fatalf("unexpected record: %#v", rec)
	}

	mock.ExpectQuery("SELECT payer_code").WithArgs("org-1").
		WillReturnRows(pgxmock.NewRows([]string{"payer_code"}).AddRow("aetna").AddRow("medicare"))
	codes, err := store.ListPayers(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("list payers failed: %v", err)
	}
	if len(codes) != 2 || codes[0] != "aetna" {
		t.Fatalf("unexpected codes: %v", codes)
	}

	mock.ExpectExec("DELETE FROM payer_credentials").WithArgs("org-1", "medicare").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	ok, err := store.Delete(context.Background(), "org-1", "medicare")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !ok {
		t.Fatal("expected delete to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreGet_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	mock.ExpectQuery("SELECT id, org_id, payer_code").WithArgs("org-1", "cigna").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "payer_code", "ciphertext", "created_at", "updated_at"}))

	if _, err := store.Get(context.Background(), "org-1", "cigna"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceResolve(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	manager, err := NewManager(testKey)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	cred := payer.Credential{Type: payer.CredentialAPIKey, APIKey: "gw-key"}
	sealed, err := manager.Encrypt(cred)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "org_id", "payer_code", "ciphertext", "created_at", "updated_at"}).
		AddRow(uuid.New(), "org-1", "aetna", sealed, now, now)
	mock.ExpectQuery("SELECT id, org_id, payer_code").WithArgs("org-1", "aetna").WillReturnRows(rows)

	source := NewSource(NewStore(mock), manager)
	got, err := source.Resolve(context.Background(), "org-1", "aetna")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != cred {
		t.Fatalf("resolved credential = %#v, want %#v", got, cred)
	}
}
