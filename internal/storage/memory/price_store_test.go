package memory

import (
	"context"
	"errors"
	"testing"

	"narrative-lab/internal/domain"
	"narrative-lab/internal/storage"
)

func TestPriceStore_InsertBulkAndGet(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Symbol: "NVDA", Date: domain.NewDate(2025, 3, 4), Close: 101},
		{Symbol: "NVDA", Date: domain.NewDate(2025, 3, 3), Close: 100},
		{Symbol: "AMD", Date: domain.NewDate(2025, 3, 3), Close: 50},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySymbol(ctx, "NVDA")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(result))
	}
	if result[0].Close != 100 || result[1].Close != 101 {
		t.Errorf("Expected date ASC order, got %v then %v", result[0].Date, result[1].Date)
	}
}

func TestPriceStore_DuplicateKey(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	points := []*domain.PricePoint{{Symbol: "NVDA", Date: domain.NewDate(2025, 3, 3), Close: 100}}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceStore_IntraBatchDuplicate(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Symbol: "NVDA", Date: domain.NewDate(2025, 3, 3), Close: 100},
		{Symbol: "NVDA", Date: domain.NewDate(2025, 3, 3), Close: 101}, // duplicate key
	}

	err := store.InsertBulk(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Verify nothing was inserted
	result, _ := store.GetBySymbol(ctx, "NVDA")
	if len(result) != 0 {
		t.Errorf("Expected 0 points (rollback), got %d", len(result))
	}
}

func TestPriceStore_InvalidInput(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PricePoint{{Symbol: "", Date: domain.NewDate(2025, 3, 3), Close: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestPriceStore_UnknownSymbol(t *testing.T) {
	store := NewPriceStore()

	result, err := store.GetBySymbol(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty result, got %d", len(result))
	}
}
