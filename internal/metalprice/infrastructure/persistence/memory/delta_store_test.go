package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

func TestDeltaStore(t *testing.T) {
	ctx := context.Background()
	s := NewDeltaStore()

	in := map[domain.Metal]decimal.Decimal{domain.Gold: decimal.NewFromInt(2000)}
	if err := s.Save(ctx, in); err != nil {
		t.Fatal(err)
	}
	in[domain.Silver] = decimal.NewFromInt(25)

	got, _ := s.Load(ctx)
	if len(got) != 1 {
		t.Fatalf("store must copy on save, got %v", got)
	}
	got[domain.Gold] = decimal.Zero
	again, _ := s.Load(ctx)
	if !again[domain.Gold].Equal(decimal.NewFromInt(2000)) {
		t.Fatal("store must copy on load")
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Load(ctx); len(got) != 0 {
		t.Fatalf("Load after reset = %v", got)
	}
}
