package receipt

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/pkg/storage"
)

func teaAndMatcha() domain.CartSnapshot {
	return domain.CartSnapshot{
		UserID: "u1",
		Items: []domain.CartItem{
			{ProductID: "1", ProductName: "Tea", Quantity: 2, UnitPrice: 50000},
			{ProductID: "2", ProductName: "Matcha", Quantity: 1, UnitPrice: 120000},
		},
	}
}

func TestFromSnapshot(t *testing.T) {
	date := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	in := FromSnapshot(teaAndMatcha(), "Lan", date)

	if len(in.Items) != 2 || in.Items[0].ProductName != "Tea" || in.Items[1].ProductName != "Matcha" {
		t.Fatalf("items = %+v", in.Items)
	}
	if got := in.Items[0].LineTotal(); got != 100000 {
		t.Errorf("Tea line total = %d, want 100000", got)
	}
	if got := in.GrandTotal(); got != 220000 {
		t.Errorf("GrandTotal = %d, want 220000", got)
	}
	if got := FormatDate(in.Date); got != "5/3/2024" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatMoney(120000); got != "120000 VND" {
		t.Errorf("FormatMoney = %q", got)
	}
}

func TestPDFGenerator(t *testing.T) {
	g := NewPDFGenerator(Brand{})
	if g.Brand.Name != "SEEDLING MARKET" {
		t.Fatalf("brand = %+v", g.Brand)
	}

	t.Run("renders a pdf", func(t *testing.T) {
		var buf bytes.Buffer
		in := FromSnapshot(teaAndMatcha(), "Lan", time.Now())
		if err := g.Generate(context.Background(), in, &buf); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
			t.Fatalf("output is not a pdf: %q", buf.Bytes()[:min(16, buf.Len())])
		}
	})

	t.Run("paginates long carts", func(t *testing.T) {
		in := Input{CustomerName: "Lan", Date: time.Now()}
		for i := 0; i < 80; i++ {
			in.Items = append(in.Items, LineItem{ProductID: "p", ProductName: "Tea", Quantity: 1, UnitPrice: 1000})
		}
		var buf bytes.Buffer
		if err := g.Generate(context.Background(), in, &buf); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if n := bytes.Count(buf.Bytes(), []byte("/Type /Page\n")); n < 2 {
			t.Errorf("page count = %d, want at least 2", n)
		}
	})

	t.Run("font selection", func(t *testing.T) {
		const name = "Nguyễn Thị Hạnh"
		font := filepath.Join(t.TempDir(), "body.ttf")

		cases := []struct {
			name       string
			brand      Brand
			wantFamily string
			keepsText  bool
		}{
			{"core font maps to cp1252", Brand{}, coreFamily, false},
			{"embedded font keeps utf-8", Brand{Font: font}, utf8Family, true},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				family, tr := NewPDFGenerator(tc.brand).fonts(gofpdf.New("P", "mm", "A4", ""))
				if family != tc.wantFamily {
					t.Errorf("family = %q, want %q", family, tc.wantFamily)
				}
				if got := tr(name); (got == name) != tc.keepsText {
					t.Errorf("tr(%q) = %q, keepsText = %v", name, got, tc.keepsText)
				}
			})
		}
	})

	t.Run("missing font file", func(t *testing.T) {
		g := NewPDFGenerator(Brand{Font: filepath.Join(t.TempDir(), "missing.ttf")})
		in := FromSnapshot(teaAndMatcha(), "Lan", time.Now())
		if err := g.Generate(context.Background(), in, io.Discard); err == nil {
			t.Fatal("expected error for a missing font file")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := g.Generate(ctx, Input{}, io.Discard); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestArchive(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	a := NewArchive(store, 0)
	ctx := context.Background()

	key, url, err := a.Save(ctx, "u1", []byte("%PDF-1.3 test"), "application/pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(key, "receipts/u1/") || !strings.HasSuffix(key, ".pdf") {
		t.Errorf("key = %q", key)
	}
	if url == "" {
		t.Error("empty url")
	}

	if _, _, err := a.Save(ctx, "", []byte("x"), "application/pdf"); err == nil {
		t.Error("expected error for empty user id")
	}

	files, err := a.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0].Key != key {
		t.Fatalf("files = %+v", files)
	}

	others, err := a.List(ctx, "u2")
	if err != nil || len(others) != 0 {
		t.Fatalf("List(u2) = %+v, %v", others, err)
	}
}
