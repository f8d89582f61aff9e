package product

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init("test", "error")
	os.Exit(m.Run())
}

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, q db.DBTX, p *Product) error {
	return m.Called(ctx, q, p).Error(0)
}

func (m *MockRepository) Update(ctx context.Context, q db.DBTX, p *Product) error {
	return m.Called(ctx, q, p).Error(0)
}

func (m *MockRepository) ReplaceVariants(ctx context.Context, q db.DBTX, productID string, variants []Variant) ([]Variant, error) {
	args := m.Called(ctx, q, productID, variants)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Variant), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, q db.DBTX, id string) (*Product, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) List(ctx context.Context, f ListFilter) ([]Product, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Product), args.Int(1), args.Error(2)
}

func (m *MockRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

// inlineTx runs fn without a database; the mocks ignore the handle.
type inlineTx struct{ calls int }

func (t *inlineTx) WithinTx(ctx context.Context, _ db.TxOptions, fn func(context.Context, db.DBTX) error) error {
	t.calls++
	return fn(ctx, nil)
}

func intPtr(i int) *int { return &i }

func validInput() CreateInput {
	return CreateInput{
		ID:       "TEE-1",
		Title:    "Logo Tee",
		Category: "Apparel",
		Price:    decimal.RequireFromString("19.99"),
		Variants: []VariantInput{{Size: "M", Quantity: intPtr(5)}, {Size: "L", Quantity: intPtr(0)}},
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success with images", func(t *testing.T) {
		repo := new(MockRepository)
		fs := afero.NewMemMapFs()
		svc := NewService(repo, &inlineTx{}, storage.NewFSStore(fs, "http://cdn.local"))

		want := []Variant{{Size: "M", Quantity: 5}, {Size: "L", Quantity: 0}}
		repo.On("Insert", ctx, nil, mock.MatchedBy(func(p *Product) bool {
			return p.ID == "TEE-1" && len(p.ImageURLs) == 1 && p.ImageURLs[0] == "http://cdn.local/TEE-1_front.png"
		})).Return(nil)
		repo.On("ReplaceVariants", ctx, nil, "TEE-1", want).
			Return([]Variant{{ID: 1, ProductID: "TEE-1", Size: "M", Quantity: 5}, {ID: 2, ProductID: "TEE-1", Size: "L"}}, nil)

		p, err := svc.Create(ctx, validInput(), []Image{{Filename: "front.png", ContentType: "image/png", Data: []byte("png")}})

		require.NoError(t, err)
		assert.Len(t, p.Variants, 2)
		exists, _ := afero.Exists(fs, "TEE-1_front.png")
		assert.True(t, exists)
		repo.AssertExpectations(t)
	})

	t.Run("Duplicate id", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, &inlineTx{}, storage.NewFSStore(afero.NewMemMapFs(), ""))
		repo.On("Insert", ctx, nil, mock.Anything).Return(ErrProductExists)

		_, err := svc.Create(ctx, validInput(), nil)

		assert.ErrorIs(t, err, ErrProductExists)
		repo.AssertNotCalled(t, "ReplaceVariants", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		svc := NewService(new(MockRepository), &inlineTx{}, storage.NewFSStore(afero.NewMemMapFs(), ""))

		cases := map[string]func(*CreateInput){
			"missing title":   func(in *CreateInput) { in.Title = " " },
			"zero price":      func(in *CreateInput) { in.Price = decimal.Zero },
			"no variants":     func(in *CreateInput) { in.Variants = nil },
			"no quantity":     func(in *CreateInput) { in.Variants[0].Quantity = nil },
			"negative":        func(in *CreateInput) { in.Variants[0].Quantity = intPtr(-1) },
			"duplicate sizes": func(in *CreateInput) { in.Variants[1].Size = "M" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				in := validInput()
				mutate(&in)
				_, err := svc.Create(ctx, in, nil)
				assert.ErrorIs(t, err, ErrValidation)
			})
		}
	})

	t.Run("Rejects bad images", func(t *testing.T) {
		svc := NewService(new(MockRepository), &inlineTx{}, storage.NewFSStore(afero.NewMemMapFs(), ""))

		_, err := svc.Create(ctx, validInput(), []Image{{Filename: "x.gif", ContentType: "image/gif"}})
		assert.ErrorIs(t, err, ErrInvalidImage)

		big := Image{Filename: "big.png", ContentType: "image/png", Data: make([]byte, MaxImageBytes+1)}
		_, err = svc.Create(ctx, validInput(), []Image{big})
		assert.ErrorIs(t, err, ErrInvalidImage)

		four := make([]Image, MaxImages+1)
		_, err = svc.Create(ctx, validInput(), four)
		assert.ErrorIs(t, err, ErrInvalidImage)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	current := func() *Product {
		return &Product{ID: "TEE-1", Title: "Old", Category: "Apparel", Price: decimal.NewFromInt(10),
			Variants: []Variant{{ID: 1, Size: "M", Quantity: 1}}}
	}

	t.Run("Fields only", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, &inlineTx{}, nil)
		title, price := "New", decimal.NewFromInt(12)

		repo.On("Get", ctx, nil, "TEE-1").Return(current(), nil)
		repo.On("Update", ctx, nil, mock.MatchedBy(func(p *Product) bool {
			return p.Title == "New" && p.Price.Equal(price) && p.Category == "Apparel"
		})).Return(nil)

		p, err := svc.Update(ctx, "TEE-1", UpdateInput{Title: &title, Price: &price})

		require.NoError(t, err)
		assert.Len(t, p.Variants, 1)
		repo.AssertNotCalled(t, "ReplaceVariants", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Replaces variants", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, &inlineTx{}, nil)
		variants := []VariantInput{{Size: "XL", Quantity: intPtr(3)}}

		repo.On("Get", ctx, nil, "TEE-1").Return(current(), nil)
		repo.On("Update", ctx, nil, mock.Anything).Return(nil)
		repo.On("ReplaceVariants", ctx, nil, "TEE-1", []Variant{{Size: "XL", Quantity: 3}}).
			Return([]Variant{{ID: 9, ProductID: "TEE-1", Size: "XL", Quantity: 3}}, nil)

		p, err := svc.Update(ctx, "TEE-1", UpdateInput{Variants: &variants})

		require.NoError(t, err)
		require.Len(t, p.Variants, 1)
		assert.Equal(t, "XL", p.Variants[0].Size)
	})

	t.Run("Not found", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", ctx, nil, "NOPE").Return(nil, ErrProductNotFound)

		_, err := NewService(repo, &inlineTx{}, nil).Update(ctx, "NOPE", UpdateInput{})

		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("Empty title rejected", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", ctx, nil, "TEE-1").Return(current(), nil)
		blank := ""

		_, err := NewService(repo, &inlineTx{}, nil).Update(ctx, "TEE-1", UpdateInput{Title: &blank})

		assert.ErrorIs(t, err, ErrValidation)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_Pagination(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults and totals", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", ctx, ListFilter{Limit: 20, Offset: 0}).Return([]Product{{ID: "A"}}, 41, nil)

		page, err := NewService(repo, &inlineTx{}, nil).List(ctx, 0, 0)

		require.NoError(t, err)
		assert.Equal(t, 41, page.TotalProducts)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 1, page.CurrentPage)
	})

	t.Run("Limit capped", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", ctx, ListFilter{Search: "tee", Limit: 100, Offset: 100}).Return([]Product{}, 0, nil)

		page, err := NewService(repo, &inlineTx{}, nil).Search(ctx, " tee ", 2, 500)

		require.NoError(t, err)
		assert.Equal(t, 0, page.TotalPages)
	})

	t.Run("Category", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", ctx, ListFilter{Category: "Apparel", Limit: 10, Offset: 0}).Return([]Product{}, 0, nil)

		_, err := NewService(repo, &inlineTx{}, nil).ByCategory(ctx, "Apparel", 1, 10)

		assert.NoError(t, err)
	})

	t.Run("Search needs a query", func(t *testing.T) {
		_, err := NewService(new(MockRepository), &inlineTx{}, nil).Search(ctx, "  ", 1, 10)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Store error", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", ctx, mock.Anything).Return(nil, 0, errors.New("db down"))

		_, err := NewService(repo, &inlineTx{}, nil).List(ctx, 1, 10)

		assert.Error(t, err)
	})
}

const importCSV = `id,title,category,price,taxRate,chargeTax,size,quantity,dimension_height,weight_value,weight_unit,material,imageUrls
TEE-1,Logo Tee,Apparel,19.99,5,true,M,5,10,0.2,kg,cotton,"http://a/1.png, http://a/2.png"
TEE-1,,,,,,L,3,,,,,
TEE-1,,,,,,L,9,,,,,
CAP-1,Cap,Accessories,7.50,,false,,,,,,,
,orphan,,,,,S,1,,,,,
MUG-1,Mug,Home,9,,,One,4,,,,ceramic,
`

func TestParseCSV(t *testing.T) {
	products, err := parseCSV(strings.NewReader(importCSV))
	require.NoError(t, err)
	require.Len(t, products, 3)

	tee := products[0]
	assert.Equal(t, "TEE-1", tee.ID)
	assert.True(t, tee.Price.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, tee.TaxRate.Valid)
	assert.True(t, tee.ChargeTax)
	assert.Equal(t, []string{"http://a/1.png", "http://a/2.png"}, []string(tee.ImageURLs))
	assert.Equal(t, []Variant{{Size: "M", Quantity: 5}, {Size: "L", Quantity: 3}}, tee.Variants)
	assert.Equal(t, map[string]any{"material": "cotton"}, tee.OtherDetails)
	require.NotNil(t, tee.Dimensions.Height)
	assert.Equal(t, 10.0, *tee.Dimensions.Height)
	assert.Equal(t, "kg", *tee.Weight.Unit)

	assert.Empty(t, products[1].Variants)
	assert.False(t, products[1].TaxRate.Valid)
}

func TestService_ImportCSV(t *testing.T) {
	ctx := context.Background()

	setup := func() (*MockRepository, *inlineTx) {
		repo := new(MockRepository)
		repo.On("ExistingIDs", ctx, []string{"TEE-1", "CAP-1", "MUG-1"}).Return(map[string]bool{"TEE-1": true}, nil)
		repo.On("Insert", ctx, nil, mock.Anything).Return(nil)
		repo.On("Update", ctx, nil, mock.Anything).Return(nil)
		repo.On("ReplaceVariants", ctx, nil, mock.Anything, mock.Anything).Return([]Variant{}, nil)
		return repo, &inlineTx{}
	}

	t.Run("Skip mode", func(t *testing.T) {
		repo, txm := setup()

		res, err := NewService(repo, txm, nil).ImportCSV(ctx, strings.NewReader(importCSV), ImportSkip)

		require.NoError(t, err)
		assert.Equal(t, 3, res.Parsed)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 2, txm.calls)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Overwrite mode", func(t *testing.T) {
		repo, txm := setup()

		res, err := NewService(repo, txm, nil).ImportCSV(ctx, strings.NewReader(importCSV), ImportOverwrite)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 3, txm.calls)
		repo.AssertCalled(t, "ReplaceVariants", ctx, nil, "TEE-1", []Variant{{Size: "M", Quantity: 5}, {Size: "L", Quantity: 3}})
	})

	t.Run("Failed product does not stop the rest", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ExistingIDs", ctx, mock.Anything).Return(map[string]bool{}, nil)
		repo.On("Insert", ctx, nil, mock.MatchedBy(func(p *Product) bool { return p.ID == "CAP-1" })).Return(errors.New("boom"))
		repo.On("Insert", ctx, nil, mock.Anything).Return(nil)
		repo.On("ReplaceVariants", ctx, nil, mock.Anything, mock.Anything).Return([]Variant{}, nil)

		res, err := NewService(repo, &inlineTx{}, nil).ImportCSV(ctx, strings.NewReader(importCSV), ImportSkip)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)
		require.Len(t, res.Failed, 1)
		assert.Contains(t, res.Failed[0], "CAP-1")
	})

	t.Run("Empty file", func(t *testing.T) {
		_, err := NewService(new(MockRepository), &inlineTx{}, nil).ImportCSV(ctx, strings.NewReader(""), ImportSkip)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestParseImportMode(t *testing.T) {
	m, err := ParseImportMode("")
	require.NoError(t, err)
	assert.Equal(t, ImportSkip, m)

	m, err = ParseImportMode("Overwrite")
	require.NoError(t, err)
	assert.Equal(t, ImportOverwrite, m)

	_, err = ParseImportMode("merge")
	assert.ErrorIs(t, err, ErrValidation)
}
